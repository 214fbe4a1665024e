package handler

import (
    "context"
    "errors"
    "net/http"

    "github.com/google/uuid"
    "github.com/labstack/echo/v4"

    "github.com/iliyamo/transit-seat-reservation/internal/model"
    "github.com/iliyamo/transit-seat-reservation/internal/repository"
)

// ServiceHandler exposes the service catalog: creating a departure with
// its seat set, searching by route and date, and fetching one service.
type ServiceHandler struct {
    Repo *repository.ServiceRepo

    // Invalidate drops cached catalog responses after a mutation. May
    // be nil when no response cache is configured.
    Invalidate func(ctx context.Context)
}

// NewServiceHandler constructs a ServiceHandler.
func NewServiceHandler(repo *repository.ServiceRepo) *ServiceHandler {
    if repo == nil {
        panic("nil repository passed to NewServiceHandler")
    }
    return &ServiceHandler{Repo: repo}
}

// createServiceRequest mirrors the external creation payload.
type createServiceRequest struct {
    Name          string  `json:"name"`
    From          string  `json:"from"`
    To            string  `json:"to"`
    Date          string  `json:"date"`
    DepartureTime string  `json:"departureTime"`
    Price         float64 `json:"price"`
    TotalSeats    int     `json:"totalSeats"`
}

// CreateService handles POST /api/services. It creates a service
// together with totalSeats FREE seats numbered 1..N in one atomic
// operation and returns the created document with 201. Any missing or
// zero field is rejected with 400.
func (h *ServiceHandler) CreateService(c echo.Context) error {
    var body createServiceRequest
    if err := c.Bind(&body); err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"message": "Missing fields"})
    }
    if body.Name == "" || body.From == "" || body.To == "" || body.Date == "" ||
        body.DepartureTime == "" || body.Price == 0 || body.TotalSeats <= 0 {
        return c.JSON(http.StatusBadRequest, echo.Map{"message": "Missing fields"})
    }

    svc := &model.Service{
        ID:            uuid.NewString(),
        Name:          body.Name,
        Origin:        body.From,
        Destination:   body.To,
        Date:          body.Date,
        DepartureTime: body.DepartureTime,
        Price:         body.Price,
        Seats:         make([]model.Seat, 0, body.TotalSeats),
    }
    for i := 0; i < body.TotalSeats; i++ {
        svc.Seats = append(svc.Seats, model.Seat{
            ID:     uuid.NewString(),
            Number: uint32(i + 1),
            Status: model.SeatStatusFree,
        })
    }

    if err := h.Repo.CreateService(c.Request().Context(), svc); err != nil {
        return c.JSON(http.StatusInternalServerError, echo.Map{"message": "database error"})
    }
    if h.Invalidate != nil {
        h.Invalidate(c.Request().Context())
    }
    return c.JSON(http.StatusCreated, svc)
}

// SearchServices handles GET /api/services?from&to&date. Each present
// parameter must match exactly; absent parameters do not constrain the
// result, so a request without any lists the whole catalog.
func (h *ServiceHandler) SearchServices(c echo.Context) error {
    params := c.QueryParams()
    var filter repository.ServiceFilter
    if params.Has("from") {
        v := params.Get("from")
        filter.Origin = &v
    }
    if params.Has("to") {
        v := params.Get("to")
        filter.Destination = &v
    }
    if params.Has("date") {
        v := params.Get("date")
        filter.Date = &v
    }

    services, err := h.Repo.FindServices(c.Request().Context(), filter)
    if err != nil {
        return c.JSON(http.StatusInternalServerError, echo.Map{"message": "database error"})
    }
    return c.JSON(http.StatusOK, services)
}

// GetService handles GET /api/services/:id. An unknown id yields a 200
// response with a null body rather than a 404.
func (h *ServiceHandler) GetService(c echo.Context) error {
    svc, err := h.Repo.GetByID(c.Request().Context(), c.Param("id"))
    if err != nil {
        if errors.Is(err, repository.ErrServiceNotFound) {
            return c.JSON(http.StatusOK, nil)
        }
        return c.JSON(http.StatusInternalServerError, echo.Map{"message": "database error"})
    }
    return c.JSON(http.StatusOK, svc)
}
