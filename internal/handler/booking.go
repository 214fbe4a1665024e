package handler

import (
    "context"
    "errors"
    "net/http"
    "time"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/transit-seat-reservation/internal/logger"
    "github.com/iliyamo/transit-seat-reservation/internal/queue"
    "github.com/iliyamo/transit-seat-reservation/internal/repository"
    "github.com/iliyamo/transit-seat-reservation/internal/reservation"
    queue_publisher "github.com/iliyamo/transit-seat-reservation/internal/service"
)

// BookingHandler translates lock and book requests into reservation
// engine calls and maps the engine's outcome onto transport-level
// success, conflict and not-found responses. A conflict is a normal
// outcome of racing callers and is never retried here.
type BookingHandler struct {
    Engine *reservation.Engine
    Repo   *repository.ServiceRepo
    Log    logger.Logger

    // Invalidate drops cached catalog responses after a seat changed
    // state. May be nil when no response cache is configured.
    Invalidate func(ctx context.Context)

    // publish emits the booking event after a confirmed booking. Left
    // nil in tests; failures never affect the request outcome.
    publish func(ctx context.Context, ev queue.SeatBookedEvent) error
}

// NewBookingHandler constructs a BookingHandler wired to the RabbitMQ
// publisher.
func NewBookingHandler(engine *reservation.Engine, repo *repository.ServiceRepo, log logger.Logger) *BookingHandler {
    if engine == nil || repo == nil {
        panic("nil dependency passed to NewBookingHandler")
    }
    h := &BookingHandler{Engine: engine, Repo: repo, Log: log}
    h.publish = func(ctx context.Context, ev queue.SeatBookedEvent) error {
        return queue_publisher.PublishSeatBooked(ctx, ev, log)
    }
    return h
}

// lockSeatRequest carries the optional opaque holder identifier. It is
// recorded with the lock but never checked when the seat is booked.
type lockSeatRequest struct {
    LockedBy string `json:"locked_by"`
}

// LockSeat handles POST /api/services/:serviceId/seats/:seatId/lock.
// On success the seat is LOCKED until now+TTL and the expiry instant is
// returned. A seat that is already locked or booked yields 409; an
// unknown service or seat yields 404.
func (h *BookingHandler) LockSeat(c echo.Context) error {
    serviceID := c.Param("serviceId")
    seatID := c.Param("seatId")

    holder := c.Request().Header.Get("X-Client-ID")
    var body lockSeatRequest
    if err := c.Bind(&body); err == nil && body.LockedBy != "" {
        holder = body.LockedBy
    }

    until, err := h.Engine.Lock(c.Request().Context(), serviceID, seatID, holder)
    if err != nil {
        return h.mapLockError(c, err)
    }
    if h.Invalidate != nil {
        h.Invalidate(c.Request().Context())
    }
    return c.JSON(http.StatusOK, echo.Map{
        "message":     "Seat locked",
        "lockedUntil": until.Format(time.RFC3339),
    })
}

// BookSeat handles POST /api/services/:serviceId/seats/:seatId/book.
// Booking succeeds only while the seat is LOCKED; whoever holds the
// identifiers may confirm, there is no ownership validation. A FREE
// seat yields 409 "not locked yet", a BOOKED one 409 "already booked".
func (h *BookingHandler) BookSeat(c echo.Context) error {
    serviceID := c.Param("serviceId")
    seatID := c.Param("seatId")

    if err := h.Engine.Book(c.Request().Context(), serviceID, seatID); err != nil {
        return h.mapBookError(c, err)
    }
    if h.Invalidate != nil {
        h.Invalidate(c.Request().Context())
    }
    if h.publish != nil {
        go h.publishBooked(serviceID, seatID)
    }
    return c.JSON(http.StatusOK, echo.Map{"message": "Seat booked"})
}

func (h *BookingHandler) mapLockError(c echo.Context, err error) error {
    switch {
    case errors.Is(err, repository.ErrServiceNotFound):
        return c.JSON(http.StatusNotFound, echo.Map{"message": "Service not found"})
    case errors.Is(err, repository.ErrSeatNotFound):
        return c.JSON(http.StatusNotFound, echo.Map{"message": "Seat not found"})
    case errors.Is(err, reservation.ErrSeatBooked):
        return c.JSON(http.StatusConflict, echo.Map{"message": "Seat already booked"})
    case errors.Is(err, reservation.ErrSeatLocked):
        return c.JSON(http.StatusConflict, echo.Map{"message": "Selected seat is already locked"})
    }
    return c.JSON(http.StatusInternalServerError, echo.Map{"message": "database error"})
}

func (h *BookingHandler) mapBookError(c echo.Context, err error) error {
    switch {
    case errors.Is(err, repository.ErrServiceNotFound):
        return c.JSON(http.StatusNotFound, echo.Map{"message": "Service not found"})
    case errors.Is(err, repository.ErrSeatNotFound):
        return c.JSON(http.StatusNotFound, echo.Map{"message": "Seat not found"})
    case errors.Is(err, reservation.ErrSeatNotLocked):
        return c.JSON(http.StatusConflict, echo.Map{"message": "Seat is not locked yet"})
    case errors.Is(err, reservation.ErrSeatBooked):
        return c.JSON(http.StatusConflict, echo.Map{"message": "Seat already booked"})
    }
    return c.JSON(http.StatusInternalServerError, echo.Map{"message": "database error"})
}

// publishBooked enriches and emits the seat.booked event. It runs off
// the request path; any failure is logged and dropped.
func (h *BookingHandler) publishBooked(serviceID, seatID string) {
    ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
    defer cancel()

    ev := queue.SeatBookedEvent{
        ServiceID: serviceID,
        SeatID:    seatID,
        BookedAt:  time.Now().UTC().Format(time.RFC3339),
    }
    if svc, err := h.Repo.GetByID(ctx, serviceID); err == nil {
        ev.ServiceName = svc.Name
        ev.Origin = svc.Origin
        ev.Destination = svc.Destination
        ev.Date = svc.Date
        ev.DepartureTime = svc.DepartureTime
        ev.Price = svc.Price
        for _, s := range svc.Seats {
            if s.ID == seatID {
                ev.SeatNumber = s.Number
                break
            }
        }
    } else if h.Log != nil {
        h.Log.Warnf("seat.booked event: enrich failed for service %s: %v", serviceID, err)
    }
    if err := h.publish(ctx, ev); err != nil && h.Log != nil {
        h.Log.Errorf("seat.booked event: publish failed: %v", err)
    }
}
