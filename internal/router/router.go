// Package router defines how HTTP routes are registered for the API.
package router

import (
    "github.com/labstack/echo/v4"

    "github.com/iliyamo/transit-seat-reservation/internal/handler"
)

// RegisterRoutes wires the catalog and booking endpoints onto the
// provided Echo instance. cacheMW is applied to the read-only catalog
// routes and limitMW to the state-changing lock/book routes; either may
// be a pass-through when Redis is unavailable.
func RegisterRoutes(e *echo.Echo, svc *handler.ServiceHandler, booking *handler.BookingHandler, cacheMW, limitMW echo.MiddlewareFunc) {
    // Health check for load balancers and monitoring.
    e.GET("/healthz", handler.Health)

    api := e.Group("/api")
    api.POST("/services", svc.CreateService)
    api.GET("/services", svc.SearchServices, cacheMW)
    api.GET("/services/:id", svc.GetService, cacheMW)
    api.POST("/services/:serviceId/seats/:seatId/lock", booking.LockSeat, limitMW)
    api.POST("/services/:serviceId/seats/:seatId/book", booking.BookSeat, limitMW)
}
