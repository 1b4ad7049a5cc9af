// Package router wires the HTTP surface onto an echo instance.
package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/movie-ticket-booking/internal/handler"
)

// Handlers bundles everything the router mounts.
type Handlers struct {
	Seats         *handler.SeatHandler
	Bookings      *handler.BookingHandler
	Payments      *handler.PaymentHandler
	Notifications *handler.NotificationHandler
	WS            *handler.WSHandler
	Admin         *handler.AdminHandler
}

// Register mounts all routes. Authentication is not part of this
// service; callers are trusted peers behind the gateway.
func Register(e *echo.Echo, h Handlers) {
	e.GET("/healthz", handler.Health)

	v1 := e.Group("/v1")

	// Seat ledger.
	v1.POST("/seats/provision", h.Seats.Provision)
	v1.GET("/seats/:id", h.Seats.Get)
	v1.PUT("/seats/:id/status", h.Seats.UpdateStatus)
	v1.POST("/seats/check", h.Seats.Check)
	v1.POST("/seats/book", h.Seats.Book)
	v1.POST("/seats/release", h.Seats.Release)
	v1.GET("/showtimes/:id/seats", h.Seats.ListByShowtime)

	// Booking saga.
	v1.POST("/bookings", h.Bookings.Create)
	v1.GET("/bookings/:id", h.Bookings.Get)
	v1.PUT("/bookings/:id/status", h.Bookings.UpdateStatus)
	v1.GET("/customers/:id/bookings", h.Bookings.ListByCustomer)

	// Payments.
	v1.POST("/payments", h.Payments.Create)
	v1.GET("/payments/:id", h.Payments.Get)
	v1.PUT("/payments/:id/status", h.Payments.UpdateStatus)
	v1.POST("/payments/:id/refund", h.Payments.Refund)
	v1.GET("/bookings/:id/payments", h.Payments.ListByBooking)

	// Notifications.
	v1.POST("/notifications", h.Notifications.Create)
	v1.GET("/notifications/:id", h.Notifications.Get)
	v1.PUT("/notifications/:id/status", h.Notifications.UpdateStatus)
	v1.GET("/customers/:id/notifications", h.Notifications.ListByCustomer)

	// Realtime channel.
	e.GET("/ws", h.WS.Serve)

	// Operational surface.
	v1.PUT("/admin/queue-processing", h.Admin.SetQueueProcessing)
	v1.GET("/admin/queue-processing", h.Admin.QueueProcessing)
	v1.GET("/admin/connections", h.Admin.Connections)
}
