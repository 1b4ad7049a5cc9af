package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/movie-ticket-booking/internal/service"
)

// BookingHandler exposes the booking orchestrator.
type BookingHandler struct {
	bookings *service.BookingService
}

// NewBookingHandler constructs a BookingHandler.
func NewBookingHandler(bookings *service.BookingService) *BookingHandler {
	return &BookingHandler{bookings: bookings}
}

// Create handles POST /v1/bookings, the saga entry point. A seat that
// is no longer available aborts with a 409 naming the seat.
func (h *BookingHandler) Create(c echo.Context) error {
	var req service.CreateBookingRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	switch {
	case req.CustomerID == "":
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "customer_id is required"})
	case req.ShowtimeID == "":
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "showtime_id is required"})
	case len(req.Seats) == 0:
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "seats is required"})
	}
	b, err := h.bookings.CreateBooking(c.Request().Context(), req)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusCreated, b)
}

// Get handles GET /v1/bookings/:id.
func (h *BookingHandler) Get(c echo.Context) error {
	b, err := h.bookings.GetBooking(c.Request().Context(), c.Param("id"))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, b)
}

// ListByCustomer handles GET /v1/customers/:id/bookings.
func (h *BookingHandler) ListByCustomer(c echo.Context) error {
	bookings, err := h.bookings.ListByCustomer(c.Request().Context(), c.Param("id"))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"customer_id": c.Param("id"), "bookings": bookings})
}

// UpdateStatus handles PUT /v1/bookings/:id/status. Backward
// transitions are rejected with a 409.
func (h *BookingHandler) UpdateStatus(c echo.Context) error {
	var body struct {
		Status string `json:"status"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if body.Status == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "status is required"})
	}
	if err := h.bookings.UpdateStatus(c.Request().Context(), c.Param("id"), body.Status); err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"id": c.Param("id"), "status": body.Status})
}
