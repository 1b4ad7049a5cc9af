package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/movie-ticket-booking/internal/service"
)

// PaymentHandler exposes the payment orchestrator.
type PaymentHandler struct {
	payments *service.PaymentService
}

// NewPaymentHandler constructs a PaymentHandler.
func NewPaymentHandler(payments *service.PaymentService) *PaymentHandler {
	return &PaymentHandler{payments: payments}
}

// Create handles POST /v1/payments. A replayed idempotency key
// returns the original payment; clients cannot tell a replay from the
// first call except through the unchanged payment id.
func (h *PaymentHandler) Create(c echo.Context) error {
	var req service.CreatePaymentRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	switch {
	case req.BookingID == "":
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "booking_id is required"})
	case req.Amount <= 0:
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "amount must be positive"})
	}
	p, err := h.payments.CreatePayment(c.Request().Context(), req)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusCreated, p)
}

// Get handles GET /v1/payments/:id.
func (h *PaymentHandler) Get(c echo.Context) error {
	p, err := h.payments.GetPayment(c.Request().Context(), c.Param("id"))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, p)
}

// ListByBooking handles GET /v1/bookings/:id/payments.
func (h *PaymentHandler) ListByBooking(c echo.Context) error {
	payments, err := h.payments.ListByBooking(c.Request().Context(), c.Param("id"))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"booking_id": c.Param("id"), "payments": payments})
}

// UpdateStatus handles PUT /v1/payments/:id/status.
func (h *PaymentHandler) UpdateStatus(c echo.Context) error {
	var body struct {
		Status string `json:"status"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if body.Status == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "status is required"})
	}
	if err := h.payments.UpdateStatus(c.Request().Context(), c.Param("id"), body.Status); err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"id": c.Param("id"), "status": body.Status})
}

// Refund handles POST /v1/payments/:id/refund. Only a completed
// payment can be refunded.
func (h *PaymentHandler) Refund(c echo.Context) error {
	refundID, err := h.payments.Refund(c.Request().Context(), c.Param("id"))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"id": c.Param("id"), "refund_id": refundID, "status": "refunded"})
}
