package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/movie-ticket-booking/internal/model"
	"github.com/iliyamo/movie-ticket-booking/internal/realtime"
	"github.com/iliyamo/movie-ticket-booking/internal/repository"
)

// NotificationHandler exposes notifications over plain HTTP. Create
// is the fast path used by sibling services: persist first, then push
// to whatever connections are live.
type NotificationHandler struct {
	store    *repository.NotificationRepo
	registry *realtime.Registry
}

// NewNotificationHandler constructs a NotificationHandler.
func NewNotificationHandler(store *repository.NotificationRepo, registry *realtime.Registry) *NotificationHandler {
	return &NotificationHandler{store: store, registry: registry}
}

// Create handles POST /v1/notifications.
func (h *NotificationHandler) Create(c echo.Context) error {
	var body struct {
		CustomerID string `json:"customer_id"`
		Type       string `json:"type"`
		Content    string `json:"content"`
		BookingID  string `json:"booking_id"`
		PaymentID  string `json:"payment_id"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	switch {
	case body.CustomerID == "":
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "customer_id is required"})
	case body.Content == "":
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "content is required"})
	}
	switch body.Type {
	case model.NotificationBooking, model.NotificationPayment, model.NotificationCustom:
	case "":
		body.Type = model.NotificationCustom
	default:
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "unknown notification type"})
	}

	n := &model.Notification{
		CustomerID: body.CustomerID,
		Type:       body.Type,
		Content:    body.Content,
		Status:     model.NotificationPending,
		BookingID:  body.BookingID,
		PaymentID:  body.PaymentID,
	}
	if err := h.store.Create(c.Request().Context(), n); err != nil {
		return fail(c, err)
	}
	h.registry.Deliver(n.CustomerID, *n)
	return c.JSON(http.StatusCreated, n)
}

// Get handles GET /v1/notifications/:id.
func (h *NotificationHandler) Get(c echo.Context) error {
	n, err := h.store.GetByID(c.Request().Context(), c.Param("id"))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, n)
}

// ListByCustomer handles GET /v1/customers/:id/notifications. With
// ?status=pending only the unread backlog is returned.
func (h *NotificationHandler) ListByCustomer(c echo.Context) error {
	ctx := c.Request().Context()
	customerID := c.Param("id")
	var (
		notifications []model.Notification
		err           error
	)
	if c.QueryParam("status") == model.NotificationPending {
		notifications, err = h.store.ListPending(ctx, customerID)
	} else {
		notifications, err = h.store.ListByCustomer(ctx, customerID)
	}
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"customer_id": customerID, "notifications": notifications})
}

// UpdateStatus handles PUT /v1/notifications/:id/status.
func (h *NotificationHandler) UpdateStatus(c echo.Context) error {
	var body struct {
		Status string `json:"status"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if body.Status != model.NotificationPending && body.Status != model.NotificationRead {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "status must be pending or read"})
	}
	if err := h.store.UpdateStatus(c.Request().Context(), c.Param("id"), body.Status); err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"id": c.Param("id"), "status": body.Status})
}
