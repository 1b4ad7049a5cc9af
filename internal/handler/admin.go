package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/movie-ticket-booking/internal/notifier"
	"github.com/iliyamo/movie-ticket-booking/internal/realtime"
)

// AdminHandler exposes the operational surface: toggling queue
// processing and inspecting live connections.
type AdminHandler struct {
	processor *notifier.Processor
	registry  *realtime.Registry
}

// NewAdminHandler constructs an AdminHandler.
func NewAdminHandler(processor *notifier.Processor, registry *realtime.Registry) *AdminHandler {
	return &AdminHandler{processor: processor, registry: registry}
}

// SetQueueProcessing handles PUT /v1/admin/queue-processing.
func (h *AdminHandler) SetQueueProcessing(c echo.Context) error {
	var body struct {
		Enabled *bool `json:"enabled"`
	}
	if err := c.Bind(&body); err != nil || body.Enabled == nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "enabled is required"})
	}
	h.processor.SetEnabled(*body.Enabled)
	return c.JSON(http.StatusOK, echo.Map{"enabled": *body.Enabled})
}

// QueueProcessing handles GET /v1/admin/queue-processing.
func (h *AdminHandler) QueueProcessing(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{"enabled": h.processor.Enabled()})
}

// Connections handles GET /v1/admin/connections.
func (h *AdminHandler) Connections(c echo.Context) error {
	customers, connections := h.registry.Stats()
	if customers == nil {
		customers = []string{}
	}
	return c.JSON(http.StatusOK, echo.Map{
		"customers":   customers,
		"connections": connections,
	})
}
