package handler

import (
	"log"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/movie-ticket-booking/internal/realtime"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Origin checks are the deployment's concern; the service itself
	// carries no authentication.
	CheckOrigin: func(*http.Request) bool { return true },
}

// WSHandler upgrades GET /ws connections and runs the realtime
// session until the peer disconnects.
type WSHandler struct {
	registry *realtime.Registry
}

// NewWSHandler constructs a WSHandler.
func NewWSHandler(registry *realtime.Registry) *WSHandler {
	return &WSHandler{registry: registry}
}

// Serve handles GET /ws.
func (h *WSHandler) Serve(c echo.Context) error {
	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		log.Printf("realtime: upgrade failed: %v", err)
		return nil
	}
	session := realtime.NewSession(conn, h.registry)
	session.Run(c.Request().Context())
	return nil
}
