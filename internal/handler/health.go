// Package handler contains the HTTP handlers. They are thin: bind,
// validate, call a service or repository, map errors to statuses.
package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// Health is the liveness endpoint used by load balancers and
// monitoring. It returns plain "ok" with a 200.
func Health(c echo.Context) error {
	return c.String(http.StatusOK, "ok")
}
