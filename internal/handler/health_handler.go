package handler

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
)

// DBなどの疎通確認。nilなら常にok。
type Pinger interface {
	Ping(ctx context.Context) error
}

type HealthHandler struct {
	db Pinger
}

func NewHealthHandler(db Pinger) *HealthHandler {
	return &HealthHandler{db: db}
}

func (h *HealthHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", h.healthz)
}

func (h *HealthHandler) healthz(c echo.Context) error {
	if h.db != nil {
		if err := h.db.Ping(c.Request().Context()); err != nil {
			c.Logger().Errorf("healthz: %v", err)
			return c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "database unavailable"})
		}
	}
	return ok(c, "ok")
}
