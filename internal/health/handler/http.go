// Package handler serves liveness and readiness for load balancers and orchestrators.
package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"tenant-rollups/backend/internal/platform/logger"
)

const pingTimeout = 2 * time.Second

// Pinger checks a dependency, e.g. *pgxpool.Pool.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler serves GET /healthz.
type Handler struct {
	service string
	db      Pinger
}

// NewHandler returns a Handler. db may be nil; then the database check is skipped.
func NewHandler(service string, db Pinger) *Handler {
	return &Handler{service: service, db: db}
}

// Health returns 200 when the database answers and 503 otherwise.
func (h *Handler) Health(c echo.Context) error {
	resp := echo.Map{"status": "ok", "service": h.service}
	if h.db == nil {
		return c.JSON(http.StatusOK, resp)
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), pingTimeout)
	defer cancel()
	if err := h.db.Ping(ctx); err != nil {
		logger.FromContext(ctx).Warn("health: database ping failed", zap.Error(err))
		resp["status"] = "unavailable"
		resp["database"] = "unreachable"
		return c.JSON(http.StatusServiceUnavailable, resp)
	}
	resp["database"] = "ok"
	return c.JSON(http.StatusOK, resp)
}
