// Package handler serves the tenant audit trail over echo.
package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"tenant-rollups/backend/internal/audit/domain"
	"tenant-rollups/backend/internal/tenancy"
)

const (
	defaultPageSize = 50
	maxPageSize     = 200
)

// Lister reads audit entries for one tenant.
type Lister interface {
	ListByTenant(ctx context.Context, f tenancy.Filter, limit, offset int32) ([]*domain.AuditLog, error)
}

// Handler serves GET /v1/audit-logs.
type Handler struct {
	logs Lister
}

// NewHandler returns a Handler.
func NewHandler(logs Lister) *Handler {
	return &Handler{logs: logs}
}

type entryResponse struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Action    string    `json:"action"`
	Resource  string    `json:"resource"`
	IP        string    `json:"ip"`
	Metadata  string    `json:"metadata,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// List returns the newest audit entries of the caller's tenant. Paging via limit and offset.
func (h *Handler) List(c echo.Context) error {
	var limit, offset int32
	err := echo.QueryParamsBinder(c).
		Int32("limit", &limit).
		Int32("offset", &offset).
		BindError()
	if err != nil || limit < 0 || offset < 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid query parameters")
	}
	if limit == 0 {
		limit = defaultPageSize
	}
	limit = min(limit, maxPageSize)

	ctx := c.Request().Context()
	if _, err := tenancy.MustFromContext(ctx); err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	logs, err := h.logs.ListByTenant(ctx, tenancy.FilterFor(ctx), limit, offset)
	if err != nil {
		return err
	}
	out := make([]entryResponse, 0, len(logs))
	for _, l := range logs {
		out = append(out, entryResponse{
			ID:        l.ID,
			UserID:    l.UserID,
			Action:    l.Action,
			Resource:  l.Resource,
			IP:        l.IP,
			Metadata:  l.Metadata,
			CreatedAt: l.CreatedAt,
		})
	}
	return c.JSON(http.StatusOK, echo.Map{"audit_logs": out})
}
