// Package handler serves tenant deactivation and member role updates over echo.
package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	membershipdomain "tenant-rollups/backend/internal/membership/domain"
	"tenant-rollups/backend/internal/tenancy"
	"tenant-rollups/backend/internal/tenant/service"
)

// TenantAdmin is the admin service consumed by the handler.
type TenantAdmin interface {
	Deactivate(ctx context.Context) error
	UpdateRole(ctx context.Context, userID string, role membershipdomain.Role) (*membershipdomain.Membership, error)
}

// Handler serves DELETE /v1/tenant and PATCH /v1/members/:user_id.
type Handler struct {
	admin TenantAdmin
}

// NewHandler returns a Handler.
func NewHandler(admin TenantAdmin) *Handler {
	return &Handler{admin: admin}
}

type roleRequest struct {
	Role string `json:"role"`
}

type memberResponse struct {
	UserID   string    `json:"user_id"`
	TenantID string    `json:"tenant_id"`
	Role     string    `json:"role"`
	JoinedAt time.Time `json:"joined_at"`
}

// Deactivate handles DELETE /v1/tenant.
func (h *Handler) Deactivate(c echo.Context) error {
	if err := h.admin.Deactivate(c.Request().Context()); err != nil {
		return mapError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// UpdateRole handles PATCH /v1/members/:user_id.
func (h *Handler) UpdateRole(c echo.Context) error {
	var req roleRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	role, err := membershipdomain.ParseRole(strings.TrimSpace(req.Role))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "role must be owner, admin or member")
	}
	m, err := h.admin.UpdateRole(c.Request().Context(), c.Param("user_id"), role)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, memberResponse{
		UserID:   m.UserID,
		TenantID: m.TenantID,
		Role:     m.Role.String(),
		JoinedAt: m.JoinedAt,
	})
}

func mapError(err error) error {
	switch {
	case errors.Is(err, tenancy.ErrNoScope):
		return echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
	case errors.Is(err, service.ErrOwnerRequired):
		return echo.NewHTTPError(http.StatusForbidden, "forbidden")
	case errors.Is(err, service.ErrSelfRoleChange):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, service.ErrMemberNotFound), errors.Is(err, service.ErrTenantNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, membershipdomain.ErrUnknownRole):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return err
}
