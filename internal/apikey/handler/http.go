// Package handler serves tenant API key administration over echo.
package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"tenant-rollups/backend/internal/apikey/domain"
	"tenant-rollups/backend/internal/apikey/service"
	"tenant-rollups/backend/internal/tenancy"
)

// Keys is the API key manager consumed by the handler.
type Keys interface {
	Create(ctx context.Context, tenantID, name string, expiresAt *time.Time) (*domain.APIKey, string, error)
	Revoke(ctx context.Context, id string) error
	List(ctx context.Context) ([]*domain.APIKey, error)
}

// Handler serves /v1/api-keys.
type Handler struct {
	keys Keys
}

// NewHandler returns a Handler.
func NewHandler(keys Keys) *Handler {
	return &Handler{keys: keys}
}

type createRequest struct {
	Name      string     `json:"name"`
	ExpiresAt *time.Time `json:"expires_at"`
}

type keyResponse struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	Prefix     string     `json:"prefix"`
	Active     bool       `json:"active"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty"`
	LastUsedAt *time.Time `json:"last_used_at,omitempty"`
	RevokedAt  *time.Time `json:"revoked_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	// Key is the plaintext, present only in the create response.
	Key string `json:"key,omitempty"`
}

func toResponse(k *domain.APIKey) keyResponse {
	return keyResponse{
		ID:         k.ID,
		Name:       k.Name,
		Prefix:     k.Prefix,
		Active:     k.Active,
		ExpiresAt:  k.ExpiresAt,
		LastUsedAt: k.LastUsedAt,
		RevokedAt:  k.RevokedAt,
		CreatedAt:  k.CreatedAt,
	}
}

// Create handles POST /v1/api-keys.
func (h *Handler) Create(c echo.Context) error {
	ctx := c.Request().Context()
	scope, err := tenancy.MustFromContext(ctx)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	var req createRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.ExpiresAt != nil && !req.ExpiresAt.After(time.Now()) {
		return echo.NewHTTPError(http.StatusBadRequest, "expires_at must be in the future")
	}
	k, plaintext, err := h.keys.Create(ctx, scope.TenantID, req.Name, req.ExpiresAt)
	if errors.Is(err, service.ErrNameRequired) {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err != nil {
		return err
	}
	resp := toResponse(k)
	resp.Key = plaintext
	return c.JSON(http.StatusCreated, resp)
}

// List handles GET /v1/api-keys.
func (h *Handler) List(c echo.Context) error {
	keys, err := h.keys.List(c.Request().Context())
	if err != nil {
		return err
	}
	out := make([]keyResponse, 0, len(keys))
	for _, k := range keys {
		out = append(out, toResponse(k))
	}
	return c.JSON(http.StatusOK, echo.Map{"api_keys": out})
}

// Revoke handles DELETE /v1/api-keys/:id.
func (h *Handler) Revoke(c echo.Context) error {
	err := h.keys.Revoke(c.Request().Context(), c.Param("id"))
	if errors.Is(err, domain.ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "api key not found")
	}
	if err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}
