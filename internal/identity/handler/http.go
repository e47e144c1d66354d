// Package handler serves the auth endpoints and /v1/me over echo.
package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	identityservice "tenant-rollups/backend/internal/identity/service"
	"tenant-rollups/backend/internal/platform/logger"
	"tenant-rollups/backend/internal/server/middleware"
	"tenant-rollups/backend/internal/tenancy"
	tenantdomain "tenant-rollups/backend/internal/tenant/domain"
	userdomain "tenant-rollups/backend/internal/user/domain"
)

const (
	// RefreshCookieName is the cookie carrying the refresh token.
	RefreshCookieName = "refresh_token"
	// RefreshCookiePath limits the cookie to the auth endpoints.
	RefreshCookiePath = "/v1/auth"
)

// AuthFlows is the auth orchestrator consumed by the handler.
type AuthFlows interface {
	Register(ctx context.Context, in identityservice.RegisterInput) (*identityservice.AuthResult, error)
	Login(ctx context.Context, in identityservice.LoginInput) (*identityservice.AuthResult, error)
	Refresh(ctx context.Context, secret, ip string) (*identityservice.AuthResult, error)
	Logout(ctx context.Context, secret, ip string) (*identityservice.AuthResult, error)
}

// UserGetter loads users for /v1/me.
type UserGetter interface {
	GetByID(ctx context.Context, id string) (*userdomain.User, error)
}

// TenantGetter loads tenants for /v1/me.
type TenantGetter interface {
	GetByID(ctx context.Context, id string) (*tenantdomain.Tenant, error)
}

// CookieConfig controls the refresh cookie.
type CookieConfig struct {
	Secure bool
	TTL    time.Duration
}

// Handler serves register, login, refresh, logout and me.
type Handler struct {
	auth    AuthFlows
	users   UserGetter
	tenants TenantGetter
	cookie  CookieConfig
}

// NewHandler returns a Handler.
func NewHandler(auth AuthFlows, users UserGetter, tenants TenantGetter, cookie CookieConfig) *Handler {
	return &Handler{auth: auth, users: users, tenants: tenants, cookie: cookie}
}

type registerRequest struct {
	Email      string `json:"email"`
	Password   string `json:"password"`
	FirstName  string `json:"first_name"`
	LastName   string `json:"last_name"`
	TenantName string `json:"tenant_name"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	TenantID string `json:"tenant_id"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type authResponse struct {
	AccessToken  string                         `json:"access_token"`
	TokenType    string                         `json:"token_type"`
	ExpiresAt    time.Time                      `json:"expires_at"`
	RefreshToken string                         `json:"refresh_token"`
	User         *identityservice.UserSummary   `json:"user"`
	Tenant       *identityservice.TenantSummary `json:"tenant"`
}

// Register handles POST /v1/auth/register.
func (h *Handler) Register(c echo.Context) error {
	var req registerRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	ctx := c.Request().Context()
	res, err := h.auth.Register(ctx, identityservice.RegisterInput{
		Email:      req.Email,
		Password:   req.Password,
		FirstName:  req.FirstName,
		LastName:   req.LastName,
		TenantName: req.TenantName,
		IP:         middleware.ClientIP(ctx),
	})
	if err != nil {
		return err
	}
	if !res.Success {
		status := http.StatusBadRequest
		if res.Error == identityservice.ReasonEmailTaken {
			status = http.StatusConflict
		}
		return echo.NewHTTPError(status, res.Error)
	}
	return h.writeTokens(c, http.StatusCreated, res)
}

// Login handles POST /v1/auth/login.
func (h *Handler) Login(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	ctx := c.Request().Context()
	res, err := h.auth.Login(ctx, identityservice.LoginInput{
		Email:    req.Email,
		Password: req.Password,
		TenantID: req.TenantID,
		IP:       middleware.ClientIP(ctx),
	})
	if err != nil {
		return err
	}
	if !res.Success {
		status := http.StatusForbidden
		if res.Error == identityservice.ReasonInvalidCredentials {
			status = http.StatusUnauthorized
		}
		return echo.NewHTTPError(status, res.Error)
	}
	return h.writeTokens(c, http.StatusOK, res)
}

// Refresh handles POST /v1/auth/refresh. The token is read from the cookie, then the body.
func (h *Handler) Refresh(c echo.Context) error {
	secret, err := h.presentedRefresh(c)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	res, err := h.auth.Refresh(ctx, secret, middleware.ClientIP(ctx))
	if errors.Is(err, identityservice.ErrUnauthorized) {
		h.clearCookie(c)
		return middleware.ErrUnauthorized
	}
	if err != nil {
		return err
	}
	return h.writeTokens(c, http.StatusOK, res)
}

// Logout handles POST /v1/auth/logout. It succeeds for unknown tokens.
func (h *Handler) Logout(c echo.Context) error {
	secret, err := h.presentedRefresh(c)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	if _, err := h.auth.Logout(ctx, secret, middleware.ClientIP(ctx)); err != nil {
		return err
	}
	h.clearCookie(c)
	return c.NoContent(http.StatusNoContent)
}

type meResponse struct {
	TenantID  string                         `json:"tenant_id"`
	ActorKind string                         `json:"actor_kind"`
	User      *identityservice.UserSummary   `json:"user,omitempty"`
	Tenant    *identityservice.TenantSummary `json:"tenant,omitempty"`
	APIKeyID  string                         `json:"api_key_id,omitempty"`
}

// Me handles GET /v1/me and describes the resolved actor and tenant.
func (h *Handler) Me(c echo.Context) error {
	ctx := c.Request().Context()
	scope, err := tenancy.MustFromContext(ctx)
	if err != nil {
		return middleware.ErrUnauthorized
	}
	resp := meResponse{TenantID: scope.TenantID, ActorKind: scope.Actor.Kind().String()}
	t, err := h.tenants.GetByID(ctx, scope.TenantID)
	if err != nil {
		return err
	}
	if t != nil {
		resp.Tenant = &identityservice.TenantSummary{ID: t.ID, Name: t.Name, Slug: t.Slug}
	}
	if userID, role, ok := scope.Actor.User(); ok {
		u, err := h.users.GetByID(ctx, userID)
		if err != nil {
			return err
		}
		if u == nil {
			return middleware.ErrUnauthorized
		}
		resp.User = &identityservice.UserSummary{ID: u.ID, Email: u.Email, FirstName: u.FirstName, LastName: u.LastName}
		if resp.Tenant != nil {
			resp.Tenant.Role = role.String()
		}
	}
	if keyID, ok := scope.Actor.Service(); ok {
		resp.APIKeyID = keyID
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *Handler) presentedRefresh(c echo.Context) (string, error) {
	if ck, err := c.Cookie(RefreshCookieName); err == nil && ck.Value != "" {
		return ck.Value, nil
	}
	if c.Request().ContentLength == 0 {
		return "", nil
	}
	var req refreshRequest
	if err := c.Bind(&req); err != nil {
		return "", echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	return req.RefreshToken, nil
}

func (h *Handler) writeTokens(c echo.Context, status int, res *identityservice.AuthResult) error {
	c.SetCookie(&http.Cookie{
		Name:     RefreshCookieName,
		Value:    res.RefreshToken,
		Path:     RefreshCookiePath,
		MaxAge:   int(h.cookie.TTL.Seconds()),
		HttpOnly: true,
		Secure:   h.cookie.Secure,
		SameSite: http.SameSiteStrictMode,
	})
	if res.User != nil && res.Tenant != nil {
		logger.FromContext(c.Request().Context()).Info("issued token pair",
			zap.String("user_id", res.User.ID), zap.String("tenant_id", res.Tenant.ID))
	}
	return c.JSON(status, authResponse{
		AccessToken:  res.AccessToken,
		TokenType:    "Bearer",
		ExpiresAt:    res.ExpiresAt,
		RefreshToken: res.RefreshToken,
		User:         res.User,
		Tenant:       res.Tenant,
	})
}

func (h *Handler) clearCookie(c echo.Context) {
	c.SetCookie(&http.Cookie{
		Name:     RefreshCookieName,
		Value:    "",
		Path:     RefreshCookiePath,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.cookie.Secure,
		SameSite: http.SameSiteStrictMode,
	})
}
