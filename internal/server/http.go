// Package server assembles the echo router: ambient middleware, credential dispatch per route
// group, role checks and the JSON error envelope.
package server

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	apikeyhandler "tenant-rollups/backend/internal/apikey/handler"
	"tenant-rollups/backend/internal/audit"
	audithandler "tenant-rollups/backend/internal/audit/handler"
	eventhandler "tenant-rollups/backend/internal/event/handler"
	healthhandler "tenant-rollups/backend/internal/health/handler"
	identityhandler "tenant-rollups/backend/internal/identity/handler"
	"tenant-rollups/backend/internal/platform/logger"
	"tenant-rollups/backend/internal/platform/metrics"
	"tenant-rollups/backend/internal/platform/rbac"
	"tenant-rollups/backend/internal/server/middleware"
	tenanthandler "tenant-rollups/backend/internal/tenant/handler"
)

// Handlers groups the route handlers.
type Handlers struct {
	Auth   *identityhandler.Handler
	Events *eventhandler.Handler
	Keys   *apikeyhandler.Handler
	Audit  *audithandler.Handler
	Health *healthhandler.Handler
	Tenant *tenanthandler.Handler
}

// Deps holds everything the router needs. Metrics, Tracer and Audit may be nil.
type Deps struct {
	Log           *zap.Logger
	Authenticator *middleware.Authenticator
	Members       rbac.MembershipGetter
	Tenants       rbac.TenantGetter
	Audit         audit.AuditLogger
	Metrics       *metrics.Metrics
	Tracer        trace.Tracer
	Handlers      Handlers
}

// New returns the configured echo instance. Every non-public route is authenticated with exactly
// one scheme and then checked against the tenant's live membership.
func New(d Deps) *echo.Echo {
	log := d.Log
	if log == nil {
		log = zap.NewNop()
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = errorHandler(log)

	e.Use(echomw.Recover())
	e.Use(echomw.RequestIDWithConfig(echomw.RequestIDConfig{Generator: uuid.NewString}))
	e.Use(logger.Middleware(log))
	if d.Metrics != nil {
		e.Use(d.Metrics.Middleware())
	}
	e.Use(middleware.Tracing(d.Tracer, "/healthz", "/metrics"))
	e.Use(middleware.ClientIPContext())

	h := d.Handlers
	e.GET("/healthz", h.Health.Health)
	if d.Metrics != nil {
		e.GET("/metrics", echo.WrapHandler(d.Metrics.Handler()))
	}

	v1 := e.Group("/v1")

	auth := v1.Group("/auth")
	auth.POST("/register", h.Auth.Register)
	auth.POST("/login", h.Auth.Login)
	auth.POST("/refresh", h.Auth.Refresh)
	auth.POST("/logout", h.Auth.Logout)

	denials := middleware.AuditDenials(d.Audit)
	member := rbac.Member(d.Members, d.Tenants)
	admin := rbac.Admin(d.Members, d.Tenants)
	bearer := d.Authenticator.Authenticate(middleware.SchemeBearer)

	v1.GET("/me", h.Auth.Me, d.Authenticator.Authenticate(middleware.SchemeEither), denials, member)

	v1.POST("/events", h.Events.Ingest, d.Authenticator.Authenticate(middleware.SchemeAPIKey), denials, member)
	v1.GET("/events", h.Events.List, bearer, denials, member)
	v1.GET("/rollups", h.Events.Rollups, bearer, denials, member)

	keys := v1.Group("/api-keys", bearer, denials, admin)
	keys.POST("", h.Keys.Create)
	keys.GET("", h.Keys.List)
	keys.DELETE("/:id", h.Keys.Revoke)

	v1.GET("/audit-logs", h.Audit.List, bearer, denials, admin)
	v1.PATCH("/members/:user_id", h.Tenant.UpdateRole, bearer, denials, admin)
	v1.DELETE("/tenant", h.Tenant.Deactivate, bearer, denials, admin)

	return e
}

// errorHandler renders every error as {"error": message}. Internal errors are logged and their
// detail is not returned to the client.
func errorHandler(log *zap.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}
		code := http.StatusInternalServerError
		msg := http.StatusText(code)
		var he *echo.HTTPError
		if errors.As(err, &he) {
			code = he.Code
			if m, ok := he.Message.(string); ok {
				msg = m
			} else {
				msg = http.StatusText(code)
			}
		} else {
			logger.FromContext(c.Request().Context()).Error("unhandled error",
				zap.String("path", c.Path()), zap.Error(err))
		}

		if c.Request().Method == http.MethodHead {
			err = c.NoContent(code)
		} else {
			err = c.JSON(code, echo.Map{"error": msg})
		}
		if err != nil {
			log.Warn("writing error response", zap.Error(err))
		}
	}
}
