package middleware

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"tenant-rollups/backend/internal/audit"
	"tenant-rollups/backend/internal/tenancy"
)

// AuditDenials returns middleware that records an access_denied audit event whenever an
// authenticated request ends in 403. It must run after Authenticate and before the role checks.
func AuditDenials(l audit.AuditLogger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			err := next(c)
			if l == nil || !forbidden(c, err) {
				return err
			}
			ctx := c.Request().Context()
			scope, ok := tenancy.FromContext(ctx)
			if !ok {
				return err
			}
			ar := audit.ParseRoute(c.Request().Method, c.Path())
			l.LogEvent(ctx, scope.TenantID, scope.Actor.ID(), audit.ActionAccessDenied, ar.Resource, "operation="+ar.Action)
			return err
		}
	}
}

func forbidden(c echo.Context, err error) bool {
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he.Code == http.StatusForbidden
	}
	return err == nil && c.Response().Status == http.StatusForbidden
}
