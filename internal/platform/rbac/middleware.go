package rbac

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"tenant-rollups/backend/internal/tenancy"
)

type check func(ctx context.Context, members MembershipGetter, tenants TenantGetter) (tenancy.Scope, error)

// Member returns echo middleware running RequireTenantMember and re-attaching the refreshed scope.
func Member(members MembershipGetter, tenants TenantGetter) echo.MiddlewareFunc {
	return enforce(RequireTenantMember, members, tenants)
}

// Admin returns echo middleware running RequireTenantAdmin.
func Admin(members MembershipGetter, tenants TenantGetter) echo.MiddlewareFunc {
	return enforce(RequireTenantAdmin, members, tenants)
}

func enforce(fn check, members MembershipGetter, tenants TenantGetter) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			scope, err := fn(req.Context(), members, tenants)
			switch {
			case errors.Is(err, ErrUnauthenticated):
				return echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
			case errors.Is(err, ErrForbidden):
				return echo.NewHTTPError(http.StatusForbidden, "forbidden")
			case err != nil:
				return err
			}
			c.SetRequest(req.WithContext(tenancy.WithScope(req.Context(), scope)))
			return next(c)
		}
	}
}
