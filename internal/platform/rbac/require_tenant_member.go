// Package rbac enforces tenant membership and the fixed owner/admin/member role model.
package rbac

import (
	"context"
	"errors"

	membershipdomain "tenant-rollups/backend/internal/membership/domain"
	"tenant-rollups/backend/internal/tenancy"
	tenantdomain "tenant-rollups/backend/internal/tenant/domain"
)

var (
	// ErrUnauthenticated means no tenant scope is attached to the request.
	ErrUnauthenticated = errors.New("tenant and actor context required")
	// ErrForbidden means the actor is not allowed in the tenant or lacks the role.
	ErrForbidden = errors.New("forbidden")
)

// MembershipGetter returns a user's membership in a tenant, or nil if none.
type MembershipGetter interface {
	GetByUserAndTenant(ctx context.Context, userID, tenantID string) (*membershipdomain.Membership, error)
}

// TenantGetter returns a tenant, or nil if none.
type TenantGetter interface {
	GetByID(ctx context.Context, id string) (*tenantdomain.Tenant, error)
}

// RequireTenantMember ensures the scoped tenant is active and, for users, that a membership still
// exists. The returned scope carries the user's current role from the membership, which may differ
// from the role in the access token if it changed since issuance.
func RequireTenantMember(ctx context.Context, members MembershipGetter, tenants TenantGetter) (tenancy.Scope, error) {
	scope, ok := tenancy.FromContext(ctx)
	if !ok {
		return tenancy.Scope{}, ErrUnauthenticated
	}
	t, err := tenants.GetByID(ctx, scope.TenantID)
	if err != nil {
		return tenancy.Scope{}, err
	}
	if t == nil || !t.Active {
		return tenancy.Scope{}, ErrForbidden
	}
	switch scope.Actor.Kind() {
	case tenancy.ActorUser:
		userID, _, _ := scope.Actor.User()
		m, err := members.GetByUserAndTenant(ctx, userID, scope.TenantID)
		if err != nil {
			return tenancy.Scope{}, err
		}
		if m == nil {
			return tenancy.Scope{}, ErrForbidden
		}
		scope.Actor = tenancy.UserActor(userID, m.Role)
		return scope, nil
	case tenancy.ActorService:
		return scope, nil
	case tenancy.ActorNone:
		return tenancy.Scope{}, ErrUnauthenticated
	}
	return tenancy.Scope{}, ErrUnauthenticated
}
