package rbac

import (
	"context"

	"tenant-rollups/backend/internal/tenancy"
)

// RequireTenantAdmin ensures the caller is a user member of the scoped tenant with role owner or admin.
// Service actors never administer tenants.
func RequireTenantAdmin(ctx context.Context, members MembershipGetter, tenants TenantGetter) (tenancy.Scope, error) {
	scope, err := RequireTenantMember(ctx, members, tenants)
	if err != nil {
		return tenancy.Scope{}, err
	}
	_, role, ok := scope.Actor.User()
	if !ok || !role.CanManageTenant() {
		return tenancy.Scope{}, ErrForbidden
	}
	return scope, nil
}
