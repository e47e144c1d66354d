// Package service changes tenant status and membership roles.
package service

import (
	"context"
	"errors"
	"time"

	"tenant-rollups/backend/internal/audit"
	membershipdomain "tenant-rollups/backend/internal/membership/domain"
	"tenant-rollups/backend/internal/tenancy"
	tenantdomain "tenant-rollups/backend/internal/tenant/domain"
)

var (
	// ErrOwnerRequired is returned when a non-owner deactivates the tenant or grants or revokes
	// the owner role.
	ErrOwnerRequired = errors.New("tenant owner role required")
	// ErrSelfRoleChange is returned when callers try to change their own role.
	ErrSelfRoleChange = errors.New("cannot change your own role")
	// ErrMemberNotFound is returned when the target user has no membership in the tenant.
	ErrMemberNotFound = errors.New("membership not found")
	// ErrTenantNotFound is returned by SetActive for an unknown tenant.
	ErrTenantNotFound = errors.New("tenant not found")
)

// TenantRepo is the tenant persistence the admin needs.
type TenantRepo interface {
	GetByID(ctx context.Context, id string) (*tenantdomain.Tenant, error)
	Deactivate(ctx context.Context, id string, at time.Time) error
	Reactivate(ctx context.Context, id string) error
}

// MembershipRepo is the membership persistence the admin needs.
type MembershipRepo interface {
	GetByUserAndTenant(ctx context.Context, userID, tenantID string) (*membershipdomain.Membership, error)
	UpdateRole(ctx context.Context, userID, tenantID string, role membershipdomain.Role) (*membershipdomain.Membership, error)
}

// Admin applies tenant status changes and role updates. Scoped methods read the tenant and the
// caller's live role from the request scope; SetActive and AssignRole are for operator tooling.
type Admin struct {
	tenants TenantRepo
	members MembershipRepo
	audit   audit.AuditLogger
	now     func() time.Time
}

// NewAdmin returns an Admin.
func NewAdmin(tenants TenantRepo, members MembershipRepo) *Admin {
	return &Admin{tenants: tenants, members: members, now: time.Now}
}

// WithAudit records status and role changes through l.
func (a *Admin) WithAudit(l audit.AuditLogger) *Admin {
	a.audit = l
	return a
}

// Deactivate deactivates the caller's tenant. Only an owner may do so. Afterwards login,
// refresh and API key validation for the tenant all fail until it is reactivated.
func (a *Admin) Deactivate(ctx context.Context) error {
	scope, err := tenancy.MustFromContext(ctx)
	if err != nil {
		return err
	}
	if !isOwner(scope.Actor) {
		return ErrOwnerRequired
	}
	return a.SetActive(ctx, scope.TenantID, false)
}

// SetActive deactivates or reactivates tenantID without a caller check.
func (a *Admin) SetActive(ctx context.Context, tenantID string, active bool) error {
	t, err := a.tenants.GetByID(ctx, tenantID)
	if err != nil {
		return err
	}
	if t == nil {
		return ErrTenantNotFound
	}
	action := audit.ActionTenantReactivated
	if active {
		err = a.tenants.Reactivate(ctx, tenantID)
	} else {
		action = audit.ActionTenantDeactivated
		err = a.tenants.Deactivate(ctx, tenantID, a.now().UTC())
	}
	if err != nil {
		return err
	}
	a.logAudit(ctx, tenantID, action, "tenant", "slug="+t.Slug)
	return nil
}

// UpdateRole sets userID's role in the caller's tenant. Admins may move users between admin and
// member; granting or revoking owner requires an owner.
func (a *Admin) UpdateRole(ctx context.Context, userID string, role membershipdomain.Role) (*membershipdomain.Membership, error) {
	scope, err := tenancy.MustFromContext(ctx)
	if err != nil {
		return nil, err
	}
	callerID, callerRole, ok := scope.Actor.User()
	if !ok || !callerRole.CanManageTenant() {
		return nil, ErrOwnerRequired
	}
	if !role.Valid() {
		return nil, membershipdomain.ErrUnknownRole
	}
	if userID == callerID {
		return nil, ErrSelfRoleChange
	}
	target, err := a.members.GetByUserAndTenant(ctx, userID, scope.TenantID)
	if err != nil {
		return nil, err
	}
	if target == nil {
		return nil, ErrMemberNotFound
	}
	if (ownerRole(target.Role) || ownerRole(role)) && !isOwner(scope.Actor) {
		return nil, ErrOwnerRequired
	}
	return a.AssignRole(ctx, scope.TenantID, userID, role)
}

// AssignRole sets userID's role in tenantID without a caller check.
func (a *Admin) AssignRole(ctx context.Context, tenantID, userID string, role membershipdomain.Role) (*membershipdomain.Membership, error) {
	m, err := a.members.UpdateRole(ctx, userID, tenantID, role)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, ErrMemberNotFound
	}
	a.logAudit(ctx, tenantID, audit.ActionRoleUpdated, "member", "user_id="+userID+";role="+role.String())
	return m, nil
}

func isOwner(actor tenancy.Actor) bool {
	_, role, ok := actor.User()
	return ok && ownerRole(role)
}

func ownerRole(r membershipdomain.Role) bool {
	switch r {
	case membershipdomain.RoleOwner:
		return true
	case membershipdomain.RoleAdmin, membershipdomain.RoleMember, membershipdomain.RoleUnknown:
		return false
	}
	return false
}

func (a *Admin) logAudit(ctx context.Context, tenantID, action, resource, metadata string) {
	if a.audit == nil {
		return
	}
	userID := ""
	if s, ok := tenancy.FromContext(ctx); ok {
		userID = s.Actor.ID()
	}
	a.audit.LogEvent(ctx, tenantID, userID, action, resource, metadata)
}
