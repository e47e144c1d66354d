package rbac

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"

	membershipdomain "tenant-rollups/backend/internal/membership/domain"
	"tenant-rollups/backend/internal/tenancy"
	tenantdomain "tenant-rollups/backend/internal/tenant/domain"
)

type mockMembershipGetter struct {
	memberships map[string]*membershipdomain.Membership
	err         error
}

func (m *mockMembershipGetter) GetByUserAndTenant(ctx context.Context, userID, tenantID string) (*membershipdomain.Membership, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.memberships[userID+":"+tenantID], nil
}

type mockTenantGetter struct {
	tenants map[string]*tenantdomain.Tenant
}

func (m *mockTenantGetter) GetByID(ctx context.Context, id string) (*tenantdomain.Tenant, error) {
	return m.tenants[id], nil
}

func fixtures(role membershipdomain.Role) (*mockMembershipGetter, *mockTenantGetter) {
	return &mockMembershipGetter{memberships: map[string]*membershipdomain.Membership{
			"user-1:t1": {ID: "m1", UserID: "user-1", TenantID: "t1", Role: role},
		}}, &mockTenantGetter{tenants: map[string]*tenantdomain.Tenant{
			"t1": {ID: "t1", Active: true},
			"t2": {ID: "t2", Active: true},
			"t3": {ID: "t3", Active: false},
		}}
}

func userCtx(tenantID string, claimRole membershipdomain.Role) context.Context {
	return tenancy.WithScope(context.Background(), tenancy.Scope{TenantID: tenantID, Actor: tenancy.UserActor("user-1", claimRole)})
}

func TestRequireTenantMember(t *testing.T) {
	members, tenants := fixtures(membershipdomain.RoleMember)
	testCases := []struct {
		name    string
		ctx     context.Context
		wantErr error
	}{
		{"no scope", context.Background(), ErrUnauthenticated},
		{"member", userCtx("t1", membershipdomain.RoleMember), nil},
		{"not a member", userCtx("t2", membershipdomain.RoleMember), ErrForbidden},
		{"inactive tenant", userCtx("t3", membershipdomain.RoleMember), ErrForbidden},
		{"unknown tenant", userCtx("nope", membershipdomain.RoleMember), ErrForbidden},
		{"service actor", tenancy.WithScope(context.Background(), tenancy.Scope{TenantID: "t2", Actor: tenancy.ServiceActor("k")}), nil},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := RequireTenantMember(tc.ctx, members, tenants)
			if !errors.Is(err, tc.wantErr) {
				t.Errorf("err = %v, want %v", err, tc.wantErr)
			}
		})
	}
}

func TestRequireTenantMember_UsesCurrentRole(t *testing.T) {
	members, tenants := fixtures(membershipdomain.RoleMember)
	// Token still claims admin, membership was downgraded.
	scope, err := RequireTenantMember(userCtx("t1", membershipdomain.RoleAdmin), members, tenants)
	if err != nil {
		t.Fatal(err)
	}
	if _, role, _ := scope.Actor.User(); role != membershipdomain.RoleMember {
		t.Errorf("role = %v, want member", role)
	}
	if _, err := RequireTenantAdmin(userCtx("t1", membershipdomain.RoleAdmin), members, tenants); !errors.Is(err, ErrForbidden) {
		t.Errorf("downgraded admin err = %v, want ErrForbidden", err)
	}
}

func TestRequireTenantMember_StorageError(t *testing.T) {
	members, tenants := fixtures(membershipdomain.RoleMember)
	members.err = errors.New("db down")
	_, err := RequireTenantMember(userCtx("t1", membershipdomain.RoleMember), members, tenants)
	if err == nil || errors.Is(err, ErrForbidden) {
		t.Errorf("err = %v, want storage error", err)
	}
}

func TestRequireTenantAdmin_Roles(t *testing.T) {
	testCases := []struct {
		role membershipdomain.Role
		ok   bool
	}{
		{membershipdomain.RoleOwner, true},
		{membershipdomain.RoleAdmin, true},
		{membershipdomain.RoleMember, false},
	}
	for _, tc := range testCases {
		t.Run(tc.role.String(), func(t *testing.T) {
			members, tenants := fixtures(tc.role)
			_, err := RequireTenantAdmin(userCtx("t1", tc.role), members, tenants)
			if (err == nil) != tc.ok {
				t.Errorf("err = %v, want ok=%v", err, tc.ok)
			}
		})
	}
	members, tenants := fixtures(membershipdomain.RoleOwner)
	svc := tenancy.WithScope(context.Background(), tenancy.Scope{TenantID: "t1", Actor: tenancy.ServiceActor("k")})
	if _, err := RequireTenantAdmin(svc, members, tenants); !errors.Is(err, ErrForbidden) {
		t.Errorf("service actor err = %v, want ErrForbidden", err)
	}
}

func TestMiddleware_StatusCodes(t *testing.T) {
	e := echo.New()
	members, tenants := fixtures(membershipdomain.RoleMember)

	run := func(mw echo.MiddlewareFunc, ctx context.Context) (membershipdomain.Role, error) {
		var seen membershipdomain.Role
		h := mw(func(c echo.Context) error {
			scope, _ := tenancy.FromContext(c.Request().Context())
			_, seen, _ = scope.Actor.User()
			return c.NoContent(http.StatusNoContent)
		})
		req := httptest.NewRequest(http.MethodGet, "/", nil).WithContext(ctx)
		return seen, h(e.NewContext(req, httptest.NewRecorder()))
	}
	var he *echo.HTTPError
	if _, err := run(Admin(members, tenants), context.Background()); !errors.As(err, &he) || he.Code != http.StatusUnauthorized {
		t.Errorf("no scope: %v", err)
	}
	if _, err := run(Admin(members, tenants), userCtx("t1", membershipdomain.RoleOwner)); !errors.As(err, &he) || he.Code != http.StatusForbidden {
		t.Errorf("downgraded owner on admin route: %v", err)
	}
	role, err := run(Member(members, tenants), userCtx("t1", membershipdomain.RoleOwner))
	if err != nil {
		t.Fatalf("member route: %v", err)
	}
	if role != membershipdomain.RoleMember {
		t.Errorf("handler saw role %v, want the live membership role", role)
	}
}
