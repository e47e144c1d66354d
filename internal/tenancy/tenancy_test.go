package tenancy

import (
	"context"
	"sync"
	"testing"

	membershipdomain "tenant-rollups/backend/internal/membership/domain"
)

func TestFilterFor_NoScopeDeniesAll(t *testing.T) {
	f := FilterFor(context.Background())
	if !f.DenyAll() {
		t.Fatal("filter without scope must deny all")
	}
	if f.Allows("") || f.Allows("tenant-a") {
		t.Fatal("deny-all filter admitted a row")
	}
	clause, args := f.SQL("tenant_id", 1)
	if clause != "FALSE" || len(args) != 0 {
		t.Errorf("SQL() = %q %v, want FALSE with no args", clause, args)
	}
}

func TestFilterFor_ScopedTenant(t *testing.T) {
	ctx := WithScope(context.Background(), Scope{TenantID: "tenant-a", Actor: UserActor("u1", membershipdomain.RoleMember)})
	f := FilterFor(ctx)
	if f.DenyAll() {
		t.Fatal("scoped filter must not deny all")
	}
	if !f.Allows("tenant-a") {
		t.Error("filter rejected its own tenant")
	}
	if f.Allows("tenant-b") {
		t.Error("filter admitted another tenant")
	}
	clause, args := f.SQL("e.tenant_id", 3)
	if clause != "e.tenant_id = $3" || len(args) != 1 || args[0] != "tenant-a" {
		t.Errorf("SQL() = %q %v", clause, args)
	}
}

func TestWithScope_IgnoresInvalid(t *testing.T) {
	testCases := []struct {
		name  string
		scope Scope
	}{
		{"empty", Scope{}},
		{"no tenant", Scope{Actor: ServiceActor("k1")}},
		{"no actor", Scope{TenantID: "tenant-a"}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			ctx := WithScope(context.Background(), tc.scope)
			if _, ok := FromContext(ctx); ok {
				t.Fatal("invalid scope was attached")
			}
			if _, err := MustFromContext(ctx); err != ErrNoScope {
				t.Fatalf("MustFromContext: want ErrNoScope, got %v", err)
			}
		})
	}
}

func TestScope_DoesNotLeakAcrossRequests(t *testing.T) {
	base := context.Background()
	var wg sync.WaitGroup
	for _, tenant := range []string{"tenant-a", "tenant-b", "tenant-c"} {
		wg.Add(1)
		go func(tenant string) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				ctx := WithScope(base, Scope{TenantID: tenant, Actor: ServiceActor("k-" + tenant)})
				if got, _ := FilterFor(ctx).TenantID(); got != tenant {
					t.Errorf("request for %s saw tenant %s", tenant, got)
					return
				}
			}
		}(tenant)
	}
	wg.Wait()
	if !FilterFor(base).DenyAll() {
		t.Fatal("parent context acquired a scope")
	}
}

func TestActor_TaggedVariants(t *testing.T) {
	u := UserActor("u1", membershipdomain.RoleAdmin)
	if u.Kind() != ActorUser {
		t.Fatalf("kind = %v, want user", u.Kind())
	}
	if id, role, ok := u.User(); !ok || id != "u1" || role != membershipdomain.RoleAdmin {
		t.Errorf("User() = %q %v %v", id, role, ok)
	}
	if _, ok := u.Service(); ok {
		t.Error("user actor reported a service identity")
	}

	s := ServiceActor("k1")
	if s.Kind() != ActorService {
		t.Fatalf("kind = %v, want service", s.Kind())
	}
	if _, _, ok := s.User(); ok {
		t.Error("service actor reported a user identity")
	}
	if s.ID() == "k1" || s.ID() == "" {
		t.Errorf("service actor id %q must be namespaced", s.ID())
	}
	if UserActor("apikey:k1", membershipdomain.RoleMember).Kind() == s.Kind() {
		t.Error("user and service actors must never share a kind")
	}
}
