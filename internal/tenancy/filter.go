package tenancy

import (
	"context"
	"strconv"
)

// Filter restricts tenant-scoped reads and writes to one tenant.
// The zero Filter denies everything.
type Filter struct {
	tenantID string
}

// FilterFor returns the filter for the scope attached to ctx, or a deny-all filter.
func FilterFor(ctx context.Context) Filter {
	s, ok := FromContext(ctx)
	if !ok {
		return Filter{}
	}
	return Filter{tenantID: s.TenantID}
}

// ForTenant returns a filter for an explicit tenant id. An empty id yields deny-all.
func ForTenant(tenantID string) Filter {
	return Filter{tenantID: tenantID}
}

// TenantID returns the tenant the filter admits and false for deny-all.
func (f Filter) TenantID() (string, bool) {
	return f.tenantID, f.tenantID != ""
}

// DenyAll reports whether the filter admits nothing.
func (f Filter) DenyAll() bool {
	return f.tenantID == ""
}

// Allows reports whether a row owned by tenantID passes the filter.
func (f Filter) Allows(tenantID string) bool {
	return f.tenantID != "" && tenantID == f.tenantID
}

// SQL renders the predicate for column using placeholder $argPos. For deny-all it renders
// FALSE and returns no args; callers must then not advance their placeholder counter.
func (f Filter) SQL(column string, argPos int) (string, []any) {
	if f.tenantID == "" {
		return "FALSE", nil
	}
	return column + " = $" + strconv.Itoa(argPos), []any{f.tenantID}
}
