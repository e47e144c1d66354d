package domain

import (
	"errors"
	"time"
)

var (
	// ErrUnknownRole is returned by ParseRole for anything outside the three fixed roles.
	ErrUnknownRole = errors.New("unknown role")
	// ErrAlreadyMember is returned when a (user, tenant) membership already exists.
	ErrAlreadyMember = errors.New("user is already a member of the tenant")
)

// Membership links a user to a tenant with a role. At most one per (user, tenant).
type Membership struct {
	ID       string
	UserID   string
	TenantID string
	Role     Role
	JoinedAt time.Time
}

// Role is the fixed three-role model. The zero value is not a valid role.
type Role uint8

const (
	RoleUnknown Role = iota
	RoleOwner
	RoleAdmin
	RoleMember
)

// String returns the wire form used in access-token claims and in the database.
func (r Role) String() string {
	switch r {
	case RoleOwner:
		return "owner"
	case RoleAdmin:
		return "admin"
	case RoleMember:
		return "member"
	case RoleUnknown:
		return ""
	}
	return ""
}

// ParseRole maps the wire form back to a Role.
func ParseRole(s string) (Role, error) {
	switch s {
	case "owner":
		return RoleOwner, nil
	case "admin":
		return RoleAdmin, nil
	case "member":
		return RoleMember, nil
	}
	return RoleUnknown, ErrUnknownRole
}

// CanManageTenant reports whether the role may administer tenant resources such as API keys.
func (r Role) CanManageTenant() bool {
	switch r {
	case RoleOwner, RoleAdmin:
		return true
	case RoleMember, RoleUnknown:
		return false
	}
	return false
}

// Valid reports whether r is one of the three fixed roles.
func (r Role) Valid() bool {
	switch r {
	case RoleOwner, RoleAdmin, RoleMember:
		return true
	case RoleUnknown:
		return false
	}
	return false
}
