package service

import "context"

// Stores are the collaborators Register writes through.
type Stores struct {
	Identities  IdentityStore
	Tenants     TenantRepo
	Memberships MembershipRepo
	Refresh     RefreshTokenRepo
}

// Transactor runs fn with Stores bound to one unit of work. The writes made through them
// persist only when fn returns nil.
type Transactor interface {
	InTx(ctx context.Context, fn func(Stores) error) error
}

// WithTransactor makes Register all-or-nothing. Without one, Register writes through the
// service's own stores one call at a time.
func (s *AuthService) WithTransactor(tx Transactor) *AuthService {
	s.tx = tx
	return s
}

func (s *AuthService) inTx(ctx context.Context, fn func(Stores) error) error {
	if s.tx != nil {
		return s.tx.InTx(ctx, fn)
	}
	return fn(Stores{
		Identities:  s.identities,
		Tenants:     s.tenants,
		Memberships: s.memberships,
		Refresh:     s.refresh,
	})
}
