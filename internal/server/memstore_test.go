package server

import (
	"context"
	"sync"
	"time"

	apikeydomain "tenant-rollups/backend/internal/apikey/domain"
	identitydomain "tenant-rollups/backend/internal/identity/domain"
	membershipdomain "tenant-rollups/backend/internal/membership/domain"
	refreshdomain "tenant-rollups/backend/internal/refreshtoken/domain"
	"tenant-rollups/backend/internal/tenancy"
	tenantdomain "tenant-rollups/backend/internal/tenant/domain"
	userdomain "tenant-rollups/backend/internal/user/domain"
)

// memStore backs every repository the full router needs with maps guarded by one mutex.
type memStore struct {
	mu         sync.Mutex
	users      map[string]*userdomain.User
	identities map[string]*identitydomain.Identity
	tenants    map[string]*tenantdomain.Tenant
	members    []*membershipdomain.Membership
	refresh    map[string]*refreshdomain.RefreshToken
	keys       map[string]*apikeydomain.APIKey
}

func newMemStore() *memStore {
	return &memStore{
		users:      map[string]*userdomain.User{},
		identities: map[string]*identitydomain.Identity{},
		tenants:    map[string]*tenantdomain.Tenant{},
		refresh:    map[string]*refreshdomain.RefreshToken{},
		keys:       map[string]*apikeydomain.APIKey{},
	}
}

type memUsers struct{ *memStore }

func (s memUsers) GetByID(_ context.Context, id string) (*userdomain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.users[id], nil
}

func (s memUsers) GetByEmail(_ context.Context, email string) (*userdomain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, nil
}

func (s memUsers) Create(_ context.Context, u *userdomain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.users {
		if e.Email == u.Email {
			return userdomain.ErrEmailTaken
		}
	}
	s.users[u.ID] = u
	return nil
}

func (s memUsers) UpdateLastLogin(_ context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.users[id]; ok {
		u.LastLoginAt = &at
	}
	return nil
}

type memIdentities struct{ *memStore }

func (s memIdentities) GetByUserAndProvider(_ context.Context, userID string, _ identitydomain.IdentityProvider) (*identitydomain.Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.identities[userID], nil
}

func (s memIdentities) Create(_ context.Context, i *identitydomain.Identity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.identities[i.UserID] = i
	return nil
}

type memTenants struct{ *memStore }

func (s memTenants) GetByID(_ context.Context, id string) (*tenantdomain.Tenant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tenants[id]
	if !ok {
		return nil, nil
	}
	cp := *t
	return &cp, nil
}

func (s memTenants) Create(_ context.Context, t *tenantdomain.Tenant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.tenants {
		if e.Slug == t.Slug {
			return tenantdomain.ErrSlugTaken
		}
	}
	cp := *t
	s.tenants[t.ID] = &cp
	return nil
}

func (s memTenants) Deactivate(_ context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.tenants[id]; ok && t.Active {
		t.Active = false
		t.DeactivatedAt = &at
	}
	return nil
}

func (s memTenants) Reactivate(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.tenants[id]; ok {
		t.Active = true
		t.DeactivatedAt = nil
	}
	return nil
}

type memMembers struct{ *memStore }

func (s memMembers) GetByUserAndTenant(_ context.Context, userID, tenantID string) (*membershipdomain.Membership, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.members {
		if m.UserID == userID && m.TenantID == tenantID {
			cp := *m
			return &cp, nil
		}
	}
	return nil, nil
}

func (s memMembers) ListByUser(_ context.Context, userID string) ([]*membershipdomain.Membership, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*membershipdomain.Membership
	for _, m := range s.members {
		if m.UserID == userID {
			cp := *m
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s memMembers) Create(_ context.Context, m *membershipdomain.Membership) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.members {
		if e.UserID == m.UserID && e.TenantID == m.TenantID {
			return membershipdomain.ErrAlreadyMember
		}
	}
	cp := *m
	s.members = append(s.members, &cp)
	return nil
}

func (s memMembers) UpdateRole(_ context.Context, userID, tenantID string, role membershipdomain.Role) (*membershipdomain.Membership, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.members {
		if m.UserID == userID && m.TenantID == tenantID {
			m.Role = role
			cp := *m
			return &cp, nil
		}
	}
	return nil, nil
}

type memRefresh struct{ *memStore }

func (s memRefresh) Create(_ context.Context, t *refreshdomain.RefreshToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *t
	s.refresh[t.TokenHash] = &cp
	return nil
}

func (s memRefresh) GetByHash(_ context.Context, hash string) (*refreshdomain.RefreshToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.refresh[hash]
	if !ok {
		return nil, nil
	}
	cp := *t
	return &cp, nil
}

func (s memRefresh) byID(id string) *refreshdomain.RefreshToken {
	for _, t := range s.refresh {
		if t.ID == id {
			return t
		}
	}
	return nil
}

func (s memRefresh) Rotate(_ context.Context, parentID, ip string, at time.Time, next *refreshdomain.RefreshToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.byID(parentID)
	if p == nil || !p.IsActive(at) {
		return refreshdomain.ErrTokenNotActive
	}
	p.RevokedAt, p.RevokedByIP, p.ReplacedByHash = &at, ip, next.TokenHash
	cp := *next
	s.refresh[next.TokenHash] = &cp
	return nil
}

func (s memRefresh) Revoke(_ context.Context, id, ip string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := s.byID(id)
	if t == nil || !t.IsActive(at) {
		return refreshdomain.ErrTokenNotActive
	}
	t.RevokedAt, t.RevokedByIP = &at, ip
	return nil
}

type memKeys struct{ *memStore }

func (s memKeys) Create(_ context.Context, k *apikeydomain.APIKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *k
	s.keys[k.ID] = &cp
	return nil
}

func (s memKeys) GetByHash(_ context.Context, hash string) (*apikeydomain.APIKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range s.keys {
		if k.KeyHash == hash {
			cp := *k
			return &cp, nil
		}
	}
	return nil, nil
}

func (s memKeys) ListByTenant(_ context.Context, f tenancy.Filter) ([]*apikeydomain.APIKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*apikeydomain.APIKey
	for _, k := range s.keys {
		if f.Allows(k.TenantID) {
			cp := *k
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s memKeys) Revoke(_ context.Context, f tenancy.Filter, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k, ok := s.keys[id]
	if !ok || !f.Allows(k.TenantID) {
		return apikeydomain.ErrNotFound
	}
	if k.RevokedAt == nil {
		k.Active, k.RevokedAt = false, &at
	}
	return nil
}

func (s memKeys) UpdateLastUsed(_ context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if k, ok := s.keys[id]; ok {
		k.LastUsedAt = &at
	}
	return nil
}
