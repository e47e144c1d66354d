// Package store is the identity-record store: user records plus their local password identity.
package store

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	identitydomain "tenant-rollups/backend/internal/identity/domain"
	"tenant-rollups/backend/internal/security"
	userdomain "tenant-rollups/backend/internal/user/domain"
)

// UserRepo is the minimal user repository needed by the store.
type UserRepo interface {
	GetByID(ctx context.Context, id string) (*userdomain.User, error)
	GetByEmail(ctx context.Context, email string) (*userdomain.User, error)
	Create(ctx context.Context, u *userdomain.User) error
	UpdateLastLogin(ctx context.Context, id string, at time.Time) error
}

// IdentityRepo is the minimal identity repository needed by the store.
type IdentityRepo interface {
	GetByUserAndProvider(ctx context.Context, userID string, provider identitydomain.IdentityProvider) (*identitydomain.Identity, error)
	Create(ctx context.Context, i *identitydomain.Identity) error
}

// NewUser is the input to Create. Password is hashed and then dropped.
type NewUser struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
}

// Store creates users with a local identity and verifies their passwords.
type Store struct {
	users      UserRepo
	identities IdentityRepo
	hasher     *security.Hasher
	now        func() time.Time
}

// New returns a Store.
func New(users UserRepo, identities IdentityRepo, hasher *security.Hasher) *Store {
	return &Store{users: users, identities: identities, hasher: hasher, now: time.Now}
}

// NormalizeEmail trims and lower-cases an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Create stores a user and its local password identity. Returns userdomain.ErrEmailTaken when
// the email is already registered.
func (s *Store) Create(ctx context.Context, in NewUser) (*userdomain.User, error) {
	email := NormalizeEmail(in.Email)
	now := s.now().UTC()
	u := &userdomain.User{
		ID:        uuid.New().String(),
		Email:     email,
		FirstName: strings.TrimSpace(in.FirstName),
		LastName:  strings.TrimSpace(in.LastName),
		Status:    userdomain.UserStatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := u.Validate(); err != nil {
		return nil, err
	}
	hashed, err := s.hasher.Hash([]byte(in.Password))
	if err != nil {
		return nil, err
	}
	if err := s.users.Create(ctx, u); err != nil {
		return nil, err
	}
	ident := &identitydomain.Identity{
		ID:           uuid.New().String(),
		UserID:       u.ID,
		Provider:     identitydomain.IdentityProviderLocal,
		ProviderID:   email,
		PasswordHash: hashed,
		CreatedAt:    now,
	}
	if err := s.identities.Create(ctx, ident); err != nil {
		return nil, err
	}
	return u, nil
}

// VerifyPassword returns the active user whose local password matches, or nil when the email is
// unknown, the user is disabled, or the password does not match. A bcrypt comparison runs in
// every case so the outcomes take comparable time.
func (s *Store) VerifyPassword(ctx context.Context, email, password string) (*userdomain.User, error) {
	email = NormalizeEmail(email)
	if email == "" || password == "" {
		_ = s.hasher.CompareDummy([]byte(password))
		return nil, nil
	}
	u, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if u == nil {
		_ = s.hasher.CompareDummy([]byte(password))
		return nil, nil
	}
	ident, err := s.identities.GetByUserAndProvider(ctx, u.ID, identitydomain.IdentityProviderLocal)
	if err != nil {
		return nil, err
	}
	if ident == nil || ident.PasswordHash == "" {
		_ = s.hasher.CompareDummy([]byte(password))
		return nil, nil
	}
	if err := s.hasher.Compare(ident.PasswordHash, []byte(password)); err != nil {
		return nil, nil
	}
	if u.Status != userdomain.UserStatusActive {
		return nil, nil
	}
	return u, nil
}

// GetByEmail returns the user with the normalized email, or nil.
func (s *Store) GetByEmail(ctx context.Context, email string) (*userdomain.User, error) {
	return s.users.GetByEmail(ctx, NormalizeEmail(email))
}

// GetByID returns the user, or nil.
func (s *Store) GetByID(ctx context.Context, id string) (*userdomain.User, error) {
	return s.users.GetByID(ctx, id)
}

// UpdateLastLogin stamps the user's last successful login.
func (s *Store) UpdateLastLogin(ctx context.Context, id string, at time.Time) error {
	return s.users.UpdateLastLogin(ctx, id, at)
}
