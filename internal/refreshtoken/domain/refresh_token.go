package domain

import (
	"errors"
	"time"
)

// ErrTokenNotActive is returned by Rotate and Revoke when the token was already revoked,
// has expired, or does not exist at the moment of the conditional update.
var ErrTokenNotActive = errors.New("refresh token is not active")

// RefreshToken is a persisted, hashed refresh credential. Once RevokedAt is set the row is immutable.
// ReplacedByHash links a rotated token to its successor; it stays empty for logout revocations.
type RefreshToken struct {
	ID             string
	UserID         string
	TenantID       string // tenant the pair was issued for; empty when unknown
	TokenHash      string
	ExpiresAt      time.Time
	CreatedByIP    string
	CreatedAt      time.Time
	RevokedAt      *time.Time
	RevokedByIP    string
	ReplacedByHash string
}

// IsRevoked reports whether the token has been revoked by rotation or logout.
func (t *RefreshToken) IsRevoked() bool {
	return t.RevokedAt != nil
}

// IsExpired reports whether now is at or past the expiry.
func (t *RefreshToken) IsExpired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}

// IsActive reports whether the token can still be used.
func (t *RefreshToken) IsActive(now time.Time) bool {
	return !t.IsRevoked() && !t.IsExpired(now)
}
