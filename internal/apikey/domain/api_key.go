package domain

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"strings"
	"time"
)

const (
	// KeyPrefix marks live API keys so they are recognizable in logs and secret scanners.
	KeyPrefix = "rk_live_"
	// keyRandomBytes is the entropy of the key body: 256 bits, 64 hex characters.
	keyRandomBytes = 32
	// DisplayPrefixLength is how many leading plaintext characters are stored for identification.
	DisplayPrefixLength = 12
)

// ErrNotFound is returned when a key does not exist in the caller's tenant.
var ErrNotFound = errors.New("api key not found")

// APIKey is a tenant-owned service credential. Only the hash and a short display prefix are stored.
// Revoked keys never become active again.
type APIKey struct {
	ID         string
	TenantID   string
	Name       string
	KeyHash    string
	Prefix     string
	Active     bool
	ExpiresAt  *time.Time
	LastUsedAt *time.Time
	RevokedAt  *time.Time
	CreatedAt  time.Time
}

// Usable reports whether the key may authenticate at now: active, not revoked, and not expired.
func (k *APIKey) Usable(now time.Time) bool {
	if !k.Active || k.RevokedAt != nil {
		return false
	}
	if k.ExpiresAt != nil && !now.Before(*k.ExpiresAt) {
		return false
	}
	return true
}

// GenerateKey returns a new plaintext key of the form rk_live_<64 hex>.
func GenerateKey() (string, error) {
	b := make([]byte, keyRandomBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return KeyPrefix + hex.EncodeToString(b), nil
}

// WellFormed reports whether plaintext has the key prefix followed by exactly 64 lower-case hex characters.
func WellFormed(plaintext string) bool {
	body, ok := strings.CutPrefix(plaintext, KeyPrefix)
	if !ok || len(body) != 2*keyRandomBytes {
		return false
	}
	for i := 0; i < len(body); i++ {
		c := body[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}

// DisplayPrefix returns the leading characters of plaintext kept for identification.
func DisplayPrefix(plaintext string) string {
	if len(plaintext) <= DisplayPrefixLength {
		return plaintext
	}
	return plaintext[:DisplayPrefixLength]
}
