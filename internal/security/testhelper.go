package security

import "time"

// testSigningSecret is for unit tests only. Do not use in production.
const testSigningSecret = "test-signing-secret-0123456789abcdef"

// NewTestTokenProvider returns a TokenProvider using a fixed test secret and a 15 minute lifetime.
// For unit tests only.
func NewTestTokenProvider() *TokenProvider {
	p, err := NewTokenProvider([]byte(testSigningSecret), "test-issuer", 15*time.Minute)
	if err != nil {
		panic(err)
	}
	return p
}
