package security

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	membershipdomain "tenant-rollups/backend/internal/membership/domain"
)

// MinSigningSecretLength is the minimum accepted length, in bytes, of the HS256 signing secret.
const MinSigningSecretLength = 32

var (
	// ErrInvalidToken is returned when a token is malformed, badly signed, expired, or from another issuer.
	ErrInvalidToken = errors.New("invalid token")
	// ErrSigningSecretMissing is returned when no signing secret is configured.
	ErrSigningSecretMissing = errors.New("access token signing secret is not configured")
	// ErrSigningSecretTooShort is returned when the signing secret is shorter than MinSigningSecretLength.
	ErrSigningSecretTooShort = errors.New("access token signing secret is too short")
)

// AccessClaims holds JWT claims for the access token.
type AccessClaims struct {
	jwt.RegisteredClaims
	Email      string `json:"email"`
	TenantID   string `json:"tenant_id"`
	Role       string `json:"role"`
	GivenName  string `json:"given_name,omitempty"`
	FamilyName string `json:"family_name,omitempty"`
}

// Subject is the user data embedded in an access token.
type Subject struct {
	UserID    string
	Email     string
	FirstName string
	LastName  string
}

// VerifiedAccess is the result of a successful ValidateAccess.
type VerifiedAccess struct {
	UserID    string
	Email     string
	TenantID  string
	Role      membershipdomain.Role
	TokenID   string
	ExpiresAt time.Time
}

// TokenProvider issues and validates HS256 access tokens signed with a server-held secret.
type TokenProvider struct {
	secret    []byte
	issuer    string
	accessTTL time.Duration
	now       func() time.Time
}

// NewTokenProvider returns a TokenProvider or a configuration error. Callers must treat the error
// as fatal at startup; there is no fallback secret.
func NewTokenProvider(secret []byte, issuer string, accessTTL time.Duration) (*TokenProvider, error) {
	if len(secret) == 0 {
		return nil, ErrSigningSecretMissing
	}
	if len(secret) < MinSigningSecretLength {
		return nil, ErrSigningSecretTooShort
	}
	if accessTTL <= 0 {
		return nil, errors.New("access token lifetime must be positive")
	}
	s := make([]byte, len(secret))
	copy(s, secret)
	return &TokenProvider{
		secret:    s,
		issuer:    issuer,
		accessTTL: accessTTL,
		now:       time.Now,
	}, nil
}

// AccessTTL returns the configured access token lifetime.
func (p *TokenProvider) AccessTTL() time.Duration {
	return p.accessTTL
}

// IssueAccess issues a short-lived access JWT for the subject in the given tenant with the given role.
// Returns the token string, its jti, and expiration time.
func (p *TokenProvider) IssueAccess(sub Subject, tenantID string, role membershipdomain.Role) (token, jti string, expiresAt time.Time, err error) {
	if p == nil || len(p.secret) == 0 {
		return "", "", time.Time{}, ErrSigningSecretMissing
	}
	if !role.Valid() {
		return "", "", time.Time{}, membershipdomain.ErrUnknownRole
	}
	jti, err = generateJTI()
	if err != nil {
		return "", "", time.Time{}, err
	}
	now := p.now().UTC()
	expiresAt = now.Add(p.accessTTL)
	claims := AccessClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			Subject:   sub.UserID,
			Issuer:    p.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		Email:      sub.Email,
		TenantID:   tenantID,
		Role:       role.String(),
		GivenName:  sub.FirstName,
		FamilyName: sub.LastName,
	}
	token, err = jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(p.secret)
	if err != nil {
		return "", "", time.Time{}, err
	}
	return token, jti, expiresAt, nil
}

// ValidateAccess parses and validates the access token (alg, signature, exp, iss, claim shape).
// Every failure collapses to ErrInvalidToken.
func (p *TokenProvider) ValidateAccess(tokenString string) (*VerifiedAccess, error) {
	if p == nil || len(p.secret) == 0 {
		return nil, ErrSigningSecretMissing
	}
	if tokenString == "" {
		return nil, ErrInvalidToken
	}
	token, err := jwt.ParseWithClaims(tokenString, &AccessClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return p.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(p.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(p.now),
	)
	if err != nil {
		return nil, ErrInvalidToken
	}
	claims, ok := token.Claims.(*AccessClaims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.Subject == "" || claims.TenantID == "" || claims.ID == "" {
		return nil, ErrInvalidToken
	}
	role, err := membershipdomain.ParseRole(claims.Role)
	if err != nil {
		return nil, ErrInvalidToken
	}
	return &VerifiedAccess{
		UserID:    claims.Subject,
		Email:     claims.Email,
		TenantID:  claims.TenantID,
		Role:      role,
		TokenID:   claims.ID,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

func generateJTI() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
