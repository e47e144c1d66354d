// Package middleware holds the echo middleware between the router and the handlers: credential
// dispatch, tenant scope attachment, client IP capture, audit of denials and request tracing.
package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	apikeydomain "tenant-rollups/backend/internal/apikey/domain"
	"tenant-rollups/backend/internal/platform/logger"
	"tenant-rollups/backend/internal/platform/metrics"
	"tenant-rollups/backend/internal/security"
	"tenant-rollups/backend/internal/tenancy"
)

const (
	bearerPrefix = "bearer "
	// HeaderAPIKey carries a service API key.
	HeaderAPIKey = "X-API-Key"
)

// Scheme is the credential type an endpoint accepts.
type Scheme uint8

const (
	// SchemeBearer accepts only user access tokens.
	SchemeBearer Scheme = iota + 1
	// SchemeAPIKey accepts only service API keys.
	SchemeAPIKey
	// SchemeEither accepts one credential of either type.
	SchemeEither
)

func (s Scheme) String() string {
	switch s {
	case SchemeBearer:
		return "bearer"
	case SchemeAPIKey:
		return "api_key"
	case SchemeEither:
		return "either"
	}
	return "unknown"
}

func (s Scheme) accepts(presented Scheme) bool {
	return s == SchemeEither || s == presented
}

// ErrUnauthorized is the single response for every authentication failure.
var ErrUnauthorized = echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")

// AccessValidator validates user access tokens.
type AccessValidator interface {
	ValidateAccess(token string) (*security.VerifiedAccess, error)
}

// KeyValidator resolves API keys. A nil key with a nil error means the key is not usable.
type KeyValidator interface {
	Validate(ctx context.Context, plaintext string) (*apikeydomain.APIKey, error)
}

// Authenticator classifies the presented credential and attaches the resolved tenant scope to
// the request context.
type Authenticator struct {
	tokens  AccessValidator
	keys    KeyValidator
	metrics *metrics.Metrics
}

// NewAuthenticator returns an Authenticator. m may be nil.
func NewAuthenticator(tokens AccessValidator, keys KeyValidator, m *metrics.Metrics) *Authenticator {
	return &Authenticator{tokens: tokens, keys: keys, metrics: m}
}

// Authenticate returns middleware that requires exactly one credential accepted by scheme.
// Presenting both headers, neither, a malformed header, or a credential of the other scheme
// is rejected with 401 before any handler runs.
func (a *Authenticator) Authenticate(scheme Scheme) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			authz := strings.TrimSpace(req.Header.Get(echo.HeaderAuthorization))
			key := strings.TrimSpace(req.Header.Get(HeaderAPIKey))

			var (
				scope tenancy.Scope
				err   error
			)
			switch {
			case authz != "" && key != "":
				return a.reject(c, scheme, "both credentials presented")
			case authz != "":
				if !scheme.accepts(SchemeBearer) {
					return a.reject(c, SchemeBearer, "scheme not accepted")
				}
				scope, err = a.bearer(authz)
				if err != nil {
					return a.reject(c, SchemeBearer, "invalid access token")
				}
				a.metrics.RecordAuth(SchemeBearer.String(), metrics.OutcomeSuccess)
			case key != "":
				if !scheme.accepts(SchemeAPIKey) {
					return a.reject(c, SchemeAPIKey, "scheme not accepted")
				}
				k, err := a.keys.Validate(req.Context(), key)
				if err != nil {
					a.metrics.RecordAuth(SchemeAPIKey.String(), metrics.OutcomeError)
					a.metrics.RecordAPIKeyValidation("error")
					return err
				}
				if k == nil {
					a.metrics.RecordAPIKeyValidation("invalid")
					return a.reject(c, SchemeAPIKey, "invalid api key")
				}
				a.metrics.RecordAPIKeyValidation("valid")
				a.metrics.RecordAuth(SchemeAPIKey.String(), metrics.OutcomeSuccess)
				scope = tenancy.Scope{TenantID: k.TenantID, Actor: tenancy.ServiceActor(k.ID)}
			default:
				return a.reject(c, scheme, "no credentials")
			}

			ctx := tenancy.WithScope(req.Context(), scope)
			ctx = logger.WithLogger(ctx, logger.FromContext(ctx).With(
				zap.String("tenant_id", scope.TenantID),
				zap.String("actor", scope.Actor.ID()),
			))
			c.SetRequest(req.WithContext(ctx))
			return next(c)
		}
	}
}

func (a *Authenticator) bearer(header string) (tenancy.Scope, error) {
	if len(header) <= len(bearerPrefix) || !strings.EqualFold(header[:len(bearerPrefix)], bearerPrefix) {
		return tenancy.Scope{}, security.ErrInvalidToken
	}
	token := strings.TrimSpace(header[len(bearerPrefix):])
	if token == "" {
		return tenancy.Scope{}, security.ErrInvalidToken
	}
	v, err := a.tokens.ValidateAccess(token)
	if err != nil {
		return tenancy.Scope{}, err
	}
	scope := tenancy.Scope{TenantID: v.TenantID, Actor: tenancy.UserActor(v.UserID, v.Role)}
	if !scope.Valid() {
		return tenancy.Scope{}, security.ErrInvalidToken
	}
	return scope, nil
}

func (a *Authenticator) reject(c echo.Context, scheme Scheme, reason string) error {
	a.metrics.RecordAuth(scheme.String(), metrics.OutcomeRejected)
	logger.FromContext(c.Request().Context()).Debug("authentication rejected",
		zap.String("scheme", scheme.String()), zap.String("reason", reason))
	return ErrUnauthorized
}
