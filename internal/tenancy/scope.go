package tenancy

import (
	"context"
	"errors"
)

// ErrNoScope is returned when an operation needs a resolved tenant and none is attached.
var ErrNoScope = errors.New("no tenant scope")

// Scope is the tenant and actor resolved for one request.
type Scope struct {
	TenantID string
	Actor    Actor
}

// Valid reports whether the scope names a tenant and an actor.
func (s Scope) Valid() bool {
	return s.TenantID != "" && s.Actor.Kind() != ActorNone
}

type scopeKey struct{}

// WithScope returns a child context carrying s. Invalid scopes are not attached.
func WithScope(ctx context.Context, s Scope) context.Context {
	if !s.Valid() {
		return ctx
	}
	return context.WithValue(ctx, scopeKey{}, s)
}

// FromContext returns the Scope attached to ctx, if any.
func FromContext(ctx context.Context) (Scope, bool) {
	s, ok := ctx.Value(scopeKey{}).(Scope)
	if !ok || !s.Valid() {
		return Scope{}, false
	}
	return s, true
}

// MustFromContext returns the Scope or ErrNoScope.
func MustFromContext(ctx context.Context) (Scope, error) {
	s, ok := FromContext(ctx)
	if !ok {
		return Scope{}, ErrNoScope
	}
	return s, nil
}
