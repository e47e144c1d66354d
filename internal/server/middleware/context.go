package middleware

import (
	"context"

	"github.com/labstack/echo/v4"
)

type contextKey struct{ name string }

var clientIPKey = contextKey{"client_ip"}

// WithClientIP returns a context carrying the caller's IP.
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, clientIPKey, ip)
}

// ClientIP returns the client IP stored by ClientIPContext, or "unknown".
func ClientIP(ctx context.Context) string {
	if v, ok := ctx.Value(clientIPKey).(string); ok && v != "" {
		return v
	}
	return "unknown"
}

// ClientIPContext copies echo's resolved real IP (X-Forwarded-For, X-Real-IP, then the peer
// address) into the request context so services and the audit logger can read it.
func ClientIPContext() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			c.SetRequest(req.WithContext(WithClientIP(req.Context(), c.RealIP())))
			return next(c)
		}
	}
}
