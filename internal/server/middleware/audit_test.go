package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"

	"tenant-rollups/backend/internal/audit"
	membershipdomain "tenant-rollups/backend/internal/membership/domain"
	"tenant-rollups/backend/internal/tenancy"
)

type auditCall struct {
	tenantID, userID, action, resource, metadata string
}

type mockAuditLogger struct {
	calls []auditCall
}

func (m *mockAuditLogger) LogEvent(ctx context.Context, tenantID, userID, action, resource, metadata string) {
	m.calls = append(m.calls, auditCall{tenantID, userID, action, resource, metadata})
}

func serveAudited(t *testing.T, l audit.AuditLogger, scoped bool, h echo.HandlerFunc) int {
	t.Helper()
	e := echo.New()
	attach := func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if scoped {
				ctx := tenancy.WithScope(c.Request().Context(), tenancy.Scope{TenantID: "tenant-a", Actor: tenancy.UserActor("user-1", membershipdomain.RoleMember)})
				c.SetRequest(c.Request().WithContext(ctx))
			}
			return next(c)
		}
	}
	e.DELETE("/v1/api-keys/:id", h, attach, AuditDenials(l))
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/v1/api-keys/k1", nil))
	return rec.Code
}

func TestAuditDenials_RecordsForbidden(t *testing.T) {
	l := &mockAuditLogger{}
	code := serveAudited(t, l, true, func(c echo.Context) error {
		return echo.NewHTTPError(http.StatusForbidden, "forbidden")
	})
	if code != http.StatusForbidden {
		t.Fatalf("code = %d", code)
	}
	if len(l.calls) != 1 {
		t.Fatalf("audit calls = %d, want 1", len(l.calls))
	}
	got := l.calls[0]
	want := auditCall{"tenant-a", "user-1", audit.ActionAccessDenied, "api_key", "operation=delete"}
	if got != want {
		t.Errorf("audit = %+v, want %+v", got, want)
	}
}

func TestAuditDenials_IgnoresOtherOutcomes(t *testing.T) {
	testCases := []struct {
		name   string
		scoped bool
		h      echo.HandlerFunc
	}{
		{"success", true, func(c echo.Context) error { return c.NoContent(http.StatusNoContent) }},
		{"not found", true, func(c echo.Context) error { return echo.NewHTTPError(http.StatusNotFound) }},
		{"forbidden without scope", false, func(c echo.Context) error { return echo.NewHTTPError(http.StatusForbidden) }},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			l := &mockAuditLogger{}
			serveAudited(t, l, tc.scoped, tc.h)
			if len(l.calls) != 0 {
				t.Errorf("audit calls = %d, want 0", len(l.calls))
			}
		})
	}
}

func TestAuditDenials_WrittenForbidden(t *testing.T) {
	l := &mockAuditLogger{}
	serveAudited(t, l, true, func(c echo.Context) error {
		return c.JSON(http.StatusForbidden, map[string]string{"error": "forbidden"})
	})
	if len(l.calls) != 1 {
		t.Errorf("audit calls = %d, want 1", len(l.calls))
	}
}
