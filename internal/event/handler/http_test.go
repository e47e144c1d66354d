package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"

	eventrepo "tenant-rollups/backend/internal/event/repository"
	"tenant-rollups/backend/internal/event/service"
	membershipdomain "tenant-rollups/backend/internal/membership/domain"
	"tenant-rollups/backend/internal/tenancy"
)

func serviceCtx(tenantID string) context.Context {
	return tenancy.WithScope(context.Background(), tenancy.Scope{TenantID: tenantID, Actor: tenancy.ServiceActor("key-" + tenantID)})
}

func userCtx(tenantID string) context.Context {
	return tenancy.WithScope(context.Background(), tenancy.Scope{TenantID: tenantID, Actor: tenancy.UserActor("user-"+tenantID, membershipdomain.RoleMember)})
}

func do(t *testing.T, h echo.HandlerFunc, method, target, body string, ctx context.Context) (*httptest.ResponseRecorder, error) {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	req = req.WithContext(ctx)
	rec := httptest.NewRecorder()
	return rec, h(echo.New().NewContext(req, rec))
}

func statusOf(err error) int {
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he.Code
	}
	return 0
}

func TestIngestListRollups_TenantIsolation(t *testing.T) {
	h := NewHandler(service.NewService(eventrepo.NewMemoryRepository()), nil)

	for _, tc := range []struct{ tenant, body string }{
		{"tenant-a", `{"type":"page.view","payload":{"path":"/a"}}`},
		{"tenant-a", `{"type":"page.view"}`},
		{"tenant-a", `{"type":"signup"}`},
		{"tenant-b", `{"type":"page.view","payload":{"path":"/b"}}`},
	} {
		rec, err := do(t, h.Ingest, http.MethodPost, "/v1/events", tc.body, serviceCtx(tc.tenant))
		if err != nil || rec.Code != http.StatusCreated {
			t.Fatalf("ingest %s: code=%d err=%v", tc.tenant, rec.Code, err)
		}
	}

	rec, err := do(t, h.List, http.MethodGet, "/v1/events", "", userCtx("tenant-b"))
	if err != nil {
		t.Fatal(err)
	}
	var list struct {
		Events []eventResponse `json:"events"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &list); err != nil {
		t.Fatal(err)
	}
	if len(list.Events) != 1 || list.Events[0].ActorID != "apikey:key-tenant-b" || list.Events[0].ActorKind != "service" {
		t.Fatalf("tenant-b events = %+v", list.Events)
	}

	rec, err = do(t, h.Rollups, http.MethodGet, "/v1/rollups", "", userCtx("tenant-a"))
	if err != nil {
		t.Fatal(err)
	}
	var rollups struct {
		Rollups []struct {
			Type  string `json:"event_type"`
			Count int64  `json:"count"`
		} `json:"rollups"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &rollups); err != nil {
		t.Fatal(err)
	}
	counts := map[string]int64{}
	for _, r := range rollups.Rollups {
		counts[r.Type] = r.Count
	}
	if counts["page.view"] != 2 || counts["signup"] != 1 || len(counts) != 2 {
		t.Errorf("tenant-a rollups = %v", counts)
	}
}

func TestList_TypeFilter(t *testing.T) {
	h := NewHandler(service.NewService(eventrepo.NewMemoryRepository()), nil)
	for _, body := range []string{`{"type":"a"}`, `{"type":"b"}`, `{"type":"a"}`} {
		if _, err := do(t, h.Ingest, http.MethodPost, "/v1/events", body, serviceCtx("t1")); err != nil {
			t.Fatal(err)
		}
	}
	rec, err := do(t, h.List, http.MethodGet, "/v1/events?type=a&limit=1", "", userCtx("t1"))
	if err != nil {
		t.Fatal(err)
	}
	var list struct {
		Events []eventResponse `json:"events"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &list); err != nil {
		t.Fatal(err)
	}
	if len(list.Events) != 1 || list.Events[0].Type != "a" {
		t.Errorf("events = %+v", list.Events)
	}
}

func TestIngest_Validation(t *testing.T) {
	h := NewHandler(service.NewService(eventrepo.NewMemoryRepository()), nil)
	big := `{"type":"x","payload":{"v":"` + strings.Repeat("a", 70<<10) + `"}}`
	testCases := []struct {
		name string
		body string
		want int
	}{
		{"bad type", `{"type":"Not Valid"}`, http.StatusBadRequest},
		{"array payload", `{"type":"x","payload":[1,2]}`, http.StatusBadRequest},
		{"too big", big, http.StatusRequestEntityTooLarge},
		{"malformed", `{"type":`, http.StatusBadRequest},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := do(t, h.Ingest, http.MethodPost, "/v1/events", tc.body, serviceCtx("t1"))
			if got := statusOf(err); got != tc.want {
				t.Errorf("status = %d, want %d (err %v)", got, tc.want, err)
			}
		})
	}
}

func TestQuery_Validation(t *testing.T) {
	h := NewHandler(service.NewService(eventrepo.NewMemoryRepository()), nil)
	for _, target := range []string{
		"/v1/events?since=yesterday",
		"/v1/events?limit=ten",
		"/v1/events?since=2026-02-01T00:00:00Z&until=2026-01-01T00:00:00Z",
	} {
		_, err := do(t, h.List, http.MethodGet, target, "", userCtx("t1"))
		if got := statusOf(err); got != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", target, got)
		}
	}
}

func TestUnscopedRequestsDenied(t *testing.T) {
	h := NewHandler(service.NewService(eventrepo.NewMemoryRepository()), nil)
	if _, err := do(t, h.Ingest, http.MethodPost, "/v1/events", `{"type":"x"}`, context.Background()); statusOf(err) != http.StatusUnauthorized {
		t.Errorf("ingest err = %v", err)
	}
	if _, err := do(t, h.List, http.MethodGet, "/v1/events", "", context.Background()); statusOf(err) != http.StatusUnauthorized {
		t.Errorf("list err = %v", err)
	}
	if _, err := do(t, h.Rollups, http.MethodGet, "/v1/rollups", "", context.Background()); statusOf(err) != http.StatusUnauthorized {
		t.Errorf("rollups err = %v", err)
	}
}
