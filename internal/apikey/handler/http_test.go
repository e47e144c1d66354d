package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"tenant-rollups/backend/internal/apikey/domain"
	"tenant-rollups/backend/internal/apikey/service"
	membershipdomain "tenant-rollups/backend/internal/membership/domain"
	"tenant-rollups/backend/internal/tenancy"
)

type fakeKeys struct {
	created   []string
	revoked   []string
	listed    []*domain.APIKey
	revokeErr error
}

func (f *fakeKeys) Create(ctx context.Context, tenantID, name string, expiresAt *time.Time) (*domain.APIKey, string, error) {
	if strings.TrimSpace(name) == "" {
		return nil, "", service.ErrNameRequired
	}
	f.created = append(f.created, tenantID+"/"+name)
	return &domain.APIKey{ID: "k1", TenantID: tenantID, Name: name, KeyHash: "secret-hash", Prefix: "rk_live_abcd", Active: true, CreatedAt: time.Now()}, "rk_live_plaintext", nil
}

func (f *fakeKeys) Revoke(ctx context.Context, id string) error {
	f.revoked = append(f.revoked, id)
	return f.revokeErr
}

func (f *fakeKeys) List(ctx context.Context) ([]*domain.APIKey, error) {
	return f.listed, nil
}

func adminCtx() context.Context {
	return tenancy.WithScope(context.Background(), tenancy.Scope{TenantID: "t1", Actor: tenancy.UserActor("u1", membershipdomain.RoleAdmin)})
}

func TestCreate(t *testing.T) {
	keys := &fakeKeys{}
	h := NewHandler(keys)
	req := httptest.NewRequest(http.MethodPost, "/v1/api-keys", strings.NewReader(`{"name":"ingest"}`)).WithContext(adminCtx())
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	if err := h.Create(echo.New().NewContext(req, rec)); err != nil {
		t.Fatal(err)
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("code = %d", rec.Code)
	}
	if len(keys.created) != 1 || keys.created[0] != "t1/ingest" {
		t.Errorf("created = %v", keys.created)
	}
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body["key"] != "rk_live_plaintext" {
		t.Errorf("key = %v", body["key"])
	}
	if strings.Contains(rec.Body.String(), "secret-hash") {
		t.Error("response leaks the key hash")
	}
}

func TestCreate_Validation(t *testing.T) {
	past := time.Now().Add(-time.Hour).UTC().Format(time.RFC3339)
	for name, body := range map[string]string{
		"blank name":   `{"name":"  "}`,
		"past expiry":  `{"name":"k","expires_at":"` + past + `"}`,
		"invalid json": `{"name":`,
	} {
		t.Run(name, func(t *testing.T) {
			h := NewHandler(&fakeKeys{})
			req := httptest.NewRequest(http.MethodPost, "/v1/api-keys", strings.NewReader(body)).WithContext(adminCtx())
			req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
			err := h.Create(echo.New().NewContext(req, httptest.NewRecorder()))
			var he *echo.HTTPError
			if !errors.As(err, &he) || he.Code != http.StatusBadRequest {
				t.Errorf("err = %v, want 400", err)
			}
		})
	}
}

func TestRevoke(t *testing.T) {
	e := echo.New()
	keys := &fakeKeys{}
	h := NewHandler(keys)
	e.DELETE("/v1/api-keys/:id", h.Revoke)

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/v1/api-keys/k9", nil))
	if rec.Code != http.StatusNoContent || len(keys.revoked) != 1 || keys.revoked[0] != "k9" {
		t.Errorf("code=%d revoked=%v", rec.Code, keys.revoked)
	}

	keys.revokeErr = domain.ErrNotFound
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/v1/api-keys/other-tenant", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("code = %d, want 404", rec.Code)
	}
}

func TestList(t *testing.T) {
	h := NewHandler(&fakeKeys{listed: []*domain.APIKey{{ID: "k1", Name: "a", KeyHash: "h1"}, {ID: "k2", Name: "b", KeyHash: "h2"}}})
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/v1/api-keys", nil).WithContext(adminCtx())
	if err := h.List(echo.New().NewContext(req, rec)); err != nil {
		t.Fatal(err)
	}
	var body struct {
		APIKeys []keyResponse `json:"api_keys"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if len(body.APIKeys) != 2 || body.APIKeys[0].Key != "" {
		t.Errorf("body = %+v", body)
	}
	if strings.Contains(rec.Body.String(), `"h1"`) {
		t.Error("list leaks key hashes")
	}
}
