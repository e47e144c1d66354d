package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"tenant-rollups/backend/internal/event/domain"
	eventrepo "tenant-rollups/backend/internal/event/repository"
	membershipdomain "tenant-rollups/backend/internal/membership/domain"
	"tenant-rollups/backend/internal/tenancy"
)

func scoped(tenantID string, actor tenancy.Actor) context.Context {
	return tenancy.WithScope(context.Background(), tenancy.Scope{TenantID: tenantID, Actor: actor})
}

func TestService_IngestAttributesScope(t *testing.T) {
	svc := NewService(eventrepo.NewMemoryRepository())
	ctx := scoped("t1", tenancy.ServiceActor("key-1"))

	e, err := svc.Ingest(ctx, IngestInput{Type: "page_view", Payload: json.RawMessage(`{"path":"/"}`)})
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if e.TenantID != "t1" || e.ActorKind != "service" || e.ActorID != "apikey:key-1" {
		t.Errorf("event = %+v", e)
	}
	if e.OccurredAt.IsZero() {
		t.Error("occurred_at should default to now")
	}
}

func TestService_RequiresScope(t *testing.T) {
	svc := NewService(eventrepo.NewMemoryRepository())
	ctx := context.Background()
	if _, err := svc.Ingest(ctx, IngestInput{Type: "x"}); !errors.Is(err, tenancy.ErrNoScope) {
		t.Errorf("Ingest err = %v", err)
	}
	if _, err := svc.List(ctx, domain.Query{}); !errors.Is(err, tenancy.ErrNoScope) {
		t.Errorf("List err = %v", err)
	}
	if _, err := svc.Rollups(ctx, domain.Query{}); !errors.Is(err, tenancy.ErrNoScope) {
		t.Errorf("Rollups err = %v", err)
	}
}

func TestService_Validation(t *testing.T) {
	svc := NewService(eventrepo.NewMemoryRepository())
	ctx := scoped("t1", tenancy.ServiceActor("k"))
	if _, err := svc.Ingest(ctx, IngestInput{Type: "Bad Type"}); !errors.Is(err, domain.ErrInvalidType) {
		t.Errorf("type err = %v", err)
	}
	if _, err := svc.Ingest(ctx, IngestInput{Type: "ok", Payload: json.RawMessage(`[]`)}); !errors.Is(err, domain.ErrInvalidPayload) {
		t.Errorf("payload err = %v", err)
	}
}

func TestService_TenantsNeverSeeEachOther(t *testing.T) {
	svc := NewService(eventrepo.NewMemoryRepository())
	a := scoped("a", tenancy.ServiceActor("ka"))
	b := scoped("b", tenancy.ServiceActor("kb"))
	for i := 0; i < 3; i++ {
		if _, err := svc.Ingest(a, IngestInput{Type: "view"}); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := svc.Ingest(b, IngestInput{Type: "view"}); err != nil {
		t.Fatal(err)
	}

	reader := scoped("b", tenancy.UserActor("u", membershipdomain.RoleMember))
	list, err := svc.List(reader, domain.Query{})
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 || list[0].TenantID != "b" {
		t.Errorf("tenant b list = %+v", list)
	}
	rollups, _ := svc.Rollups(reader, domain.Query{})
	if len(rollups) != 1 || rollups[0].Count != 1 {
		t.Errorf("tenant b rollups = %+v", rollups)
	}
}
