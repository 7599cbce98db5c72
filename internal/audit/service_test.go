package audit

import (
	"context"
	"testing"
)

func TestService_AppendRequiresAccountAndType(t *testing.T) {
	repo := NewMemoryRepo()
	svc := NewService(repo)

	if err := svc.Append(context.Background(), Event{Type: EventTypeCalloutEvent}); err == nil {
		t.Fatalf("expected error")
	}
	if err := svc.Append(context.Background(), Event{AccountID: "acc"}); err == nil {
		t.Fatalf("expected error")
	}
}

func TestService_AppendsImmutableEvents(t *testing.T) {
	repo := NewMemoryRepo()
	svc := NewService(repo)

	if err := svc.LogCalloutEvent(context.Background(), "acc", "co1", "1.2.3.4", "start", true); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}

	evs := repo.Events()
	if len(evs) != 1 {
		t.Fatalf("expected 1 event")
	}
	if evs[0].IPAddress != "1.2.3.4" {
		t.Fatalf("expected ip captured")
	}
	if evs[0].Type != EventTypeCalloutEvent {
		t.Fatalf("expected callout_event")
	}
	if evs[0].ID == "" || evs[0].CreatedAt.IsZero() {
		t.Fatalf("expected id and timestamp assigned")
	}
}

func TestRepo_EventsByAccountScopesTrail(t *testing.T) {
	repo := NewMemoryRepo()
	svc := NewService(repo)

	if err := svc.LogCalloutEvent(context.Background(), "acc-1", "co1", "1.2.3.4", "start", true); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if err := svc.LogBatchOperationEvent(context.Background(), "acc-2", "co2", "bo1", "1.2.3.5", "queue"); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}

	if got := repo.EventsByAccount("acc-1"); len(got) != 1 || got[0].CalloutID != "co1" {
		t.Fatalf("expected only acc-1 events, got %+v", got)
	}
	if got := repo.EventsByAccount("acc-3"); len(got) != 0 {
		t.Fatalf("expected no events for unknown account")
	}
}
