package audit

import (
	"context"
	"testing"
)

func TestService_AppendRequiresActionAndOutcome(t *testing.T) {
	repo := NewMemoryRepo()
	svc := NewService(repo)

	if err := svc.Append(context.Background(), Event{Type: EventTypeOperatorAction, Outcome: OutcomeFailed}); err == nil {
		t.Fatalf("expected error")
	}
	if err := svc.Append(context.Background(), Event{Type: EventTypeOperatorAction, Action: "answer"}); err == nil {
		t.Fatalf("expected error")
	}
}

func TestService_AppendsImmutableEvents(t *testing.T) {
	repo := NewMemoryRepo()
	svc := NewService(repo)

	if err := svc.LogAction(context.Background(), "end_call", "CA1", OutcomeFailed, "Error ending call"); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}

	evs := repo.Events()
	if len(evs) != 1 {
		t.Fatalf("expected 1 event")
	}
	if evs[0].ID == "" || evs[0].CreatedAt.IsZero() {
		t.Fatalf("expected id and timestamp assigned")
	}
	if evs[0].CallSID != "CA1" || evs[0].Outcome != OutcomeFailed {
		t.Fatalf("unexpected event %+v", evs[0])
	}
}

func TestService_NilIsNotConfigured(t *testing.T) {
	var svc *Service
	if err := svc.LogAction(context.Background(), "answer", "CA1", OutcomeSucceeded, ""); err == nil {
		t.Fatalf("expected error")
	}
}
