package reporting

import (
	"context"
	"testing"

	"call-console/internal/calls"
	"call-console/internal/session"
)

func TestSummarize_CountsByStatus(t *testing.T) {
	out := Summarize([]calls.Call{
		{CallSID: "c1", Status: calls.CallStatusCompleted, DurationSeconds: 30, RecordingURL: "https://rec/1"},
		{CallSID: "c2", Status: calls.CallStatusInProgress, DurationSeconds: 50},
		{CallSID: "c3", Status: "initiated"},
	})
	if out.TotalCalls != 3 {
		t.Fatalf("expected 3 calls, got %d", out.TotalCalls)
	}
	if out.CompletedCalls != 1 || out.InProgressCalls != 1 || out.OtherCalls != 1 {
		t.Fatalf("unexpected status counts %+v", out)
	}
	if out.TotalDurationSeconds != 80 || out.AverageDurationSeconds != 26 {
		t.Fatalf("unexpected durations %+v", out)
	}
	if out.RecordedCalls != 1 {
		t.Fatalf("expected 1 recorded call, got %d", out.RecordedCalls)
	}
}

func TestConsoleSummary_ReadsStore(t *testing.T) {
	store := session.NewStore()
	store.ApplyActiveCallsSnapshot([]calls.Call{{CallSID: "O1", Status: calls.CallStatusRinging}})
	store.ApplyIncomingCallsSnapshot([]calls.Call{{CallSID: "A1"}, {CallSID: "B1"}})
	gen := store.Engage(calls.Call{CallSID: "A1", Direction: calls.DirectionInbound, FromNumber: "+1555"})
	store.UpsertTranscript(gen, "A1", []calls.TranscriptEntry{
		{Speaker: calls.SpeakerCaller, Text: "hi"},
		{Speaker: calls.SpeakerAssistant, Text: "hello"},
		{Speaker: calls.SpeakerCaller, Text: "bye"},
	})

	out, err := NewService(store).ConsoleSummary(context.Background())
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if out.Active.RingingCalls != 1 || out.Incoming.TotalCalls != 1 {
		t.Fatalf("unexpected summary %+v", out)
	}
	if out.Engaged == nil || out.Engaged.CallSID != "A1" || out.Engaged.Counterparty != "+1555" {
		t.Fatalf("unexpected engaged summary %+v", out.Engaged)
	}
	if out.Engaged.CallerTurns != 2 || out.Engaged.AssistantTurns != 1 {
		t.Fatalf("unexpected turns %+v", out.Engaged)
	}
}

func TestConsoleSummary_RequiresSource(t *testing.T) {
	if _, err := NewService(nil).ConsoleSummary(context.Background()); err == nil {
		t.Fatalf("expected error")
	}
}
