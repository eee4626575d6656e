package reporting

import (
	"context"
	"errors"
	"time"

	"call-console/internal/calls"
	"call-console/internal/session"
)

// Source abstracts the snapshot reporting reads from.
type Source interface {
	Snapshot() session.Snapshot
}

type Service struct {
	source Source
	clock  func() time.Time
}

func NewService(source Source) *Service { return &Service{source: source, clock: time.Now} }

func (s *Service) ConsoleSummary(ctx context.Context) (ConsoleSummary, error) {
	if s == nil || s.source == nil {
		return ConsoleSummary{}, errors.New("reporting: source not configured")
	}
	if err := ctx.Err(); err != nil {
		return ConsoleSummary{}, err
	}

	snap := s.source.Snapshot()
	out := ConsoleSummary{
		GeneratedAt: s.clock().UTC(),
		Active:      Summarize(snap.Active),
		Incoming:    Summarize(snap.Incoming),
	}
	if e := snap.Engaged; e != nil {
		es := &EngagedSummary{
			CallSID:          e.Call.CallSID,
			Counterparty:     e.Call.Counterparty(),
			TranscriptLength: len(e.Transcript),
		}
		for _, t := range e.Transcript {
			switch t.Speaker {
			case calls.SpeakerCaller:
				es.CallerTurns++
			case calls.SpeakerAssistant:
				es.AssistantTurns++
			}
		}
		out.Engaged = es
	}
	return out, nil
}

// Summarize counts rows by status and totals their durations.
func Summarize(rows []calls.Call) CallsSummary {
	var out CallsSummary
	for _, c := range rows {
		out.TotalCalls++
		out.TotalDurationSeconds += c.DurationSeconds
		if c.RecordingURL != "" {
			out.RecordedCalls++
		}
		switch c.Status {
		case calls.CallStatusQueued:
			out.QueuedCalls++
		case calls.CallStatusRinging:
			out.RingingCalls++
		case calls.CallStatusInProgress:
			out.InProgressCalls++
		case calls.CallStatusCompleted:
			out.CompletedCalls++
		case calls.CallStatusFailed:
			out.FailedCalls++
		case calls.CallStatusNoAnswer:
			out.NoAnswerCalls++
		case calls.CallStatusBusy:
			out.BusyCalls++
		case calls.CallStatusCanceled:
			out.CanceledCalls++
		default:
			out.OtherCalls++
		}
	}
	if out.TotalCalls > 0 {
		out.AverageDurationSeconds = out.TotalDurationSeconds / out.TotalCalls
	}
	return out
}
