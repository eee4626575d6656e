package reporting

import "time"

// CallsSummary aggregates one list of calls.
type CallsSummary struct {
	TotalCalls      int `json:"total_calls"`
	QueuedCalls     int `json:"queued_calls"`
	RingingCalls    int `json:"ringing_calls"`
	InProgressCalls int `json:"in_progress_calls"`
	CompletedCalls  int `json:"completed_calls"`
	FailedCalls     int `json:"failed_calls"`
	NoAnswerCalls   int `json:"no_answer_calls"`
	BusyCalls       int `json:"busy_calls"`
	CanceledCalls   int `json:"canceled_calls"`
	OtherCalls      int `json:"other_calls"`

	TotalDurationSeconds   int `json:"total_duration_seconds"`
	AverageDurationSeconds int `json:"average_duration_seconds"`

	RecordedCalls int `json:"recorded_calls"`
}

// EngagedSummary describes the engaged call, if any.
type EngagedSummary struct {
	CallSID          string `json:"call_sid"`
	Counterparty     string `json:"counterparty"`
	TranscriptLength int    `json:"transcript_length"`
	CallerTurns      int    `json:"caller_turns"`
	AssistantTurns   int    `json:"assistant_turns"`
}

// ConsoleSummary is a point-in-time view over the session store.
type ConsoleSummary struct {
	GeneratedAt time.Time       `json:"generated_at"`
	Active      CallsSummary    `json:"active"`
	Incoming    CallsSummary    `json:"incoming"`
	Engaged     *EngagedSummary `json:"engaged,omitempty"`
}
