package audit

import "time"

// Event is an immutable, append-only record of one operator action outcome.
//
// Invariants:
// - Events are never updated or deleted.
// - Audit is best-effort; a failed append never changes the action's outcome.
type Event struct {
	ID   string    `json:"id" db:"id"`
	Type EventType `json:"type" db:"type"`

	// Action names the operator action, e.g. "answer" or "make_call".
	Action  string  `json:"action" db:"action"`
	CallSID string  `json:"call_sid,omitempty" db:"call_sid"`
	Outcome Outcome `json:"outcome" db:"outcome"`

	// Message is the operator-facing text emitted for this outcome.
	Message string `json:"message,omitempty" db:"message"`

	// Metadata is optional JSON for full details.
	Metadata string `json:"metadata,omitempty" db:"metadata"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

type EventType string

const (
	EventTypeOperatorAction EventType = "operator_action"
)

type Outcome string

const (
	OutcomeSucceeded Outcome = "succeeded"
	OutcomeFailed    Outcome = "failed"
	OutcomeRejected  Outcome = "rejected"
)
