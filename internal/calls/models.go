package calls

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Call is one phone call tracked by the remote call service.
//
// Invariant: CallSID is unique across the active and incoming lists at any instant.
// Status is an open set; unknown values from the backend are kept verbatim.
type Call struct {
	CallSID   string    `json:"call_sid"`
	Direction Direction `json:"direction,omitempty"`

	// Outbound calls report the dialed number in to_number, inbound calls the
	// caller in from_number. Counterparty picks whichever applies.
	ToNumber   string `json:"to_number,omitempty"`
	FromNumber string `json:"from_number,omitempty"`

	Status CallStatus `json:"status"`

	// DurationSeconds is the call duration in seconds.
	DurationSeconds int `json:"duration"`

	RecordingURL string `json:"recording_url,omitempty"`
}

// UnmarshalJSON accepts duration as a number, a numeric string or null, since
// the backend relays the carrier's string-typed durations unchanged.
func (c *Call) UnmarshalJSON(b []byte) error {
	type plain Call
	aux := struct {
		*plain
		Duration json.RawMessage `json:"duration"`
	}{plain: (*plain)(c)}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	d, err := parseDuration(aux.Duration)
	if err != nil {
		return err
	}
	c.DurationSeconds = d
	return nil
}

func parseDuration(raw json.RawMessage) (int, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return 0, nil
	}
	text := string(raw)
	if raw[0] == '"' {
		if err := json.Unmarshal(raw, &text); err != nil {
			return 0, err
		}
		text = strings.TrimSpace(text)
		if text == "" {
			return 0, nil
		}
	}
	f, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return 0, fmt.Errorf("calls: invalid duration %s", raw)
	}
	return int(f), nil
}

// Counterparty returns the phone number on the other end of the call.
func (c Call) Counterparty() string {
	if c.Direction == DirectionInbound {
		if c.FromNumber != "" {
			return c.FromNumber
		}
		return c.ToNumber
	}
	if c.ToNumber != "" {
		return c.ToNumber
	}
	return c.FromNumber
}

type Direction string

const (
	DirectionOutbound Direction = "outbound"
	DirectionInbound  Direction = "inbound"
)

type CallStatus string

const (
	CallStatusQueued     CallStatus = "queued"
	CallStatusRinging    CallStatus = "ringing"
	CallStatusInProgress CallStatus = "in-progress"
	CallStatusCompleted  CallStatus = "completed"
	CallStatusFailed     CallStatus = "failed"
	CallStatusNoAnswer   CallStatus = "no-answer"
	CallStatusBusy       CallStatus = "busy"
	CallStatusCanceled   CallStatus = "canceled"
)

// IsTerminal reports whether the status means the call is over.
func (s CallStatus) IsTerminal() bool {
	switch s {
	case CallStatusCompleted, CallStatusFailed, CallStatusNoAnswer, CallStatusBusy, CallStatusCanceled:
		return true
	}
	return false
}

// Speaker identifies who produced a transcript line.
type Speaker string

const (
	SpeakerCaller    Speaker = "caller"
	SpeakerAssistant Speaker = "assistant"
)

// UnmarshalJSON accepts the backend's role aliases ("user", "ai") next to the
// canonical names.
func (s *Speaker) UnmarshalJSON(b []byte) error {
	var raw string
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "caller", "user":
		*s = SpeakerCaller
	case "assistant", "ai", "bot":
		*s = SpeakerAssistant
	default:
		*s = Speaker(raw)
	}
	return nil
}

// TranscriptEntry is one line of a call transcript. The backend sends the
// speaker role under "type".
type TranscriptEntry struct {
	Speaker Speaker `json:"type"`
	Text    string  `json:"text"`
}

// WithSIDs returns the call_sid of every call, in order.
func WithSIDs(list []Call) []string {
	out := make([]string, 0, len(list))
	for _, c := range list {
		out = append(out, c.CallSID)
	}
	return out
}

// Find returns the call with the given sid.
func Find(list []Call, sid string) (Call, bool) {
	for _, c := range list {
		if c.CallSID == sid {
			return c, true
		}
	}
	return Call{}, false
}

// NormalizeNumber trims the input and prefixes "+" when missing. Empty input stays empty.
func NormalizeNumber(number string) string {
	n := strings.TrimSpace(number)
	if n == "" {
		return ""
	}
	if !strings.HasPrefix(n, "+") {
		n = "+" + n
	}
	return n
}
