package telephony

import (
	"context"
	"errors"
	"net"
	"strings"
)

// Failure kinds. Every error returned by Client matches exactly one of these
// through errors.Is.
var (
	ErrNetworkUnreachable = errors.New("telephony: network unreachable")
	ErrTimeout            = errors.New("telephony: timeout")
	ErrServerRejected     = errors.New("telephony: server rejected")
	ErrMalformed          = errors.New("telephony: malformed response")
)

// Error is the normalized failure of one backend request.
type Error struct {
	// Op names the client operation, e.g. "make call".
	Op string
	// Kind is one of the Err* kind sentinels.
	Kind error
	// Detail is the backend-supplied reason (ServerRejected) or the shape
	// problem (Malformed).
	Detail string
	// StatusCode is the HTTP status when a response was received.
	StatusCode int

	Err error
}

func (e *Error) Error() string {
	return "telephony: " + e.Op + ": " + e.Message()
}

func (e *Error) Unwrap() []error {
	out := make([]error, 0, 2)
	if e.Kind != nil {
		out = append(out, e.Kind)
	}
	if e.Err != nil {
		out = append(out, e.Err)
	}
	return out
}

// Message returns the display-ready text for the operator.
func (e *Error) Message() string {
	switch e.Kind {
	case ErrNetworkUnreachable:
		return "Error connecting to backend server"
	case ErrTimeout:
		if e.Detail != "" {
			return "Request to backend timed out (" + e.Detail + ")"
		}
		return "Request to backend timed out"
	case ErrServerRejected:
		if e.Detail != "" {
			return e.Detail
		}
		return "Request rejected by backend"
	case ErrMalformed:
		if e.Detail != "" {
			return "Unexpected response from backend: " + e.Detail
		}
		return "Unexpected response from backend"
	default:
		if e.Err != nil {
			return e.Err.Error()
		}
		return "unknown error"
	}
}

// Message extracts the display-ready message from any error.
func Message(err error) string {
	if err == nil {
		return ""
	}
	var te *Error
	if errors.As(err, &te) {
		return te.Message()
	}
	return err.Error()
}

func rejected(op string, status int, detail string) *Error {
	return &Error{Op: op, Kind: ErrServerRejected, StatusCode: status, Detail: strings.TrimSpace(detail)}
}

func malformed(op string, status int, detail string, cause error) *Error {
	return &Error{Op: op, Kind: ErrMalformed, StatusCode: status, Detail: detail, Err: cause}
}

// classifyTransport maps a failed round trip to Timeout or NetworkUnreachable.
func classifyTransport(op string, err error) *Error {
	if errors.Is(err, context.DeadlineExceeded) {
		return &Error{Op: op, Kind: ErrTimeout, Err: err}
	}
	if errors.Is(err, context.Canceled) {
		return &Error{Op: op, Kind: ErrTimeout, Detail: "request canceled", Err: err}
	}
	var nerr net.Error
	if errors.As(err, &nerr) && nerr.Timeout() {
		return &Error{Op: op, Kind: ErrTimeout, Err: err}
	}
	return &Error{Op: op, Kind: ErrNetworkUnreachable, Err: err}
}
