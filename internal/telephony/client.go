package telephony

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"call-console/internal/calls"
)

const (
	DefaultBaseURL = "http://127.0.0.1:5000/api"
	DefaultTimeout = 5 * time.Second

	statusSuccess = "success"

	// maxResponseBytes caps how much of a response body is read.
	maxResponseBytes = 16 << 20
)

// Client is the typed wrapper around the remote call service.
//
// Rules:
// - Every request carries the fixed timeout.
// - No retries; callers own retry policy.
// - The client never touches session state.
type Client struct {
	baseURL string
	timeout time.Duration
	http    *http.Client
}

type ClientConfig struct {
	BaseURL string
	Timeout time.Duration

	// HTTP is optional; a fresh client is used when nil.
	HTTP *http.Client
}

func NewClient(cfg ClientConfig) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		base = DefaultBaseURL
	}
	u, err := url.Parse(base)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("telephony: invalid base url %q", cfg.BaseURL)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	hc := cfg.HTTP
	if hc == nil {
		hc = &http.Client{}
	}
	return &Client{baseURL: base, timeout: timeout, http: hc}, nil
}

// BaseURL returns the normalized base path requests are issued against.
func (c *Client) BaseURL() string { return c.baseURL }

type MakeCallRequest struct {
	PhoneNumber string `json:"phone_number"`
	Message     string `json:"message,omitempty"`
}

type MakeCallResult struct {
	CallSID string `json:"call_sid,omitempty"`
	Message string `json:"message,omitempty"`
}

type callRequest struct {
	CallSID string `json:"call_sid"`
}

type respondRequest struct {
	CallSID string `json:"call_sid"`
	Message string `json:"message"`
}

// envelope is the status discriminator every action response carries.
type envelope struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

func (e envelope) check(op string, status int) error {
	if e.Status == statusSuccess {
		return nil
	}
	detail := e.Message
	if detail == "" {
		detail = e.Error
	}
	if detail == "" {
		if e.Status == "" {
			detail = "missing status in response"
		} else {
			detail = "backend reported status " + e.Status
		}
	}
	return rejected(op, status, detail)
}

func (c *Client) ListActiveCalls(ctx context.Context) ([]calls.Call, error) {
	return c.listCalls(ctx, "list active calls", "/active-calls", calls.DirectionOutbound)
}

func (c *Client) ListIncomingCalls(ctx context.Context) ([]calls.Call, error) {
	return c.listCalls(ctx, "list incoming calls", "/incoming-calls", calls.DirectionInbound)
}

func (c *Client) listCalls(ctx context.Context, op, path string, dir calls.Direction) ([]calls.Call, error) {
	var raw json.RawMessage
	status, err := c.do(ctx, op, http.MethodGet, path, nil, nil, &raw)
	if err != nil {
		return nil, err
	}
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return nil, malformed(op, status, "expected an array of calls", nil)
	}
	var out []calls.Call
	if err := json.Unmarshal(trimmed, &out); err != nil {
		return nil, malformed(op, status, "invalid call list", err)
	}
	for i := range out {
		if out[i].Direction == "" {
			out[i].Direction = dir
		}
	}
	if out == nil {
		out = []calls.Call{}
	}
	return out, nil
}

// MakeCall places an outbound call. The status field is authoritative: a
// non-success status is a ServerRejected failure even on HTTP 200.
func (c *Client) MakeCall(ctx context.Context, req MakeCallRequest) (MakeCallResult, error) {
	const op = "make call"
	var resp struct {
		envelope
		CallSID string `json:"call_sid,omitempty"`
	}
	status, err := c.do(ctx, op, http.MethodPost, "/make-call", nil, req, &resp)
	if err != nil {
		return MakeCallResult{}, err
	}
	if err := resp.check(op, status); err != nil {
		return MakeCallResult{}, err
	}
	return MakeCallResult{CallSID: resp.CallSID, Message: resp.Message}, nil
}

func (c *Client) AnswerCall(ctx context.Context, sid string) error {
	return c.action(ctx, "answer call", "/answer-call", callRequest{CallSID: sid})
}

func (c *Client) EndCall(ctx context.Context, sid string) error {
	return c.action(ctx, "end call", "/end-call", callRequest{CallSID: sid})
}

func (c *Client) Respond(ctx context.Context, sid, text string) error {
	return c.action(ctx, "respond", "/respond-to-call", respondRequest{CallSID: sid, Message: text})
}

func (c *Client) GetTranscript(ctx context.Context, sid string) ([]calls.TranscriptEntry, error) {
	const op = "get transcript"
	var resp struct {
		envelope
		Transcript *[]calls.TranscriptEntry `json:"transcript"`
	}
	q := url.Values{"call_sid": []string{sid}}
	status, err := c.do(ctx, op, http.MethodGet, "/call-transcript", q, nil, &resp)
	if err != nil {
		return nil, err
	}
	if err := resp.check(op, status); err != nil {
		return nil, err
	}
	if resp.Transcript == nil {
		return nil, malformed(op, status, "missing transcript", nil)
	}
	out := *resp.Transcript
	if out == nil {
		out = []calls.TranscriptEntry{}
	}
	return out, nil
}

func (c *Client) action(ctx context.Context, op, path string, body any) error {
	var resp envelope
	status, err := c.do(ctx, op, http.MethodPost, path, nil, body, &resp)
	if err != nil {
		return err
	}
	return resp.check(op, status)
}

// do issues one JSON request and decodes the JSON response into out.
// It returns the HTTP status code when a response was received.
func (c *Client) do(ctx context.Context, op, method, path string, query url.Values, body any, out any) (int, error) {
	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return 0, fmt.Errorf("telephony: %s: encode request: %w", op, err)
		}
		rdr = bytes.NewReader(b)
	}
	return c.send(ctx, op, method, path, query, rdr, "application/json", out)
}

func (c *Client) send(ctx context.Context, op, method, path string, query url.Values, body io.Reader, contentType string, out any) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return 0, fmt.Errorf("telephony: %s: build request: %w", op, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")

	res, err := c.http.Do(req)
	if err != nil {
		return 0, classifyTransport(op, err)
	}
	defer res.Body.Close()

	data, err := io.ReadAll(io.LimitReader(res.Body, maxResponseBytes))
	if err != nil {
		return res.StatusCode, classifyTransport(op, err)
	}

	if res.StatusCode < 200 || res.StatusCode > 299 {
		return res.StatusCode, rejected(op, res.StatusCode, rejectionDetail(res.StatusCode, data))
	}
	if out == nil {
		return res.StatusCode, nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		var syn *json.SyntaxError
		var typ *json.UnmarshalTypeError
		switch {
		case errors.As(err, &syn):
			return res.StatusCode, malformed(op, res.StatusCode, "response is not valid JSON", err)
		case errors.As(err, &typ):
			return res.StatusCode, malformed(op, res.StatusCode, fmt.Sprintf("unexpected %s for %s", typ.Value, typ.Field), err)
		default:
			return res.StatusCode, malformed(op, res.StatusCode, "undecodable response", err)
		}
	}
	return res.StatusCode, nil
}

// rejectionDetail pulls the human-readable reason out of an error response.
func rejectionDetail(status int, body []byte) string {
	var e envelope
	if err := json.Unmarshal(body, &e); err == nil {
		if e.Message != "" {
			return e.Message
		}
		if e.Error != "" {
			return e.Error
		}
	}
	return fmt.Sprintf("backend returned HTTP %d", status)
}
