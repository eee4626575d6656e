package telephony

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"call-console/internal/calls"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c, err := NewClient(ClientConfig{BaseURL: srv.URL + "/api", Timeout: time.Second})
	require.NoError(t, err)
	return c
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestNewClient_Defaults(t *testing.T) {
	c, err := NewClient(ClientConfig{})
	require.NoError(t, err)
	assert.Equal(t, DefaultBaseURL, c.BaseURL())

	_, err = NewClient(ClientConfig{BaseURL: "not a url"})
	assert.Error(t, err)
}

func TestListActiveCalls(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/api/active-calls", r.URL.Path)
		writeJSON(w, http.StatusOK, []map[string]any{
			{"call_sid": "CA1", "to_number": "+15551234567", "status": "in-progress", "duration": 12},
		})
	})

	list, err := c.ListActiveCalls(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "CA1", list[0].CallSID)
	assert.Equal(t, calls.DirectionOutbound, list[0].Direction)
	assert.Equal(t, 12, list[0].DurationSeconds)
	assert.Equal(t, "+15551234567", list[0].Counterparty())
}

func TestListIncomingCalls_EmptyArray(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "[]")
	})
	list, err := c.ListIncomingCalls(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, list)
	assert.Empty(t, list)
}

func TestListCalls_NonArrayIsMalformed(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"status": "success"})
	})
	_, err := c.ListIncomingCalls(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMalformed)
	assert.Contains(t, Message(err), "expected an array")
}

func TestMakeCall_SendsPayload(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/make-call", r.URL.Path)
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "+5551234567", body["phone_number"])
		_, hasMessage := body["message"]
		assert.False(t, hasMessage, "empty message must be omitted")
		writeJSON(w, http.StatusOK, map[string]any{"status": "success", "call_sid": "CA9", "message": "Call initiated successfully"})
	})

	res, err := c.MakeCall(context.Background(), MakeCallRequest{PhoneNumber: "+5551234567"})
	require.NoError(t, err)
	assert.Equal(t, "CA9", res.CallSID)
}

func TestMakeCall_StatusIsAuthoritative(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"status": "error", "message": "Twilio error: invalid number"})
	})

	_, err := c.MakeCall(context.Background(), MakeCallRequest{PhoneNumber: "+1"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrServerRejected)
	assert.Equal(t, "Twilio error: invalid number", Message(err))
}

func TestAction_HTTPErrorCarriesDetail(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "call not found"})
	})

	err := c.EndCall(context.Background(), "CA1")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrServerRejected)
	var te *Error
	require.True(t, errors.As(err, &te))
	assert.Equal(t, http.StatusBadRequest, te.StatusCode)
	assert.Equal(t, "call not found", te.Message())
}

func TestAction_MissingStatusIsRejected(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{})
	})
	err := c.AnswerCall(context.Background(), "CA1")
	assert.ErrorIs(t, err, ErrServerRejected)
}

func TestRespond_Payload(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/respond-to-call", r.URL.Path)
		var body respondRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, respondRequest{CallSID: "CA1", Message: "hello"}, body)
		writeJSON(w, http.StatusOK, map[string]any{"status": "success"})
	})
	require.NoError(t, c.Respond(context.Background(), "CA1", "hello"))
}

func TestGetTranscript(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "CA1", r.URL.Query().Get("call_sid"))
		writeJSON(w, http.StatusOK, map[string]any{
			"status": "success",
			"transcript": []map[string]string{
				{"type": "user", "text": "I need an appointment"},
				{"type": "ai", "text": "Sure"},
			},
		})
	})

	entries, err := c.GetTranscript(context.Background(), "CA1")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, calls.SpeakerCaller, entries[0].Speaker)
	assert.Equal(t, calls.SpeakerAssistant, entries[1].Speaker)
}

func TestGetTranscript_MissingField(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"status": "success"})
	})
	_, err := c.GetTranscript(context.Background(), "CA1")
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestTimeoutIsNormalized(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	c, err := NewClient(ClientConfig{BaseURL: srv.URL, Timeout: 50 * time.Millisecond})
	require.NoError(t, err)

	_, err = c.ListActiveCalls(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTimeout)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestUnreachableIsNormalized(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	base := srv.URL
	srv.Close()

	c, err := NewClient(ClientConfig{BaseURL: base, Timeout: time.Second})
	require.NoError(t, err)

	_, err = c.ListActiveCalls(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNetworkUnreachable)
	assert.Equal(t, "Error connecting to backend server", Message(err))
}

func TestNonJSONIsMalformed(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "<html>oops</html>")
	})
	err := c.AnswerCall(context.Background(), "CA1")
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestSpeechToText(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		f, _, err := r.FormFile("audio")
		require.NoError(t, err)
		b, _ := io.ReadAll(f)
		assert.Equal(t, []byte("RIFF"), b)
		writeJSON(w, http.StatusOK, map[string]any{"text": "book an appointment"})
	})
	text, err := c.SpeechToText(context.Background(), []byte("RIFF"), "")
	require.NoError(t, err)
	assert.Equal(t, "book an appointment", text)

	_, err = c.SpeechToText(context.Background(), nil, "")
	assert.Error(t, err)
}

func TestTextToSpeech(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var body TextToSpeechRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, DefaultLanguage, body.Language)
		writeJSON(w, http.StatusOK, map[string]any{"audio": base64.StdEncoding.EncodeToString([]byte("mp3"))})
	})
	audio, err := c.TextToSpeech(context.Background(), TextToSpeechRequest{Text: "hello"})
	require.NoError(t, err)
	assert.Equal(t, []byte("mp3"), audio)
}

func TestTextToSpeech_BadBase64(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"audio": "!!!"})
	})
	_, err := c.TextToSpeech(context.Background(), TextToSpeechRequest{Text: "hello"})
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestAppointments(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost:
			var body appointmentWire
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "2026-10-20T09:30:00", body.DateTime)
			writeJSON(w, http.StatusOK, map[string]any{"message": "Appointment created successfully", "id": 7})
		case http.MethodGet:
			writeJSON(w, http.StatusOK, []map[string]any{
				{"id": 7, "client_name": "Ada", "datetime": "2026-10-20T09:30:00", "purpose": "checkup", "status": "scheduled"},
			})
		}
	})

	when := time.Date(2026, 10, 20, 9, 30, 0, 0, time.UTC)
	id, err := c.CreateAppointment(context.Background(), Appointment{ClientName: "Ada", DateTime: when, Purpose: "checkup"})
	require.NoError(t, err)
	assert.Equal(t, 7, id)

	list, err := c.ListAppointments(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.True(t, list[0].DateTime.Equal(when))

	_, err = c.CreateAppointment(context.Background(), Appointment{})
	assert.ErrorIs(t, err, ErrInvalidAppointment)
}
