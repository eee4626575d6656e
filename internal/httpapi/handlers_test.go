package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"call-console/internal/calls"
	"call-console/internal/console"
	"call-console/internal/metrics"
	"call-console/internal/notify"
	"call-console/internal/reporting"
	"call-console/internal/session"
	"call-console/internal/telephony"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeController struct {
	view       console.View
	answered   string
	responded  string
	number     string
	endCalled  bool
	err        error
	playing    bool
	dialogOpen bool
}

func (f *fakeController) View() console.View { return f.view }

func (f *fakeController) SetDialogOpen(open bool) {
	f.dialogOpen = open
	f.view.Form.DialogOpen = open
}

func (f *fakeController) MakeCall(ctx context.Context, number, message string) (telephony.MakeCallResult, error) {
	f.number = number
	if f.err != nil {
		return telephony.MakeCallResult{}, f.err
	}
	return telephony.MakeCallResult{CallSID: "CA1"}, nil
}

func (f *fakeController) EndActiveCall(ctx context.Context, sid string) error { return f.err }

func (f *fakeController) Answer(ctx context.Context, sid string) error {
	f.answered = sid
	return f.err
}

func (f *fakeController) Respond(ctx context.Context, text string) error {
	f.responded = text
	return f.err
}

func (f *fakeController) SpeakResponse(ctx context.Context, text, language string) error {
	return f.err
}

func (f *fakeController) End(ctx context.Context) error {
	f.endCalled = true
	return f.err
}

func (f *fakeController) PlayRecording(ctx context.Context, url string) (bool, error) {
	f.playing = !f.playing
	return f.playing, f.err
}

func newTestRouter(t *testing.T, ctrl Controller, notes *notify.Center, reg *prometheus.Registry) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	store := session.NewStore()
	store.ApplyActiveCallsSnapshot([]calls.Call{{CallSID: "O1", Status: calls.CallStatusInProgress}})
	h := Handlers{Console: ctrl, Notifications: notes, Reporting: reporting.NewService(store)}
	var g prometheus.Gatherer
	if reg != nil {
		g = reg
	}
	return NewRouter(h, slog.New(slog.NewJSONHandler(io.Discard, nil)), g)
}

func do(r http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	var rdr io.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		rdr = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, rdr)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func TestAnswer_PassesCallSID(t *testing.T) {
	ctrl := &fakeController{}
	r := newTestRouter(t, ctrl, nil, nil)

	w := do(r, http.MethodPost, "/v1/console/incoming/A123/answer", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "A123", ctrl.answered)
}

func TestMakeCall_Success(t *testing.T) {
	ctrl := &fakeController{}
	r := newTestRouter(t, ctrl, nil, nil)

	w := do(r, http.MethodPost, "/v1/console/calls", makeCallRequest{PhoneNumber: "5551234567"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "5551234567", ctrl.number)
	assert.Equal(t, "CA1", decode(t, w)["call_sid"])
}

func TestActionErrors_MapToStatus(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		method   string
		path     string
		body     any
		wantCode int
		wantMsg  string
	}{
		{
			name: "empty number", err: console.ErrEmptyNumber,
			method: http.MethodPost, path: "/v1/console/calls", body: makeCallRequest{},
			wantCode: http.StatusBadRequest, wantMsg: "Please enter a phone number",
		},
		{
			name: "not engaged", err: console.ErrNotEngaged,
			method: http.MethodPost, path: "/v1/console/engaged/respond", body: respondRequest{Message: "hi"},
			wantCode: http.StatusConflict, wantMsg: "No call is engaged",
		},
		{
			name: "backend rejected", err: &telephony.Error{Op: "end call", Kind: telephony.ErrServerRejected, Detail: "no such call"},
			method: http.MethodPost, path: "/v1/console/engaged/end",
			wantCode: http.StatusBadGateway, wantMsg: "no such call",
		},
		{
			name: "timeout", err: &telephony.Error{Op: "answer call", Kind: telephony.ErrTimeout},
			method: http.MethodPost, path: "/v1/console/incoming/A1/answer",
			wantCode: http.StatusGatewayTimeout, wantMsg: "Request to backend timed out",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newTestRouter(t, &fakeController{err: tt.err}, nil, nil)
			w := do(r, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.wantCode, w.Code)
			assert.Equal(t, tt.wantMsg, decode(t, w)["error"])
		})
	}
}

func TestRespond_InvalidJSON(t *testing.T) {
	r := newTestRouter(t, &fakeController{}, nil, nil)
	req := httptest.NewRequest(http.MethodPost, "/v1/console/engaged/respond", bytes.NewBufferString("{"))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDialogAndPlayback(t *testing.T) {
	ctrl := &fakeController{}
	r := newTestRouter(t, ctrl, nil, nil)

	w := do(r, http.MethodPost, "/v1/console/dialog", dialogRequest{Open: true})
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, ctrl.dialogOpen)
	assert.Equal(t, true, decode(t, w)["dialog_open"])

	w = do(r, http.MethodPost, "/v1/console/playback", playbackRequest{URL: "https://rec/1.mp3"})
	assert.Equal(t, true, decode(t, w)["playing"])
	w = do(r, http.MethodPost, "/v1/console/playback", playbackRequest{URL: "https://rec/1.mp3"})
	assert.Equal(t, false, decode(t, w)["playing"])
}

func TestNotifications_DrainedOnce(t *testing.T) {
	notes := notify.NewCenter(notify.Config{})
	notes.Error(context.Background(), "Error ending call: boom")
	r := newTestRouter(t, &fakeController{}, notes, nil)

	w := do(r, http.MethodGet, "/v1/console/notifications", nil)
	require.Equal(t, http.StatusOK, w.Code)
	first := decode(t, w)["notifications"].([]any)
	require.Len(t, first, 1)
	assert.Equal(t, "Error ending call: boom", first[0].(map[string]any)["message"])

	w = do(r, http.MethodGet, "/v1/console/notifications", nil)
	assert.Empty(t, decode(t, w)["notifications"])
}

func TestSummaryAndState(t *testing.T) {
	ctrl := &fakeController{view: console.View{State: console.StateIdle}}
	r := newTestRouter(t, ctrl, nil, nil)

	w := do(r, http.MethodGet, "/v1/console/summary", nil)
	require.Equal(t, http.StatusOK, w.Code)
	active := decode(t, w)["active"].(map[string]any)
	assert.Equal(t, float64(1), active["in_progress_calls"])

	w = do(r, http.MethodGet, "/v1/console/state", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "idle", decode(t, w)["state"])
}

func TestMetricsEndpoint(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	m.SetCallCounts(2, 1)
	r := newTestRouter(t, &fakeController{}, nil, reg)

	w := do(r, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "console_active_calls")
}
