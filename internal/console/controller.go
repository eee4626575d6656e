// Package console drives the operator's call session: answering, responding
// to and ending the engaged inbound call, and placing outbound calls.
package console

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"call-console/internal/audit"
	"call-console/internal/calls"
	"call-console/internal/metrics"
	"call-console/internal/notify"
	"call-console/internal/playback"
	"call-console/internal/polling"
	"call-console/internal/session"
	"call-console/internal/telephony"
)

var (
	ErrEmptyNumber  = errors.New("console: phone number is empty")
	ErrEmptyMessage = errors.New("console: message is empty")
	ErrNotEngaged   = errors.New("console: no engaged call")
	ErrBusy         = errors.New("console: another action is in progress")
	ErrInvalidState = errors.New("console: invalid state for action")
	ErrUnknownCall  = errors.New("console: call_sid is required")
)

// State of the engaged-call slot.
type State string

const (
	StateIdle      State = "idle"
	StateAnswering State = "answering"
	StateEngaged   State = "engaged"
	StateEnding    State = "ending"
)

// Action names used for audit events and metrics.
const (
	ActionAnswer        = "answer"
	ActionRespond       = "respond"
	ActionEnd           = "end_engaged"
	ActionMakeCall      = "make_call"
	ActionEndActiveCall = "end_active_call"
	ActionSpeak         = "speak"
	ActionPlayback      = "playback"
)

// Backend is the subset of the remote call service the controller writes to.
type Backend interface {
	MakeCall(ctx context.Context, req telephony.MakeCallRequest) (telephony.MakeCallResult, error)
	AnswerCall(ctx context.Context, sid string) error
	EndCall(ctx context.Context, sid string) error
	Respond(ctx context.Context, sid, text string) error
	TextToSpeech(ctx context.Context, req telephony.TextToSpeechRequest) ([]byte, error)
}

// Poller is the out-of-band side of the polling scheduler.
type Poller interface {
	RefreshCalls(ctx context.Context) error
	RefreshTranscript(ctx context.Context) error
	Retarget(sid string, engagedGen uint64)
}

type Player interface {
	PlayOrToggle(ctx context.Context, src playback.Source) (bool, error)
	Stop()
	State() playback.State
}

type Auditor interface {
	LogAction(ctx context.Context, action, callSID string, outcome audit.Outcome, message string) error
}

// Form is the outbound dialog and response input state. Fields are cleared
// only after the backend confirms the action.
type Form struct {
	DialogOpen    bool   `json:"dialog_open"`
	PhoneNumber   string `json:"phone_number"`
	Message       string `json:"message"`
	ResponseDraft string `json:"response_draft"`
}

// View is a consistent read of everything the presentation layer renders.
type View struct {
	State      State            `json:"state"`
	MakingCall bool             `json:"making_call"`
	Form       Form             `json:"form"`
	Playback   playback.State   `json:"playback"`
	Active     []calls.Call     `json:"active_calls"`
	Incoming   []calls.Call     `json:"incoming_calls"`
	Engaged    *session.Engaged `json:"engaged,omitempty"`
}

type ControllerConfig struct {
	Backend  Backend
	Store    *session.Store
	Poller   Poller
	Player   Player
	Notifier *notify.Center
	Audit    Auditor
	Metrics  *metrics.Metrics
	Logger   *slog.Logger
}

type Controller struct {
	backend Backend
	store   *session.Store
	poller  Poller
	player  Player
	notes   *notify.Center
	audit   Auditor
	metrics *metrics.Metrics
	log     *slog.Logger

	mu         sync.Mutex
	state      State
	makingCall bool
	form       Form
}

func NewController(cfg ControllerConfig) (*Controller, error) {
	if cfg.Backend == nil {
		return nil, errors.New("console: backend is required")
	}
	if cfg.Store == nil {
		return nil, errors.New("console: store is required")
	}
	if cfg.Poller == nil {
		return nil, errors.New("console: poller is required")
	}
	if cfg.Player == nil {
		return nil, errors.New("console: player is required")
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	notes := cfg.Notifier
	if notes == nil {
		notes = notify.NewCenter(notify.Config{Logger: log, Metrics: cfg.Metrics})
	}
	return &Controller{
		backend: cfg.Backend,
		store:   cfg.Store,
		poller:  cfg.Poller,
		player:  cfg.Player,
		notes:   notes,
		audit:   cfg.Audit,
		metrics: cfg.Metrics,
		log:     log.With("component", "console"),
		state:   StateIdle,
	}, nil
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Controller) View() View {
	c.mu.Lock()
	v := View{State: c.state, MakingCall: c.makingCall, Form: c.form}
	c.mu.Unlock()

	snap := c.store.Snapshot()
	v.Active = snap.Active
	v.Incoming = snap.Incoming
	v.Engaged = snap.Engaged
	v.Playback = c.player.State()
	return v
}

// SetDialogOpen opens or dismisses the outbound call dialog. Field contents
// survive a dismissal.
func (c *Controller) SetDialogOpen(open bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.form.DialogOpen = open
}

// Answer accepts the incoming call sid and makes it the engaged call.
func (c *Controller) Answer(ctx context.Context, sid string) (err error) {
	start := time.Now()
	defer func() { c.metrics.ObserveAction(ActionAnswer, err, time.Since(start)) }()

	if sid == "" {
		return ErrUnknownCall
	}
	c.mu.Lock()
	switch c.state {
	case StateIdle:
	case StateEngaged:
		c.mu.Unlock()
		return ErrInvalidState
	default:
		c.mu.Unlock()
		return ErrBusy
	}
	c.state = StateAnswering
	c.mu.Unlock()

	// Resolve the call from the list the operator answered from; a poll landing
	// during the request drops it from incoming.
	call, ok := calls.Find(c.store.IncomingCalls(), sid)
	if !ok {
		call = calls.Call{CallSID: sid, Direction: calls.DirectionInbound, Status: calls.CallStatusInProgress}
	}

	if err := c.backend.AnswerCall(ctx, sid); err != nil {
		c.setState(StateIdle)
		c.fail(ctx, ActionAnswer, sid, "Error answering call: "+telephony.Message(err))
		return err
	}

	gen := c.store.Engage(call)
	c.poller.Retarget(sid, gen)
	c.setState(StateEngaged)
	c.metrics.SetEngaged(true)

	c.succeed(ctx, ActionAnswer, sid, "Call answered")
	return nil
}

// Respond sends text to the engaged caller. On failure the draft is kept for
// a retry.
func (c *Controller) Respond(ctx context.Context, text string) (err error) {
	start := time.Now()
	defer func() { c.metrics.ObserveAction(ActionRespond, err, time.Since(start)) }()

	c.mu.Lock()
	c.form.ResponseDraft = text
	msg := strings.TrimSpace(text)
	if msg == "" {
		c.mu.Unlock()
		c.reject(ctx, ActionRespond, "", ErrEmptyMessage)
		return ErrEmptyMessage
	}
	if c.state != StateEngaged {
		c.mu.Unlock()
		return ErrNotEngaged
	}
	c.mu.Unlock()

	engaged, ok := c.store.Engaged()
	if !ok {
		return ErrNotEngaged
	}
	sid := engaged.Call.CallSID

	if err := c.backend.Respond(ctx, sid, msg); err != nil {
		c.fail(ctx, ActionRespond, sid, "Error sending response: "+telephony.Message(err))
		return err
	}

	c.mu.Lock()
	if c.form.ResponseDraft == text {
		c.form.ResponseDraft = ""
	}
	c.mu.Unlock()
	c.succeed(ctx, ActionRespond, sid, "Response sent")

	if err := c.poller.RefreshTranscript(ctx); err != nil && !isBenign(err) {
		c.log.Warn("transcript refresh after respond failed", "call_sid", sid, "err", err)
	}
	return nil
}

// End hangs up the engaged call. The engaged context is torn down and
// playback stops whatever the backend answers.
func (c *Controller) End(ctx context.Context) (err error) {
	start := time.Now()
	defer func() { c.metrics.ObserveAction(ActionEnd, err, time.Since(start)) }()

	c.mu.Lock()
	switch c.state {
	case StateEngaged:
	case StateIdle:
		c.mu.Unlock()
		return ErrNotEngaged
	default:
		c.mu.Unlock()
		return ErrBusy
	}
	c.state = StateEnding
	c.mu.Unlock()

	var sid string
	if engaged, ok := c.store.Engaged(); ok {
		sid = engaged.Call.CallSID
	}

	var endErr error
	if sid != "" {
		endErr = c.backend.EndCall(ctx, sid)
	}

	c.store.Release()
	c.poller.Retarget("", c.store.Generation())
	c.player.Stop()
	c.mu.Lock()
	c.state = StateIdle
	c.form.ResponseDraft = ""
	c.mu.Unlock()
	c.metrics.SetEngaged(false)

	if endErr != nil {
		c.fail(ctx, ActionEnd, sid, "Error ending call: "+telephony.Message(endErr))
		return endErr
	}
	c.succeed(ctx, ActionEnd, sid, "Call ended")
	c.refreshCalls(ctx)
	return nil
}

// MakeCall places an outbound call. Only a backend-confirmed success closes
// the dialog and clears the fields.
func (c *Controller) MakeCall(ctx context.Context, number, message string) (result telephony.MakeCallResult, err error) {
	start := time.Now()
	defer func() { c.metrics.ObserveAction(ActionMakeCall, err, time.Since(start)) }()

	c.mu.Lock()
	c.form.PhoneNumber = number
	c.form.Message = message
	if c.makingCall {
		c.mu.Unlock()
		return telephony.MakeCallResult{}, ErrBusy
	}
	normalized := calls.NormalizeNumber(number)
	if normalized == "" {
		c.mu.Unlock()
		c.notes.Error(ctx, "Please enter a phone number")
		c.reject(ctx, ActionMakeCall, "", ErrEmptyNumber)
		return telephony.MakeCallResult{}, ErrEmptyNumber
	}
	c.makingCall = true
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.makingCall = false
		c.mu.Unlock()
	}()

	result, err = c.backend.MakeCall(ctx, telephony.MakeCallRequest{
		PhoneNumber: normalized,
		Message:     strings.TrimSpace(message),
	})
	if err != nil {
		prefix := "Error making call: "
		if errors.Is(err, telephony.ErrServerRejected) {
			prefix = "Failed to initiate call: "
		}
		c.fail(ctx, ActionMakeCall, "", prefix+telephony.Message(err))
		return telephony.MakeCallResult{}, err
	}

	c.mu.Lock()
	c.form.DialogOpen = false
	c.form.PhoneNumber = ""
	c.form.Message = ""
	c.mu.Unlock()

	c.succeed(ctx, ActionMakeCall, result.CallSID, "Call initiated successfully!")
	c.refreshCalls(ctx)
	return result, nil
}

// EndActiveCall hangs up an outbound call from the active list.
func (c *Controller) EndActiveCall(ctx context.Context, sid string) (err error) {
	start := time.Now()
	defer func() { c.metrics.ObserveAction(ActionEndActiveCall, err, time.Since(start)) }()

	if sid == "" {
		return ErrUnknownCall
	}
	if err := c.backend.EndCall(ctx, sid); err != nil {
		c.fail(ctx, ActionEndActiveCall, sid, "Error ending call: "+telephony.Message(err))
		return err
	}
	c.store.RemoveActive(sid)
	c.succeed(ctx, ActionEndActiveCall, sid, "Call ended successfully")
	c.refreshCalls(ctx)
	return nil
}

// SpeakResponse synthesizes text and plays it as the voice response to the
// engaged caller.
func (c *Controller) SpeakResponse(ctx context.Context, text, language string) (err error) {
	start := time.Now()
	defer func() { c.metrics.ObserveAction(ActionSpeak, err, time.Since(start)) }()

	msg := strings.TrimSpace(text)
	if msg == "" {
		return ErrEmptyMessage
	}
	engaged, ok := c.store.Engaged()
	if !ok || c.State() != StateEngaged {
		return ErrNotEngaged
	}
	sid := engaged.Call.CallSID

	audio, err := c.backend.TextToSpeech(ctx, telephony.TextToSpeechRequest{Text: msg, Language: language})
	if err != nil {
		c.fail(ctx, ActionSpeak, sid, "Error generating speech: "+telephony.Message(err))
		return err
	}

	// A repeated phrase must replay, not toggle off.
	c.player.Stop()
	if _, err := c.player.PlayOrToggle(ctx, playback.Source{Data: audio, ContentType: "audio/mpeg"}); err != nil {
		c.fail(ctx, ActionSpeak, sid, "Error playing audio: "+err.Error())
		return err
	}
	c.record(ctx, ActionSpeak, sid, audit.OutcomeSucceeded, "")
	return nil
}

// PlayRecording plays url, or stops it when it is already playing. It reports
// whether the recording is playing afterwards.
func (c *Controller) PlayRecording(ctx context.Context, url string) (playing bool, err error) {
	start := time.Now()
	defer func() { c.metrics.ObserveAction(ActionPlayback, err, time.Since(start)) }()

	playing, err = c.player.PlayOrToggle(ctx, playback.Source{URL: strings.TrimSpace(url)})
	if err != nil {
		if errors.Is(err, playback.ErrEmptySource) {
			return false, err
		}
		c.fail(ctx, ActionPlayback, "", "Error playing audio: "+err.Error())
		return false, err
	}
	return playing, nil
}

// Shutdown stops playback and forgets the engaged call without contacting
// the backend. Used when the console goes away.
func (c *Controller) Shutdown() {
	c.player.Stop()
	c.store.Release()
	c.mu.Lock()
	c.state = StateIdle
	c.form.ResponseDraft = ""
	c.mu.Unlock()
	c.metrics.SetEngaged(false)
}

func (c *Controller) setState(s State) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = s
}

func (c *Controller) refreshCalls(ctx context.Context) {
	if err := c.poller.RefreshCalls(ctx); err != nil && !isBenign(err) {
		c.log.Warn("calls refresh failed", "err", err)
	}
}

func (c *Controller) succeed(ctx context.Context, action, sid, msg string) {
	c.notes.Success(ctx, msg)
	c.record(ctx, action, sid, audit.OutcomeSucceeded, msg)
}

func (c *Controller) fail(ctx context.Context, action, sid, msg string) {
	c.notes.Error(ctx, msg)
	c.record(ctx, action, sid, audit.OutcomeFailed, msg)
}

func (c *Controller) reject(ctx context.Context, action, sid string, err error) {
	c.record(ctx, action, sid, audit.OutcomeRejected, err.Error())
}

func (c *Controller) record(ctx context.Context, action, sid string, outcome audit.Outcome, msg string) {
	c.log.Debug("operator action", "action", action, "call_sid", sid, "outcome", outcome)
	if c.audit == nil {
		return
	}
	if err := c.audit.LogAction(ctx, action, sid, outcome, msg); err != nil {
		c.log.Warn("audit append failed", "action", action, "err", err)
	}
}

func isBenign(err error) bool {
	return errors.Is(err, polling.ErrStale) ||
		errors.Is(err, polling.ErrStopped) ||
		errors.Is(err, polling.ErrNotEngaged)
}
