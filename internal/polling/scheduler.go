// Package polling keeps the session store in step with the backend by
// periodic snapshot pulls.
//
// Two timers run as a pair: the calls timer refreshes the active and incoming
// lists, and while a call is engaged the transcript timer refreshes its
// transcript at a shorter interval. Every (re)start and teardown bumps a
// generation; a result whose generation is no longer current is dropped.
// Calls fetches are also numbered in start order, so a slow fetch never
// overwrites a newer refresh or a confirmed hangup.
package polling

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"call-console/internal/calls"
	"call-console/internal/metrics"
	"call-console/internal/session"
)

const (
	DefaultCallsInterval      = 3 * time.Second
	DefaultTranscriptInterval = 2 * time.Second

	pollerCalls      = "calls"
	pollerTranscript = "transcript"
)

var (
	ErrStopped    = errors.New("polling: scheduler stopped")
	ErrNotEngaged = errors.New("polling: no engaged call")
	ErrStale      = errors.New("polling: result superseded")
)

// Backend is the subset of the remote call service the scheduler reads.
type Backend interface {
	ListActiveCalls(ctx context.Context) ([]calls.Call, error)
	ListIncomingCalls(ctx context.Context) ([]calls.Call, error)
	GetTranscript(ctx context.Context, sid string) ([]calls.TranscriptEntry, error)
}

type Config struct {
	CallsInterval      time.Duration
	TranscriptInterval time.Duration

	Logger  *slog.Logger
	Metrics *metrics.Metrics
}

type Scheduler struct {
	backend Backend
	store   *session.Store
	log     *slog.Logger
	metrics *metrics.Metrics

	callsEvery      time.Duration
	transcriptEvery time.Duration

	mu      sync.Mutex
	parent  context.Context
	cancel  context.CancelFunc
	gen     uint64
	started bool
	closed  bool

	// engaged call the transcript timer follows; empty when idle.
	engagedSID string
	engagedGen uint64

	wg sync.WaitGroup

	callsBusy      atomic.Bool
	transcriptBusy atomic.Bool
}

func NewScheduler(backend Backend, store *session.Store, cfg Config) (*Scheduler, error) {
	if backend == nil {
		return nil, errors.New("polling: backend is required")
	}
	if store == nil {
		return nil, errors.New("polling: store is required")
	}
	if cfg.CallsInterval <= 0 {
		cfg.CallsInterval = DefaultCallsInterval
	}
	if cfg.TranscriptInterval <= 0 {
		cfg.TranscriptInterval = DefaultTranscriptInterval
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Scheduler{
		backend:         backend,
		store:           store,
		log:             log.With("component", "polling"),
		metrics:         cfg.Metrics,
		callsEvery:      cfg.CallsInterval,
		transcriptEvery: cfg.TranscriptInterval,
	}, nil
}

// Start launches the timer pair and fires one immediate calls refresh.
// ctx bounds the whole scheduler lifetime.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStopped
	}
	if s.started {
		return nil
	}
	s.started = true
	s.parent = ctx
	pairCtx, gen := s.restartLocked()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.tickCalls(pairCtx, gen)
	}()
	return nil
}

// Retarget points the transcript timer at a new engaged call (empty sid for
// none) and restarts both timers as a pair. In-flight results from before the
// switch are discarded.
func (s *Scheduler) Retarget(sid string, engagedGen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.engagedSID = sid
	s.engagedGen = engagedGen
	if !s.started || s.closed {
		return
	}
	s.restartLocked()
	s.log.Debug("poll timers restarted", "engaged_call_sid", sid, "generation", s.gen)
}

// Stop tears both timers down. No result is applied after Stop returns.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.gen++
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.mu.Unlock()
	s.wg.Wait()
}

// RefreshCalls pulls both call lists now, outside the regular cadence.
func (s *Scheduler) RefreshCalls(ctx context.Context) error {
	gen, err := s.generation()
	if err != nil {
		return err
	}
	return s.pollCalls(ctx, gen)
}

// RefreshTranscript pulls the engaged call's transcript now.
func (s *Scheduler) RefreshTranscript(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrStopped
	}
	gen, sid, egen := s.gen, s.engagedSID, s.engagedGen
	s.mu.Unlock()
	if sid == "" {
		return ErrNotEngaged
	}
	return s.pollTranscript(ctx, gen, sid, egen)
}

// restartLocked cancels the running pair and starts a fresh one.
func (s *Scheduler) restartLocked() (context.Context, uint64) {
	if s.cancel != nil {
		s.cancel()
	}
	s.gen++
	ctx, cancel := context.WithCancel(s.parent)
	s.cancel = cancel
	gen := s.gen

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop(ctx, s.callsEvery, func() { s.tickCalls(ctx, gen) })
	}()

	if s.engagedSID != "" {
		sid, egen := s.engagedSID, s.engagedGen
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.loop(ctx, s.transcriptEvery, func() { s.tickTranscript(ctx, gen, sid, egen) })
		}()
	}
	return ctx, gen
}

func (s *Scheduler) generation() (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, ErrStopped
	}
	return s.gen, nil
}

func (s *Scheduler) loop(ctx context.Context, every time.Duration, tick func()) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			// Each tick runs on its own goroutine so a slow request never
			// delays the timer; overlapping ticks are skipped by the busy flags.
			s.wg.Add(1)
			go func() {
				defer s.wg.Done()
				tick()
			}()
		}
	}
}

func (s *Scheduler) tickCalls(ctx context.Context, gen uint64) {
	if !s.callsBusy.CompareAndSwap(false, true) {
		s.metrics.ObservePoll(pollerCalls, "skipped", 0)
		return
	}
	defer s.callsBusy.Store(false)
	if err := s.pollCalls(ctx, gen); err != nil && !errors.Is(err, ErrStale) {
		s.log.Warn("calls poll failed", "err", err)
	}
}

func (s *Scheduler) tickTranscript(ctx context.Context, gen uint64, sid string, egen uint64) {
	if !s.transcriptBusy.CompareAndSwap(false, true) {
		s.metrics.ObservePoll(pollerTranscript, "skipped", 0)
		return
	}
	defer s.transcriptBusy.Store(false)
	if err := s.pollTranscript(ctx, gen, sid, egen); err != nil && !errors.Is(err, ErrStale) {
		s.log.Warn("transcript poll failed", "call_sid", sid, "err", err)
	}
}

// pollCalls fetches both lists and applies whichever succeeded, but only if
// gen is still current and no fetch started later has already been applied.
// A failed half leaves that slice untouched.
func (s *Scheduler) pollCalls(ctx context.Context, gen uint64) error {
	start := time.Now()
	seq := s.store.BeginCallsFetch()
	active, activeErr := s.backend.ListActiveCalls(ctx)
	incoming, incomingErr := s.backend.ListIncomingCalls(ctx)
	err := errors.Join(activeErr, incomingErr)

	s.mu.Lock()
	if s.closed || s.gen != gen {
		s.mu.Unlock()
		s.metrics.ObserveStale(pollerCalls)
		return ErrStale
	}
	stale := false
	if activeErr == nil && !s.store.ApplyActiveCallsSnapshotAt(seq, active) {
		stale = true
	}
	if incomingErr == nil && !s.store.ApplyIncomingCallsSnapshotAt(seq, incoming) {
		stale = true
	}
	s.mu.Unlock()

	s.metrics.SetCallCounts(len(s.store.ActiveCalls()), len(s.store.IncomingCalls()))
	if stale {
		s.metrics.ObserveStale(pollerCalls)
		if err == nil {
			return ErrStale
		}
	}
	s.metrics.ObservePoll(pollerCalls, outcome(err), time.Since(start))
	return err
}

func (s *Scheduler) pollTranscript(ctx context.Context, gen uint64, sid string, egen uint64) error {
	start := time.Now()
	entries, err := s.backend.GetTranscript(ctx, sid)
	if err != nil {
		s.metrics.ObservePoll(pollerTranscript, "error", time.Since(start))
		return err
	}

	s.mu.Lock()
	applied := !s.closed && s.gen == gen && s.store.UpsertTranscript(egen, sid, entries)
	s.mu.Unlock()
	if !applied {
		s.metrics.ObserveStale(pollerTranscript)
		return ErrStale
	}
	s.metrics.ObservePoll(pollerTranscript, "ok", time.Since(start))
	return nil
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
