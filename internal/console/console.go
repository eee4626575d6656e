package console

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"call-console/internal/metrics"
	"call-console/internal/notify"
	"call-console/internal/playback"
	"call-console/internal/polling"
	"call-console/internal/session"
)

// Remote is everything the console needs from the remote call service.
type Remote interface {
	polling.Backend
	Backend
}

type Options struct {
	Remote Remote
	Player playback.Player

	CallsInterval      time.Duration
	TranscriptInterval time.Duration

	Notifier *notify.Center
	Audit    Auditor
	Metrics  *metrics.Metrics
	Logger   *slog.Logger
}

// Console wires the store, scheduler, playback and controller of one
// operator session. Close is the teardown of the whole view.
type Console struct {
	Store         *session.Store
	Scheduler     *polling.Scheduler
	Playback      *playback.Controller
	Notifications *notify.Center
	Controller    *Controller

	remote Remote
	log    *slog.Logger

	closeOnce sync.Once
	cancel    context.CancelFunc
}

func New(opts Options) (*Console, error) {
	if opts.Remote == nil {
		return nil, errors.New("console: remote is required")
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	notes := opts.Notifier
	if notes == nil {
		notes = notify.NewCenter(notify.Config{Logger: log, Metrics: opts.Metrics})
	}

	store := session.NewStore()
	sched, err := polling.NewScheduler(opts.Remote, store, polling.Config{
		CallsInterval:      opts.CallsInterval,
		TranscriptInterval: opts.TranscriptInterval,
		Logger:             log,
		Metrics:            opts.Metrics,
	})
	if err != nil {
		return nil, err
	}
	player := playback.NewController(opts.Player, log)

	ctrl, err := NewController(ControllerConfig{
		Backend:  opts.Remote,
		Store:    store,
		Poller:   sched,
		Player:   player,
		Notifier: notes,
		Audit:    opts.Audit,
		Metrics:  opts.Metrics,
		Logger:   log,
	})
	if err != nil {
		return nil, err
	}

	return &Console{
		Store:         store,
		Scheduler:     sched,
		Playback:      player,
		Notifications: notes,
		Controller:    ctrl,
		remote:        opts.Remote,
		log:           log.With("component", "console"),
	}, nil
}

// Start probes the backend once and starts polling. A failed probe is the
// one poll-path failure shown to the operator; polling starts regardless.
func (c *Console) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel

	if _, err := c.remote.ListActiveCalls(runCtx); err != nil {
		c.log.Warn("backend probe failed", "err", err)
		c.Notifications.Error(runCtx, "Error connecting to backend server")
	}
	return c.Scheduler.Start(runCtx)
}

// Close tears down both poll timers and stops playback. No poll result is
// applied after Close returns.
func (c *Console) Close() {
	c.closeOnce.Do(func() {
		c.Scheduler.Stop()
		c.Controller.Shutdown()
		if c.cancel != nil {
			c.cancel()
		}
	})
}
