// Package notify queues transient, operator-facing notifications.
package notify

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"call-console/internal/metrics"

	"github.com/google/uuid"
)

const DefaultTTL = 6 * time.Second

type Severity string

const (
	SeverityInfo    Severity = "info"
	SeveritySuccess Severity = "success"
	SeverityError   Severity = "error"
)

// Notification is consumed once by the presentation layer and dismissed at ExpiresAt.
type Notification struct {
	ID        string    `json:"id"`
	Message   string    `json:"message"`
	Severity  Severity  `json:"severity"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Sink receives a copy of every notification, e.g. to fan out to a detached UI.
type Sink interface {
	Publish(ctx context.Context, n Notification) error
}

type Config struct {
	TTL     time.Duration
	Sinks   []Sink
	Logger  *slog.Logger
	Metrics *metrics.Metrics
}

type Center struct {
	ttl     time.Duration
	sinks   []Sink
	log     *slog.Logger
	metrics *metrics.Metrics
	clock   func() time.Time

	mu      sync.Mutex
	pending []Notification
}

func NewCenter(cfg Config) *Center {
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Center{
		ttl:     ttl,
		sinks:   cfg.Sinks,
		log:     log.With("component", "notify"),
		metrics: cfg.Metrics,
		clock:   time.Now,
	}
}

// Notify records a notification and hands it to every sink. Sink failures
// are logged and never block the queue.
func (c *Center) Notify(ctx context.Context, sev Severity, message string) Notification {
	now := c.clock().UTC()
	n := Notification{
		ID:        uuid.NewString(),
		Message:   message,
		Severity:  sev,
		CreatedAt: now,
		ExpiresAt: now.Add(c.ttl),
	}

	c.mu.Lock()
	c.pending = append(c.pending, n)
	c.mu.Unlock()

	if sev == SeverityError {
		c.log.Error("notification", "id", n.ID, "message", message)
	} else {
		c.log.Info("notification", "id", n.ID, "severity", string(sev), "message", message)
	}
	c.metrics.ObserveNotification(string(sev))

	for _, s := range c.sinks {
		if err := s.Publish(ctx, n); err != nil {
			c.log.Warn("notification sink failed", "id", n.ID, "err", err)
		}
	}
	return n
}

func (c *Center) Info(ctx context.Context, msg string) Notification {
	return c.Notify(ctx, SeverityInfo, msg)
}

func (c *Center) Success(ctx context.Context, msg string) Notification {
	return c.Notify(ctx, SeveritySuccess, msg)
}

func (c *Center) Error(ctx context.Context, msg string) Notification {
	return c.Notify(ctx, SeverityError, msg)
}

// Drain hands out every unexpired pending notification exactly once.
func (c *Center) Drain() []Notification {
	now := c.clock()
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Notification, 0, len(c.pending))
	for _, n := range c.pending {
		if now.Before(n.ExpiresAt) {
			out = append(out, n)
		}
	}
	c.pending = nil
	return out
}

// Len counts queued notifications, expired ones included.
func (c *Center) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}
