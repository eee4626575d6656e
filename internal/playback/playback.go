// Package playback owns the single audio playback resource of the console.
package playback

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"log/slog"
	"sync"
)

var ErrEmptySource = errors.New("playback: empty source")

// Source is one playable resource: a recording URL or in-memory audio such
// as a synthesized voice response.
type Source struct {
	URL         string
	Data        []byte
	ContentType string
}

// Key identifies the resource for toggle semantics.
func (s Source) Key() string {
	if s.URL != "" {
		return s.URL
	}
	if len(s.Data) == 0 {
		return ""
	}
	sum := sha256.Sum256(s.Data)
	return "data:" + hex.EncodeToString(sum[:8])
}

// Handle is a started playback.
type Handle interface {
	// Stop halts playback. Calling it more than once is allowed.
	Stop() error
	// Done is closed when playback ends, naturally or through Stop.
	Done() <-chan struct{}
}

// Player starts playback on an audio device.
type Player interface {
	Play(ctx context.Context, src Source) (Handle, error)
}

// State describes the current playback, if any.
type State struct {
	Playing bool   `json:"playing"`
	Key     string `json:"key,omitempty"`
}

// Controller holds zero or one playback handle. Every play request swaps in
// a new handle; handles are never shared.
type Controller struct {
	player Player
	log    *slog.Logger

	mu      sync.Mutex
	current *active
	seq     uint64
}

type active struct {
	key    string
	handle Handle
	seq    uint64
}

func NewController(player Player, log *slog.Logger) *Controller {
	if log == nil {
		log = slog.Default()
	}
	return &Controller{player: player, log: log.With("component", "playback")}
}

// PlayOrToggle stops whatever is playing and starts src, unless src is the
// resource already playing, in which case it only stops it. It reports
// whether src is playing afterwards.
func (c *Controller) PlayOrToggle(ctx context.Context, src Source) (bool, error) {
	key := src.Key()
	if key == "" {
		return false, ErrEmptySource
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.current != nil && c.current.key == key {
		c.stopLocked()
		return false, nil
	}
	c.stopLocked()

	if c.player == nil {
		return false, errors.New("playback: no player configured")
	}
	h, err := c.player.Play(ctx, src)
	if err != nil {
		return false, err
	}
	c.seq++
	a := &active{key: key, handle: h, seq: c.seq}
	c.current = a
	go c.watch(a)
	return true, nil
}

// Stop halts any current playback.
func (c *Controller) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopLocked()
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil {
		return State{}
	}
	return State{Playing: true, Key: c.current.key}
}

func (c *Controller) stopLocked() {
	if c.current == nil {
		return
	}
	if err := c.current.handle.Stop(); err != nil {
		c.log.Warn("stop playback failed", "key", c.current.key, "err", err)
	}
	c.current = nil
}

// watch clears the handle on natural completion, unless it was already swapped out.
func (c *Controller) watch(a *active) {
	<-a.handle.Done()
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current != nil && c.current.seq == a.seq {
		c.current = nil
		c.log.Debug("playback finished", "key", a.key)
	}
}
