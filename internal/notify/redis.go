package notify

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const DefaultChannel = "console:notifications"

// Publisher is the part of *redis.Client the sink uses.
type Publisher interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

// RedisSink publishes every notification as JSON on a pub/sub channel so a
// detached rendering layer can show it.
type RedisSink struct {
	rdb     Publisher
	channel string
	timeout time.Duration
}

func NewRedisSink(rdb Publisher, channel string) (*RedisSink, error) {
	if rdb == nil {
		return nil, errors.New("notify: redis client is nil")
	}
	if channel == "" {
		channel = DefaultChannel
	}
	return &RedisSink{rdb: rdb, channel: channel, timeout: 2 * time.Second}, nil
}

func (s *RedisSink) Publish(ctx context.Context, n Notification) error {
	payload, err := json.Marshal(n)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.rdb.Publish(ctx, s.channel, payload).Err()
}
