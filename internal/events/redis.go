package events

import (
	"context"
	"errors"
	"sync"

	"outreach-platform/pkg/logger"

	"github.com/redis/go-redis/v9"
)

// RedisBus implements Bus on Redis PUBLISH/SUBSCRIBE. Every Subscribe call
// owns one PubSub connection and one reader goroutine; closing the
// subscription closes both.
type RedisBus struct {
	client *redis.Client
}

func NewRedisBus(client *redis.Client) *RedisBus {
	return &RedisBus{client: client}
}

func (b *RedisBus) Publish(ctx context.Context, channel string, payload []byte) error {
	if channel == "" {
		return errors.New("events: empty channel")
	}
	return b.client.Publish(ctx, channel, payload).Err()
}

func (b *RedisBus) Subscribe(ctx context.Context, channel string, h Handler) (Subscription, error) {
	if channel == "" {
		return nil, errors.New("events: empty channel")
	}
	if h == nil {
		return nil, errors.New("events: nil handler")
	}

	ps := b.client.Subscribe(ctx, channel)
	// Force the SUBSCRIBE round-trip so a bad connection fails here, not
	// silently inside the reader goroutine.
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, err
	}

	sub := &redisSubscription{ps: ps}
	go func() {
		for msg := range ps.Channel() {
			h(msg.Channel, []byte(msg.Payload))
		}
		logger.From(ctx).Debug("redis subscription reader stopped", "channel", channel)
	}()
	return sub, nil
}

type redisSubscription struct {
	ps   *redis.PubSub
	once sync.Once
	err  error
}

func (s *redisSubscription) Close() error {
	s.once.Do(func() { s.err = s.ps.Close() })
	return s.err
}
