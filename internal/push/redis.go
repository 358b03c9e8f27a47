package push

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"call-inbox/internal/calls"

	"github.com/redis/go-redis/v9"
)

const DefaultChannel = "callinbox:calls.changed"

// RedisSubscriber forwards call.changed messages from a Redis pub/sub
// channel to a Sink, one at a time and in arrival order.
type RedisSubscriber struct {
	rdb     *redis.Client
	channel string
	sink    Sink
	log     *slog.Logger
}

func NewRedisSubscriber(rdb *redis.Client, channel string, sink Sink, log *slog.Logger) *RedisSubscriber {
	if channel == "" {
		channel = DefaultChannel
	}
	if log == nil {
		log = slog.Default()
	}
	return &RedisSubscriber{rdb: rdb, channel: channel, sink: sink, log: log}
}

// Run subscribes and blocks until ctx is done or the subscription breaks.
// Reconnecting is left to the caller.
func (s *RedisSubscriber) Run(ctx context.Context) error {
	if s.rdb == nil || s.sink == nil {
		return errors.New("push: redis subscriber not configured")
	}
	ps := s.rdb.Subscribe(ctx, s.channel)
	defer ps.Close()

	// Wait for the subscribe confirmation so publishers after this point are seen.
	if _, err := ps.Receive(ctx); err != nil {
		return fmt.Errorf("push: subscribe %s: %w", s.channel, err)
	}
	s.log.Info("push subscriber started", "transport", "redis", "channel", s.channel)

	msgs := ps.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case m, ok := <-msgs:
			if !ok {
				return errors.New("push: redis channel closed")
			}
			deliver(ctx, s.sink, s.log, []byte(m.Payload))
		}
	}
}

// Publisher sends call.changed messages to a Redis channel.
type Publisher struct {
	rdb     *redis.Client
	channel string
}

func NewPublisher(rdb *redis.Client, channel string) *Publisher {
	if channel == "" {
		channel = DefaultChannel
	}
	return &Publisher{rdb: rdb, channel: channel}
}

func (p *Publisher) Publish(ctx context.Context, c calls.Call) error {
	raw, err := Encode(c)
	if err != nil {
		return err
	}
	return p.rdb.Publish(ctx, p.channel, raw).Err()
}

// deliver decodes one frame and hands it to the sink. Bad frames and sink
// failures are logged and skipped; one bad message never stops the stream.
func deliver(ctx context.Context, sink Sink, log *slog.Logger, raw []byte) {
	c, err := Decode(raw)
	if err != nil {
		log.Warn("push message rejected", "err", err)
		return
	}
	if err := sink.Push(ctx, c); err != nil {
		log.Warn("push upsert failed", "call_id", c.ID, "err", err)
	}
}
