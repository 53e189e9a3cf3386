// Package redis relays notifications to a Redis stream for lightweight
// subscribers that do not run a Kafka consumer.
package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"certtrace/internal/outbox"
)

// Sink appends events to one stream with XADD, pipelined per batch.
type Sink struct {
	client redis.Cmdable
	stream string
	maxLen int64
}

type Option func(*Sink)

// WithMaxLen caps the stream length (approximate trimming). Zero disables trimming.
func WithMaxLen(n int64) Option {
	return func(s *Sink) {
		s.maxLen = n
	}
}

func New(client redis.Cmdable, stream string, opts ...Option) *Sink {
	s := &Sink{client: client, stream: stream}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Sink) Name() string {
	return "redis:" + s.stream
}

func (s *Sink) Publish(ctx context.Context, events []outbox.Event) error {
	pipe := s.client.Pipeline()
	for _, e := range events {
		pipe.XAdd(ctx, s.args(e))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("xadd notifications: %w", err)
	}
	return nil
}

func (s *Sink) args(e outbox.Event) *redis.XAddArgs {
	args := &redis.XAddArgs{
		Stream: s.stream,
		Values: map[string]any{
			"event_id":    e.ID.String(),
			"sequence":    strconv.FormatUint(e.Sequence, 10),
			"kind":        string(e.Kind),
			"aggregate":   e.Aggregate,
			"occurred_at": e.OccurredAt.Format(time.RFC3339Nano),
			"payload":     string(e.Payload),
		},
	}
	if s.maxLen > 0 {
		args.MaxLen = s.maxLen
		args.Approx = true
	}
	return args
}
