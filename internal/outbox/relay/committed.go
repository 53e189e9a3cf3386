package relay

import (
	"context"

	"certtrace/internal/outbox"
	"certtrace/pkg/platform/tx"
)

// committedSource reads under a shared section so the relay never sees an
// event whose mutation may still be undone.
type committedSource struct {
	source Source
	runner tx.Runner
}

// Committed wraps source so reads wait for in-flight mutations to finish.
func Committed(source Source, runner tx.Runner) Source {
	return &committedSource{source: source, runner: runner}
}

func (c *committedSource) ListAfter(ctx context.Context, after uint64, limit int) ([]outbox.Event, error) {
	var events []outbox.Event
	err := c.runner.ReadOnly(ctx, func(ctx context.Context) error {
		var err error
		events, err = c.source.ListAfter(ctx, after, limit)
		return err
	})
	return events, err
}

func (c *committedSource) LastSequence(ctx context.Context) (uint64, error) {
	var n uint64
	err := c.runner.ReadOnly(ctx, func(ctx context.Context) error {
		var err error
		n, err = c.source.LastSequence(ctx)
		return err
	})
	return n, err
}
