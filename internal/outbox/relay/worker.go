// Package relay forwards committed outbox events to external sinks in
// sequence order. Delivery is at-least-once: the cursor advances only after a
// sink acknowledges a batch.
package relay

import (
	"context"
	"log/slog"
	"time"

	"certtrace/internal/outbox"
	"certtrace/internal/platform/metrics"
	"certtrace/pkg/platform/circuit"
)

// Source reads committed events.
type Source interface {
	ListAfter(ctx context.Context, after uint64, limit int) ([]outbox.Event, error)
	LastSequence(ctx context.Context) (uint64, error)
}

// Cursors persists the last relayed sequence per sink.
type Cursors interface {
	LoadCursor(ctx context.Context, consumer string) (uint64, error)
	SaveCursor(ctx context.Context, consumer string, sequence uint64) error
}

// Sink delivers a batch of events, all or nothing.
type Sink interface {
	Name() string
	Publish(ctx context.Context, events []outbox.Event) error
}

const (
	defaultInterval  = time.Second
	defaultBatchSize = 100
)

// Worker polls the outbox and hands new events to one sink.
type Worker struct {
	source    Source
	cursors   Cursors
	sink      Sink
	logger    *slog.Logger
	metrics   *metrics.Metrics
	breaker   *circuit.Breaker
	interval  time.Duration
	batchSize int
}

type Option func(*Worker)

func WithLogger(logger *slog.Logger) Option {
	return func(w *Worker) {
		w.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(w *Worker) {
		w.metrics = m
	}
}

func WithInterval(d time.Duration) Option {
	return func(w *Worker) {
		if d > 0 {
			w.interval = d
		}
	}
}

// WithBreaker pauses publishing to a sink that keeps failing.
func WithBreaker(b *circuit.Breaker) Option {
	return func(w *Worker) {
		w.breaker = b
	}
}

func WithBatchSize(n int) Option {
	return func(w *Worker) {
		if n > 0 {
			w.batchSize = n
		}
	}
}

func NewWorker(source Source, cursors Cursors, sink Sink, opts ...Option) *Worker {
	w := &Worker{
		source:    source,
		cursors:   cursors,
		sink:      sink,
		interval:  defaultInterval,
		batchSize: defaultBatchSize,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run relays until ctx is cancelled. Sink failures are logged and retried on
// the next tick; they never stop the worker.
func (w *Worker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		for {
			n, err := w.RelayOnce(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				w.logError(ctx, err)
				break
			}
			if n < w.batchSize {
				break
			}
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// RelayOnce forwards at most one batch and returns how many events it relayed.
func (w *Worker) RelayOnce(ctx context.Context) (int, error) {
	name := w.sink.Name()
	cursor, err := w.cursors.LoadCursor(ctx, name)
	if err != nil {
		return 0, err
	}
	events, err := w.source.ListAfter(ctx, cursor, w.batchSize)
	if err != nil {
		return 0, err
	}
	if len(events) == 0 {
		w.observeLag(ctx, cursor)
		return 0, nil
	}
	if w.breaker != nil && !w.breaker.Allow() {
		return 0, nil
	}
	if err := w.sink.Publish(ctx, events); err != nil {
		if w.metrics != nil {
			w.metrics.RelayFailures.WithLabelValues(name).Inc()
		}
		if w.breaker != nil && w.breaker.RecordFailure().Opened && w.logger != nil {
			w.logger.WarnContext(ctx, "sink circuit opened", "sink", name)
		}
		return 0, err
	}
	if w.breaker != nil && w.breaker.RecordSuccess().Closed && w.logger != nil {
		w.logger.InfoContext(ctx, "sink circuit closed", "sink", name)
	}
	last := events[len(events)-1].Sequence
	if err := w.cursors.SaveCursor(ctx, name, last); err != nil {
		return 0, err
	}
	if w.metrics != nil {
		w.metrics.RelayPublished.WithLabelValues(name).Add(float64(len(events)))
	}
	w.observeLag(ctx, last)
	if w.logger != nil {
		w.logger.DebugContext(ctx, "relayed notifications",
			"sink", name,
			"count", len(events),
			"through_sequence", last,
		)
	}
	return len(events), nil
}

func (w *Worker) observeLag(ctx context.Context, cursor uint64) {
	if w.metrics == nil {
		return
	}
	head, err := w.source.LastSequence(ctx)
	if err != nil || head < cursor {
		return
	}
	w.metrics.RelayLag.WithLabelValues(w.sink.Name()).Set(float64(head - cursor))
}

func (w *Worker) logError(ctx context.Context, err error) {
	if w.logger != nil {
		w.logger.ErrorContext(ctx, "outbox relay failed",
			"sink", w.sink.Name(),
			"error", err,
		)
	}
}
