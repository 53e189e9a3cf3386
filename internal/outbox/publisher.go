package outbox

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"certtrace/pkg/platform/tx"
)

// Store persists events. Append assigns the next sequence number.
type Store interface {
	Append(ctx context.Context, event *Event) error
	ListAfter(ctx context.Context, after uint64, limit int) ([]Event, error)
	LastSequence(ctx context.Context) (uint64, error)
}

// Publisher appends notifications from inside a committed mutation.
type Publisher struct {
	store Store
	clock func() time.Time
}

type Option func(*Publisher)

// WithClock overrides time.Now for deterministic tests.
func WithClock(clock func() time.Time) Option {
	return func(p *Publisher) {
		if clock != nil {
			p.clock = clock
		}
	}
}

func NewPublisher(store Store, opts ...Option) *Publisher {
	p := &Publisher{store: store, clock: time.Now}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Emit appends one event. It must run inside the mutation's exclusive
// section: emission outside one could interleave with another writer and
// break commit order.
func (p *Publisher) Emit(ctx context.Context, kind Kind, aggregate string, payload any) (Event, error) {
	if !tx.InTx(ctx) {
		return Event{}, fmt.Errorf("outbox emit outside critical section")
	}
	if !kind.IsValid() {
		return Event{}, fmt.Errorf("unknown notification kind %q", kind)
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return Event{}, fmt.Errorf("marshal %s payload: %w", kind, err)
	}
	event := Event{
		ID:         uuid.New(),
		Kind:       kind,
		Aggregate:  aggregate,
		OccurredAt: p.clock().UTC(),
		Payload:    raw,
	}
	if err := p.store.Append(ctx, &event); err != nil {
		return Event{}, fmt.Errorf("append %s: %w", kind, err)
	}
	return event, nil
}

// List returns committed events after the given sequence.
func (p *Publisher) List(ctx context.Context, after uint64, limit int) ([]Event, error) {
	return p.store.ListAfter(ctx, after, limit)
}
