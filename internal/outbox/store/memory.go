package store

import (
	"context"
	"sync"

	"certtrace/internal/outbox"
	"certtrace/pkg/platform/tx"
)

// InMemory keeps the notification log and relay cursors in process memory.
type InMemory struct {
	mu      sync.RWMutex
	events  []outbox.Event
	cursors map[string]uint64
}

func NewInMemory() *InMemory {
	return &InMemory{cursors: make(map[string]uint64)}
}

func (s *InMemory) Append(ctx context.Context, event *outbox.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	event.Sequence = uint64(len(s.events)) + 1
	s.events = append(s.events, *event)
	tx.OnRollback(ctx, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.events = s.events[:len(s.events)-1]
	})
	return nil
}

func (s *InMemory) ListAfter(_ context.Context, after uint64, limit int) ([]outbox.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if after >= uint64(len(s.events)) {
		return nil, nil
	}
	end := len(s.events)
	if limit > 0 && int(after)+limit < end {
		end = int(after) + limit
	}
	return append([]outbox.Event{}, s.events[after:end]...), nil
}

func (s *InMemory) LastSequence(_ context.Context) (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return uint64(len(s.events)), nil
}

func (s *InMemory) LoadCursor(_ context.Context, consumer string) (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cursors[consumer], nil
}

func (s *InMemory) SaveCursor(_ context.Context, consumer string, sequence uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sequence > s.cursors[consumer] {
		s.cursors[consumer] = sequence
	}
	return nil
}
