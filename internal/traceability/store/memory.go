// Package store persists ledger operations.
package store

import (
	"context"
	"sync"

	"certtrace/internal/traceability/models"
	"certtrace/pkg/domain"
	"certtrace/pkg/platform/sentinel"
	"certtrace/pkg/platform/tx"
)

// InMemory is an append-only operation log. IDs are positions + 1.
type InMemory struct {
	mu  sync.RWMutex
	ops []models.Operation
}

func NewInMemory() *InMemory {
	return &InMemory{}
}

func (s *InMemory) Count(_ context.Context) (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return uint64(len(s.ops)), nil
}

func (s *InMemory) Append(ctx context.Context, op *models.Operation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if uint64(op.ID) != uint64(len(s.ops))+1 {
		return sentinel.ErrConflict
	}
	s.ops = append(s.ops, *op)
	tx.OnRollback(ctx, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.ops = s.ops[:len(s.ops)-1]
	})
	return nil
}

func (s *InMemory) FindByID(_ context.Context, id domain.OperationID) (*models.Operation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if id == 0 || uint64(id) > uint64(len(s.ops)) {
		return nil, sentinel.ErrNotFound
	}
	op := s.ops[id-1]
	return &op, nil
}
