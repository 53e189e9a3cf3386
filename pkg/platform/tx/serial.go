package tx

import (
	"context"
	"sync"

	dErrors "certtrace/pkg/domain-errors"
)

// Serial is the in-process Runner: one RWMutex over the whole registry and
// ledger state. A failed or panicking mutation runs the undo steps its stores
// registered, newest first.
type Serial struct {
	mu sync.RWMutex
}

// NewSerial returns a Serial runner.
func NewSerial() *Serial {
	return &Serial{}
}

func (s *Serial) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if held, ok := sectionFrom(ctx); ok {
		if !held.exclusive {
			return dErrors.New(dErrors.CodeInternal, "cannot upgrade a read-only section")
		}
		return fn(ctx)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var undo []func()
	rollback := func() {
		for i := len(undo) - 1; i >= 0; i-- {
			undo[i]()
		}
	}
	returned := false
	defer func() {
		if !returned {
			// fn panicked; undo its writes before the panic unwinds past the lock.
			rollback()
		}
	}()
	err := fn(withUndoSection(ctx, &undo))
	returned = true
	if err != nil {
		rollback()
		return err
	}
	return nil
}

func (s *Serial) ReadOnly(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := sectionFrom(ctx); ok {
		return fn(ctx)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fn(withSection(ctx, false))
}
