// Package tx provides the single global critical section every state-mutating
// call runs inside. One mutation commits or fails completely before the next
// one starts; read-only calls share access and only see committed state.
package tx

import (
	"context"
	"database/sql"
)

// Runner executes functions inside the global critical section.
//
// RunInTx grants exclusive access. ReadOnly grants shared access. A call made
// with a context that already carries an active section joins it instead of
// acquiring again, so services may compose each other freely.
type Runner interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
	ReadOnly(ctx context.Context, fn func(ctx context.Context) error) error
}

type ctxKey struct{}

var txKey = ctxKey{}

// WithTx stores a SQL transaction in context for downstream store usage.
func WithTx(ctx context.Context, tx *sql.Tx) context.Context {
	if tx == nil {
		return ctx
	}
	return context.WithValue(ctx, txKey, tx)
}

// From extracts a SQL transaction from context if present.
func From(ctx context.Context) (*sql.Tx, bool) {
	tx, ok := ctx.Value(txKey).(*sql.Tx)
	return tx, ok
}

type sectionKey struct{}

// section records which mode the caller already holds. undo is set only by
// runners without native rollback.
type section struct {
	exclusive bool
	undo      *[]func()
}

func withSection(ctx context.Context, exclusive bool) context.Context {
	return context.WithValue(ctx, sectionKey{}, section{exclusive: exclusive})
}

func withUndoSection(ctx context.Context, undo *[]func()) context.Context {
	return context.WithValue(ctx, sectionKey{}, section{exclusive: true, undo: undo})
}

// OnRollback registers fn to run if the enclosing exclusive section fails.
// In-memory stores use it to take back their writes; under a runner with
// native rollback it does nothing.
func OnRollback(ctx context.Context, fn func()) {
	s, ok := sectionFrom(ctx)
	if !ok || !s.exclusive || s.undo == nil {
		return
	}
	*s.undo = append(*s.undo, fn)
}

func sectionFrom(ctx context.Context) (section, bool) {
	s, ok := ctx.Value(sectionKey{}).(section)
	return s, ok
}

// InTx reports whether ctx is inside an exclusive section.
func InTx(ctx context.Context) bool {
	s, ok := sectionFrom(ctx)
	return ok && s.exclusive
}
