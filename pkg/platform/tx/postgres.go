package tx

import (
	"context"
	"database/sql"
	"fmt"
)

// DefaultLockKey is the advisory lock key serializing all mutations.
const DefaultLockKey int64 = 0x63657274

// Postgres is the durable Runner. Mutations run in a SQL transaction holding
// a transaction-scoped advisory lock, so every writer across every process is
// totally ordered. Reads run in a read-only repeatable-read transaction.
type Postgres struct {
	db      *sql.DB
	lockKey int64
}

// NewPostgres builds a Postgres runner. A zero lock key uses DefaultLockKey.
func NewPostgres(db *sql.DB, lockKey int64) *Postgres {
	if lockKey == 0 {
		lockKey = DefaultLockKey
	}
	return &Postgres{db: db, lockKey: lockKey}
}

func (p *Postgres) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if held, ok := sectionFrom(ctx); ok {
		if !held.exclusive {
			return fmt.Errorf("cannot upgrade a read-only section")
		}
		return fn(ctx)
	}
	sqlTx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if _, err := sqlTx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, p.lockKey); err != nil {
		_ = sqlTx.Rollback()
		return fmt.Errorf("acquire serialization lock: %w", err)
	}
	// Rollback after Commit is a no-op, so this only matters when fn panics.
	defer func() { _ = sqlTx.Rollback() }()
	if err := fn(withSection(WithTx(ctx, sqlTx), true)); err != nil {
		_ = sqlTx.Rollback()
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func (p *Postgres) ReadOnly(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := sectionFrom(ctx); ok {
		return fn(ctx)
	}
	sqlTx, err := p.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true})
	if err != nil {
		return fmt.Errorf("begin read tx: %w", err)
	}
	defer func() { _ = sqlTx.Rollback() }()
	return fn(withSection(WithTx(ctx, sqlTx), false))
}

// Querier is the subset of *sql.DB and *sql.Tx stores need.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Use returns the transaction carried by ctx, falling back to db.
func Use(ctx context.Context, db *sql.DB) Querier {
	if sqlTx, ok := From(ctx); ok {
		return sqlTx
	}
	return db
}
