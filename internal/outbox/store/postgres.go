package store

import (
	"context"
	"database/sql"
	"fmt"

	"certtrace/internal/outbox"
	txcontext "certtrace/pkg/platform/tx"
)

// Postgres implements the outbox on the `outbox` table. Appends join the
// caller's transaction so an event commits together with the mutation that
// produced it.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

// Append assigns MAX(sequence)+1. Writers hold the global advisory lock, so
// the read-then-insert cannot race.
func (s *Postgres) Append(ctx context.Context, event *outbox.Event) error {
	q := txcontext.Use(ctx, s.db)
	var next uint64
	if err := q.QueryRowContext(ctx, `SELECT COALESCE(MAX(sequence), 0) + 1 FROM outbox`).Scan(&next); err != nil {
		return fmt.Errorf("next outbox sequence: %w", err)
	}
	_, err := q.ExecContext(ctx, `
		INSERT INTO outbox (sequence, id, kind, aggregate, occurred_at, payload)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, next, event.ID, string(event.Kind), event.Aggregate, event.OccurredAt, []byte(event.Payload))
	if err != nil {
		return fmt.Errorf("insert outbox entry: %w", err)
	}
	event.Sequence = next
	return nil
}

func (s *Postgres) ListAfter(ctx context.Context, after uint64, limit int) ([]outbox.Event, error) {
	if limit <= 0 {
		limit = 1000
	}
	rows, err := txcontext.Use(ctx, s.db).QueryContext(ctx, `
		SELECT sequence, id, kind, aggregate, occurred_at, payload
		FROM outbox
		WHERE sequence > $1
		ORDER BY sequence
		LIMIT $2
	`, after, limit)
	if err != nil {
		return nil, fmt.Errorf("query outbox: %w", err)
	}
	defer rows.Close()

	var events []outbox.Event
	for rows.Next() {
		var (
			event   outbox.Event
			kind    string
			payload []byte
		)
		if err := rows.Scan(&event.Sequence, &event.ID, &kind, &event.Aggregate, &event.OccurredAt, &payload); err != nil {
			return nil, fmt.Errorf("scan outbox entry: %w", err)
		}
		event.Kind = outbox.Kind(kind)
		event.Payload = payload
		event.OccurredAt = event.OccurredAt.UTC()
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate outbox: %w", err)
	}
	return events, nil
}

func (s *Postgres) LastSequence(ctx context.Context) (uint64, error) {
	var last uint64
	err := txcontext.Use(ctx, s.db).QueryRowContext(ctx, `SELECT COALESCE(MAX(sequence), 0) FROM outbox`).Scan(&last)
	if err != nil {
		return 0, fmt.Errorf("last outbox sequence: %w", err)
	}
	return last, nil
}

func (s *Postgres) LoadCursor(ctx context.Context, consumer string) (uint64, error) {
	var seq uint64
	err := s.db.QueryRowContext(ctx, `SELECT sequence FROM outbox_cursors WHERE consumer = $1`, consumer).Scan(&seq)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("load relay cursor: %w", err)
	}
	return seq, nil
}

// SaveCursor never moves a cursor backwards.
func (s *Postgres) SaveCursor(ctx context.Context, consumer string, sequence uint64) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO outbox_cursors (consumer, sequence, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (consumer) DO UPDATE SET
			sequence = GREATEST(outbox_cursors.sequence, EXCLUDED.sequence),
			updated_at = NOW()
	`, consumer, sequence)
	if err != nil {
		return fmt.Errorf("save relay cursor: %w", err)
	}
	return nil
}
