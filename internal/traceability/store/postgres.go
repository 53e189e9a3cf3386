package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"certtrace/internal/platform/postgres"
	"certtrace/internal/traceability/models"
	"certtrace/pkg/domain"
	"certtrace/pkg/platform/sentinel"
	txcontext "certtrace/pkg/platform/tx"
)

type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

func (s *Postgres) Count(ctx context.Context) (uint64, error) {
	var n uint64
	if err := txcontext.Use(ctx, s.db).QueryRowContext(ctx, `SELECT COUNT(*) FROM operations`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count operations: %w", err)
	}
	return n, nil
}

func (s *Postgres) Append(ctx context.Context, op *models.Operation) error {
	q := txcontext.Use(ctx, s.db)
	var maxID uint64
	if err := q.QueryRowContext(ctx, `SELECT COALESCE(MAX(id), 0) FROM operations`).Scan(&maxID); err != nil {
		return fmt.Errorf("read operation sequence: %w", err)
	}
	if uint64(op.ID) != maxID+1 {
		return sentinel.ErrConflict
	}
	_, err := q.ExecContext(ctx, `
		INSERT INTO operations (id, event_type, action, epc, certificate_ref, recorded_by, recorded_at, document_digest)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`,
		uint64(op.ID), op.EventType.String(), op.Action.String(), op.EPC, op.CertificateRef,
		op.RecordedBy.String(), op.RecordedAt, op.DocumentDigest[:],
	)
	if err != nil {
		if postgres.IsUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert operation: %w", err)
	}
	return nil
}

func (s *Postgres) FindByID(ctx context.Context, id domain.OperationID) (*models.Operation, error) {
	row := txcontext.Use(ctx, s.db).QueryRowContext(ctx, `
		SELECT event_type, action, epc, certificate_ref, recorded_by, recorded_at, document_digest
		FROM operations WHERE id = $1
	`, uint64(id))

	var (
		op                       models.Operation
		eventType, action, actor string
		digest                   []byte
	)
	if err := row.Scan(&eventType, &action, &op.EPC, &op.CertificateRef, &actor, &op.RecordedAt, &digest); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find operation: %w", err)
	}
	if len(digest) != domain.DigestLength {
		return nil, fmt.Errorf("operation %d: stored digest has %d bytes", id, len(digest))
	}
	recordedBy, err := domain.ParseAddress(actor)
	if err != nil {
		return nil, fmt.Errorf("operation %d: %w", id, err)
	}
	op.ID = id
	op.EventType = models.EventType(eventType)
	op.Action = models.Action(action)
	op.RecordedBy = recordedBy
	op.RecordedAt = op.RecordedAt.UTC()
	copy(op.DocumentDigest[:], digest)
	return &op, nil
}
