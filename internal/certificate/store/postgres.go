package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"certtrace/internal/certificate/models"
	"certtrace/internal/platform/postgres"
	"certtrace/pkg/domain"
	"certtrace/pkg/platform/sentinel"
	txcontext "certtrace/pkg/platform/tx"
)

// Postgres stores certificates in the certificates table. The batch_id
// unique constraint makes batch uniqueness permanent.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

func (s *Postgres) Count(ctx context.Context) (uint64, error) {
	var n uint64
	if err := txcontext.Use(ctx, s.db).QueryRowContext(ctx, `SELECT COUNT(*) FROM certificates`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count certificates: %w", err)
	}
	return n, nil
}

func (s *Postgres) Create(ctx context.Context, cert *models.Certificate) error {
	q := txcontext.Use(ctx, s.db)
	var maxID uint64
	if err := q.QueryRowContext(ctx, `SELECT COALESCE(MAX(id), 0) FROM certificates`).Scan(&maxID); err != nil {
		return fmt.Errorf("read certificate sequence: %w", err)
	}
	if uint64(cert.ID) != maxID+1 {
		return sentinel.ErrConflict
	}
	_, err := q.ExecContext(ctx, `
		INSERT INTO certificates (
			id, batch_id, owner, producer_name, region, quantity, unit,
			documents_cid, metadata_cid, product_type, harvested_at, issued_at, issued_by, active
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`,
		uint64(cert.ID), cert.BatchID, cert.Owner.String(), cert.ProducerName, cert.Region,
		cert.Quantity, cert.Unit, cert.DocumentsCID, cert.MetadataCID, cert.ProductType,
		cert.HarvestedAt, cert.IssuedAt, cert.IssuedBy.String(), cert.Active,
	)
	if err != nil {
		if postgres.IsUniqueViolation(err) {
			return sentinel.ErrAlreadyUsed
		}
		return fmt.Errorf("insert certificate: %w", err)
	}
	return nil
}

func (s *Postgres) FindByID(ctx context.Context, id domain.CertificateID) (*models.Certificate, error) {
	row := txcontext.Use(ctx, s.db).QueryRowContext(ctx, `
		SELECT id, batch_id, owner, producer_name, region, quantity, unit,
			documents_cid, metadata_cid, product_type, harvested_at, issued_at, issued_by, active
		FROM certificates WHERE id = $1
	`, uint64(id))

	var (
		cert            models.Certificate
		rawID           uint64
		owner, issuedBy string
	)
	err := row.Scan(&rawID, &cert.BatchID, &owner, &cert.ProducerName, &cert.Region, &cert.Quantity,
		&cert.Unit, &cert.DocumentsCID, &cert.MetadataCID, &cert.ProductType, &cert.HarvestedAt,
		&cert.IssuedAt, &issuedBy, &cert.Active)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find certificate: %w", err)
	}
	cert.ID = domain.CertificateID(rawID)
	if cert.Owner, err = domain.ParseAddress(owner); err != nil {
		return nil, fmt.Errorf("stored owner: %w", err)
	}
	if cert.IssuedBy, err = domain.ParseAddress(issuedBy); err != nil {
		return nil, fmt.Errorf("stored issuer: %w", err)
	}
	return &cert, nil
}

func (s *Postgres) FindIDByBatch(ctx context.Context, batchID string) (domain.CertificateID, error) {
	var id uint64
	err := txcontext.Use(ctx, s.db).QueryRowContext(ctx,
		`SELECT id FROM certificates WHERE batch_id = $1`, batchID).Scan(&id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, sentinel.ErrNotFound
		}
		return 0, fmt.Errorf("find certificate by batch: %w", err)
	}
	return domain.CertificateID(id), nil
}

func (s *Postgres) ListIDsByOwner(ctx context.Context, owner domain.Address) ([]domain.CertificateID, error) {
	rows, err := txcontext.Use(ctx, s.db).QueryContext(ctx,
		`SELECT id FROM certificates WHERE owner = $1 ORDER BY id`, owner.String())
	if err != nil {
		return nil, fmt.Errorf("list certificates by owner: %w", err)
	}
	defer rows.Close()

	ids := []domain.CertificateID{}
	for rows.Next() {
		var id uint64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan certificate id: %w", err)
		}
		ids = append(ids, domain.CertificateID(id))
	}
	return ids, rows.Err()
}

func (s *Postgres) SetActive(ctx context.Context, id domain.CertificateID, active bool) error {
	res, err := txcontext.Use(ctx, s.db).ExecContext(ctx,
		`UPDATE certificates SET active = $2 WHERE id = $1`, uint64(id), active)
	if err != nil {
		return fmt.Errorf("update certificate: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update certificate: %w", err)
	}
	if n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}
