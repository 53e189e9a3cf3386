package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"certtrace/internal/platform/postgres"
	"certtrace/internal/product/honey"
	"certtrace/pkg/domain"
	"certtrace/pkg/platform/sentinel"
	txcontext "certtrace/pkg/platform/tx"
)

// Postgres keeps payloads as JSONB next to the certificate they describe.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

func (s *Postgres) Save(ctx context.Context, id domain.CertificateID, payload honey.Payload) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode honey payload: %w", err)
	}
	_, err = txcontext.Use(ctx, s.db).ExecContext(ctx, `
		INSERT INTO honey_payloads (certificate_id, tier, payload) VALUES ($1, $2, $3)
	`, uint64(id), payload.Tier.String(), raw)
	if err != nil {
		if postgres.IsUniqueViolation(err) {
			return sentinel.ErrAlreadyUsed
		}
		return fmt.Errorf("insert honey payload: %w", err)
	}
	return nil
}

func (s *Postgres) Find(ctx context.Context, id domain.CertificateID) (*honey.Payload, error) {
	var raw []byte
	err := txcontext.Use(ctx, s.db).QueryRowContext(ctx,
		`SELECT payload FROM honey_payloads WHERE certificate_id = $1`, uint64(id)).Scan(&raw)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find honey payload: %w", err)
	}
	var p honey.Payload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("decode honey payload: %w", err)
	}
	return &p, nil
}

func (s *Postgres) IncrementTier(ctx context.Context, tier honey.Tier) error {
	_, err := txcontext.Use(ctx, s.db).ExecContext(ctx, `
		INSERT INTO honey_tier_counters (tier, count) VALUES ($1, 1)
		ON CONFLICT (tier) DO UPDATE SET count = honey_tier_counters.count + 1
	`, tier.String())
	if err != nil {
		return fmt.Errorf("increment tier counter: %w", err)
	}
	return nil
}

func (s *Postgres) TierCount(ctx context.Context, tier honey.Tier) (uint64, error) {
	var n uint64
	err := txcontext.Use(ctx, s.db).QueryRowContext(ctx,
		`SELECT count FROM honey_tier_counters WHERE tier = $1`, tier.String()).Scan(&n)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("read tier counter: %w", err)
	}
	return n, nil
}
