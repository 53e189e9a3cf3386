package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	accessservice "certtrace/internal/access/service"
	accessstore "certtrace/internal/access/store"
	certservice "certtrace/internal/certificate/service"
	certstore "certtrace/internal/certificate/store"
	"certtrace/internal/outbox"
	"certtrace/internal/outbox/relay"
	outboxstore "certtrace/internal/outbox/store"
	"certtrace/internal/platform/config"
	"certtrace/internal/platform/postgres"
	"certtrace/internal/product/honey"
	honeystore "certtrace/internal/product/honey/store"
	traceservice "certtrace/internal/traceability/service"
	tracestore "certtrace/internal/traceability/store"
	"certtrace/pkg/platform/tx"
)

// eventLog is the outbox as seen by both the publisher and the relay.
type eventLog interface {
	outbox.Store
	relay.Cursors
}

type storage struct {
	runner       tx.Runner
	roles        accessservice.Store
	certificates certservice.Store
	honey        honey.Store
	operations   traceservice.Store
	events       eventLog
	db           *sql.DB
	log          *slog.Logger
}

// openStorage selects Postgres when a database URL is configured and
// process memory otherwise.
func openStorage(ctx context.Context, cfg config.Server, log *slog.Logger) (*storage, error) {
	if !cfg.Durable() {
		log.Warn("no database configured, state is kept in memory and lost on exit")
		return &storage{
			runner:       tx.NewSerial(),
			roles:        accessstore.NewInMemory(),
			certificates: certstore.NewInMemory(),
			honey:        honeystore.NewInMemory(),
			operations:   tracestore.NewInMemory(),
			events:       outboxstore.NewInMemory(),
			log:          log,
		}, nil
	}

	db, err := postgres.Open(ctx, postgres.Config{
		URL:             cfg.Database.URL,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	})
	if err != nil {
		return nil, err
	}
	if err := postgres.Migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &storage{
		runner:       tx.NewPostgres(db, tx.DefaultLockKey),
		roles:        accessstore.NewPostgres(db),
		certificates: certstore.NewPostgres(db),
		honey:        honeystore.NewPostgres(db),
		operations:   tracestore.NewPostgres(db),
		events:       outboxstore.NewPostgres(db),
		db:           db,
		log:          log,
	}, nil
}

func (s *storage) health() []healthCheck {
	if s.db == nil {
		return nil
	}
	return []healthCheck{{name: "postgres", check: s.db.PingContext}}
}

func (s *storage) Close() {
	if s.db != nil {
		closeQuietly(s.log, "postgres", s.db.Close)
	}
}
