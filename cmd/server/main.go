package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	accessservice "certtrace/internal/access/service"
	certservice "certtrace/internal/certificate/service"
	"certtrace/internal/outbox"
	"certtrace/internal/outbox/relay"
	"certtrace/internal/platform/config"
	"certtrace/internal/platform/httpserver"
	"certtrace/internal/platform/logger"
	"certtrace/internal/platform/metrics"
	"certtrace/internal/product/honey"
	traceservice "certtrace/internal/traceability/service"
	"certtrace/pkg/platform/circuit"
)

// main wires the registry, ledger and relay workers and runs them until
// SIGINT or SIGTERM.
func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "certtrace:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	log := logger.New(cfg.Log.Level, cfg.Log.Format)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New(prometheus.DefaultRegisterer)

	st, err := openStorage(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer st.Close()

	ext, err := openExternal(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer ext.Close()

	publisher := outbox.NewPublisher(st.events)
	access, err := accessservice.New(cfg.AdminAddress(), st.roles, st.runner, publisher,
		accessservice.WithLogger(log),
		accessservice.WithMetrics(m),
	)
	if err != nil {
		return err
	}
	honeyExt := honey.NewExtension(st.honey, st.runner)
	certificates := certservice.New(st.certificates, honeyExt, access, st.runner, publisher,
		certservice.WithLogger(log),
		certservice.WithMetrics(m),
	)
	ledger := traceservice.New(st.operations, access, st.runner, publisher,
		traceservice.WithLogger(log),
		traceservice.WithMetrics(m),
	)

	router := newRouter(routerDeps{
		cfg:          cfg,
		logger:       log,
		metrics:      m,
		access:       access,
		certificates: certificates,
		honey:        honeyExt,
		ledger:       ledger,
		revocations:  ext.revocations(),
		health:       append(st.health(), ext.health()...),
	})
	// Requests outlive the signal until Shutdown has drained them.
	base, cancelBase := context.WithCancel(context.WithoutCancel(ctx))
	defer cancelBase()
	srv := httpserver.New(base, cfg.Addr, router, log)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting certtrace",
			"addr", cfg.Addr,
			"durable", cfg.Durable(),
			"admin", cfg.AdminAddress().String(),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		log.Info("shutting down")
		defer cancelBase()
		return srv.Shutdown(shutdownCtx)
	})

	source := relay.Committed(st.events, st.runner)
	for _, sink := range ext.sinks {
		worker := relay.NewWorker(source, st.events, sink,
			relay.WithLogger(log),
			relay.WithMetrics(m),
			relay.WithInterval(cfg.Relay.Interval),
			relay.WithBatchSize(cfg.Relay.BatchSize),
			relay.WithBreaker(circuit.New(sink.Name())),
		)
		g.Go(func() error {
			log.Info("relaying notifications", "sink", sink.Name())
			if err := worker.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("relay %s: %w", sink.Name(), err)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		log.Error("certtrace stopped", "error", err)
		return err
	}
	return nil
}

func closeQuietly(log *slog.Logger, name string, close func() error) {
	if err := close(); err != nil {
		log.Warn("close failed", "resource", name, "error", err)
	}
}
