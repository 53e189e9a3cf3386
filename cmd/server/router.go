package main

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	accesshandler "certtrace/internal/access/handler"
	accessservice "certtrace/internal/access/service"
	certhandler "certtrace/internal/certificate/handler"
	certservice "certtrace/internal/certificate/service"
	jwttoken "certtrace/internal/jwt_token"
	"certtrace/internal/platform/config"
	"certtrace/internal/platform/metrics"
	"certtrace/internal/product/honey"
	tracehandler "certtrace/internal/traceability/handler"
	traceservice "certtrace/internal/traceability/service"
	"certtrace/pkg/platform/httputil"
	"certtrace/pkg/platform/middleware/auth"
	"certtrace/pkg/platform/middleware/request"
)

type healthCheck struct {
	name  string
	check func(ctx context.Context) error
}

type routerDeps struct {
	cfg          config.Server
	logger       *slog.Logger
	metrics      *metrics.Metrics
	access       *accessservice.Service
	certificates *certservice.Service
	honey        *honey.Extension
	ledger       *traceservice.Service
	revocations  auth.TokenRevocationChecker
	health       []healthCheck
}

func newRouter(d routerDeps) http.Handler {
	r := chi.NewRouter()
	r.Use(request.RequestID)
	r.Use(request.Time)
	r.Use(request.Recovery(d.logger))
	r.Use(request.Logger(d.logger, d.metrics))

	r.Get("/healthz", healthHandler(d.health))
	r.Handle("/metrics", promhttp.Handler())

	access := accesshandler.New(d.access, d.logger)
	certificates := certhandler.New(d.certificates, d.logger)
	ledger := tracehandler.New(d.ledger, d.logger)

	access.Register(r)
	certificates.Register(r)
	ledger.Register(r)
	honey.NewHandler(d.honey, d.logger).Register(r)

	jwtService := jwttoken.NewJWTService(d.cfg.JWTSigningKey, d.cfg.JWTIssuer, d.cfg.JWTAudience)
	r.Group(func(r chi.Router) {
		r.Use(auth.RequireActor(jwttoken.NewJWTServiceAdapter(jwtService), d.revocations, d.logger))
		access.RegisterAdmin(r)
		certificates.RegisterAuthenticated(r)
		ledger.RegisterAuthenticated(r)
	})
	return r
}

func healthHandler(checks []healthCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		status := http.StatusOK
		results := map[string]string{}
		for _, c := range checks {
			if err := c.check(ctx); err != nil {
				status = http.StatusServiceUnavailable
				results[c.name] = err.Error()
				continue
			}
			results[c.name] = "ok"
		}
		httputil.WriteJSON(w, status, map[string]any{
			"status": http.StatusText(status),
			"checks": results,
		})
	}
}
