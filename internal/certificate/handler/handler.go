// Package handler exposes the certificate registry over HTTP.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"certtrace/internal/certificate/models"
	"certtrace/pkg/domain"
	dErrors "certtrace/pkg/domain-errors"
	"certtrace/pkg/platform/httputil"
	"certtrace/pkg/requestcontext"
)

// Service is the registry surface the handler needs.
type Service interface {
	IssueCertificate(ctx context.Context, caller domain.Address, app models.Application) (*models.Certificate, error)
	RevokeCertificate(ctx context.Context, caller domain.Address, id domain.CertificateID, reason string) error
	Transfer(ctx context.Context, caller, from, to domain.Address, id domain.CertificateID) error
	GetCertificate(ctx context.Context, id domain.CertificateID) (*models.Certificate, error)
	GetByBatch(ctx context.Context, batchID string) (domain.CertificateID, error)
	GetByProducer(ctx context.Context, producer domain.Address) ([]domain.CertificateID, error)
	IsActive(ctx context.Context, id domain.CertificateID) (bool, error)
	TotalCertificates(ctx context.Context) (uint64, error)
	GetProductPayload(ctx context.Context, id domain.CertificateID) (models.ProductPayload, error)
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts the public read endpoints.
func (h *Handler) Register(r chi.Router) {
	r.Get("/certificates/total", h.HandleTotal)
	r.Get("/certificates/batch/{batchID}", h.HandleGetByBatch)
	r.Get("/certificates/{id}", h.HandleGet)
	r.Get("/certificates/{id}/active", h.HandleIsActive)
	r.Get("/certificates/{id}/payload", h.HandlePayload)
	r.Get("/producers/{address}/certificates", h.HandleGetByProducer)
}

// RegisterAuthenticated mounts the mutating endpoints. r must authenticate
// the caller.
func (h *Handler) RegisterAuthenticated(r chi.Router) {
	r.Post("/certificates", h.HandleIssue)
	r.Post("/certificates/{id}/revoke", h.HandleRevoke)
	r.Post("/certificates/{id}/transfer", h.HandleTransfer)
}

func (h *Handler) HandleIssue(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	start := time.Now()

	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[IssueRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	cert, err := h.service.IssueCertificate(ctx, caller, req.toApplication())
	if err != nil {
		h.fail(ctx, w, "certificate issuance failed", err)
		return
	}

	h.logger.InfoContext(ctx, "certificate issued",
		"request_id", requestID,
		"certificate_id", cert.ID.String(),
		"batch_id", cert.BatchID,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	httputil.WriteJSON(w, http.StatusCreated, FromCertificate(cert))
}

func (h *Handler) HandleRevoke(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}
	id, err := domain.ParseCertificateID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.DecodeAndPrepare[RevokeRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	if err := h.service.RevokeCertificate(ctx, caller, id, req.Reason); err != nil {
		h.fail(ctx, w, "certificate revocation failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"id": uint64(id), "active": false})
}

// HandleTransfer always fails: certificates are soulbound.
func (h *Handler) HandleTransfer(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}
	id, err := domain.ParseCertificateID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.DecodeAndPrepare[TransferRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	err = h.service.Transfer(ctx, caller, caller, req.to, id)
	h.fail(ctx, w, "certificate transfer rejected", err)
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id, err := domain.ParseCertificateID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	cert, err := h.service.GetCertificate(r.Context(), id)
	if err != nil {
		h.fail(r.Context(), w, "certificate lookup failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromCertificate(cert))
}

func (h *Handler) HandleIsActive(w http.ResponseWriter, r *http.Request) {
	id, err := domain.ParseCertificateID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	active, err := h.service.IsActive(r.Context(), id)
	if err != nil {
		h.fail(r.Context(), w, "certificate lookup failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"id": uint64(id), "active": active})
}

func (h *Handler) HandlePayload(w http.ResponseWriter, r *http.Request) {
	id, err := domain.ParseCertificateID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	payload, err := h.service.GetProductPayload(r.Context(), id)
	if err != nil {
		h.fail(r.Context(), w, "product payload lookup failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"id":           uint64(id),
		"product_type": payload.ProductType(),
		"payload":      payload,
	})
}

func (h *Handler) HandleGetByBatch(w http.ResponseWriter, r *http.Request) {
	batchID := chi.URLParam(r, "batchID")
	id, err := h.service.GetByBatch(r.Context(), batchID)
	if err != nil {
		h.fail(r.Context(), w, "batch lookup failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"batch_id": batchID, "id": uint64(id)})
}

func (h *Handler) HandleGetByProducer(w http.ResponseWriter, r *http.Request) {
	producer, err := domain.ParseAddress(chi.URLParam(r, "address"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	ids, err := h.service.GetByProducer(r.Context(), producer)
	if err != nil {
		h.fail(r.Context(), w, "producer lookup failed", err)
		return
	}
	out := make([]uint64, len(ids))
	for i, id := range ids {
		out[i] = uint64(id)
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"producer":     producer,
		"certificates": out,
		"balance":      len(out),
	})
}

func (h *Handler) HandleTotal(w http.ResponseWriter, r *http.Request) {
	total, err := h.service.TotalCertificates(r.Context())
	if err != nil {
		h.fail(r.Context(), w, "certificate count failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]uint64{"total": total})
}

func requireCaller(w http.ResponseWriter, r *http.Request) (domain.Address, bool) {
	caller := requestcontext.Actor(r.Context())
	if caller.IsZero() {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return caller, false
	}
	return caller, true
}

func (h *Handler) fail(ctx context.Context, w http.ResponseWriter, msg string, err error) {
	if dErrors.CodeOf(err) == dErrors.CodeInternal {
		h.logger.ErrorContext(ctx, msg, "error", err, "request_id", requestcontext.RequestID(ctx))
	} else {
		h.logger.WarnContext(ctx, msg, "error", err, "request_id", requestcontext.RequestID(ctx))
	}
	httputil.WriteError(w, err)
}
