// Package handler exposes the traceability ledger over HTTP.
package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"certtrace/internal/traceability/models"
	"certtrace/pkg/domain"
	dErrors "certtrace/pkg/domain-errors"
	"certtrace/pkg/platform/httputil"
	"certtrace/pkg/requestcontext"
)

type Service interface {
	RecordOperation(ctx context.Context, caller domain.Address, entry models.Entry) (*models.Operation, error)
	VerifyDigest(ctx context.Context, id domain.OperationID, candidate domain.Digest) (bool, error)
	GetOperation(ctx context.Context, id domain.OperationID) (*models.Operation, error)
	TotalOperations(ctx context.Context) (uint64, error)
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts the public read endpoints. Verification is a read.
func (h *Handler) Register(r chi.Router) {
	r.Get("/operations/total", h.HandleTotal)
	r.Get("/operations/{id}", h.HandleGet)
	r.Post("/operations/{id}/verify", h.HandleVerify)
}

// RegisterAuthenticated mounts the recording endpoint. r must authenticate
// the caller.
func (h *Handler) RegisterAuthenticated(r chi.Router) {
	r.Post("/operations", h.HandleRecord)
}

func (h *Handler) HandleRecord(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	caller := requestcontext.Actor(ctx)
	if caller.IsZero() {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return
	}
	req, ok := httputil.DecodeAndPrepare[RecordRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	op, err := h.service.RecordOperation(ctx, caller, req.entry)
	if err != nil {
		h.fail(ctx, w, "record operation failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, FromOperation(op))
}

func (h *Handler) HandleVerify(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := domain.ParseOperationID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.DecodeAndPrepare[VerifyRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	match, err := h.service.VerifyDigest(ctx, id, req.digest)
	if err != nil {
		h.fail(ctx, w, "verify digest failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"id": uint64(id), "match": match})
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id, err := domain.ParseOperationID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	op, err := h.service.GetOperation(r.Context(), id)
	if err != nil {
		h.fail(r.Context(), w, "operation lookup failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromOperation(op))
}

func (h *Handler) HandleTotal(w http.ResponseWriter, r *http.Request) {
	total, err := h.service.TotalOperations(r.Context())
	if err != nil {
		h.fail(r.Context(), w, "operation count failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]uint64{"total": total})
}

func (h *Handler) fail(ctx context.Context, w http.ResponseWriter, msg string, err error) {
	if dErrors.CodeOf(err) == dErrors.CodeInternal {
		h.logger.ErrorContext(ctx, msg, "error", err, "request_id", requestcontext.RequestID(ctx))
	} else {
		h.logger.WarnContext(ctx, msg, "error", err, "request_id", requestcontext.RequestID(ctx))
	}
	httputil.WriteError(w, err)
}
