// Package handler exposes the authorization registry over HTTP.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"certtrace/internal/access/models"
	"certtrace/pkg/domain"
	dErrors "certtrace/pkg/domain-errors"
	"certtrace/pkg/platform/httputil"
	"certtrace/pkg/requestcontext"
)

// Service is the registry surface the handler needs.
type Service interface {
	Grant(ctx context.Context, caller domain.Address, role models.Role, actor domain.Address) error
	Revoke(ctx context.Context, caller domain.Address, role models.Role, actor domain.Address) error
	GrantBatch(ctx context.Context, caller domain.Address, role models.Role, actors []domain.Address) (*models.BatchResult, error)
	IsAuthorized(ctx context.Context, role models.Role, actor domain.Address) bool
	Members(ctx context.Context, role models.Role) ([]models.Member, error)
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
	r.Get("/roles/{role}/members", h.HandleMembers)
	r.Get("/roles/{role}/authorized/{actor}", h.HandleIsAuthorized)
}

// RegisterAdmin mounts the mutating endpoints. r must authenticate the caller.
func (h *Handler) RegisterAdmin(r chi.Router) {
	r.Post("/admin/roles/{role}/grants", h.HandleGrant)
	r.Post("/admin/roles/{role}/grants/batch", h.HandleGrantBatch)
	r.Delete("/admin/roles/{role}/grants/{actor}", h.HandleRevoke)
}

func (h *Handler) HandleGrant(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	caller, role, ok := h.callerAndRole(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[GrantRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	if err := h.service.Grant(ctx, caller, role, req.parsed); err != nil {
		h.fail(ctx, w, "grant role failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, map[string]string{
		"role":  role.String(),
		"actor": req.parsed.String(),
	})
}

func (h *Handler) HandleGrantBatch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	caller, role, ok := h.callerAndRole(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[BatchGrantRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	result, err := h.service.GrantBatch(ctx, caller, role, req.parsed)
	if err != nil {
		h.fail(ctx, w, "batch grant failed", err)
		return
	}
	resp := BatchGrantResponse{Granted: make([]string, len(result.Granted)), Skipped: result.Skipped}
	for i, a := range result.Granted {
		resp.Granted[i] = a.String()
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

func (h *Handler) HandleRevoke(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, role, ok := h.callerAndRole(w, r)
	if !ok {
		return
	}
	actor, err := domain.ParseAddress(chi.URLParam(r, "actor"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if err := h.service.Revoke(ctx, caller, role, actor); err != nil {
		h.fail(ctx, w, "revoke role failed", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) HandleMembers(w http.ResponseWriter, r *http.Request) {
	role, err := models.ParseRole(chi.URLParam(r, "role"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	members, err := h.service.Members(r.Context(), role)
	if err != nil {
		h.fail(r.Context(), w, "list role members failed", err)
		return
	}
	resp := make([]MemberResponse, len(members))
	for i, m := range members {
		resp[i] = MemberResponse{
			Actor:     m.Actor.String(),
			GrantedBy: m.GrantedBy.String(),
			GrantedAt: m.GrantedAt.Format(time.RFC3339),
		}
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"role": role, "members": resp})
}

func (h *Handler) HandleIsAuthorized(w http.ResponseWriter, r *http.Request) {
	role, err := models.ParseRole(chi.URLParam(r, "role"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	actor, err := domain.ParseAddress(chi.URLParam(r, "actor"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"role":       role,
		"actor":      actor,
		"authorized": h.service.IsAuthorized(r.Context(), role, actor),
	})
}

func (h *Handler) callerAndRole(w http.ResponseWriter, r *http.Request) (domain.Address, models.Role, bool) {
	caller := requestcontext.Actor(r.Context())
	if caller.IsZero() {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return caller, "", false
	}
	role, err := models.ParseRole(chi.URLParam(r, "role"))
	if err != nil {
		httputil.WriteError(w, err)
		return caller, "", false
	}
	return caller, role, true
}

func (h *Handler) fail(ctx context.Context, w http.ResponseWriter, msg string, err error) {
	if dErrors.CodeOf(err) == dErrors.CodeInternal {
		h.logger.ErrorContext(ctx, msg, "error", err, "request_id", requestcontext.RequestID(ctx))
	} else {
		h.logger.WarnContext(ctx, msg, "error", err, "request_id", requestcontext.RequestID(ctx))
	}
	httputil.WriteError(w, err)
}
