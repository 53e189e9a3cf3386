package honey

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"certtrace/pkg/platform/httputil"
	"certtrace/pkg/requestcontext"
)

type tierCounter interface {
	TierCount(ctx context.Context, tier Tier) (uint64, error)
}

// Handler serves the per-tier issuance counters.
type Handler struct {
	counter tierCounter
	logger  *slog.Logger
}

func NewHandler(counter tierCounter, logger *slog.Logger) *Handler {
	return &Handler{counter: counter, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Get("/products/honey/tiers", h.HandleTiers)
	r.Get("/products/honey/tiers/{tier}", h.HandleTier)
}

type TierCountResponse struct {
	Tier  Tier   `json:"tier"`
	Count uint64 `json:"count"`
}

func (h *Handler) HandleTier(w http.ResponseWriter, r *http.Request) {
	tier, err := ParseTier(chi.URLParam(r, "tier"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	n, err := h.counter.TierCount(r.Context(), tier)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "read tier counter failed", "error", err,
			"request_id", requestcontext.RequestID(r.Context()))
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, TierCountResponse{Tier: tier, Count: n})
}

func (h *Handler) HandleTiers(w http.ResponseWriter, r *http.Request) {
	resp := make([]TierCountResponse, 0, len(Tiers))
	for _, tier := range Tiers {
		n, err := h.counter.TierCount(r.Context(), tier)
		if err != nil {
			h.logger.ErrorContext(r.Context(), "read tier counter failed", "error", err,
				"request_id", requestcontext.RequestID(r.Context()))
			httputil.WriteError(w, err)
			return
		}
		resp = append(resp, TierCountResponse{Tier: tier, Count: n})
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}
