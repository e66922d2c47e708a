package plan

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"firstclub/internal/tier"
)

// Handler serves the read-only plan and tier catalog.
type Handler struct {
	plans Store
	tiers tier.Store
}

func NewHandler(plans Store, tiers tier.Store) *Handler {
	return &Handler{plans: plans, tiers: tiers}
}

func (h *Handler) Mount(r chi.Router) {
	r.Get("/api/plans", h.handleListPlans)
	r.Get("/api/plans/tiers", h.handleListTiers)
	r.Get("/api/plans/{planID}", h.handleGetPlan)
}

func (h *Handler) handleListPlans(w http.ResponseWriter, r *http.Request) {
	plans, err := h.plans.ListActive(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, plans)
}

func (h *Handler) handleGetPlan(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "planID"))
	if err != nil {
		http.Error(w, "invalid plan ID", http.StatusBadRequest)
		return
	}

	p, err := h.plans.FindActiveByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *Handler) handleListTiers(w http.ResponseWriter, r *http.Request) {
	tiers, err := h.tiers.ListTiers(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, tiers)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
