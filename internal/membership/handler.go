package membership

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"firstclub/internal/plan"
	"firstclub/internal/tier"
	"firstclub/internal/user"
)

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) Mount(r chi.Router) {
	r.Route("/api/memberships", func(r chi.Router) {
		r.Post("/subscribe", h.handleSubscribe)
		r.Route("/user/{userID}", func(r chi.Router) {
			r.Get("/", h.handleGet)
			r.Put("/upgrade", h.handleUpgrade)
			r.Put("/downgrade", h.handleDowngrade)
			r.Delete("/cancel", h.handleCancel)
			r.Post("/evaluate-tier", h.handleEvaluate)
			r.Get("/eligible-tier", h.handleEligible)
		})
	})
}

func (h *Handler) handleSubscribe(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID uuid.UUID `json:"user_id"`
		PlanID uuid.UUID `json:"plan_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	details, err := h.service.Subscribe(r.Context(), req.UserID, req.PlanID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, details)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	details, err := h.service.Get(r.Context(), userID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, details)
}

func (h *Handler) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	h.handleTierChange(w, r, h.service.UpgradeTier)
}

func (h *Handler) handleDowngrade(w http.ResponseWriter, r *http.Request) {
	h.handleTierChange(w, r, h.service.DowngradeTier)
}

func (h *Handler) handleTierChange(w http.ResponseWriter, r *http.Request, change func(ctx context.Context, userID uuid.UUID, level tier.Level) (*Details, error)) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	level, err := tier.ParseLevel(r.URL.Query().Get("tier"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	details, err := change(r.Context(), userID, level)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, details)
}

func (h *Handler) handleCancel(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	details, err := h.service.Cancel(r.Context(), userID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, details)
}

func (h *Handler) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	level, upgraded, err := h.service.EvaluateTier(r.Context(), userID)
	if err != nil {
		h.writeError(w, err)
		return
	}

	if upgraded {
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"success":  true,
			"message":  "Tier upgraded to " + level.String(),
			"new_tier": level.String(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": false,
		"message": "No tier upgrade available",
	})
}

func (h *Handler) handleEligible(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	level, err := h.service.EligibleTier(r.Context(), userID)
	if err != nil {
		h.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"user_id":       userID,
		"eligible_tier": level.String(),
	})
}

func (h *Handler) userID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "userID"))
	if err != nil {
		http.Error(w, "invalid user ID", http.StatusBadRequest)
		return uuid.Nil, false
	}
	return id, true
}

// writeError maps the service error taxonomy onto HTTP statuses. Conflict
// exhaustion is distinct from validation failures so clients can tell "your
// request was invalid" from "try again later".
func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, user.ErrNotFound), errors.Is(err, plan.ErrNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, ErrAlreadySubscribed):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, ErrNotActive), errors.Is(err, ErrInvalidUpgrade), errors.Is(err, ErrInvalidDowngrade):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, ErrConcurrentModification):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, ErrRateLimited):
		http.Error(w, err.Error(), http.StatusTooManyRequests)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
