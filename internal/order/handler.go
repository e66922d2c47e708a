package order

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"firstclub/internal/user"
)

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) Mount(r chi.Router) {
	r.Post("/api/orders", h.handleCreate)
	r.Get("/api/orders/benefits/free-delivery", h.handleFreeDelivery)
	r.Get("/api/orders/benefits/discount", h.handleDiscount)
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID   uuid.UUID       `json:"user_id"`
		Value    decimal.Decimal `json:"order_value"`
		Category string          `json:"category"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.Value.LessThanOrEqual(decimal.Zero) {
		http.Error(w, "order_value must be positive", http.StatusBadRequest)
		return
	}

	o, err := h.service.CreateOrder(r.Context(), req.UserID, req.Value, req.Category)
	if err != nil {
		h.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"id":                    o.ID,
		"user_id":               o.UserID,
		"order_value":           o.Value,
		"category":              o.Category,
		"free_delivery_applied": o.FreeDelivery,
		"discount_percentage":   o.DiscountPercent,
		"discount_amount":       o.DiscountAmount,
		"final_amount":          o.FinalAmount(),
		"placed_at":             o.PlacedAt,
	})
}

func (h *Handler) handleFreeDelivery(w http.ResponseWriter, r *http.Request) {
	userID, category, ok := h.benefitQuery(w, r)
	if !ok {
		return
	}

	eligible, err := h.service.FreeDeliveryEligible(r.Context(), userID, category)
	if err != nil {
		h.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"user_id":                    userID,
		"category":                   categoryLabel(category),
		"eligible_for_free_delivery": eligible,
	})
}

func (h *Handler) handleDiscount(w http.ResponseWriter, r *http.Request) {
	userID, category, ok := h.benefitQuery(w, r)
	if !ok {
		return
	}

	discount, err := h.service.ApplicableDiscount(r.Context(), userID, category)
	if err != nil {
		h.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"user_id":             userID,
		"category":            categoryLabel(category),
		"discount_percentage": discount,
	})
}

func (h *Handler) benefitQuery(w http.ResponseWriter, r *http.Request) (uuid.UUID, string, bool) {
	userID, err := uuid.Parse(r.URL.Query().Get("user_id"))
	if err != nil {
		http.Error(w, "invalid user_id", http.StatusBadRequest)
		return uuid.Nil, "", false
	}
	return userID, r.URL.Query().Get("category"), true
}

func categoryLabel(category string) string {
	if category == "" {
		return "all"
	}
	return category
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	if errors.Is(err, user.ErrNotFound) {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	http.Error(w, err.Error(), http.StatusInternalServerError)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
