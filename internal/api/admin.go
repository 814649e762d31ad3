package api

import (
	"errors"
	"io"
	"net/http"

	"github.com/naveenvaja/ridit-webapp/internal/market"
)

// AdminHandler handles admin endpoints.
type AdminHandler struct {
	Service *market.Service
}

type updateItemWeightRequest struct {
	ActualWeight float64 `json:"actual_weight"`
}

type activateSubscriptionRequest struct {
	PlanType  string `json:"plan_type"`
	DaysValid int    `json:"days_valid"`
}

// ListItems handles GET /api/admin/items.
func (h *AdminHandler) ListItems(w http.ResponseWriter, r *http.Request) {
	list, err := h.Service.ListAllItems(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, list)
}

// UpdateItemWeight handles PUT /api/admin/items/{itemId}.
func (h *AdminHandler) UpdateItemWeight(w http.ResponseWriter, r *http.Request) {
	var req updateItemWeightRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	update, err := h.Service.UpdateItemWeight(r.Context(), r.PathValue("itemId"), req.ActualWeight)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, map[string]any{"message": "Item weight updated successfully", "result": update})
}

// DeleteItem handles DELETE /api/admin/items/{itemId}.
func (h *AdminHandler) DeleteItem(w http.ResponseWriter, r *http.Request) {
	if err := h.Service.DeleteItem(r.Context(), r.PathValue("itemId"), actor(r)); err != nil {
		writeServiceError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, map[string]string{"message": "Item deleted successfully"})
}

// ListSubscriptions handles GET /api/admin/subscriptions.
func (h *AdminHandler) ListSubscriptions(w http.ResponseWriter, r *http.Request) {
	subs, err := h.Service.ListSubscriptions(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, map[string]any{"subscriptions": subs, "count": len(subs)})
}

// ActivateSubscription handles POST /api/admin/subscriptions/{collectorId}.
// An empty body activates the default plan.
func (h *AdminHandler) ActivateSubscription(w http.ResponseWriter, r *http.Request) {
	var req activateSubscriptionRequest
	if err := decodeJSON(r, &req); err != nil && !errors.Is(err, io.EOF) {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	sub, err := h.Service.ActivateSubscription(r.Context(), r.PathValue("collectorId"), req.PlanType, req.DaysValid)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, map[string]any{"message": "Subscription activated", "subscription": sub})
}

// CancelSubscription handles DELETE /api/admin/subscriptions/{collectorId}.
func (h *AdminHandler) CancelSubscription(w http.ResponseWriter, r *http.Request) {
	sub, err := h.Service.CancelSubscription(r.Context(), r.PathValue("collectorId"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, map[string]any{"message": "Subscription cancelled", "subscription": sub})
}
