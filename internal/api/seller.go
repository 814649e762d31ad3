package api

import (
	"log/slog"
	"net/http"

	"github.com/naveenvaja/ridit-webapp/internal/market"
)

// SellerHandler handles seller endpoints.
type SellerHandler struct {
	Service *market.Service
}

type sellerLocationRequest struct {
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
	AreaName  string   `json:"area_name"`
}

// CreateItem handles POST /api/seller/items.
func (h *SellerHandler) CreateItem(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("seller_id")
	if id == "" {
		jsonError(w, http.StatusBadRequest, "seller_id is required")
		return
	}
	seller, ok := authorizeUser(w, r, h.Service, id)
	if !ok {
		return
	}

	var in market.ItemInput
	if err := decodeJSON(r, &in); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	created, err := h.Service.CreateItem(r.Context(), seller.Key, in)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusCreated, created)
}

// ListItems handles GET /api/seller/{sellerId}/items.
func (h *SellerHandler) ListItems(w http.ResponseWriter, r *http.Request) {
	seller, ok := authorizeUser(w, r, h.Service, r.PathValue("sellerId"))
	if !ok {
		return
	}

	list, err := h.Service.ListSellerItems(r.Context(), seller.Key, r.URL.Query().Get("status"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, list)
}

// ItemStatus handles GET /api/seller/items/{itemId}/status.
func (h *SellerHandler) ItemStatus(w http.ResponseWriter, r *http.Request) {
	view, err := h.Service.ItemStatus(r.Context(), r.PathValue("itemId"), actor(r))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, view)
}

// CancelItem handles PUT /api/seller/items/{itemId}/cancel.
func (h *SellerHandler) CancelItem(w http.ResponseWriter, r *http.Request) {
	itemID := r.PathValue("itemId")
	if err := h.Service.CancelItem(r.Context(), itemID, actor(r)); err != nil {
		writeServiceError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, map[string]string{"message": "Item cancelled successfully", "item_id": itemID})
}

// DeleteItem handles DELETE /api/seller/items/{itemId}.
func (h *SellerHandler) DeleteItem(w http.ResponseWriter, r *http.Request) {
	itemID := r.PathValue("itemId")
	if err := h.Service.DeleteItem(r.Context(), itemID, actor(r)); err != nil {
		writeServiceError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, map[string]string{"message": "Item deleted successfully", "item_id": itemID})
}

// SetLocation handles PUT /api/seller/location/{sellerId}.
func (h *SellerHandler) SetLocation(w http.ResponseWriter, r *http.Request) {
	seller, ok := authorizeUser(w, r, h.Service, r.PathValue("sellerId"))
	if !ok {
		return
	}

	var req sellerLocationRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Latitude == nil || req.Longitude == nil {
		jsonError(w, http.StatusBadRequest, "latitude and longitude are required")
		return
	}

	loc, err := h.Service.SetSellerLocation(r.Context(), seller.Key, *req.Latitude, *req.Longitude, req.AreaName)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	slog.Info("seller location updated", "seller", seller.Key)
	jsonResponse(w, http.StatusOK, map[string]any{
		"message":   "Location updated successfully",
		"latitude":  loc.Latitude,
		"longitude": loc.Longitude,
		"area_name": loc.AreaName,
	})
}

// GetLocation handles GET /api/seller/location/{sellerId}. Coordinates are
// null when no location was set.
func (h *SellerHandler) GetLocation(w http.ResponseWriter, r *http.Request) {
	seller, ok := authorizeUser(w, r, h.Service, r.PathValue("sellerId"))
	if !ok {
		return
	}

	loc, err := h.Service.SellerLocation(r.Context(), seller.Key)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	body := map[string]any{"latitude": nil, "longitude": nil, "area_name": ""}
	if loc != nil {
		body["latitude"] = loc.Latitude
		body["longitude"] = loc.Longitude
		body["area_name"] = loc.AreaName
	}
	jsonResponse(w, http.StatusOK, body)
}

// dispatchGet serves GET /api/seller/{a}/{b}. ServeMux rejects
// /api/seller/location/{sellerId} and /api/seller/{sellerId}/items as
// conflicting patterns, so both are routed here.
func (h *SellerHandler) dispatchGet(w http.ResponseWriter, r *http.Request) {
	first, second := r.PathValue("first"), r.PathValue("second")
	switch {
	case first == "location":
		r.SetPathValue("sellerId", second)
		h.GetLocation(w, r)
	case second == "items":
		r.SetPathValue("sellerId", first)
		h.ListItems(w, r)
	default:
		jsonError(w, http.StatusNotFound, "not found")
	}
}
