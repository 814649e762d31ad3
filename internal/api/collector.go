package api

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/naveenvaja/ridit-webapp/internal/market"
)

// CollectorHandler handles collector endpoints.
type CollectorHandler struct {
	Service *market.Service
}

type collectorLocationRequest struct {
	Latitude       *float64 `json:"latitude"`
	Longitude      *float64 `json:"longitude"`
	SearchRadiusKm float64  `json:"search_radius_km"`
}

// SetLocation handles PUT /api/collector/location/{collectorId}.
func (h *CollectorHandler) SetLocation(w http.ResponseWriter, r *http.Request) {
	collector, ok := authorizeUser(w, r, h.Service, r.PathValue("collectorId"))
	if !ok {
		return
	}

	var req collectorLocationRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Latitude == nil || req.Longitude == nil {
		jsonError(w, http.StatusBadRequest, "latitude and longitude are required")
		return
	}

	loc, err := h.Service.SetCollectorLocation(r.Context(), collector.Key, *req.Latitude, *req.Longitude, req.SearchRadiusKm)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	slog.Info("collector location updated", "collector", collector.Key, "radius_km", loc.SearchRadiusKm)
	jsonResponse(w, http.StatusOK, map[string]any{
		"message":          "Location updated successfully",
		"latitude":         loc.Latitude,
		"longitude":        loc.Longitude,
		"search_radius_km": loc.SearchRadiusKm,
	})
}

// GetLocation handles GET /api/collector/location/{collectorId}.
func (h *CollectorHandler) GetLocation(w http.ResponseWriter, r *http.Request) {
	collector, ok := authorizeUser(w, r, h.Service, r.PathValue("collectorId"))
	if !ok {
		return
	}

	loc, err := h.Service.CollectorLocation(r.Context(), collector.Key)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	var body any = struct{}{}
	if loc != nil {
		body = loc
	}
	jsonResponse(w, http.StatusOK, map[string]any{"location": body})
}

// ListItems handles GET /api/collector/items.
func (h *CollectorHandler) ListItems(w http.ResponseWriter, r *http.Request) {
	collector, ok := h.queryCollector(w, r)
	if !ok {
		return
	}

	q := market.SearchQuery{
		CollectorID: collector,
		Category:    r.URL.Query().Get("category"),
	}
	var err error
	if q.Latitude, err = optionalFloat(r, "latitude"); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid latitude")
		return
	}
	if q.Longitude, err = optionalFloat(r, "longitude"); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid longitude")
		return
	}
	radius, err := optionalFloat(r, "radius_km")
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid radius_km")
		return
	}
	if radius != nil {
		q.RadiusKm = *radius
	}

	result, err := h.Service.FindAvailable(r.Context(), q)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, result)
}

// Accept handles POST /api/collector/items/{itemId}/accept.
func (h *CollectorHandler) Accept(w http.ResponseWriter, r *http.Request) {
	collector, ok := h.queryCollector(w, r)
	if !ok {
		return
	}

	result, err := h.Service.Accept(r.Context(), r.PathValue("itemId"), collector)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, map[string]any{
		"message": "Item accepted successfully",
		"result":  result,
	})
}

// MyAccepted handles GET /api/collector/my-accepted.
func (h *CollectorHandler) MyAccepted(w http.ResponseWriter, r *http.Request) {
	collector, ok := h.queryCollector(w, r)
	if !ok {
		return
	}

	list, err := h.Service.ListAccepted(r.Context(), collector)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, list)
}

// Complete handles POST /api/collector/items/{itemId}/complete.
func (h *CollectorHandler) Complete(w http.ResponseWriter, r *http.Request) {
	collector, ok := h.queryCollector(w, r)
	if !ok {
		return
	}

	weight, err := optionalFloat(r, "actual_weight")
	if err != nil || weight == nil {
		jsonError(w, http.StatusBadRequest, "actual_weight must be a number")
		return
	}

	result, err := h.Service.Complete(r.Context(), r.PathValue("itemId"), collector, *weight)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, map[string]any{
		"message": "Item collected successfully",
		"result":  result,
	})
}

// queryCollector authorizes the collector_id query parameter and returns
// its canonical key.
func (h *CollectorHandler) queryCollector(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := r.URL.Query().Get("collector_id")
	if id == "" {
		jsonError(w, http.StatusBadRequest, "collector_id is required")
		return "", false
	}
	collector, ok := authorizeUser(w, r, h.Service, id)
	if !ok {
		return "", false
	}
	return collector.Key, true
}

// optionalFloat parses a query parameter, returning nil when it is absent.
func optionalFloat(r *http.Request, name string) (*float64, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, err
	}
	return &v, nil
}
