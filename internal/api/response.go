package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/naveenvaja/ridit-webapp/internal/market"
)

// jsonResponse writes a JSON response with the given status code.
func jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			slog.Error("error encoding response", "error", err)
		}
	}
}

// jsonError writes a JSON error response.
func jsonError(w http.ResponseWriter, status int, message string) {
	jsonResponse(w, status, map[string]string{"error": message})
}

// decodeJSON decodes a JSON request body into the given target.
func decodeJSON(r *http.Request, target any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(target)
}

// serviceStatus maps a service error to its HTTP status code.
func serviceStatus(err error) int {
	switch {
	case errors.Is(err, market.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, market.ErrInvalidState), errors.Is(err, market.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, market.ErrForbidden),
		errors.Is(err, market.ErrSubscriptionInactive),
		errors.Is(err, market.ErrSubscriptionExpired),
		errors.Is(err, market.ErrTooFar):
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

// writeServiceError writes err with the status its kind maps to. Internal
// failures are logged.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status := serviceStatus(err)
	if status == http.StatusInternalServerError {
		slog.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	}
	jsonError(w, status, err.Error())
}
