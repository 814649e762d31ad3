package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/naveenvaja/ridit-webapp/internal/kv"
)

const healthTimeout = 2 * time.Second

// HealthHandler reports whether the API and its store are reachable.
type HealthHandler struct {
	DB kv.Store
}

type healthResponse struct {
	Status         string  `json:"status"`
	Store          string  `json:"store"`
	ResponseTimeMs float64 `json:"response_time_ms"`
	Error          string  `json:"error,omitempty"`
}

// Check handles GET /health.
func (h *HealthHandler) Check(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
	defer cancel()

	start := time.Now()
	err := h.DB.Ping(ctx)
	resp := healthResponse{
		Status:         "ok",
		Store:          "connected",
		ResponseTimeMs: float64(time.Since(start).Microseconds()) / 1000,
	}
	if err != nil {
		slog.Error("store health check failed", "error", err)
		resp.Status = "degraded"
		resp.Store = "unreachable"
		resp.Error = err.Error()
		jsonResponse(w, http.StatusServiceUnavailable, resp)
		return
	}
	jsonResponse(w, http.StatusOK, resp)
}
