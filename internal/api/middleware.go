package api

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/naveenvaja/ridit-webapp/internal/auth"
	"github.com/naveenvaja/ridit-webapp/internal/kv"
	"github.com/naveenvaja/ridit-webapp/internal/market"
	"github.com/naveenvaja/ridit-webapp/internal/metrics"
	"github.com/naveenvaja/ridit-webapp/internal/model"
	"github.com/naveenvaja/ridit-webapp/internal/store"
)

type contextKey string

const claimsKey contextKey = "claims"

// AuthMiddleware validates JWT from Authorization header, rejects revoked
// tokens and adds claims to context.
func AuthMiddleware(secret string, db kv.Store) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if !strings.HasPrefix(header, "Bearer ") {
				jsonError(w, http.StatusUnauthorized, "missing or invalid authorization header")
				return
			}

			tokenStr := strings.TrimPrefix(header, "Bearer ")
			claims, err := auth.ValidateToken(secret, tokenStr)
			if err != nil {
				jsonError(w, http.StatusUnauthorized, "invalid token")
				return
			}

			revoked, err := store.IsTokenRevoked(r.Context(), db, claims.ID)
			if err != nil {
				slog.Error("checking token revocation", "error", err)
				jsonError(w, http.StatusInternalServerError, "internal error")
				return
			}
			if revoked {
				jsonError(w, http.StatusUnauthorized, "token has been revoked")
				return
			}

			ctx := context.WithValue(r.Context(), claimsKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRole returns middleware that checks the user has one of the given
// roles. Admins pass every role check.
func RequireRole(roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims := GetClaims(r.Context())
			if claims == nil {
				jsonError(w, http.StatusUnauthorized, "not authenticated")
				return
			}
			if !model.RoleAllowed(claims.Role, roles...) {
				jsonError(w, http.StatusForbidden, "insufficient permissions")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// GetClaims retrieves the JWT claims from the context.
func GetClaims(ctx context.Context) *auth.Claims {
	claims, _ := ctx.Value(claimsKey).(*auth.Claims)
	return claims
}

// actor returns the caller as the service sees it.
func actor(r *http.Request) market.Actor {
	claims := GetClaims(r.Context())
	if claims == nil {
		return market.Actor{}
	}
	return market.Actor{Key: claims.UserID, Role: claims.Role}
}

// authorizeUser resolves a user identifier from a path or query and checks
// that it names the caller, unless the caller is an admin. On failure the
// response has been written and ok is false.
func authorizeUser(w http.ResponseWriter, r *http.Request, svc *market.Service, identifier string) (user *model.User, ok bool) {
	claims := GetClaims(r.Context())
	if claims == nil {
		jsonError(w, http.StatusUnauthorized, "not authenticated")
		return nil, false
	}

	user, err := svc.ResolveUser(r.Context(), identifier)
	if err != nil {
		writeServiceError(w, r, err)
		return nil, false
	}
	if user.Key != claims.UserID && claims.Role != model.RoleAdmin {
		slog.Warn("access to another user denied", "user", claims.UserID, "target", user.Key, "path", r.URL.Path)
		jsonError(w, http.StatusForbidden, "access denied")
		return nil, false
	}
	return user, true
}

// statusRecorder wraps http.ResponseWriter to capture the status code.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// LoggingMiddleware logs HTTP requests with method, path, status, and
// duration, and records them in m by route pattern.
func LoggingMiddleware(m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)
			elapsed := time.Since(start)

			// ServeMux sets the matched pattern on r while routing.
			route := r.Pattern
			if route == "" {
				route = "unmatched"
			}
			m.HTTPRequests.WithLabelValues(r.Method, route, strconv.Itoa(rec.status)).Inc()
			m.HTTPDuration.WithLabelValues(r.Method, route).Observe(elapsed.Seconds())

			slog.Info("request", "method", r.Method, "path", r.URL.RequestURI(), "status", rec.status, "duration", elapsed.Round(time.Millisecond))
		})
	}
}
