package api

import (
	"net/http"
	"time"

	"github.com/naveenvaja/ridit-webapp/internal/auth"
	"github.com/naveenvaja/ridit-webapp/internal/kv"
	"github.com/naveenvaja/ridit-webapp/internal/market"
	"github.com/naveenvaja/ridit-webapp/internal/metrics"
	"github.com/naveenvaja/ridit-webapp/internal/model"
)

// loginBurst is how many auth attempts a client may make back to back.
const loginBurst = 5

// Options configures NewRouter.
type Options struct {
	DB        kv.Store
	Service   *market.Service
	Metrics   *metrics.Metrics
	JWTSecret string
	TokenTTL  time.Duration
	// Verifier checks identity-provider tokens; nil disables those routes.
	Verifier auth.IdentityVerifier
	// LoginRatePerMinute limits register and login attempts per client IP.
	// Zero disables the limit.
	LoginRatePerMinute int
}

// NewRouter creates the API router with all endpoints registered.
func NewRouter(opts Options) http.Handler {
	mux := http.NewServeMux()

	authHandler := &AuthHandler{
		DB:        opts.DB,
		Service:   opts.Service,
		JWTSecret: opts.JWTSecret,
		TokenTTL:  opts.TokenTTL,
		Verifier:  opts.Verifier,
	}
	collectorHandler := &CollectorHandler{Service: opts.Service}
	sellerHandler := &SellerHandler{Service: opts.Service}
	adminHandler := &AdminHandler{Service: opts.Service}
	healthHandler := &HealthHandler{DB: opts.DB}

	authMW := AuthMiddleware(opts.JWTSecret, opts.DB)
	requireCollector := RequireRole(model.RoleCollector)
	requireSeller := RequireRole(model.RoleSeller)
	requireAdmin := RequireRole(model.RoleAdmin)
	limited := func(next http.Handler) http.Handler { return next }
	if opts.LoginRatePerMinute > 0 {
		limited = NewIPRateLimiter(opts.LoginRatePerMinute, loginBurst).Middleware
	}

	// Public: registration and login, rate limited per IP.
	mux.Handle("POST /api/auth/register", limited(http.HandlerFunc(authHandler.Register)))
	mux.Handle("POST /api/auth/login", limited(http.HandlerFunc(authHandler.Login)))
	mux.Handle("POST /api/auth/google-register", limited(http.HandlerFunc(authHandler.GoogleRegister)))
	mux.Handle("POST /api/auth/google-login", limited(http.HandlerFunc(authHandler.GoogleLogin)))

	// Authenticated account routes.
	mux.Handle("POST /api/auth/logout", authMW(http.HandlerFunc(authHandler.Logout)))
	mux.Handle("GET /api/auth/profile/{userId}", authMW(http.HandlerFunc(authHandler.GetProfile)))
	mux.Handle("PUT /api/auth/profile/{userId}", authMW(http.HandlerFunc(authHandler.UpdateProfile)))

	// Collector.
	mux.Handle("PUT /api/collector/location/{collectorId}", authMW(requireCollector(http.HandlerFunc(collectorHandler.SetLocation))))
	mux.Handle("GET /api/collector/location/{collectorId}", authMW(requireCollector(http.HandlerFunc(collectorHandler.GetLocation))))
	mux.Handle("GET /api/collector/items", authMW(requireCollector(http.HandlerFunc(collectorHandler.ListItems))))
	mux.Handle("POST /api/collector/items/{itemId}/accept", authMW(requireCollector(http.HandlerFunc(collectorHandler.Accept))))
	mux.Handle("GET /api/collector/my-accepted", authMW(requireCollector(http.HandlerFunc(collectorHandler.MyAccepted))))
	mux.Handle("POST /api/collector/items/{itemId}/complete", authMW(requireCollector(http.HandlerFunc(collectorHandler.Complete))))

	// Seller.
	mux.Handle("POST /api/seller/items", authMW(requireSeller(http.HandlerFunc(sellerHandler.CreateItem))))
	mux.Handle("GET /api/seller/{first}/{second}", authMW(requireSeller(http.HandlerFunc(sellerHandler.dispatchGet))))
	mux.Handle("GET /api/seller/items/{itemId}/status", authMW(requireSeller(http.HandlerFunc(sellerHandler.ItemStatus))))
	mux.Handle("PUT /api/seller/items/{itemId}/cancel", authMW(requireSeller(http.HandlerFunc(sellerHandler.CancelItem))))
	mux.Handle("DELETE /api/seller/items/{itemId}", authMW(requireSeller(http.HandlerFunc(sellerHandler.DeleteItem))))
	mux.Handle("PUT /api/seller/location/{sellerId}", authMW(requireSeller(http.HandlerFunc(sellerHandler.SetLocation))))

	// Admin.
	mux.Handle("GET /api/admin/items", authMW(requireAdmin(http.HandlerFunc(adminHandler.ListItems))))
	mux.Handle("PUT /api/admin/items/{itemId}", authMW(requireAdmin(http.HandlerFunc(adminHandler.UpdateItemWeight))))
	mux.Handle("DELETE /api/admin/items/{itemId}", authMW(requireAdmin(http.HandlerFunc(adminHandler.DeleteItem))))
	mux.Handle("GET /api/admin/subscriptions", authMW(requireAdmin(http.HandlerFunc(adminHandler.ListSubscriptions))))
	mux.Handle("POST /api/admin/subscriptions/{collectorId}", authMW(requireAdmin(http.HandlerFunc(adminHandler.ActivateSubscription))))
	mux.Handle("DELETE /api/admin/subscriptions/{collectorId}", authMW(requireAdmin(http.HandlerFunc(adminHandler.CancelSubscription))))

	// Operations.
	mux.HandleFunc("GET /health", healthHandler.Check)
	mux.Handle("GET /metrics", opts.Metrics.Handler())

	return LoggingMiddleware(opts.Metrics)(mux)
}
