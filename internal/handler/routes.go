package handler

import (
	"log/slog"
	"net/http"

	"github.com/forgo/jobboard/internal/middleware"
)

// RouterConfig holds everything NewRouter wires together. Limiter and
// Idempotency are optional.
type RouterConfig struct {
	Jobs          *JobHandler
	Auth          *AuthHandler
	Subscriptions *SubscriptionHandler
	Health        *HealthHandler

	Gate        middleware.Authorizer
	Limiter     middleware.Limiter
	Idempotency *middleware.IdempotencyStore
	CORSOrigins []string
	Logger      *slog.Logger
}

// NewRouter registers every route and wraps the mux in the global chain.
// Gated routes run Auth first so rate limiting and idempotency can key by
// the authenticated user.
func NewRouter(cfg RouterConfig) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var limit []middleware.Middleware
	if cfg.Limiter != nil {
		limit = append(limit, middleware.RateLimit(cfg.Limiter, logger))
	}

	public := func(h http.HandlerFunc) http.Handler {
		return middleware.Chain(h, limit...)
	}
	gated := func(h http.HandlerFunc) http.Handler {
		chain := append([]middleware.Middleware{middleware.Auth(cfg.Gate, logger)}, limit...)
		return middleware.Chain(h, chain...)
	}
	gatedCreate := func(h http.HandlerFunc) http.Handler {
		chain := append([]middleware.Middleware{middleware.Auth(cfg.Gate, logger)}, limit...)
		if cfg.Idempotency != nil {
			chain = append(chain, middleware.Idempotency(cfg.Idempotency))
		}
		return middleware.Chain(h, chain...)
	}

	mux := http.NewServeMux()

	if cfg.Health != nil {
		mux.HandleFunc("GET /health", cfg.Health.Health)
	}

	// Auth routes
	mux.Handle("POST /auth/register", public(cfg.Auth.Register))
	mux.Handle("POST /auth/login", public(cfg.Auth.Login))
	mux.Handle("POST /auth/logout", gated(cfg.Auth.Logout))
	mux.Handle("GET /auth/me", gated(cfg.Auth.Me))

	// Job routes
	mux.Handle("GET /jobs/all", gated(cfg.Jobs.List))
	mux.Handle("GET /jobs/search", gated(cfg.Jobs.Search))
	mux.Handle("GET /jobs/{id}", gated(cfg.Jobs.Get))
	mux.Handle("POST /jobs", gatedCreate(cfg.Jobs.Create))
	mux.Handle("PUT /jobs/{id}", gated(cfg.Jobs.Update))
	mux.Handle("DELETE /jobs/{id}", gated(cfg.Jobs.Delete))

	// Subscription routes
	mux.Handle("GET /subscriptions/me", gated(cfg.Subscriptions.Get))
	mux.Handle("PUT /subscriptions/me", gated(cfg.Subscriptions.Update))

	return middleware.Chain(mux,
		middleware.RequestID,
		middleware.Logger(logger),
		middleware.Recovery(logger),
		middleware.CORS(cfg.CORSOrigins),
		middleware.Compress,
	)
}
