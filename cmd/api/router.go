package main

import (
	"log/slog"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/securenotepad/notepad/internal/config"
	"github.com/securenotepad/notepad/internal/handler"
	"github.com/securenotepad/notepad/internal/metrics"
	"github.com/securenotepad/notepad/internal/middleware"
)

// routerDeps are the handlers and collaborators mounted by setupRouter.
// A nil limiter disables rate limiting.
type routerDeps struct {
	handler  *handler.Handler
	health   *handler.HealthHandler
	metrics  *handler.MetricsHandler
	auth     *handler.AuthHandler
	notes    *handler.NoteHandler
	verifier middleware.TokenVerifier
	limiter  middleware.RateLimiter
	recorder metrics.Recorder
}

// setupRouter configures the chi router with all routes and middleware.
func setupRouter(deps routerDeps, cfg *config.Config, logger *slog.Logger) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(logger, deps.recorder))
	r.Use(middleware.Recoverer(logger))
	r.Use(middleware.Security(middleware.SecurityConfig{IsDevelopment: cfg.IsDevelopment()}))
	r.Use(middleware.CORS(middleware.DefaultCORSConfig(cfg.GetCORSAllowedOrigins())))
	r.Use(middleware.MaxBodySize(cfg.MaxRequestBodySize))

	// Health and metrics (no auth required)
	r.Get("/health", deps.health.Health)
	r.Get("/healthz", deps.health.Healthz)
	r.Get("/metrics", deps.metrics.Metrics)

	authLimit := middleware.RateLimitConfig{
		Logger:            logger,
		Limiter:           deps.limiter,
		Metrics:           deps.recorder,
		Enabled:           cfg.RateLimitAuthEnabled,
		RequestsPerMinute: cfg.RateLimitAuthRPM,
		Burst:             cfg.RateLimitAuthBurst,
	}

	apiLimit := middleware.RateLimitConfig{
		Logger:            logger,
		Limiter:           deps.limiter,
		Metrics:           deps.recorder,
		Enabled:           cfg.RateLimitAPIEnabled,
		RequestsPerMinute: cfg.RateLimitAPIRPM,
		Burst:             cfg.RateLimitAPIBurst,
	}

	r.Route("/auth", func(r chi.Router) {
		r.Use(middleware.RateLimitIP(authLimit))
		r.Post("/register", deps.auth.Register)
		r.Post("/login", deps.auth.Login)
	})

	r.Route("/notes", func(r chi.Router) {
		r.Use(middleware.Auth(middleware.AuthConfig{
			Logger:   logger,
			Verifier: deps.verifier,
			Metrics:  deps.recorder,
		}))
		r.Use(middleware.RateLimitUser(apiLimit))

		r.Get("/", deps.notes.List)
		r.Post("/", deps.notes.Create)
		r.Get("/{id}", deps.notes.Get)
		r.Put("/{id}", deps.notes.Update)
		r.Delete("/{id}", deps.notes.Delete)
	})

	r.NotFound(deps.handler.NotFound)
	r.MethodNotAllowed(deps.handler.MethodNotAllowed)

	return r
}
