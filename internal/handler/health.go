package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

// HealthChecker defines an interface for checking service health.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// HealthHandler manages health check endpoints.
type HealthHandler struct {
	db     HealthChecker
	cache  HealthChecker
	logger *slog.Logger
}

// NewHealthHandler creates a new HealthHandler.
// Pass a nil cache when Redis is not configured.
func NewHealthHandler(db, cache HealthChecker, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{
		db:     db,
		cache:  cache,
		logger: logger,
	}
}

// HealthResponse represents the health check response.
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// Healthz reports liveness. No dependency checks.
//
// GET /healthz
func (h *HealthHandler) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

// Health checks PostgreSQL and, when configured, Redis.
// It returns 503 if any configured dependency is down.
//
// GET /health
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	checks := make(map[string]string, 2)
	healthy := true

	if h.db != nil {
		checks["postgres"] = h.check(ctx, "postgres", h.db)
	} else {
		checks["postgres"] = "not configured"
	}
	if checks["postgres"] == "error" {
		healthy = false
	}

	if h.cache != nil {
		checks["redis"] = h.check(ctx, "redis", h.cache)
		if checks["redis"] == "error" {
			healthy = false
		}
	} else {
		checks["redis"] = "not configured"
	}

	if !healthy {
		writeJSON(w, http.StatusServiceUnavailable, HealthResponse{Status: "unhealthy", Checks: checks})
		return
	}

	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok", Checks: checks})
}

func (h *HealthHandler) check(ctx context.Context, name string, checker HealthChecker) string {
	if err := checker.Ping(ctx); err != nil {
		if h.logger != nil {
			h.logger.Warn("health_check_failed",
				slog.String("dependency", name),
				slog.String("error", err.Error()),
			)
		}
		return "error"
	}
	return "ok"
}
