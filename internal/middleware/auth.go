package middleware

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/securenotepad/notepad/internal/auth"
	"github.com/securenotepad/notepad/internal/metrics"
)

// TokenVerifier verifies a bearer token and returns its user ID.
type TokenVerifier interface {
	Verify(token string) (string, error)
}

// AuthConfig holds configuration for the auth middleware.
type AuthConfig struct {
	Logger   *slog.Logger
	Verifier TokenVerifier
	Metrics  metrics.Recorder
}

// Auth returns a middleware that authenticates requests with a bearer token.
// On success the user ID is attached to the request context.
// It never touches the store.
func Auth(cfg AuthConfig) func(http.Handler) http.Handler {
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.NewNoop()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, reason := extractBearerToken(r)
			if reason == "" {
				userID, err := cfg.Verifier.Verify(token)
				if err == nil {
					ctx := auth.ContextWithUserID(r.Context(), userID)
					next.ServeHTTP(w, r.WithContext(ctx))
					return
				}

				reason = "invalid_token"
				if errors.Is(err, auth.ErrTokenExpired) {
					reason = "expired_token"
				}
			}

			cfg.Logger.Warn("authentication failed",
				slog.String("reason", reason),
				slog.String("ip", r.RemoteAddr),
				slog.String("endpoint", r.Method+" "+r.URL.Path),
				slog.String("request_id", GetRequestID(r.Context())),
			)
			cfg.Metrics.IncAuthRejected()
			writeAuthError(w)
		})
	}
}

// extractBearerToken returns the token from "Authorization: Bearer <token>".
// The scheme is matched case-insensitively. On failure reason is non-empty.
func extractBearerToken(r *http.Request) (token, reason string) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", "missing_token"
	}

	scheme, value, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", "invalid_scheme"
	}

	value = strings.TrimSpace(value)
	if value == "" {
		return "", "missing_token"
	}

	return value, ""
}

// writeAuthError writes a 401 Unauthorized response.
// Uses the same body for all auth failures to prevent enumeration.
func writeAuthError(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", `Bearer realm="notepad"`)
	writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized")
}
