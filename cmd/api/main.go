// Package main is the entrypoint for the Notepad API server.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"os/signal"
	"regexp"
	"strings"
	"syscall"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/securenotepad/notepad/internal/auth"
	"github.com/securenotepad/notepad/internal/cache"
	"github.com/securenotepad/notepad/internal/config"
	"github.com/securenotepad/notepad/internal/handler"
	"github.com/securenotepad/notepad/internal/metrics"
	"github.com/securenotepad/notepad/internal/middleware"
	"github.com/securenotepad/notepad/internal/repository"
	"github.com/securenotepad/notepad/internal/server"
	"github.com/securenotepad/notepad/internal/service"
)

const cacheConnectTimeout = 5 * time.Second

func main() {
	cmd := &cli.Command{
		Name:   "notepad",
		Usage:  "Note-taking JSON API with bearer token authentication",
		Action: serve,
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Run the HTTP API (default)",
				Action: serve,
			},
			{
				Name:   "migrate",
				Usage:  "Apply database migrations and exit",
				Action: migrate,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "database-url",
						Usage:    "PostgreSQL connection string",
						Sources:  cli.EnvVars("DATABASE_URL"),
						Required: true,
					},
				},
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func serve(ctx context.Context, _ *cli.Command) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger := initLogger(cfg)

	if cfg.AutoMigrate {
		if err := repository.Migrate(ctx, cfg.DatabaseURL); err != nil {
			return fmt.Errorf("migrate: %s", sanitizeError(err, cfg.DatabaseURL))
		}
		logger.Info("database migrated")
	}

	repo, err := repository.New(ctx, cfg.DatabaseURL, repository.PoolConfig{
		MaxConns: int32(cfg.DBMaxConns),
		MinConns: int32(cfg.DBMinConns),
	})
	if err != nil {
		logger.Error(
			"failed to connect to database",
			slog.String("error", sanitizeError(err, cfg.DatabaseURL)),
			slog.String("database_url", redactURL(cfg.DatabaseURL)),
		)
		return fmt.Errorf("connect to database: %s", sanitizeError(err, cfg.DatabaseURL))
	}
	logger.Info("connected to database", slog.String("database_url", redactURL(cfg.DatabaseURL)))

	// Redis is optional; without it rate limiting is off and /health reports it as not configured.
	var (
		limiter      middleware.RateLimiter
		cacheChecker handler.HealthChecker
	)
	cacheClient := connectCache(ctx, cfg, logger)
	if cacheClient != nil {
		limiter = cacheClient
		cacheChecker = cacheClient
	}

	recorder := metrics.NewInMemory()

	tokens, err := auth.NewTokenService(cfg.JWTSecret, cfg.TokenTTL)
	if err != nil {
		repo.Close()
		return err
	}

	identity, err := service.NewIdentityService(repo, auth.NewPasswordHasher(cfg.BcryptCost), tokens, recorder)
	if err != nil {
		repo.Close()
		return err
	}
	notes := service.NewNoteService(repo, recorder)

	r := setupRouter(routerDeps{
		handler:  handler.New(),
		health:   handler.NewHealthHandler(repo, cacheChecker, logger),
		metrics:  handler.NewMetricsHandler(recorder),
		auth:     handler.NewAuthHandler(identity, logger),
		notes:    handler.NewNoteHandler(notes, logger),
		verifier: tokens,
		limiter:  limiter,
		recorder: recorder,
	}, cfg, logger)

	srv := server.New(r, server.Options{
		Port:            cfg.AppPort,
		ReadTimeout:     cfg.ReadTimeout,
		WriteTimeout:    cfg.WriteTimeout,
		ShutdownTimeout: cfg.ShutdownTimeout,
	}, logger)

	srv.OnShutdown("postgres", func(ctx context.Context) error {
		repo.Close()
		return nil
	})
	if cacheClient != nil {
		srv.OnShutdown("redis", func(ctx context.Context) error {
			return cacheClient.Close()
		})
	}

	logger.Info("starting server",
		"port", cfg.AppPort,
		"env", cfg.AppEnv,
		"token_ttl", cfg.TokenTTL.String(),
		"rate_limiting", limiter != nil,
	)

	if err := srv.Run(ctx); err != nil {
		return fmt.Errorf("server: %w", err)
	}
	return nil
}

// connectCache returns nil when Redis is not configured or cannot be reached.
// The server keeps running without rate limiting in both cases.
func connectCache(ctx context.Context, cfg *config.Config, logger *slog.Logger) *cache.Cache {
	if !cfg.RateLimitingAvailable() {
		logger.Warn("REDIS_URL not set, rate limiting disabled")
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, cacheConnectTimeout)
	defer cancel()

	opts := cache.DefaultOptions()
	opts.KeyPrefix = cfg.RedisKeyPrefix
	c, err := cache.New(ctx, cfg.RedisURL, opts)
	if err != nil {
		logger.Warn(
			"failed to connect to Redis, rate limiting disabled",
			slog.String("error", sanitizeError(err, cfg.RedisURL)),
			slog.String("redis_url", redactURL(cfg.RedisURL)),
		)
		return nil
	}

	logger.Info("connected to Redis", slog.String("redis_url", redactURL(cfg.RedisURL)))
	return c
}

func migrate(ctx context.Context, cmd *cli.Command) error {
	databaseURL := cmd.String("database-url")

	if err := repository.Migrate(ctx, databaseURL); err != nil {
		return fmt.Errorf("migrate: %s", sanitizeError(err, databaseURL))
	}

	version, err := repository.MigrationVersion(ctx, databaseURL)
	if err != nil {
		return fmt.Errorf("read migration version: %s", sanitizeError(err, databaseURL))
	}

	slog.Info("migrations applied",
		slog.Int64("version", version),
		slog.String("database_url", redactURL(databaseURL)),
	)
	return nil
}

// initLogger initializes the slog logger based on configuration.
func initLogger(cfg *config.Config) *slog.Logger {
	var h slog.Handler

	opts := &slog.HandlerOptions{
		Level: parseLogLevel(cfg.LogLevel),
	}

	if cfg.LogFormat == "json" {
		h = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		h = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(h)
	slog.SetDefault(logger)

	return logger
}

// parseLogLevel converts string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

var passwordPattern = regexp.MustCompile(`(?i)password=[^\s]+`)

func redactURL(raw string) string {
	if raw == "" {
		return ""
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return "[redacted]"
	}

	if parsed.User != nil {
		username := parsed.User.Username()
		if username == "" {
			parsed.User = url.User("redacted")
		} else {
			parsed.User = url.User(username)
		}
	}

	query := parsed.Query()
	if query.Has("password") {
		query.Set("password", "redacted")
		parsed.RawQuery = query.Encode()
	}

	return parsed.String()
}

func sanitizeError(err error, secrets ...string) string {
	if err == nil {
		return ""
	}

	msg := err.Error()
	for _, secret := range secrets {
		if secret == "" {
			continue
		}
		redacted := redactURL(secret)
		if redacted == "" {
			redacted = "[redacted]"
		}
		msg = strings.ReplaceAll(msg, secret, redacted)
	}

	return passwordPattern.ReplaceAllString(msg, "password=redacted")
}
