package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/s1natex/taskmanager-api/internal/config"
	"github.com/s1natex/taskmanager-api/internal/middleware"
	"github.com/s1natex/taskmanager-api/internal/tasks"
)

type pinger interface {
	Ping(ctx context.Context) error
}

// newRouter wires probes, metrics, task routes, and the middleware stack.
// repo is only consulted by the readiness probe.
func newRouter(svc tasks.TaskService, repo tasks.Repository, cfg config.Config, logger *slog.Logger) *chi.Mux {
	r := chi.NewRouter()

	// ---- Middleware stack (order matters a bit) ----
	// RequestID first so downstream can include it (logger, errors, etc.)
	r.Use(chimw.RequestID)
	r.Use(middleware.TracingMiddleware)
	r.Use(middleware.RequestLogger(logger))
	r.Use(middleware.MetricsMiddleware)

	// Panics become a 500 with the usual error body
	r.Use(middleware.Recoverer(logger))

	if cfg.RequestTimeout > 0 {
		r.Use(chimw.Timeout(cfg.RequestTimeout))
	}

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORS.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-API-Key", "X-Request-Id"},
		ExposedHeaders:   []string{"X-Request-Id", "Trace-Id"},
		AllowCredentials: false,
		MaxAge:           300, // 5 minutes
	}))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		tasks.WriteRouteError(w, http.StatusNotFound, "Resource not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		tasks.WriteRouteError(w, http.StatusMethodNotAllowed, "Method not allowed")
	})

	// ---- Routes ----

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeStatus(w, http.StatusOK, "ok")
	})
	r.Get("/ready", func(w http.ResponseWriter, r *http.Request) {
		if p, ok := repo.(pinger); ok {
			if err := p.Ping(r.Context()); err != nil {
				logger.WarnContext(r.Context(), "readiness_failed", slog.String("error", err.Error()))
				writeStatus(w, http.StatusServiceUnavailable, "unavailable")
				return
			}
		}
		writeStatus(w, http.StatusOK, "ready")
	})
	r.Method(http.MethodGet, "/metrics", middleware.MetricsHandler())

	authMode, _ := middleware.ParseAuthMode(cfg.Auth.Mode) // validated by config.Load
	r.Group(func(r chi.Router) {
		r.Use(middleware.AuthMiddleware(middleware.AuthConfig{
			Mode:        authMode,
			APIKey:      cfg.Auth.APIKey,
			BearerToken: cfg.Auth.BearerToken,
		}))
		r.Use(middleware.RateLimitMiddleware(middleware.NewLimiter(cfg.RateLimit.RPS, cfg.RateLimit.Burst)))

		tasks.RegisterRoutes(r, svc, logger)
	})

	return r
}

func writeStatus(w http.ResponseWriter, code int, status string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]string{"status": status})
}

// openRepository returns the configured storage and a func that releases it.
func openRepository(ctx context.Context, db config.DBConfig, migrate bool) (tasks.Repository, func(), error) {
	var (
		repo *tasks.SQLRepo
		err  error
	)
	switch db.Driver {
	case "memory":
		return tasks.NewInMemoryRepo(), func() {}, nil
	case "sqlite":
		dsn, dsnErr := tasks.SQLiteFileDSN(db.Path)
		if dsnErr != nil {
			return nil, nil, fmt.Errorf("sqlite dsn: %w", dsnErr)
		}
		repo, err = tasks.NewSQLiteRepo(dsn)
	case "postgres":
		repo, err = tasks.NewPostgresRepo(ctx, db.DSN)
	default:
		return nil, nil, fmt.Errorf("unsupported db driver %q", db.Driver)
	}
	if err != nil {
		return nil, nil, err
	}

	if migrate {
		migrateCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
		if err := repo.ApplyMigrations(migrateCtx); err != nil {
			_ = repo.Close()
			return nil, nil, fmt.Errorf("apply migrations: %w", err)
		}
	}
	return repo, func() { _ = repo.Close() }, nil
}

func newLogger(level string) *slog.Logger {
	var l slog.Level
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		l = slog.LevelDebug
	case "warn", "warning":
		l = slog.LevelWarn
	case "error":
		l = slog.LevelError
	default:
		l = slog.LevelInfo
	}

	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: l,
	})
	return slog.New(handler)
}
