package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/s1natex/taskmanager-api/internal/config"
	"github.com/s1natex/taskmanager-api/internal/tasks"
	"github.com/s1natex/taskmanager-api/internal/telemetry"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var cfgFile string

	root := &cobra.Command{
		Use:           "taskmanager-api",
		Short:         "HTTP API for creating, updating, completing and deleting tasks",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := bootstrap(cfgFile)
			if err != nil {
				return err
			}
			return serve(cmd.Context(), cfg, logger)
		},
	}
	root.PersistentFlags().StringVar(&cfgFile, "config", "", "path to a YAML config file")

	root.AddCommand(&cobra.Command{
		Use:   "migrate",
		Short: "Create the tasks table and exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := bootstrap(cfgFile)
			if err != nil {
				return err
			}
			return migrate(cmd.Context(), cfg, logger)
		},
	})

	return root
}

func bootstrap(cfgFile string) (config.Config, *slog.Logger, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		return config.Config{}, nil, err
	}
	logger := newLogger(cfg.LogLevel)
	slog.SetDefault(logger) // for third-party packages that use slog
	return cfg, logger, nil
}

func serve(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Setup(ctx, telemetry.Options{
		Exporter:    cfg.Tracing.Exporter,
		Endpoint:    cfg.Tracing.Endpoint,
		ServiceName: cfg.Tracing.ServiceName,
	})
	if err != nil {
		logger.Error("tracing_setup_failed", slog.String("error", err.Error()))
		return err
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTracing(flushCtx)
	}()

	repo, closeRepo, err := openRepository(ctx, cfg.DB, cfg.DB.AutoMigrate)
	if err != nil {
		logger.Error("storage_open_failed", slog.String("driver", cfg.DB.Driver), slog.String("error", err.Error()))
		return err
	}
	defer closeRepo()

	svc := tasks.NewService(repo, logger)
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           newRouter(svc, repo, cfg, logger),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server_listen", slog.String("addr", cfg.Addr), slog.String("driver", cfg.DB.Driver))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			logger.Error("server_error", slog.String("error", err.Error()))
			return err
		}
	case <-ctx.Done():
		logger.Info("server_shutdown")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server_shutdown_error", slog.String("error", err.Error()))
		return err
	}
	return nil
}

func migrate(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	if cfg.DB.Driver == "memory" {
		logger.Info("migrate_skipped", slog.String("driver", cfg.DB.Driver))
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	_, closeRepo, err := openRepository(ctx, cfg.DB, true)
	if err != nil {
		logger.Error("migrate_failed", slog.String("error", err.Error()))
		return err
	}
	defer closeRepo()
	logger.Info("migrate_done", slog.String("driver", cfg.DB.Driver))
	return nil
}
