package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/JonMunkholm/studyquest/internal/config"
	"github.com/JonMunkholm/studyquest/internal/core"
	"github.com/JonMunkholm/studyquest/internal/logging"
	"github.com/JonMunkholm/studyquest/internal/storage"
	"github.com/JonMunkholm/studyquest/internal/web"
)

func main() {
	// Load .env file if it exists (Overload overwrites existing env vars)
	if err := godotenv.Overload(); err != nil {
		slog.Info("no .env file found, using environment variables")
	} else {
		slog.Info("loaded .env file (overwriting existing env vars)")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("configuration loaded", "config", cfg.String())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := storage.Open(ctx, cfg.Database)
	if err != nil {
		slog.Error("failed to open store", "driver", cfg.Database.Driver, "error", err)
		os.Exit(1)
	}
	defer store.Close()
	slog.Info("store ready", "driver", cfg.Database.Driver, "migrated", cfg.Database.Migrate)

	service, err := core.NewService(store, core.OptionsFromConfig(cfg))
	if err != nil {
		slog.Error("failed to create service", "error", err)
		os.Exit(1)
	}
	slog.Info("service ready", "source_encoding", service.Encoding())

	server := web.NewServer(ctx, service, store, cfg)

	errCh := make(chan error, 1)
	go func() { errCh <- server.Start() }()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server stopped", "error", err)
		}
		return
	case <-ctx.Done():
	}

	slog.Info("shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	// Shutdown waits for in-flight handlers; uploads still holding a slot
	// after that are reported before the store closes.
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "error", err)
	}
	if status := service.Limiter().Status(); status.Active > 0 {
		slog.Info("waiting for uploads to complete", "active", status.Active)
		if err := service.Limiter().WaitForDrain(shutdownCtx); err != nil {
			slog.Warn("uploads did not complete in time", "error", err)
		}
	}
	slog.Info("server stopped")
}
