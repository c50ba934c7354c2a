package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/portal-alcaldia/ruea-api/internal/config"
	"github.com/portal-alcaldia/ruea-api/internal/dataset"
	"github.com/portal-alcaldia/ruea-api/internal/logging"
	"github.com/portal-alcaldia/ruea-api/internal/metrics"
	"github.com/portal-alcaldia/ruea-api/internal/web"
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

	slog.Info("configuration loaded",
		"port", cfg.Server.Port,
		"data_dir", cfg.Data.Dir,
		"strict_validation", cfg.Validation.Strict,
	)

	m := metrics.New()

	// NewService repairs any promotion interrupted by a crash before the
	// first request is served.
	service, err := dataset.NewService(cfg.Data.Dir,
		dataset.WithStrictValidation(cfg.Validation.Strict),
		dataset.WithMetrics(m),
	)
	if err != nil {
		slog.Error("failed to create service", "error", err)
		os.Exit(1)
	}
	defer service.Close()

	if meta, err := service.CurrentMeta(); err == nil && meta.Version != "" {
		slog.Info("current dataset version", "version", meta.Version, "modules", len(meta.Modules))
	} else {
		slog.Info("no dataset published yet")
	}

	server := web.NewServer(service, m, cfg)

	// Graceful shutdown. An in-flight refresh is never cancelled; it
	// finishes (or fails) on its own goroutine even while the listener
	// drains.
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		slog.Info("shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown error", "error", err)
		}
	}()

	slog.Info("server starting", "addr", cfg.Server.Addr())
	if err := server.Start(); err != nil {
		slog.Info("server stopped", "error", err)
	}
}
