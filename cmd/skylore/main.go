package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	httpadapter "github.com/couchcryptid/skylore-service/internal/adapter/http"
	"github.com/couchcryptid/skylore-service/internal/app"
	"github.com/couchcryptid/skylore-service/internal/config"
	"github.com/couchcryptid/skylore-service/internal/observability"
	"github.com/couchcryptid/skylore-service/internal/pipeline"
	"github.com/joho/godotenv"
)

func main() {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()
	logger.Info("starting skylore", cfg.Redacted()...)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := app.OpenStore(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to open store", "error", err)
		os.Exit(1)
	}
	defer closeStore()

	photos, err := app.NewPhotoStore(cfg, logger)
	if err != nil {
		logger.Error("failed to create photo store", "error", err)
		os.Exit(1)
	}

	detector := app.NewDetector(cfg, metrics, logger)

	catalog := pipeline.NewCatalog(store, logger, metrics)
	writer := pipeline.NewWriter(store, photos, detector, logger, metrics)

	srv := httpadapter.NewServer(cfg.HTTPAddr, catalog, writer, metrics, logger)
	if detector != nil {
		srv.SetWriteTimeout(cfg.AstrometryTimeout + cfg.ShutdownTimeout)
	}

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}

	logger.Info("shutdown complete")
}
