// Package app assembles the configured adapters for the commands.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/couchcryptid/skylore-service/internal/adapter/astrometry"
	"github.com/couchcryptid/skylore-service/internal/adapter/jsonfile"
	"github.com/couchcryptid/skylore-service/internal/adapter/photostore"
	"github.com/couchcryptid/skylore-service/internal/adapter/postgres"
	"github.com/couchcryptid/skylore-service/internal/config"
	"github.com/couchcryptid/skylore-service/internal/domain"
	"github.com/couchcryptid/skylore-service/internal/observability"
	"github.com/couchcryptid/skylore-service/internal/pipeline"
)

// OpenStore returns the store variant selected by DATA_SOURCE and a func
// that releases it.
func OpenStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (pipeline.Store, func(), error) {
	switch cfg.DataSource {
	case config.DataSourceRemote:
		store, err := postgres.NewStore(ctx, postgres.Options{
			URL:   cfg.RemoteDBURL,
			Key:   cfg.RemoteDBKey,
			Table: cfg.RemoteTable,
		}, logger)
		if err != nil {
			return nil, nil, err
		}
		return store, store.Close, nil
	case config.DataSourceLocal:
		store, err := jsonfile.NewStore(cfg.LocalDataPath, logger)
		if err != nil {
			return nil, nil, err
		}
		if err := store.EnsureFile(); err != nil {
			return nil, nil, err
		}
		return store, func() {}, nil
	default:
		return nil, nil, fmt.Errorf("%w: unknown data source %q", domain.ErrConfiguration, cfg.DataSource)
	}
}

// NewPhotoStore returns the photo store selected by PHOTO_STORE.
func NewPhotoStore(cfg *config.Config, logger *slog.Logger) (pipeline.PhotoStore, error) {
	if cfg.PhotoStore == config.PhotoStoreS3 {
		store, err := photostore.NewS3Store(photostore.S3Config{
			Bucket:          cfg.S3Bucket,
			Endpoint:        cfg.S3Endpoint,
			Region:          cfg.S3Region,
			AccessKeyID:     cfg.S3AccessKeyID,
			SecretAccessKey: cfg.S3SecretAccessKey,
			PublicBaseURL:   cfg.S3PublicBaseURL,
			Prefix:          "photos/",
		}, logger)
		if err != nil {
			return nil, err
		}
		return store, nil
	}
	store, err := photostore.NewLocalStore(cfg.PhotoDir, logger)
	if err != nil {
		return nil, err
	}
	return store, nil
}

// NewDetector returns the cached astrometry detector, or nil when detection
// is disabled. The DetectionEnabled gauge reflects the choice.
func NewDetector(cfg *config.Config, metrics *observability.Metrics, logger *slog.Logger) domain.ConstellationDetector {
	if !cfg.AstrometryEnabled {
		metrics.DetectionEnabled.Set(0)
		logger.Info("constellation detection disabled")
		return nil
	}
	client := astrometry.NewClient(astrometry.Options{
		APIKey:             cfg.AstrometryAPIKey,
		BaseURL:            cfg.AstrometryBaseURL,
		PollInterval:       cfg.AstrometryPollInterval,
		MaxSubmissionPolls: cfg.AstrometryMaxSubmissionPolls,
		MaxJobPolls:        cfg.AstrometryMaxJobPolls,
		Timeout:            cfg.AstrometryTimeout,
	}, metrics, logger)
	metrics.DetectionEnabled.Set(1)
	logger.Info("constellation detection enabled",
		"cache_size", cfg.AstrometryCacheSize,
		"timeout", cfg.AstrometryTimeout,
		"poll_interval", cfg.AstrometryPollInterval,
	)
	return astrometry.NewCachedDetector(client, cfg.AstrometryCacheSize, metrics)
}
