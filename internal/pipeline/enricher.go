package pipeline

import (
	"context"
	"log/slog"

	"github.com/couchcryptid/skylore-service/internal/domain"
)

// EnrichStats counts the outcomes of an enrichment pass.
type EnrichStats struct {
	Attempted int
	Detected  int
	Failed    int
	TimedOut  int
	Skipped   int
}

// Enricher fills in constellation names for submissions that have none by
// running detection on their photos.
type Enricher struct {
	detector domain.ConstellationDetector
	fetcher  PhotoFetcher
	logger   *slog.Logger
}

// NewEnricher creates an Enricher.
func NewEnricher(detector domain.ConstellationDetector, fetcher PhotoFetcher, logger *slog.Logger) *Enricher {
	return &Enricher{detector: detector, fetcher: fetcher, logger: logger}
}

// EnrichMissing returns a copy of subs where every submission without
// constellations and with a photo_url has been run through detection.
// Submissions that already carry names, or whose photo cannot be fetched or
// solved, are returned unchanged. Cancelling ctx stops the pass early; the
// remaining submissions are returned as they were.
func (e *Enricher) EnrichMissing(ctx context.Context, subs []domain.Submission) ([]domain.Submission, EnrichStats) {
	out := make([]domain.Submission, len(subs))
	copy(out, subs)

	var stats EnrichStats
	for i, sub := range out {
		if len(sub.Constellations()) > 0 || sub.PhotoURL == "" || ctx.Err() != nil {
			stats.Skipped++
			continue
		}
		stats.Attempted++

		photo, err := e.fetcher.Fetch(ctx, sub.PhotoURL)
		if err != nil {
			stats.Failed++
			e.logger.Warn("fetch photo failed", "id", sub.ID, "photo_url", sub.PhotoURL, "error", err)
			continue
		}

		d := e.detector.Detect(ctx, photo)
		switch d.Status {
		case domain.DetectionDetected:
			stats.Detected++
			out[i] = domain.ApplyDetection(sub, d)
		case domain.DetectionTimedOut:
			stats.TimedOut++
		default:
			stats.Failed++
		}
		e.logger.Debug("enrichment attempted", "id", sub.ID, "status", d.Status.String(), "names", d.Names)
	}

	e.logger.Info("enrichment finished",
		"attempted", stats.Attempted,
		"detected", stats.Detected,
		"failed", stats.Failed,
		"timed_out", stats.TimedOut,
		"skipped", stats.Skipped,
	)
	return out, stats
}
