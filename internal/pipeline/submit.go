package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/couchcryptid/skylore-service/internal/domain"
	"github.com/couchcryptid/skylore-service/internal/observability"
)

// Writer validates new submissions and appends them to the active store.
type Writer struct {
	store    Store
	photos   PhotoStore
	detector domain.ConstellationDetector
	logger   *slog.Logger
	metrics  *observability.Metrics
}

// NewWriter creates a Writer. photos and detector may be nil: without a
// photo store only photo_url submissions are accepted, and without a
// detector submissions keep whatever names they were given.
func NewWriter(store Store, photos PhotoStore, detector domain.ConstellationDetector, logger *slog.Logger, metrics *observability.Metrics) *Writer {
	return &Writer{
		store:    store,
		photos:   photos,
		detector: detector,
		logger:   logger,
		metrics:  metrics,
	}
}

// Submit validates in, stores any uploaded photo, optionally detects
// constellations, and appends the submission. Validation happens before
// any I/O. Append failures are returned as *domain.WriteError.
func (w *Writer) Submit(ctx context.Context, in domain.SubmissionInput) (domain.Submission, error) {
	if err := in.Validate(); err != nil {
		w.metrics.Submissions.WithLabelValues("invalid").Inc()
		return domain.Submission{}, err
	}

	now := domain.Now()
	sub := domain.Submission{
		ID:                 domain.NewSubmissionID(now),
		PhotoURL:           strings.TrimSpace(in.PhotoURL),
		Latitude:           *in.Latitude,
		Longitude:          *in.Longitude,
		Timestamp:          now,
		BrightnessRating:   in.BrightnessRating,
		ConstellationNames: cleanNames(in.ConstellationNames),
	}
	log := w.logger.With("id", sub.ID)

	var savedPhoto string
	if in.HasPhotoData() {
		if w.photos == nil {
			w.metrics.Submissions.WithLabelValues("error").Inc()
			return domain.Submission{}, &domain.WriteError{
				ID:  sub.ID,
				Err: fmt.Errorf("%w: photo uploads are not enabled", domain.ErrConfiguration),
			}
		}
		ref, err := w.photos.Save(ctx, sub.ID, *in.Photo)
		if err != nil {
			w.metrics.Submissions.WithLabelValues("error").Inc()
			log.Error("store photo failed", "error", err)
			return domain.Submission{}, &domain.WriteError{ID: sub.ID, Err: err}
		}
		w.metrics.PhotosStored.Inc()
		savedPhoto = ref
		sub.PhotoURL = ref
	}

	if len(sub.ConstellationNames) == 0 && w.detector != nil && in.HasPhotoData() {
		d := w.detector.Detect(ctx, *in.Photo)
		sub = domain.ApplyDetection(sub, d)
		if d.Status != domain.DetectionDetected {
			log.Warn("submitting without constellations", "detection", d.Status.String(), "reason", d.Reason)
		}
	}

	if err := w.store.Append(ctx, sub); err != nil {
		w.metrics.Submissions.WithLabelValues("error").Inc()
		log.Error("append submission failed", "store", w.store.Name(), "error", err)
		if savedPhoto != "" {
			if rmErr := w.photos.Remove(context.WithoutCancel(ctx), savedPhoto); rmErr != nil {
				log.Warn("remove orphaned photo failed", "photo", savedPhoto, "error", rmErr)
			}
		}
		return domain.Submission{}, &domain.WriteError{ID: sub.ID, Err: err}
	}

	w.metrics.Submissions.WithLabelValues("accepted").Inc()
	log.Info("submission accepted",
		"store", w.store.Name(),
		"brightness", sub.BrightnessRating,
		"constellations", len(sub.ConstellationNames),
	)
	return sub, nil
}

// cleanNames trims names and drops blanks and repeats, keeping order.
func cleanNames(names []string) []string {
	out := make([]string, 0, len(names))
	seen := make(map[string]bool, len(names))
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n == "" || seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, n)
	}
	return out
}
