package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/skylore-service/internal/domain"
	"github.com/couchcryptid/skylore-service/internal/observability"
)

const (
	initialBackoff = 200 * time.Millisecond
	maxBackoff     = 5 * time.Second
	publishRetries = 5
)

// Rejection records an imported row that could not be queued.
type Rejection struct {
	Index int
	Err   error
}

// ImportReport summarizes a bulk import.
type ImportReport struct {
	Read     int
	Queued   int
	Rejected []Rejection
	Enriched EnrichStats
}

// Importer normalizes and validates bulk rows and publishes the survivors to
// the review queue. Imported rows never reach the store directly.
type Importer struct {
	publisher ReviewPublisher
	enricher  *Enricher
	logger    *slog.Logger
	metrics   *observability.Metrics
	batchSize int
}

// NewImporter creates an Importer. enricher may be nil.
func NewImporter(p ReviewPublisher, enricher *Enricher, logger *slog.Logger, metrics *observability.Metrics, batchSize int) *Importer {
	return &Importer{
		publisher: p,
		enricher:  enricher,
		logger:    logger,
		metrics:   metrics,
		batchSize: max(batchSize, 1),
	}
}

// Import processes raws. Unlike a table load, a malformed or invalid row is
// rejected individually and reported; the rest are still queued. Rows
// without an id get one stamped from the row's own timestamp.
func (im *Importer) Import(ctx context.Context, raws []domain.RawRecord) (ImportReport, error) {
	report := ImportReport{Read: len(raws)}

	accepted := make([]domain.Submission, 0, len(raws))
	for _, raw := range raws {
		sub, err := prepare(raw)
		if err != nil {
			report.Rejected = append(report.Rejected, Rejection{Index: raw.Index, Err: err})
			im.metrics.ImportRejected.Inc()
			im.logger.Warn("import row rejected", "index", raw.Index, "error", err)
			continue
		}
		accepted = append(accepted, sub)
	}
	domain.SortByTimestamp(accepted)

	if im.enricher != nil {
		accepted, report.Enriched = im.enricher.EnrichMissing(ctx, accepted)
	}

	for start := 0; start < len(accepted); start += im.batchSize {
		batch := accepted[start:min(start+im.batchSize, len(accepted))]
		if err := im.publish(ctx, batch); err != nil {
			return report, fmt.Errorf("publish rows %d-%d: %w", start, start+len(batch)-1, err)
		}
		report.Queued += len(batch)
		im.metrics.ReviewQueued.Add(float64(len(batch)))
	}

	im.logger.Info("import finished",
		"read", report.Read,
		"queued", report.Queued,
		"rejected", len(report.Rejected),
	)
	return report, nil
}

// publish retries a batch with exponential backoff: start at 200ms, double
// each retry, cap at 5s.
func (im *Importer) publish(ctx context.Context, batch []domain.Submission) error {
	backoff := initialBackoff
	var err error
	for attempt := 1; attempt <= publishRetries; attempt++ {
		if err = im.publisher.PublishPending(ctx, batch); err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		im.logger.Warn("publish batch failed", "attempt", attempt, "batch_size", len(batch), "error", err)
		if attempt == publishRetries || !sleepWithContext(ctx, backoff) {
			break
		}
		backoff = nextBackoff(backoff, maxBackoff)
	}
	return err
}

func prepare(raw domain.RawRecord) (domain.Submission, error) {
	sub, err := domain.Normalize(raw)
	if err != nil {
		return domain.Submission{}, err
	}
	in := domain.SubmissionInput{
		Latitude:         domain.Coord(sub.Latitude),
		Longitude:        domain.Coord(sub.Longitude),
		BrightnessRating: sub.BrightnessRating,
		PhotoURL:         sub.PhotoURL,
	}
	if err := in.Validate(); err != nil {
		return domain.Submission{}, err
	}
	if sub.ID == "" {
		sub.ID = domain.NewSubmissionID(sub.Timestamp)
	}
	sub.ConstellationNames = cleanNames(sub.ConstellationNames)
	return sub, nil
}

func nextBackoff(current, limit time.Duration) time.Duration {
	next := current * 2
	if next > limit {
		return limit
	}
	return next
}

func sleepWithContext(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
