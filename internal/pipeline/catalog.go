package pipeline

import (
	"context"
	"iter"
	"log/slog"
	"time"

	"github.com/couchcryptid/skylore-service/internal/domain"
	"github.com/couchcryptid/skylore-service/internal/observability"
)

// Catalog serves canonical submission tables from a store. Every call reads
// the store afresh; nothing is cached between requests.
type Catalog struct {
	store   Store
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewCatalog creates a Catalog over the active store variant.
func NewCatalog(store Store, logger *slog.Logger, metrics *observability.Metrics) *Catalog {
	return &Catalog{store: store, logger: logger, metrics: metrics}
}

// Source names the active store variant.
func (c *Catalog) Source() string {
	return c.store.Name()
}

// Load fetches every record, normalizes it, and returns the table sorted by
// timestamp ascending. A single malformed record fails the whole load.
func (c *Catalog) Load(ctx context.Context) ([]domain.Submission, error) {
	source := c.store.Name()
	start := time.Now()

	raws, err := c.store.FetchAll(ctx)
	if err != nil {
		c.metrics.Loads.WithLabelValues(source, "error").Inc()
		c.logger.Error("fetch submissions failed", "source", source, "error", err)
		return nil, err
	}
	table, err := domain.NormalizeAll(raws)
	if err != nil {
		c.metrics.Loads.WithLabelValues(source, "error").Inc()
		c.logger.Error("normalize submissions failed", "source", source, "records", len(raws), "error", err)
		return nil, err
	}

	c.metrics.Loads.WithLabelValues(source, "success").Inc()
	c.metrics.LoadDuration.WithLabelValues(source).Observe(time.Since(start).Seconds())
	c.metrics.TableRows.WithLabelValues(source).Set(float64(len(table)))
	c.logger.Debug("submissions loaded", "source", source, "rows", len(table))
	return table, nil
}

// FilteredTable loads the table and applies the brightness, constellation,
// and date-range stages in that order.
func (c *Catalog) FilteredTable(ctx context.Context, q domain.Query) ([]domain.Submission, error) {
	table, err := c.Load(ctx)
	if err != nil {
		return nil, err
	}
	return q.Apply(table), nil
}

// CheckReadiness pings the store when it supports it.
func (c *Catalog) CheckReadiness(ctx context.Context) error {
	if p, ok := c.store.(Pinger); ok {
		return p.Ping(ctx)
	}
	return nil
}

// AreaTable keeps the submissions within radiusKm of (lat, lon).
func AreaTable(table []domain.Submission, lat, lon, radiusKm float64) []domain.Submission {
	return domain.FilterRadius(table, domain.Point{Lat: lat, Lon: lon}, radiusKm)
}

// Timeseries groups the table into mean-brightness buckets.
func Timeseries(table []domain.Submission, g domain.Granularity) iter.Seq[domain.Bucket] {
	return domain.Timeseries(table, g)
}
