package pipeline_test

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/couchcryptid/skylore-service/internal/domain"
	"github.com/couchcryptid/skylore-service/internal/pipeline"
	"github.com/stretchr/testify/assert"
)

func enrichFixture() []domain.Submission {
	ts := time.Date(2024, 5, 1, 22, 0, 0, 0, time.UTC)
	return []domain.Submission{
		{ID: "named", PhotoURL: "https://example.com/a.jpg", Timestamp: ts, BrightnessRating: 3, ConstellationNames: []string{"Orion"}},
		{ID: "legacy", PhotoURL: "https://example.com/b.jpg", Timestamp: ts, BrightnessRating: 3, ConstellationName: "Lyra"},
		{ID: "nophoto", Timestamp: ts, BrightnessRating: 3},
		{ID: "missing", PhotoURL: "https://example.com/gone.jpg", Timestamp: ts, BrightnessRating: 3},
		{ID: "solve", PhotoURL: "https://example.com/c.jpg", Timestamp: ts, BrightnessRating: 3},
	}
}

func TestEnricher_EnrichMissing(t *testing.T) {
	fetcher := &mockFetcher{photos: map[string]domain.Photo{
		"https://example.com/c.jpg": {Filename: "c.jpg", Data: []byte{1}},
	}}
	det := &mockDetector{result: domain.Detected([]string{"Ursa Major"})}
	e := pipeline.NewEnricher(det, fetcher, slog.Default())

	subs := enrichFixture()
	out, stats := e.EnrichMissing(context.Background(), subs)

	assert.Equal(t, pipeline.EnrichStats{Attempted: 2, Detected: 1, Failed: 1, Skipped: 3}, stats)
	assert.Equal(t, 1, det.calls)
	assert.Equal(t, []string{"Ursa Major"}, out[4].ConstellationNames)
	assert.Equal(t, []string{"Orion"}, out[0].ConstellationNames)
	assert.Empty(t, out[3].ConstellationNames)

	// input is left untouched
	assert.Empty(t, subs[4].ConstellationNames)
}

func TestEnricher_TimeoutCounted(t *testing.T) {
	fetcher := &mockFetcher{photos: map[string]domain.Photo{
		"https://example.com/c.jpg": {Data: []byte{1}},
	}}
	det := &mockDetector{result: domain.DetectionTimeout(context.DeadlineExceeded)}
	e := pipeline.NewEnricher(det, fetcher, slog.Default())

	out, stats := e.EnrichMissing(context.Background(), enrichFixture()[4:])
	assert.Equal(t, 1, stats.TimedOut)
	assert.Empty(t, out[0].ConstellationNames)
}

func TestEnricher_CancelledContextSkipsAll(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	det := &mockDetector{result: domain.Detected([]string{"Lyra"})}
	e := pipeline.NewEnricher(det, &mockFetcher{}, slog.Default())

	out, stats := e.EnrichMissing(ctx, enrichFixture())
	assert.Len(t, out, 5)
	assert.Equal(t, 5, stats.Skipped)
	assert.Zero(t, det.calls)
}
