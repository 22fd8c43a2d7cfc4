//go:build integration

package integration_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/couchcryptid/skylore-service/internal/adapter/postgres"
	"github.com/couchcryptid/skylore-service/internal/domain"
	"github.com/couchcryptid/skylore-service/internal/observability"
	"github.com/couchcryptid/skylore-service/internal/pipeline"
	"github.com/jackc/pgx/v5"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const schema = `
CREATE TABLE submissions (
	id               text PRIMARY KEY,
	created_at       timestamptz NOT NULL,
	photo_url        text,
	brightness_level integer NOT NULL,
	lat              numeric(9,6) NOT NULL,
	long             numeric(9,6) NOT NULL
)`

// TestRemoteStore_WriteThenRead drives the writer and catalog against a real
// table: appended rows come back normalized, sorted, and without
// constellations.
func TestRemoteStore_WriteThenRead(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	connStr := startPostgres(ctx, t)

	conn, err := pgx.Connect(ctx, connStr)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close(context.Background()) })
	_, err = conn.Exec(ctx, schema)
	require.NoError(t, err)

	// A row written by another client with a non-UTC offset.
	_, err = conn.Exec(ctx,
		`INSERT INTO submissions VALUES ('legacy-1', '2024-03-01 21:00:00-07', NULL, 2, 39.739200, -104.990300)`)
	require.NoError(t, err)

	store, err := postgres.NewStore(ctx, postgres.Options{URL: connStr, Key: pgPassword}, discardLogger())
	require.NoError(t, err)
	t.Cleanup(store.Close)
	require.NoError(t, store.Ping(ctx))

	domain.SetClock(clockwork.NewFakeClockAt(time.Date(2024, 3, 2, 4, 30, 0, 0, time.UTC)))
	t.Cleanup(func() { domain.SetClock(nil) })

	metrics := observability.NewMetricsForTesting()
	writer := pipeline.NewWriter(store, nil, nil, discardLogger(), metrics)
	sub, err := writer.Submit(ctx, domain.SubmissionInput{
		Latitude:           domain.Coord(40.015),
		Longitude:          domain.Coord(-105.2705),
		BrightnessRating:   4,
		PhotoURL:           "https://photos.example.com/boulder.jpg",
		ConstellationNames: []string{"Orion"},
	})
	require.NoError(t, err)

	catalog := pipeline.NewCatalog(store, discardLogger(), metrics)
	table, err := catalog.Load(ctx)
	require.NoError(t, err)
	require.Len(t, table, 2)

	legacy := table[0]
	assert.Equal(t, "legacy-1", legacy.ID)
	assert.True(t, legacy.Timestamp.Equal(time.Date(2024, 3, 2, 4, 0, 0, 0, time.UTC)), legacy.Timestamp)
	assert.InDelta(t, 39.7392, legacy.Latitude, 1e-9)
	assert.Empty(t, legacy.PhotoURL)

	written := table[1]
	assert.Equal(t, sub.ID, written.ID)
	assert.True(t, sub.Timestamp.Equal(written.Timestamp), written.Timestamp)
	assert.InDelta(t, 40.015, written.Latitude, 1e-9)
	assert.Equal(t, 4, written.BrightnessRating)
	assert.Empty(t, written.ConstellationNames)

	area := pipeline.AreaTable(table, 39.7392, -104.9903, domain.MilesToKm(10))
	require.Len(t, area, 1)
	assert.Equal(t, "legacy-1", area[0].ID)
}

func TestRemoteStore_DuplicateIDAndMissingTable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	connStr := startPostgres(ctx, t)

	missing, err := postgres.NewStore(ctx, postgres.Options{URL: connStr, Key: pgPassword, Table: "public.nope"}, discardLogger())
	require.NoError(t, err)
	t.Cleanup(missing.Close)
	_, err = missing.FetchAll(ctx)
	require.ErrorIs(t, err, domain.ErrDataSource)

	conn, err := pgx.Connect(ctx, connStr)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close(context.Background()) })
	_, err = conn.Exec(ctx, schema)
	require.NoError(t, err)

	store, err := postgres.NewStore(ctx, postgres.Options{URL: connStr, Key: pgPassword}, discardLogger())
	require.NoError(t, err)
	t.Cleanup(store.Close)

	sub := domain.Submission{ID: "dup", Latitude: 1, Longitude: 2, Timestamp: time.Now().UTC(), BrightnessRating: 3}
	require.NoError(t, store.Append(ctx, sub))

	err = store.Append(ctx, sub)
	require.ErrorIs(t, err, domain.ErrDataSource)
	var dse *domain.DataSourceError
	require.True(t, errors.As(err, &dse))
	assert.Contains(t, dse.Error(), "duplicate id")
}
