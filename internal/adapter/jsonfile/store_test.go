package jsonfile

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/couchcryptid/skylore-service/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fixture = `[
  {
    "id": "mock-001",
    "photo_url": "https://example.org/sky/001.jpg",
    "latitude": 40.7128,
    "longitude": -74.006,
    "timestamp": "2024-03-10T21:15:00",
    "brightness_rating": 2,
    "constellation_name": "Orion"
  },
  {
    "id": "mock-002",
    "photo_url": "https://example.org/sky/002.jpg",
    "latitude": 39.7392,
    "longitude": -104.9903,
    "timestamp": "2024-03-09T03:40:00-07:00",
    "brightness_rating": 4,
    "constellation_name": "",
    "constellation_names": ["Ursa Major"]
  }
]`

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestStore(t *testing.T, contents string) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "submissions.json")
	if contents != "" {
		require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	}
	s, err := NewStore(path, discardLogger())
	require.NoError(t, err)
	return s
}

func TestNewStore_RequiresPath(t *testing.T) {
	_, err := NewStore("", discardLogger())
	require.ErrorIs(t, err, domain.ErrConfiguration)
}

func TestStore_FetchAll(t *testing.T) {
	s := newTestStore(t, fixture)

	raws, err := s.FetchAll(context.Background())
	require.NoError(t, err)
	require.Len(t, raws, 2)

	assert.Equal(t, domain.SourceLocal, raws[0].Source)
	assert.Equal(t, 1, raws[1].Index)
	assert.Equal(t, "mock-002", raws[1].Fields["id"])

	table, err := domain.NormalizeAll(raws)
	require.NoError(t, err)
	assert.Equal(t, "mock-002", table[0].ID, "earlier timestamp sorts first")
	assert.Equal(t, time.Date(2024, 3, 9, 10, 40, 0, 0, time.UTC), table[0].Timestamp)
	assert.Equal(t, []string{"Ursa Major"}, table[0].ConstellationNames)
}

func TestStore_FetchAll_MissingFile(t *testing.T) {
	s := newTestStore(t, "")

	_, err := s.FetchAll(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrDataSource)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestStore_FetchAll_InvalidJSON(t *testing.T) {
	s := newTestStore(t, `{"not": "an array"}`)

	_, err := s.FetchAll(context.Background())
	require.ErrorIs(t, err, domain.ErrDataSource)
	var dse *domain.DataSourceError
	require.ErrorAs(t, err, &dse)
	assert.Equal(t, "local", dse.Backend)
	assert.Equal(t, "fetch", dse.Op)
}

func TestStore_FetchAll_EmptyFile(t *testing.T) {
	s := newTestStore(t, "  \n")

	raws, err := s.FetchAll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, raws)
}

func TestStore_AppendRoundTrip(t *testing.T) {
	s := newTestStore(t, fixture)
	sub := domain.Submission{
		ID:                 "sub-new",
		PhotoURL:           "photos/sub-new.jpg",
		Latitude:           -33.8688,
		Longitude:          151.2093,
		Timestamp:          time.Date(2024, 3, 11, 9, 30, 15, 123000000, time.UTC),
		BrightnessRating:   5,
		ConstellationNames: []string{"Crux"},
	}

	require.NoError(t, s.Append(context.Background(), sub))

	raws, err := s.FetchAll(context.Background())
	require.NoError(t, err)
	require.Len(t, raws, 3)

	got, err := domain.Normalize(raws[2])
	require.NoError(t, err)
	assert.Equal(t, sub.ID, got.ID)
	assert.Equal(t, sub.Latitude, got.Latitude)
	assert.Equal(t, sub.Longitude, got.Longitude)
	assert.Equal(t, sub.BrightnessRating, got.BrightnessRating)
	assert.True(t, sub.Timestamp.Equal(got.Timestamp))
	assert.Equal(t, sub.ConstellationNames, got.ConstellationNames)

	// Existing entries survive the rewrite unchanged.
	first, err := domain.Normalize(raws[0])
	require.NoError(t, err)
	assert.Equal(t, "mock-001", first.ID)
	assert.Equal(t, "Orion", first.ConstellationName)
}

func TestStore_AppendCreatesFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "data")
	s, err := NewStore(filepath.Join(dir, "submissions.json"), discardLogger())
	require.NoError(t, err)

	sub := domain.Submission{ID: "first", Timestamp: time.Now().UTC(), BrightnessRating: 1}
	require.NoError(t, s.Append(context.Background(), sub))

	data, err := os.ReadFile(s.Path())
	require.NoError(t, err)
	var entries []map[string]any
	require.NoError(t, json.Unmarshal(data, &entries))
	require.Len(t, entries, 1)
	assert.Equal(t, []any{}, entries[0]["constellation_names"])
	assert.True(t, strings.HasPrefix(string(data), "[\n  {"), "file is indented")
	require.NoError(t, s.Ping(context.Background()))
}

func TestStore_EnsureFile(t *testing.T) {
	t.Run("seeds missing file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "fresh", "submissions.json")
		s, err := NewStore(path, discardLogger())
		require.NoError(t, err)
		require.Error(t, s.Ping(context.Background()))

		require.NoError(t, s.EnsureFile())

		require.NoError(t, s.Ping(context.Background()))
		raws, err := s.FetchAll(context.Background())
		require.NoError(t, err)
		assert.Empty(t, raws)
	})

	t.Run("keeps existing file", func(t *testing.T) {
		s := newTestStore(t, fixture)
		require.NoError(t, s.EnsureFile())

		raws, err := s.FetchAll(context.Background())
		require.NoError(t, err)
		assert.Len(t, raws, 2)
	})
}

func TestStore_AppendRejectsDuplicateID(t *testing.T) {
	s := newTestStore(t, fixture)

	err := s.Append(context.Background(), domain.Submission{ID: "mock-001", Timestamp: time.Now()})
	require.ErrorIs(t, err, domain.ErrDataSource)
	assert.Contains(t, err.Error(), "duplicate id")
}

func TestStore_AppendLeavesNoTempFiles(t *testing.T) {
	s := newTestStore(t, fixture)
	require.NoError(t, s.Append(context.Background(), domain.Submission{ID: "x", Timestamp: time.Now()}))

	entries, err := os.ReadDir(filepath.Dir(s.Path()))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "submissions.json", entries[0].Name())
}

func TestStore_AppendCorruptFile(t *testing.T) {
	s := newTestStore(t, "[{")

	err := s.Append(context.Background(), domain.Submission{ID: "x", Timestamp: time.Now()})
	require.ErrorIs(t, err, domain.ErrDataSource)

	data, readErr := os.ReadFile(s.Path())
	require.NoError(t, readErr)
	assert.Equal(t, "[{", string(data), "corrupt file is left for inspection")
}

func TestStore_CancelledContext(t *testing.T) {
	s := newTestStore(t, fixture)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.FetchAll(ctx)
	require.ErrorIs(t, err, domain.ErrDataSource)
	require.ErrorIs(t, s.Append(ctx, domain.Submission{ID: "y"}), context.Canceled)
}
