package pipeline_test

import (
	"context"
	"errors"
	"sync"

	"github.com/couchcryptid/skylore-service/internal/domain"
	"github.com/couchcryptid/skylore-service/internal/observability"
)

// --- mocks ---

type mockStore struct {
	mu        sync.Mutex
	raws      []domain.RawRecord
	fetchErr  error
	appendErr error
	pingErr   error
	appended  []domain.Submission
}

func (m *mockStore) FetchAll(context.Context) ([]domain.RawRecord, error) {
	if m.fetchErr != nil {
		return nil, m.fetchErr
	}
	return m.raws, nil
}

func (m *mockStore) Append(_ context.Context, sub domain.Submission) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.appendErr != nil {
		return m.appendErr
	}
	m.appended = append(m.appended, sub)
	return nil
}

func (m *mockStore) Name() string { return "local" }

type pingingStore struct {
	mockStore
}

func (p *pingingStore) Ping(context.Context) error { return p.pingErr }

type mockPhotoStore struct {
	saved   map[string]domain.Photo
	removed []string
	saveErr error
}

func (m *mockPhotoStore) Save(_ context.Context, id string, photo domain.Photo) (string, error) {
	if m.saveErr != nil {
		return "", m.saveErr
	}
	if m.saved == nil {
		m.saved = make(map[string]domain.Photo)
	}
	m.saved[id] = photo
	return "photos/" + id + ".jpg", nil
}

func (m *mockPhotoStore) Remove(_ context.Context, ref string) error {
	m.removed = append(m.removed, ref)
	return nil
}

type mockDetector struct {
	result domain.Detection
	calls  int
}

func (m *mockDetector) Detect(context.Context, domain.Photo) domain.Detection {
	m.calls++
	return m.result
}

type mockFetcher struct {
	photos map[string]domain.Photo
}

func (m *mockFetcher) Fetch(_ context.Context, ref string) (domain.Photo, error) {
	p, ok := m.photos[ref]
	if !ok {
		return domain.Photo{}, errors.New("not found")
	}
	return p, nil
}

type mockPublisher struct {
	batches  [][]domain.Submission
	failures int
	err      error
	calls    int
}

func (m *mockPublisher) PublishPending(_ context.Context, subs []domain.Submission) error {
	m.calls++
	if m.err != nil {
		return m.err
	}
	if m.failures > 0 {
		m.failures--
		return errors.New("broker unavailable")
	}
	m.batches = append(m.batches, append([]domain.Submission(nil), subs...))
	return nil
}

func newTestMetrics() *observability.Metrics {
	// Use a fresh registry to avoid "already registered" panics in tests.
	return observability.NewMetricsForTesting()
}

func localRaw(index int, id, ts string, brightness int) domain.RawRecord {
	return domain.RawRecord{
		Source: domain.SourceLocal,
		Index:  index,
		Fields: map[string]any{
			"id":                  id,
			"photo_url":           "https://example.com/" + id + ".jpg",
			"latitude":            39.74,
			"longitude":           -104.99,
			"timestamp":           ts,
			"brightness_rating":   float64(brightness),
			"constellation_names": []any{"Orion"},
		},
	}
}
