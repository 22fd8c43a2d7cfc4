package pipeline_test

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/couchcryptid/skylore-service/internal/domain"
	"github.com/couchcryptid/skylore-service/internal/pipeline"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2024, time.August, 12, 3, 30, 0, 0, time.UTC)

func freezeClock(t *testing.T) {
	t.Helper()
	domain.SetClock(clockwork.NewFakeClockAt(fixedNow))
	t.Cleanup(func() { domain.SetClock(nil) })
}

func validInput() domain.SubmissionInput {
	return domain.SubmissionInput{
		Latitude:           domain.Coord(39.74),
		Longitude:          domain.Coord(-104.99),
		BrightnessRating:   4,
		PhotoURL:           "https://example.com/sky.jpg",
		ConstellationNames: []string{" Orion ", "", "Taurus", "Orion"},
	}
}

func TestWriter_Submit_HappyPath(t *testing.T) {
	freezeClock(t)
	store := &mockStore{}
	metrics := newTestMetrics()
	w := pipeline.NewWriter(store, nil, nil, slog.Default(), metrics)

	sub, err := w.Submit(context.Background(), validInput())
	require.NoError(t, err)

	assert.Equal(t, fixedNow, sub.Timestamp)
	assert.Equal(t, []string{"Orion", "Taurus"}, sub.ConstellationNames)
	assert.Equal(t, "https://example.com/sky.jpg", sub.PhotoURL)
	prefix, _, ok := strings.Cut(sub.ID, "-")
	require.True(t, ok)
	nanos, err := strconv.ParseInt(prefix, 36, 64)
	require.NoError(t, err)
	assert.Equal(t, fixedNow.UnixNano(), nanos)

	require.Len(t, store.appended, 1)
	assert.Equal(t, sub, store.appended[0])
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.Submissions.WithLabelValues("accepted")), 0)
}

func TestWriter_Submit_ValidationBeforeIO(t *testing.T) {
	store := &mockStore{}
	photos := &mockPhotoStore{}
	det := &mockDetector{result: domain.Detected([]string{"Lyra"})}
	metrics := newTestMetrics()
	w := pipeline.NewWriter(store, photos, det, slog.Default(), metrics)

	in := validInput()
	in.Latitude = domain.Coord(91)
	in.BrightnessRating = 6
	in.Photo = &domain.Photo{Filename: "sky.jpg", Data: []byte{0xff, 0xd8}}

	_, err := w.Submit(context.Background(), in)
	require.ErrorIs(t, err, domain.ErrValidation)

	var ve *domain.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Contains(t, ve.Fields, "latitude")
	assert.Contains(t, ve.Fields, "brightness_rating")

	assert.Empty(t, store.appended)
	assert.Empty(t, photos.saved)
	assert.Zero(t, det.calls)
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.Submissions.WithLabelValues("invalid")), 0)
}

func TestWriter_Submit_StoresPhotoAndDetects(t *testing.T) {
	freezeClock(t)
	store := &mockStore{}
	photos := &mockPhotoStore{}
	det := &mockDetector{result: domain.Detected([]string{"Cygnus", "Lyra"})}
	metrics := newTestMetrics()
	w := pipeline.NewWriter(store, photos, det, slog.Default(), metrics)

	in := domain.SubmissionInput{
		Latitude:         domain.Coord(10),
		Longitude:        domain.Coord(20),
		BrightnessRating: 3,
		Photo:            &domain.Photo{Filename: "sky.jpg", ContentType: "image/jpeg", Data: []byte{0xff, 0xd8, 0xff}},
	}
	sub, err := w.Submit(context.Background(), in)
	require.NoError(t, err)

	assert.Equal(t, "photos/"+sub.ID+".jpg", sub.PhotoURL)
	assert.Equal(t, []string{"Cygnus", "Lyra"}, sub.ConstellationNames)
	assert.Equal(t, 1, det.calls)
	assert.Contains(t, photos.saved, sub.ID)
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.PhotosStored), 0)
}

func TestWriter_Submit_GivenNamesSkipDetection(t *testing.T) {
	store := &mockStore{}
	det := &mockDetector{result: domain.Detected([]string{"Lyra"})}
	w := pipeline.NewWriter(store, &mockPhotoStore{}, det, slog.Default(), newTestMetrics())

	in := validInput()
	in.Photo = &domain.Photo{Filename: "sky.png", Data: []byte("png")}
	sub, err := w.Submit(context.Background(), in)
	require.NoError(t, err)

	assert.Zero(t, det.calls)
	assert.Equal(t, []string{"Orion", "Taurus"}, sub.ConstellationNames)
}

func TestWriter_Submit_DetectionFailureStillAccepts(t *testing.T) {
	for _, d := range []domain.Detection{
		domain.DetectionFailure(errors.New("job failed")),
		domain.DetectionTimeout(context.DeadlineExceeded),
	} {
		t.Run(d.Status.String(), func(t *testing.T) {
			store := &mockStore{}
			w := pipeline.NewWriter(store, &mockPhotoStore{}, &mockDetector{result: d}, slog.Default(), newTestMetrics())

			in := domain.SubmissionInput{
				Latitude:         domain.Coord(10),
				Longitude:        domain.Coord(20),
				BrightnessRating: 2,
				Photo:            &domain.Photo{Filename: "sky.jpg", Data: []byte{1}},
			}
			sub, err := w.Submit(context.Background(), in)
			require.NoError(t, err)
			assert.Empty(t, sub.ConstellationNames)
			assert.Len(t, store.appended, 1)
		})
	}
}

func TestWriter_Submit_PhotoWithoutPhotoStore(t *testing.T) {
	store := &mockStore{}
	w := pipeline.NewWriter(store, nil, nil, slog.Default(), newTestMetrics())

	in := domain.SubmissionInput{
		Latitude:         domain.Coord(10),
		Longitude:        domain.Coord(20),
		BrightnessRating: 2,
		Photo:            &domain.Photo{Filename: "sky.jpg", Data: []byte{1}},
	}
	_, err := w.Submit(context.Background(), in)
	require.ErrorIs(t, err, domain.ErrWrite)
	require.ErrorIs(t, err, domain.ErrConfiguration)
	assert.Empty(t, store.appended)
}

func TestWriter_Submit_PhotoSaveFails(t *testing.T) {
	store := &mockStore{}
	photos := &mockPhotoStore{saveErr: errors.New("bucket missing")}
	w := pipeline.NewWriter(store, photos, nil, slog.Default(), newTestMetrics())

	in := domain.SubmissionInput{
		Latitude:         domain.Coord(10),
		Longitude:        domain.Coord(20),
		BrightnessRating: 2,
		Photo:            &domain.Photo{Filename: "sky.jpg", Data: []byte{1}},
	}
	_, err := w.Submit(context.Background(), in)
	require.ErrorIs(t, err, domain.ErrWrite)
	assert.Empty(t, store.appended)
}

func TestWriter_Submit_AppendFailureRemovesPhoto(t *testing.T) {
	store := &mockStore{appendErr: &domain.DataSourceError{Backend: "local", Op: "append", Err: errors.New("read-only file system")}}
	photos := &mockPhotoStore{}
	metrics := newTestMetrics()
	w := pipeline.NewWriter(store, photos, nil, slog.Default(), metrics)

	in := domain.SubmissionInput{
		Latitude:         domain.Coord(10),
		Longitude:        domain.Coord(20),
		BrightnessRating: 2,
		Photo:            &domain.Photo{Filename: "sky.jpg", Data: []byte{1}},
	}
	_, err := w.Submit(context.Background(), in)
	require.ErrorIs(t, err, domain.ErrWrite)
	require.ErrorIs(t, err, domain.ErrDataSource)

	var we *domain.WriteError
	require.ErrorAs(t, err, &we)
	assert.NotEmpty(t, we.ID)
	assert.Equal(t, []string{"photos/" + we.ID + ".jpg"}, photos.removed)
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.Submissions.WithLabelValues("error")), 0)
}
