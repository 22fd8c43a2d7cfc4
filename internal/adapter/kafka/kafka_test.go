package kafka

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/couchcryptid/skylore-service/internal/domain"
	"github.com/google/go-cmp/cmp"
	"github.com/jonboulle/clockwork"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWriter struct {
	msgs   []kafkago.Message
	err    error
	closed bool
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafkago.Message) error {
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeWriter) Close() error {
	f.closed = true
	return nil
}

func testSubmission() domain.Submission {
	return domain.Submission{
		ID:                 "lz3k9-1a2b3c4d",
		PhotoURL:           "https://example.com/sky.jpg",
		Latitude:           35.0,
		Longitude:          -97.0,
		Timestamp:          time.Date(2024, 4, 26, 3, 10, 0, 0, time.UTC),
		BrightnessRating:   4,
		ConstellationNames: []string{"Orion"},
	}
}

func TestSerializeToMessage(t *testing.T) {
	queuedAt := time.Date(2024, 4, 26, 15, 10, 0, 0, time.UTC)

	msg, err := serializeToMessage(testSubmission(), queuedAt)
	require.NoError(t, err)

	assert.Equal(t, []byte("lz3k9-1a2b3c4d"), msg.Key)
	assert.Contains(t, string(msg.Value), `"brightness_rating":4`)
	require.Len(t, msg.Headers, 3)
	assert.Equal(t, HeaderReviewStatus, msg.Headers[0].Key)
	assert.Equal(t, []byte("pending"), msg.Headers[0].Value)
	assert.Equal(t, HeaderQueuedAt, msg.Headers[1].Key)
	assert.Equal(t, []byte(queuedAt.Format(time.RFC3339)), msg.Headers[1].Value)
	assert.Equal(t, []byte("4"), msg.Headers[2].Value)
}

func TestDecodeMessage_RoundTrip(t *testing.T) {
	sub := testSubmission()
	msg, err := serializeToMessage(sub, time.Now())
	require.NoError(t, err)

	got, err := DecodeMessage(msg)
	require.NoError(t, err)
	if diff := cmp.Diff(sub, got); diff != "" {
		t.Errorf("decoded submission mismatch (-want +got):\n%s", diff)
	}

	_, err = DecodeMessage(kafkago.Message{Key: []byte("x"), Value: []byte("{")})
	require.Error(t, err)
}

func TestWriter_PublishPending(t *testing.T) {
	fixed := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	domain.SetClock(clockwork.NewFakeClockAt(fixed))
	t.Cleanup(func() { domain.SetClock(nil) })

	fw := &fakeWriter{}
	w := &Writer{writer: fw, topic: "review", logger: slog.New(slog.NewTextHandler(io.Discard, nil))}

	second := testSubmission()
	second.ID = "lz3ka-99999999"
	require.NoError(t, w.PublishPending(context.Background(), []domain.Submission{testSubmission(), second}))

	require.Len(t, fw.msgs, 2)
	assert.Equal(t, []byte("lz3ka-99999999"), fw.msgs[1].Key)
	assert.Equal(t, []byte(fixed.Format(time.RFC3339)), fw.msgs[0].Headers[1].Value)

	require.NoError(t, w.Close())
	assert.True(t, fw.closed)
}

func TestWriter_PublishPending_EmptyIsNoop(t *testing.T) {
	fw := &fakeWriter{err: errors.New("should not be called")}
	w := &Writer{writer: fw, logger: slog.Default()}

	require.NoError(t, w.PublishPending(context.Background(), nil))
}

func TestWriter_PublishPending_WrapsError(t *testing.T) {
	fw := &fakeWriter{err: errors.New("leader not available")}
	w := &Writer{writer: fw, logger: slog.Default()}

	err := w.PublishPending(context.Background(), []domain.Submission{testSubmission()})
	require.ErrorContains(t, err, "leader not available")
}
