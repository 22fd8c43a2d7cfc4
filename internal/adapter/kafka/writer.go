package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/couchcryptid/skylore-service/internal/config"
	"github.com/couchcryptid/skylore-service/internal/domain"
	kafkago "github.com/segmentio/kafka-go"
)

// Header keys set on every review message.
const (
	HeaderReviewStatus = "review_status"
	HeaderQueuedAt     = "queued_at"
	HeaderBrightness   = "brightness_rating"

	statusPending = "pending"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Writer publishes imported submissions to the pending-review topic.
// It implements pipeline.ReviewPublisher.
type Writer struct {
	writer messageWriter
	topic  string
	logger *slog.Logger
}

// NewWriter creates a Kafka producer for the configured review topic.
func NewWriter(cfg *config.Config, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:                   kafkago.TCP(cfg.KafkaBrokers...),
		Topic:                  cfg.KafkaReviewTopic,
		Balancer:               &kafkago.Hash{},
		RequiredAcks:           kafkago.RequireAll,
		AllowAutoTopicCreation: true,
	}
	return &Writer{writer: w, topic: cfg.KafkaReviewTopic, logger: logger}
}

// PublishPending serializes and publishes subs in a single WriteMessages
// call. Messages are keyed by submission id so reviews of the same record
// land on one partition.
func (w *Writer) PublishPending(ctx context.Context, subs []domain.Submission) error {
	if len(subs) == 0 {
		return nil
	}
	queuedAt := domain.Now()
	msgs := make([]kafkago.Message, len(subs))
	for i := range subs {
		msg, err := serializeToMessage(subs[i], queuedAt)
		if err != nil {
			return err
		}
		msgs[i] = msg
	}
	if err := w.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("write review messages: %w", err)
	}
	w.logger.Debug("review batch published", "topic", w.topic, "count", len(msgs))
	return nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// serializeToMessage marshals a Submission into a pending-review message.
func serializeToMessage(sub domain.Submission, queuedAt time.Time) (kafkago.Message, error) {
	data, err := json.Marshal(sub)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize submission: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(sub.ID),
		Value: data,
		Headers: []kafkago.Header{
			{Key: HeaderReviewStatus, Value: []byte(statusPending)},
			{Key: HeaderQueuedAt, Value: []byte(queuedAt.Format(time.RFC3339))},
			{Key: HeaderBrightness, Value: []byte(strconv.Itoa(sub.BrightnessRating))},
		},
	}, nil
}

// DecodeMessage turns a review message back into a submission.
func DecodeMessage(msg kafkago.Message) (domain.Submission, error) {
	var sub domain.Submission
	if err := json.Unmarshal(msg.Value, &sub); err != nil {
		return domain.Submission{}, fmt.Errorf("decode review message %s: %w", msg.Key, err)
	}
	return sub, nil
}
