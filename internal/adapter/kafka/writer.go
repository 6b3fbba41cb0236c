// Package kafka publishes claim audit events.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/couchcryptid/capyquest-claim/internal/config"
	"github.com/couchcryptid/capyquest-claim/internal/domain"
)

// Writer produces claim events to a Kafka topic.
// It implements claim.EventSink.
type Writer struct {
	writer *kafkago.Writer
	logger *zap.Logger
}

// NewWriter creates a Kafka producer for the configured claim topic.
func NewWriter(cfg *config.Config, logger *zap.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaClaimTopic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Writer{writer: w, logger: logger}
}

// PublishClaimEvent serializes and publishes one finished attempt. Events of
// the same token land on the same partition.
func (w *Writer) PublishClaimEvent(ctx context.Context, ev domain.ClaimEvent) error {
	msg, err := serializeToMessage(ev)
	if err != nil {
		return err
	}
	if err := w.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish claim event %s: %w", ev.AttemptID, err)
	}
	w.logger.Debug("claim event published", zap.String("attempt_id", ev.AttemptID), zap.String("outcome", ev.Outcome()))
	return nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// serializeToMessage marshals a ClaimEvent into a Kafka message. Purchases
// have no token and are keyed by address.
func serializeToMessage(ev domain.ClaimEvent) (kafkago.Message, error) {
	data, err := json.Marshal(ev)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize claim event: %w", err)
	}
	key := ev.TokenID
	if key == "" {
		key = ev.Address
	}
	return kafkago.Message{
		Key:   []byte(key),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "outcome", Value: []byte(ev.Outcome())},
			{Key: "occurred_at", Value: []byte(ev.OccurredAt.Format(time.RFC3339))},
		},
	}, nil
}
