package sink

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/segmentio/kafka-go"

	"github.com/vitalsync/wearsync/internal/reading"
)

// KafkaSink publishes readings to the backend ingestion topic, keyed by the
// authenticated user so per-user ordering is preserved within a partition.
type KafkaSink struct {
	writer *kafka.Writer
	userID string
}

// NewKafkaSink creates a sink writing to topic on the given brokers.
func NewKafkaSink(brokers []string, topic, userID string) *KafkaSink {
	return &KafkaSink{
		writer: &kafka.Writer{
			Addr:     kafka.TCP(brokers...),
			Topic:    topic,
			Balancer: &kafka.Hash{},
		},
		userID: userID,
	}
}

// Store implements gateway.Sink.
func (s *KafkaSink) Store(ctx context.Context, r reading.WearableReading) error {
	payload, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("marshal reading %s: %w", r.ID, err)
	}
	err = s.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(s.userID),
		Value: payload,
	})
	if err != nil {
		return fmt.Errorf("publish reading %s: %w", r.ID, err)
	}
	return nil
}

// Close flushes and closes the underlying writer.
func (s *KafkaSink) Close() error {
	return s.writer.Close()
}
