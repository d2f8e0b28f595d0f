package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
)

// KafkaSource consumes booking events from a Kafka topic, one event per message
type KafkaSource struct {
	reader *kafka.Reader
}

func NewKafkaSource(brokers []string, groupID, topic string) *KafkaSource {
	return &KafkaSource{
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers:           brokers,
			GroupID:           groupID,
			Topic:             topic,
			HeartbeatInterval: 3 * time.Second,
			SessionTimeout:    30 * time.Second,
		}),
	}
}

// Lines forwards message values until the context is cancelled.
// Cancellation is the normal way to stop a stream and is not reported as an error.
func (s *KafkaSource) Lines(ctx context.Context, out chan<- string) error {
	for {
		msg, err := s.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("failed to read kafka message: %w", err)
		}

		slog.Debug("Kafka message received", "topic", msg.Topic, "partition", msg.Partition, "offset", msg.Offset)

		select {
		case out <- string(msg.Value):
		case <-ctx.Done():
			return nil
		}
	}
}

func (s *KafkaSource) Close() error {
	if s == nil || s.reader == nil {
		return nil
	}
	return s.reader.Close()
}
