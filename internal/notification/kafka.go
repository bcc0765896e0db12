package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	kafkago "github.com/segmentio/kafka-go"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// KafkaEmitter publishes notifications as JSON, keyed by borrower so one
// borrower's messages stay ordered within a partition.
type KafkaEmitter struct {
	writer messageWriter
	topic  string
	logger *slog.Logger
}

func NewKafkaEmitter(brokers []string, topic string, logger *slog.Logger) *KafkaEmitter {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireOne,
		BatchTimeout: 50 * time.Millisecond,
	}
	return &KafkaEmitter{writer: w, topic: topic, logger: logger}
}

func (e *KafkaEmitter) Notify(ctx context.Context, n Notification) error {
	payload, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("marshal notification %s: %w", n.Kind, err)
	}

	e.logger.DebugContext(ctx, "publishing notification",
		"kind", n.Kind,
		"borrower_id", n.BorrowerID,
		"topic", e.topic,
		"payload_size", len(payload),
	)

	msg := kafkago.Message{
		Key:   []byte(n.BorrowerID),
		Value: payload,
		Headers: []kafkago.Header{
			{Key: "kind", Value: []byte(n.Kind)},
			{Key: "notification_id", Value: []byte(n.ID.String())},
		},
	}
	if err := e.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to publish notification to topic %s: %w", e.topic, err)
	}
	return nil
}

func (e *KafkaEmitter) Close() error {
	return e.writer.Close()
}
