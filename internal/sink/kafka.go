package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/notifyhub/order-alerts/internal/domain"
)

// MessageWriter is the part of *kafka.Writer the sink uses.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaSink publishes alerts to a topic so other services can react to
// them. Haptics and sound have no meaning there.
type KafkaSink struct {
	w MessageWriter
}

// NewKafkaWriter builds a writer that keys messages onto partitions by
// alert id.
func NewKafkaWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
	}
}

func NewKafkaSink(w MessageWriter) *KafkaSink {
	return &KafkaSink{w: w}
}

func (s *KafkaSink) Show(ctx context.Context, a domain.Alert) error {
	value, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("marshal alert: %w", err)
	}
	msg := kafka.Message{
		Key:   []byte(a.ID),
		Value: value,
		Time:  a.CreatedAt,
		Headers: []kafka.Header{
			{Key: "source", Value: []byte(a.Source)},
		},
	}
	if err := s.w.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish alert %s: %w", a.ID, err)
	}
	return nil
}

func (s *KafkaSink) Vibrate(context.Context, time.Duration) error {
	return domain.ErrUnsupported
}

func (s *KafkaSink) PlayDefaultSound(context.Context) error {
	return domain.ErrUnsupported
}

// Close flushes and closes the underlying writer.
func (s *KafkaSink) Close() error {
	return s.w.Close()
}

var _ Sink = (*KafkaSink)(nil)
