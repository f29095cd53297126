package events

import (
	"context"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/boreallogic/delphi-app/pkg/models"
)

// DefaultTopic is the topic round events are written to.
const DefaultTopic = "delphi.round-events"

// messageWriter is satisfied by *kafka.Writer.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes events to a topic keyed by study ID, so every event of
// one study lands on the same partition in commit order.
type KafkaPublisher struct {
	writer messageWriter
	topic  string
}

var _ Publisher = (*KafkaPublisher)(nil)

// NewKafkaPublisher creates a producer for the given brokers.
func NewKafkaPublisher(brokers []string, topic string) (*KafkaPublisher, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("at least one broker is required")
	}
	if topic == "" {
		topic = DefaultTopic
	}

	writer := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Balancer:               &kafka.Hash{}, // Hash by study for per-study ordering
		BatchTimeout:           10 * time.Millisecond,
		WriteTimeout:           5 * time.Second,
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
	}

	return newKafkaPublisher(writer, topic), nil
}

func newKafkaPublisher(writer messageWriter, topic string) *KafkaPublisher {
	return &KafkaPublisher{writer: writer, topic: topic}
}

func (p *KafkaPublisher) Publish(ctx context.Context, event *models.RoundEvent) error {
	data, err := Encode(event)
	if err != nil {
		return err
	}

	msg := kafka.Message{
		Topic: p.topic,
		Key:   []byte(event.StudyID.String()),
		Value: data,
		Headers: []kafka.Header{
			{Key: "event-type", Value: []byte(event.Type)},
			{Key: "event-id", Value: []byte(event.ID.String())},
		},
		Time: event.OccurredAt,
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to publish to kafka: %w", err)
	}
	return nil
}

// Close flushes pending writes and closes the producer.
func (p *KafkaPublisher) Close() error {
	if err := p.writer.Close(); err != nil {
		return fmt.Errorf("failed to close kafka writer: %w", err)
	}
	return nil
}
