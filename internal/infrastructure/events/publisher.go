package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	appsync "github.com/eshaffer321/booking-sync-backend/internal/application/sync"
)

// messageWriter is the subset of *kafkago.Writer the publisher uses
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// KafkaPublisher emits one CloudEvent per synced booking with changes
type KafkaPublisher struct {
	writer messageWriter
	topic  string
	source string
	logger *slog.Logger
}

// Compile-time interface checks
var (
	_ appsync.ChangePublisher = (*KafkaPublisher)(nil)
	_ appsync.ChangePublisher = NoopPublisher{}
)

// NewKafkaPublisher creates a publisher writing to topic on brokers
func NewKafkaPublisher(brokers []string, topic, source string, logger *slog.Logger) (*KafkaPublisher, error) {
	if len(brokers) == 0 {
		return nil, errors.New("kafka publisher requires at least one broker")
	}
	if topic == "" {
		return nil, errors.New("kafka publisher requires a topic")
	}

	writer := &kafkago.Writer{
		Addr:         kafkago.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
		BatchTimeout: 10 * time.Millisecond,
	}
	return newKafkaPublisher(writer, topic, source, logger), nil
}

func newKafkaPublisher(w messageWriter, topic, source string, logger *slog.Logger) *KafkaPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	if source == "" {
		source = "booking-sync"
	}
	return &KafkaPublisher{
		writer: w,
		topic:  topic,
		source: source,
		logger: logger,
	}
}

// PublishChanges writes the event keyed by booking id
func (p *KafkaPublisher) PublishChanges(ctx context.Context, event appsync.ChangeEvent) error {
	ce, err := NewCloudEvent(p.source, EventTypeBookingSyncChanged, event.BookingID, event)
	if err != nil {
		return err
	}
	value, err := json.Marshal(ce)
	if err != nil {
		return fmt.Errorf("failed to marshal cloud event: %w", err)
	}

	msg := kafkago.Message{
		Key:   []byte(event.BookingID),
		Value: value,
		Time:  ce.Time,
		Headers: []kafkago.Header{
			{Key: "ce_type", Value: []byte(ce.Type)},
			{Key: "ce_id", Value: []byte(ce.ID)},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to publish %s to %s: %w", ce.Type, p.topic, err)
	}

	p.logger.Debug("Published change event",
		"topic", p.topic,
		"event_id", ce.ID,
		"booking_id", event.BookingID,
		"changes", len(event.Changes))
	return nil
}

// Close flushes pending messages
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// NoopPublisher discards events; used when Kafka is disabled
type NoopPublisher struct{}

// PublishChanges does nothing
func (NoopPublisher) PublishChanges(context.Context, appsync.ChangeEvent) error { return nil }
