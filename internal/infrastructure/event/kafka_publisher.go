package event

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mystique/backend/internal/domain/shared"
	"github.com/mystique/backend/internal/infrastructure/config"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// Kafka message header names
const (
	HeaderEventType     = "event-type"
	HeaderAggregateType = "aggregate-type"
)

// messageWriter is the subset of *kafka.Writer the publisher needs
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes domain events to a Kafka topic. Messages are keyed by
// aggregate id so all events of one order land on the same partition in order
type KafkaPublisher struct {
	writer     messageWriter
	serializer *EventSerializer
	topic      string
	logger     *zap.Logger
}

// NewKafkaPublisher creates a publisher for cfg.Topic on cfg.Brokers
func NewKafkaPublisher(cfg config.KafkaConfig, serializer *EventSerializer, logger *zap.Logger) (*KafkaPublisher, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("kafka: no brokers configured")
	}
	if cfg.Topic == "" {
		return nil, errors.New("kafka: topic is required")
	}
	w := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Topic:                  cfg.Topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		BatchTimeout:           cfg.BatchTimeout,
		AllowAutoTopicCreation: true,
	}
	return newKafkaPublisher(w, cfg.Topic, serializer, logger), nil
}

func newKafkaPublisher(w messageWriter, topic string, serializer *EventSerializer, logger *zap.Logger) *KafkaPublisher {
	if serializer == nil {
		serializer = NewDefaultEventSerializer()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &KafkaPublisher{writer: w, serializer: serializer, topic: topic, logger: logger}
}

// Send writes the events in one batch
func (p *KafkaPublisher) Send(ctx context.Context, events ...shared.DomainEvent) error {
	if len(events) == 0 {
		return nil
	}
	msgs := make([]kafka.Message, 0, len(events))
	for _, event := range events {
		value, err := p.serializer.Serialize(event)
		if err != nil {
			return err
		}
		msgs = append(msgs, kafka.Message{
			Key:   []byte(event.AggregateID().String()),
			Value: value,
			Time:  event.OccurredAt(),
			Headers: []kafka.Header{
				{Key: HeaderEventType, Value: []byte(event.EventType())},
				{Key: HeaderAggregateType, Value: []byte(event.AggregateType())},
			},
		})
	}

	start := time.Now()
	if err := p.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("kafka: write %d message(s) to %s: %w", len(msgs), p.topic, err)
	}
	p.logger.Debug("events sent to kafka",
		zap.String("topic", p.topic),
		zap.Int("count", len(msgs)),
		zap.Duration("duration", time.Since(start)),
	)
	return nil
}

// Close flushes pending writes and closes the connection
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
