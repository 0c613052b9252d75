package kafka

import (
	"context"
	"encoding/json"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/segmentio/kafka-go"

	"github.com/vicc-go/disease-normalizer/pkg/tracing"
)

// Producer handles Kafka event emission
type Producer struct {
	writer *kafka.Writer
	logger ectologger.Logger
	topic  string
}

// ProducerConfig holds Kafka producer configuration
type ProducerConfig struct {
	Brokers      []string
	Topic        string
	BatchSize    int
	BatchTimeout time.Duration
	RequiredAcks int
	Compression  string
}

// NewProducer creates a new Kafka producer
func NewProducer(cfg ProducerConfig, logger ectologger.Logger) *Producer {
	compression := kafka.Snappy
	switch cfg.Compression {
	case "gzip":
		compression = kafka.Gzip
	case "lz4":
		compression = kafka.Lz4
	case "zstd":
		compression = kafka.Zstd
	case "none":
		compression = 0
	}

	requiredAcks := kafka.RequiredAcks(cfg.RequiredAcks)

	writer := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Balancer:               &kafka.LeastBytes{},
		BatchSize:              cfg.BatchSize,
		BatchTimeout:           cfg.BatchTimeout,
		RequiredAcks:           requiredAcks,
		Compression:            compression,
		AllowAutoTopicCreation: true,
	}

	return &Producer{
		writer: writer,
		logger: logger,
		topic:  cfg.Topic,
	}
}

// Close closes the producer
func (p *Producer) Close() error {
	return p.writer.Close()
}

// NormalizerEvent represents an event about the normalized disease set
type NormalizerEvent struct {
	EventType string          `json:"event_type"` // rebuild.completed, source.loaded
	Key       string          `json:"key"`
	Source    string          `json:"source,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// PublishEvent publishes a normalizer event to Kafka
func (p *Producer) PublishEvent(ctx context.Context, event *NormalizerEvent) error {
	ctx, span := tracing.StartSpan(ctx, "kafka.Producer.PublishEvent")
	defer span.End()

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	msg := kafka.Message{
		Topic: p.topic,
		Key:   []byte(event.Key),
		Value: data,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.EventType)},
			{Key: "source", Value: []byte(event.Source)},
		},
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.logger.WithContext(ctx).WithError(err).Error("Failed to publish normalizer event")
		return err
	}

	p.logger.WithContext(ctx).WithFields(map[string]any{
		"event_type": event.EventType,
		"key":        event.Key,
	}).Debug("Published normalizer event")

	return nil
}

// PublishEvents publishes multiple normalizer events in a batch
func (p *Producer) PublishEvents(ctx context.Context, events []*NormalizerEvent) error {
	ctx, span := tracing.StartSpan(ctx, "kafka.Producer.PublishEvents")
	defer span.End()

	if len(events) == 0 {
		return nil
	}

	messages := make([]kafka.Message, len(events))
	for i, event := range events {
		if event.Timestamp.IsZero() {
			event.Timestamp = time.Now().UTC()
		}

		data, err := json.Marshal(event)
		if err != nil {
			return err
		}

		messages[i] = kafka.Message{
			Topic: p.topic,
			Key:   []byte(event.Key),
			Value: data,
			Headers: []kafka.Header{
				{Key: "event_type", Value: []byte(event.EventType)},
				{Key: "source", Value: []byte(event.Source)},
				{Key: "schema_version", Value: []byte("1.0")},
			},
		}
	}

	if err := p.writer.WriteMessages(ctx, messages...); err != nil {
		p.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"batch_size": len(events),
		}).Error("Failed to publish normalizer events batch")
		return err
	}

	p.logger.WithContext(ctx).WithFields(map[string]any{
		"batch_size": len(events),
	}).Debug("Published normalizer events batch")

	return nil
}
