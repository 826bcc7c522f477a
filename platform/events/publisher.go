// Package events mirrors trigger events onto Kafka so downstream consumers
// (analytics, external sync) observe the same stream the dispatcher processes.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/relaycrm/relaycrm/internal/logging"
	"github.com/relaycrm/relaycrm/internal/models"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// Publisher writes trigger events to a Kafka topic, keyed by tenant so one
// tenant's events stay ordered within a partition.
type Publisher struct {
	writer *kafka.Writer
	logger logging.Logger
}

// NewPublisher creates a Kafka-backed publisher for the given brokers/topic.
func NewPublisher(brokers []string, topic string, logger logging.Logger) *Publisher {
	return &Publisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireOne,
			WriteTimeout: 10 * time.Second,
		},
		logger: logger.With(zap.String("component", "event_publisher")),
	}
}

// Publish emits one trigger event. Serialization or broker failures are
// returned to the caller; the dispatcher treats them as best-effort.
func (p *Publisher) Publish(ctx context.Context, event models.TriggerEvent) error {
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal trigger event: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(event.UserID),
		Value: value,
		Headers: []kafka.Header{
			{Key: "trigger_type", Value: []byte(event.Type)},
			{Key: "source", Value: []byte(event.Source)},
		},
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("write trigger event: %w", err)
	}

	p.logger.Debug("trigger event published",
		zap.String("trigger_type", string(event.Type)),
		zap.String("tenant_id", event.UserID),
	)
	return nil
}

// Close flushes and releases the underlying writer.
func (p *Publisher) Close() error {
	return p.writer.Close()
}
