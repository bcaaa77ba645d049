// Package kafkabus publishes status events and notifications to Kafka.
package kafkabus

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"fulfillment/internal/core/domain/model/event"
	"fulfillment/internal/pkg/errs"
	"fulfillment/internal/pkg/mq"

	"github.com/segmentio/kafka-go"
)

// MessageWriter is the part of *kafka.Writer the publisher needs.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Publisher implements ports.EventPublisher. Messages are keyed by order id
// so that all events of one order land on the same partition.
type Publisher struct {
	statuses      MessageWriter
	notifications MessageWriter
}

// NewWriter creates a writer for topic that hashes message keys onto partitions.
func NewWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		BatchTimeout: 10 * time.Millisecond,
	}
}

func NewPublisher(statuses, notifications MessageWriter) (*Publisher, error) {
	if statuses == nil {
		return nil, errs.NewValueIsRequiredError("statuses")
	}
	if notifications == nil {
		return nil, errs.NewValueIsRequiredError("notifications")
	}
	return &Publisher{statuses: statuses, notifications: notifications}, nil
}

func (p *Publisher) PublishStatus(ctx context.Context, e event.StatusEvent) error {
	if err := e.Validate(); err != nil {
		return err
	}
	value, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to marshal status event: %w", err)
	}
	return produce(ctx, p.statuses, e.OrderID, value)
}

func (p *Publisher) PublishNotification(ctx context.Context, n event.Notification) error {
	value, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}
	return produce(ctx, p.notifications, n.OrderID, value)
}

// Close closes both writers.
func (p *Publisher) Close() error {
	statusErr := p.statuses.Close()
	if err := p.notifications.Close(); err != nil {
		return err
	}
	return statusErr
}

func produce(ctx context.Context, w MessageWriter, key string, value []byte) error {
	msg := kafka.Message{Key: []byte(key), Value: value}
	mq.Inject(ctx, &msg)
	if err := w.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish message for order %s: %w", key, err)
	}
	return nil
}
