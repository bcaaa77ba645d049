package ports

import (
	"context"

	"fulfillment/internal/core/domain/model/event"
)

// EventPublisher publishes onto the event bus.
type EventPublisher interface {
	// PublishStatus publishes a worker status change. The callback dispatcher
	// consumes these.
	PublishStatus(ctx context.Context, e event.StatusEvent) error

	// PublishNotification publishes a completion or escalation notification.
	PublishNotification(ctx context.Context, n event.Notification) error
}

// StatusEventHandler consumes status events delivered by the event bus.
type StatusEventHandler func(ctx context.Context, e event.StatusEvent) error
