package ports

import (
	"context"
	"time"

	"fulfillment/internal/core/domain/model/order"
)

// QueueName identifies a stage work queue.
type QueueName string

const (
	KitchenQueue  QueueName = "kitchen"
	DeliveryQueue QueueName = "delivery"

	// ManualQueue receives orders escalated to human review.
	ManualQueue QueueName = "manual"
)

// WorkAction tells a worker what to do with a WorkItem.
type WorkAction string

const (
	ActionCook           WorkAction = "COCINAR"
	ActionDeliver        WorkAction = "DELIVERY"
	ActionManualRevision WorkAction = "REVISION_MANUAL"
)

// WorkItem is the message placed on a stage work queue.
type WorkItem struct {
	OrderID string        `json:"order_id"`
	Action  WorkAction    `json:"action"`
	Details order.Context `json:"details"`
}

// WorkQueue is a durable at-least-once queue per stage.
type WorkQueue interface {
	// Enqueue places item on queue. Implementations retry transient failures
	// with bounded backoff before giving up.
	Enqueue(ctx context.Context, queue QueueName, item WorkItem) error
}

// InboundMessage is one message received from the inbound (new order) queue.
type InboundMessage struct {
	// ID identifies the message for reporting.
	ID string

	// Receipt acknowledges the message via Delete.
	Receipt string

	Body string
}

// ReceiveOptions bound a single receive call.
type ReceiveOptions struct {
	MaxMessages int

	// Wait is how long to block for the first message.
	Wait time.Duration

	// VisibilityTimeout hides received messages from other receivers until it
	// elapses; undeleted messages then become receivable again.
	VisibilityTimeout time.Duration
}

// InboundQueue carries new-order messages into the workflow.
type InboundQueue interface {
	Receive(ctx context.Context, opts ReceiveOptions) ([]InboundMessage, error)

	// Delete acknowledges a received message so it is never redelivered.
	Delete(ctx context.Context, receipt string) error

	// Send enqueues a new-order message and returns its id.
	Send(ctx context.Context, body string) (string, error)
}
