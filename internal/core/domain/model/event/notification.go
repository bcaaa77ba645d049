package event

import "time"

// NotificationKind distinguishes messages published on the notification topic.
type NotificationKind string

const (
	// KindCompleted thanks the customer once the order was delivered.
	KindCompleted NotificationKind = "ORDER_COMPLETED"

	// KindEscalated asks an operator to review an order that exhausted its retries.
	KindEscalated NotificationKind = "ORDER_ESCALATED"

	// KindFailed reports an order an actor failed or cancelled permanently.
	KindFailed NotificationKind = "ORDER_FAILED"
)

// Notification is an outbound message for downstream consumers.
// Delivery is at-least-once.
type Notification struct {
	OrderID string           `json:"order_id"`
	Kind    NotificationKind `json:"kind"`
	LocalID string           `json:"local_id,omitempty"`
	Message string           `json:"message"`
	At      time.Time        `json:"at"`
}
