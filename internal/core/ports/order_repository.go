// Package ports defines the contracts between the fulfillment core and its
// infrastructure: storage, work queues, the inbound queue and the event bus.
package ports

import (
	"context"
	"time"

	"fulfillment/internal/core/domain/model/kernel"
	"fulfillment/internal/core/domain/model/order"
)

// OrderRepository defines the persistence contract for order aggregates.
type OrderRepository interface {
	// Add persists a new order.
	// Returns an error wrapping errs.ErrObjectAlreadyExists when the order id is taken.
	Add(ctx context.Context, aggregate *order.Order) error

	// Update persists a transition of an existing order. The write only
	// applies while the stored pending token still equals expected; otherwise
	// it fails with an error wrapping errs.ErrConcurrentUpdate. This single-row
	// conditional update is what deduplicates concurrent resumes.
	Update(ctx context.Context, aggregate *order.Order, expected kernel.Token) error

	// Get retrieves an order by its external identifier.
	// Returns an error wrapping errs.ErrObjectNotFound when absent.
	Get(ctx context.Context, orderID string) (*order.Order, error)

	// ListStuck returns up to limit orders that await a continuation entered
	// before olderThan, oldest first.
	ListStuck(ctx context.Context, olderThan time.Time, limit int) ([]*order.Order, error)
}
