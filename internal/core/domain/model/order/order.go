package order

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"fulfillment/internal/core/domain/model/kernel"
	"fulfillment/internal/pkg/errs"
)

var (
	// ErrOrderIsNotConstructed is returned when an Order instance was not created through
	// NewOrder or RestoreOrder.
	ErrOrderIsNotConstructed = errors.New("Order must be created via NewOrder constructor")

	// ErrInvalidTransition is returned when a stage is entered out of sequence.
	ErrInvalidTransition = errors.New("invalid status transition")
)

// Order is the aggregate root tracking one customer order through the
// fulfillment workflow. Its identity is the pair (localID, orderID); orderID
// alone is unique.
//
// Order follows these invariants:
//   - orderID is a non-empty opaque string supplied by the inbound message
//   - pendingToken is set exactly while the order rests in a suspending stage
//   - terminal orders (Delivered, Failed) never change again
//   - orders are never deleted
//
// The pending token lives on the order so that resuming is a single-row
// conditional update instead of a "latest ledger record" lookup.
type Order struct {
	// orderID is the external identifier, e.g. "PED-00123"
	orderID string

	// localID identifies the store that owns the order (may be empty)
	localID string

	// status is the stage the order currently rests in
	status Status

	// executionID identifies the workflow execution started for this order
	executionID string

	// pendingToken is the continuation awaited by the current stage
	pendingToken kernel.Token

	// pendingSince is when the current stage was entered (zero when nothing is awaited)
	pendingSince time.Time

	createdAt time.Time
	updatedAt time.Time

	// isConstructed ensures the order was created via NewOrder or RestoreOrder
	isConstructed bool
}

// NewOrder creates an order that has not entered any stage yet.
// Its status is Processing with no pending token; the first stage handler
// mints the token.
//
// Parameters:
//   - orderID: external order identifier (required)
//   - localID: owning store identifier (optional)
//   - now: creation time
//
// Returns:
//   - *Order: the created order
//   - error: ValueIsRequiredError when orderID is blank
//
// Example:
//
//	o, err := order.NewOrder("PED-00123", "LOCAL-1", time.Now())
//	if err != nil {
//	    // Handle validation error
//	}
func NewOrder(orderID, localID string, now time.Time) (*Order, error) {
	o := &Order{
		status:        Processing,
		executionID:   kernel.NewExecutionID(),
		createdAt:     now.UTC(),
		updatedAt:     now.UTC(),
		isConstructed: true,
	}

	if err := errors.Join(
		o.setOrderID(orderID),
		o.setLocalID(localID),
	); err != nil {
		return nil, err
	}

	return o, nil
}

// RestoreOrder rebuilds an order from persisted state without validation of
// the transition history. Only repositories should call it.
func RestoreOrder(
	orderID, localID string,
	status Status,
	executionID string,
	pendingToken kernel.Token,
	pendingSince, createdAt, updatedAt time.Time,
) *Order {
	return &Order{
		orderID:       orderID,
		localID:       localID,
		status:        status,
		executionID:   executionID,
		pendingToken:  pendingToken,
		pendingSince:  pendingSince,
		createdAt:     createdAt,
		updatedAt:     updatedAt,
		isConstructed: true,
	}
}

// Validate ensures the Order instance was properly constructed.
func (o *Order) Validate() error {
	if o == nil || !o.isConstructed {
		return ErrOrderIsNotConstructed
	}
	return nil
}

// OrderID returns the external order identifier.
func (o *Order) OrderID() string {
	return o.orderID
}

// LocalID returns the owning store identifier.
func (o *Order) LocalID() string {
	return o.localID
}

// Status returns the stage the order currently rests in.
func (o *Order) Status() Status {
	return o.status
}

// ExecutionID returns the workflow execution identifier.
func (o *Order) ExecutionID() string {
	return o.executionID
}

// PendingToken returns the awaited continuation token, or the zero token.
func (o *Order) PendingToken() kernel.Token {
	return o.pendingToken
}

// PendingSince returns when the awaited stage was entered.
func (o *Order) PendingSince() time.Time {
	return o.pendingSince
}

// IsPending reports whether the order awaits an external callback.
func (o *Order) IsPending() bool {
	return !o.pendingToken.IsZero()
}

// CreatedAt returns the creation time.
func (o *Order) CreatedAt() time.Time {
	return o.createdAt
}

// UpdatedAt returns the time of the last transition.
func (o *Order) UpdatedAt() time.Time {
	return o.updatedAt
}

// EnterStage moves the order into next and records the token the new stage awaits.
//
// This method enforces the following business rules:
//   - the move must be allowed by Status.CanTransitionTo
//   - suspending stages require a non-zero token
//   - terminal stages must not carry a token
//
// Parameters:
//   - next: the stage being entered
//   - token: the continuation the stage awaits (zero for terminal stages)
//   - at: transition time
//
// Example:
//
//	token := kernel.NewToken()
//	if err := o.EnterStage(order.InKitchen, token, now); err != nil {
//	    return err
//	}
func (o *Order) EnterStage(next Status, token kernel.Token, at time.Time) error {
	if err := next.Validate(); err != nil {
		return err
	}
	if !o.status.CanTransitionTo(next) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, o.status, next)
	}
	if next.Suspends() && token.IsZero() {
		return errs.NewValueIsRequiredErrorWithCause("token", fmt.Errorf("stage %s suspends", next))
	}
	if !next.Suspends() && !token.IsZero() {
		return errs.NewValueIsInvalidErrorWithCause("token", fmt.Errorf("stage %s does not suspend", next))
	}

	o.status = next
	o.pendingToken = token
	o.updatedAt = at.UTC()
	if next.Suspends() {
		o.pendingSince = at.UTC()
	} else {
		o.pendingSince = time.Time{}
	}
	return nil
}

func (o *Order) setOrderID(orderID string) error {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return errs.NewValueIsRequiredError("orderID")
	}
	o.orderID = orderID
	return nil
}

func (o *Order) setLocalID(localID string) error {
	o.localID = strings.TrimSpace(localID)
	return nil
}
