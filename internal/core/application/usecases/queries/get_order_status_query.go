// Package queries contains read-only operations over orders and their ledger.
package queries

import (
	"errors"
	"strings"
	"time"

	"fulfillment/internal/pkg/errs"
	"fulfillment/internal/pkg/guard"
)

var ErrGetOrderStatusQueryIsNotConstructed = errors.New(
	"GetOrderStatusQuery must be created via NewGetOrderStatusQuery constructor",
)

// GetOrderStatusQuery retrieves the current state of one order.
//
// Example:
//
//	query, err := NewGetOrderStatusQuery("O1")
//	if err != nil {
//	    return err
//	}
//	status, err := handler.Handle(ctx, query)
//	if errors.Is(err, errs.ErrObjectNotFound) {
//	    // unknown order
//	}
type GetOrderStatusQuery struct {
	orderID string

	guard guard.ConstructorGuard
}

func NewGetOrderStatusQuery(orderID string) (GetOrderStatusQuery, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return GetOrderStatusQuery{}, errs.NewValueIsRequiredError("orderID")
	}
	return GetOrderStatusQuery{orderID: orderID, guard: guard.NewConstructorGuard()}, nil
}

// Validate ensures the query was created through the constructor.
func (q GetOrderStatusQuery) Validate() error {
	return q.guard.Validate(ErrGetOrderStatusQueryIsNotConstructed)
}

func (q GetOrderStatusQuery) OrderID() string {
	return q.orderID
}

// GetOrderStatusQueryResponse is the current state of an order. PendingSince
// is set while the order awaits an external actor.
type GetOrderStatusQueryResponse struct {
	OrderID      string     `json:"order_id"`
	LocalID      string     `json:"local_id,omitempty"`
	Status       string     `json:"status"`
	ExecutionID  string     `json:"execution_id"`
	Pending      bool       `json:"pending"`
	PendingSince *time.Time `json:"pending_since,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}
