package commands

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"strings"

	"fulfillment/internal/core/domain/model/order"
	"fulfillment/internal/pkg/errs"
	"fulfillment/internal/pkg/guard"
)

var ErrSubmitOrderCommandIsNotConstructed = errors.New(
	"SubmitOrderCommand must be created via NewSubmitOrderCommand constructor",
)

// DefaultSubmittedStatus is the estado of orders submitted without one.
const DefaultSubmittedStatus = "NUEVO"

// SubmitOrderCommand places a new order on the inbound queue. The workflow
// starts when the dispatcher pops it.
type SubmitOrderCommand struct { //nolint:recvcheck //using for validation
	order InboundOrder

	guard guard.ConstructorGuard
}

func NewSubmitOrderCommand(orderID, status, localID string, items []order.LineItem) (SubmitOrderCommand, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return SubmitOrderCommand{}, errs.NewValueIsRequiredError("orderID")
	}
	status = strings.TrimSpace(status)
	if status == "" {
		status = DefaultSubmittedStatus
	}
	for i, item := range items {
		if item.Quantity <= 0 {
			return SubmitOrderCommand{}, errs.NewValueIsOutOfRangeError(fmt.Sprintf("items[%d].quantity", i), item.Quantity, 1, math.MaxInt)
		}
	}

	return SubmitOrderCommand{
		order: InboundOrder{
			OrderID: orderID,
			Status:  status,
			LocalID: strings.TrimSpace(localID),
			Items:   slices.Clone(items),
		},
		guard: guard.NewConstructorGuard(),
	}, nil
}

// Validate ensures the command was created through the constructor.
func (c SubmitOrderCommand) Validate() error {
	return c.guard.Validate(ErrSubmitOrderCommandIsNotConstructed)
}

func (c SubmitOrderCommand) Order() InboundOrder {
	o := c.order
	o.Items = slices.Clone(c.order.Items)
	return o
}
