package commands

import (
	"errors"
	"slices"
	"strings"

	"fulfillment/internal/core/domain/model/order"
	"fulfillment/internal/pkg/errs"
	"fulfillment/internal/pkg/guard"
)

var ErrStartOrderCommandIsNotConstructed = errors.New(
	"StartOrderCommand must be created via NewStartOrderCommand constructor",
)

// StartOrderCommand asks the orchestrator to begin fulfilling an order.
//
// Example:
//
//	cmd, err := NewStartOrderCommand("O1", "NUEVO", "L7", nil)
//	if err != nil {
//	    return err
//	}
//	handle, err := handler.Handle(ctx, cmd)
type StartOrderCommand struct { //nolint:recvcheck //using for validation
	orderID string
	status  string
	localID string
	items   []order.LineItem

	guard guard.ConstructorGuard
}

// NewStartOrderCommand validates the order id and captures the initial context.
// status is the state reported by the producer of the order and may be empty.
func NewStartOrderCommand(orderID, status, localID string, items []order.LineItem) (StartOrderCommand, error) {
	cmd := StartOrderCommand{
		status:  strings.TrimSpace(status),
		localID: strings.TrimSpace(localID),
		items:   slices.Clone(items),
		guard:   guard.NewConstructorGuard(),
	}

	if err := cmd.setOrderID(orderID); err != nil {
		return StartOrderCommand{}, err
	}

	return cmd, nil
}

// Validate ensures the command was created through the constructor.
func (c StartOrderCommand) Validate() error {
	return c.guard.Validate(ErrStartOrderCommandIsNotConstructed)
}

func (c StartOrderCommand) OrderID() string {
	return c.orderID
}

func (c StartOrderCommand) Status() string {
	return c.status
}

func (c StartOrderCommand) LocalID() string {
	return c.localID
}

func (c StartOrderCommand) Items() []order.LineItem {
	return slices.Clone(c.items)
}

// InitialContext is the workflow context the first stage receives.
func (c StartOrderCommand) InitialContext() order.Context {
	return order.Context{
		OrderID: c.orderID,
		LocalID: c.localID,
		Status:  c.status,
		Items:   c.Items(),
	}
}

func (c *StartOrderCommand) setOrderID(orderID string) error {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return errs.NewValueIsRequiredError("orderID")
	}

	c.orderID = orderID
	return nil
}
