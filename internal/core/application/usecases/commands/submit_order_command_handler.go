package commands

import (
	"context"
	"fmt"

	"fulfillment/internal/core/ports"
	"fulfillment/internal/pkg/errs"
)

// SubmitOrderCommandHandler sends new orders to the inbound queue.
type SubmitOrderCommandHandler struct {
	inbound ports.InboundQueue
}

func NewSubmitOrderCommandHandler(inbound ports.InboundQueue) (SubmitOrderCommandHandler, error) {
	if inbound == nil {
		return SubmitOrderCommandHandler{}, errs.NewValueIsRequiredError("inbound")
	}
	return SubmitOrderCommandHandler{inbound: inbound}, nil
}

// Handle sends the order in its JSON message form and returns the message id.
func (h SubmitOrderCommandHandler) Handle(ctx context.Context, cmd SubmitOrderCommand) (string, error) {
	if err := cmd.Validate(); err != nil {
		return "", err
	}

	body, err := cmd.Order().Body()
	if err != nil {
		return "", err
	}

	id, err := h.inbound.Send(ctx, body)
	if err != nil {
		return "", fmt.Errorf("submit order %s: %w", cmd.Order().OrderID, err)
	}
	return id, nil
}
