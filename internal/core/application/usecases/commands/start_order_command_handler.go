package commands

import (
	"context"

	"fulfillment/internal/core/application/workflow"
	"fulfillment/internal/pkg/errs"
)

// StartOrderCommandHandler starts the workflow of a new order.
// Starting an order that already exists returns its existing handle.
type StartOrderCommandHandler struct {
	starter WorkflowStarter
}

// NewStartOrderCommandHandler creates a handler around starter.
func NewStartOrderCommandHandler(starter WorkflowStarter) (StartOrderCommandHandler, error) {
	if starter == nil {
		return StartOrderCommandHandler{}, errs.NewValueIsRequiredError("starter")
	}
	return StartOrderCommandHandler{starter: starter}, nil
}

// Handle starts the workflow. When the first stage committed but its kitchen
// enqueue failed the handle is returned together with the error.
func (h StartOrderCommandHandler) Handle(ctx context.Context, cmd StartOrderCommand) (workflow.ExecutionHandle, error) {
	if err := cmd.Validate(); err != nil {
		return workflow.ExecutionHandle{}, err
	}

	return h.starter.Start(ctx, cmd.OrderID(), cmd.InitialContext())
}
