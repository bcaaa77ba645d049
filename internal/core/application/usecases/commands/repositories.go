// Package commands contains business operations that modify system state.
// Implements the Command pattern for write operations in the CQRS architecture.
// Every command is built through its constructor and validated by its handler.
package commands

import (
	"context"

	"fulfillment/internal/core/application/workflow"
	"fulfillment/internal/core/domain/model/kernel"
	"fulfillment/internal/core/domain/model/order"
)

// Workflow entry points used by the command handlers. *workflow.Orchestrator
// satisfies both.
type (
	// WorkflowStarter starts one workflow execution per order.
	WorkflowStarter interface {
		Start(ctx context.Context, orderID string, initial order.Context) (workflow.ExecutionHandle, error)
	}

	// WorkflowResumer delivers an actor outcome to the continuation holding token.
	//
	// Example:
	//   res, err := resumer.Resume(ctx, "O1", token, workflow.Outcome{Status: "ACEPTADO"})
	//   if err != nil {
	//       return err
	//   }
	//   if !res.Applied {
	//       // duplicate or stale callback
	//   }
	WorkflowResumer interface {
		Resume(ctx context.Context, orderID string, token kernel.Token, outcome workflow.Outcome) (workflow.ResumeResult, error)
	}
)
