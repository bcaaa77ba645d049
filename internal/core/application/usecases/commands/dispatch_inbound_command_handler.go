package commands

import (
	"context"
	"fmt"

	"fulfillment/internal/core/ports"
	"fulfillment/internal/pkg/errs"
	"fulfillment/internal/pkg/metrics"

	"github.com/rs/zerolog"
)

// Dispatch outcomes per message, as counted by metrics.
const (
	dispatchStarted      = "started"
	dispatchMalformed    = "malformed"
	dispatchStartFailed  = "start_failed"
	dispatchDeleteFailed = "delete_failed"
)

// Execution is one workflow started from an inbound message.
type Execution struct {
	MessageID    string `json:"message_id"`
	OrderID      string `json:"order_id"`
	Status       string `json:"estado"`
	ExecutionRef string `json:"execution_ref"`
}

// DispatchFailure is one inbound message that did not start a workflow.
// The message stays on the queue and is redelivered after its visibility
// timeout.
type DispatchFailure struct {
	MessageID string `json:"message_id"`
	Error     string `json:"error"`
}

// DispatchResult reports one dispatch batch.
type DispatchResult struct {
	Popped     int               `json:"popped"`
	Executions []Execution       `json:"executions"`
	Failures   []DispatchFailure `json:"failures"`
}

// HasFailures reports whether at least one message failed.
func (r DispatchResult) HasFailures() bool {
	return len(r.Failures) > 0
}

// DispatchInboundCommandHandler is the queue-to-workflow dispatcher.
// A message is deleted from the inbound queue only after its workflow started.
type DispatchInboundCommandHandler struct {
	inbound ports.InboundQueue
	start   StartOrderCommandHandler
	logger  zerolog.Logger
	metrics *metrics.Workflow
}

// NewDispatchInboundCommandHandler creates the dispatcher. m may be nil.
func NewDispatchInboundCommandHandler(
	inbound ports.InboundQueue,
	starter WorkflowStarter,
	logger zerolog.Logger,
	m *metrics.Workflow,
) (DispatchInboundCommandHandler, error) {
	if inbound == nil {
		return DispatchInboundCommandHandler{}, errs.NewValueIsRequiredError("inbound")
	}
	start, err := NewStartOrderCommandHandler(starter)
	if err != nil {
		return DispatchInboundCommandHandler{}, err
	}

	return DispatchInboundCommandHandler{
		inbound: inbound,
		start:   start,
		logger:  logger,
		metrics: m,
	}, nil
}

// Handle receives one batch and dispatches every message in it. Per-message
// problems are reported in the result; only a failed receive is an error.
func (h DispatchInboundCommandHandler) Handle(ctx context.Context, cmd DispatchInboundCommand) (DispatchResult, error) {
	if err := cmd.Validate(); err != nil {
		return DispatchResult{}, err
	}

	messages, err := h.inbound.Receive(ctx, ports.ReceiveOptions{
		MaxMessages:       cmd.MaxMessages(),
		Wait:              cmd.Wait(),
		VisibilityTimeout: cmd.VisibilityTimeout(),
	})
	if err != nil {
		return DispatchResult{}, fmt.Errorf("receive inbound messages: %w", err)
	}

	result := DispatchResult{
		Popped:     len(messages),
		Executions: []Execution{},
		Failures:   []DispatchFailure{},
	}
	for _, m := range messages {
		exec, err := h.dispatch(ctx, m)
		if err != nil {
			h.logger.Error().Err(err).Str("message_id", m.ID).Msg("inbound message not dispatched")
			result.Failures = append(result.Failures, DispatchFailure{MessageID: m.ID, Error: err.Error()})
			continue
		}
		result.Executions = append(result.Executions, exec)
	}
	return result, nil
}

func (h DispatchInboundCommandHandler) dispatch(ctx context.Context, m ports.InboundMessage) (Execution, error) {
	parsed, err := ParseInboundMessage(m.Body)
	if err != nil {
		h.metrics.Dispatched(dispatchMalformed)
		return Execution{}, err
	}

	cmd, err := NewStartOrderCommand(parsed.OrderID, parsed.Status, parsed.LocalID, parsed.Items)
	if err != nil {
		h.metrics.Dispatched(dispatchMalformed)
		return Execution{}, fmt.Errorf("%w: %w", ErrMalformedMessage, err)
	}

	handle, err := h.start.Handle(ctx, cmd)
	if err != nil {
		h.metrics.Dispatched(dispatchStartFailed)
		return Execution{}, fmt.Errorf("start order %s: %w", parsed.OrderID, err)
	}

	exec := Execution{
		MessageID:    m.ID,
		OrderID:      handle.OrderID,
		Status:       parsed.Status,
		ExecutionRef: handle.ExecutionID,
	}

	// Start is idempotent; a redelivery at most resends the kitchen hand-off.
	if err = h.inbound.Delete(ctx, m.Receipt); err != nil {
		h.metrics.Dispatched(dispatchDeleteFailed)
		h.logger.Warn().Err(err).
			Str("message_id", m.ID).
			Str("order_id", handle.OrderID).
			Msg("workflow started but inbound message not deleted")
		return exec, nil
	}

	h.metrics.Dispatched(dispatchStarted)
	h.logger.Info().
		Str("message_id", m.ID).
		Str("order_id", handle.OrderID).
		Str("execution_id", handle.ExecutionID).
		Msg("inbound order dispatched")
	return exec, nil
}
