package commands

import (
	"context"
	"errors"

	"fulfillment/internal/core/application/workflow"
	"fulfillment/internal/core/domain/model/event"
	"fulfillment/internal/core/domain/model/kernel"
	"fulfillment/internal/core/ports"
	"fulfillment/internal/pkg/errs"
	"fulfillment/internal/pkg/metrics"

	"github.com/rs/zerolog"
)

// HandleStatusEventCommandHandler is the callback dispatcher. It finds the
// continuation an order currently awaits and resumes it with the reported
// outcome. Events for unknown orders, for orders that await nothing or whose
// ledger does not match the awaited token are discarded, and so are
// redeliveries of the event that produced the awaited continuation.
//
// Example:
//
//	h, _ := NewHandleStatusEventCommandHandler(uowFactory, orchestrator, logger, m)
//	cmd, _ := NewHandleStatusEventCommand(event.StatusEvent{OrderID: "O1", Status: "Listo"})
//	res, err := h.Handle(ctx, cmd)
//	// res.Applied is false for duplicates; err is nil
type HandleStatusEventCommandHandler struct {
	uowFactory ports.UnitOfWorkFactory
	resumer    WorkflowResumer
	logger     zerolog.Logger
	metrics    *metrics.Workflow
}

// NewHandleStatusEventCommandHandler creates the callback dispatcher.
// m may be nil.
func NewHandleStatusEventCommandHandler(
	uowFactory ports.UnitOfWorkFactory,
	resumer WorkflowResumer,
	logger zerolog.Logger,
	m *metrics.Workflow,
) (HandleStatusEventCommandHandler, error) {
	if uowFactory == nil {
		return HandleStatusEventCommandHandler{}, errs.NewValueIsRequiredError("uowFactory")
	}
	if resumer == nil {
		return HandleStatusEventCommandHandler{}, errs.NewValueIsRequiredError("resumer")
	}

	return HandleStatusEventCommandHandler{
		uowFactory: uowFactory,
		resumer:    resumer,
		logger:     logger,
		metrics:    m,
	}, nil
}

// Handle resumes the awaited continuation of the event's order. Discarded
// events return a ResumeResult with Applied false and a nil error.
func (h HandleStatusEventCommandHandler) Handle(
	ctx context.Context,
	cmd HandleStatusEventCommand,
) (workflow.ResumeResult, error) {
	if err := cmd.Validate(); err != nil {
		return workflow.ResumeResult{}, err
	}

	e := cmd.Event()
	token, reason, err := h.awaitedToken(ctx, e.OrderID)
	if err != nil {
		return workflow.ResumeResult{}, err
	}
	if reason != "" {
		return h.discard(e, reason), nil
	}

	res, err := h.resumer.Resume(ctx, e.OrderID, token, workflow.Outcome{
		Key:       e.Key(),
		EventType: e.EventType,
		Status:    e.Status,
		ActorID:   e.ActorID,
		LocalID:   e.LocalID,
		Payload:   e.Payload,
	})
	if err != nil {
		return res, err
	}
	if !res.Applied {
		return h.discard(e, res.Reason), nil
	}
	return res, nil
}

// awaitedToken reads the token the order awaits inside a short read-only
// unit of work. The unit of work is released before resuming.
func (h HandleStatusEventCommandHandler) awaitedToken(
	ctx context.Context,
	orderID string,
) (kernel.Token, string, error) {
	uow := h.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return kernel.Token{}, "", err
	}
	defer func() {
		_ = uow.Rollback(ctx)
	}()

	current, err := uow.OrderRepository().Get(ctx, orderID)
	if errors.Is(err, errs.ErrObjectNotFound) {
		return kernel.Token{}, workflow.ReasonUnknownOrder, nil
	}
	if err != nil {
		return kernel.Token{}, "", err
	}
	if current.Status().IsTerminal() {
		return kernel.Token{}, workflow.ReasonTerminal, nil
	}
	if !current.IsPending() {
		return kernel.Token{}, workflow.ReasonStale, nil
	}

	token := current.PendingToken()
	_, err = workflow.PendingRecord(ctx, uow, orderID, token)
	if errors.Is(err, errs.ErrObjectNotFound) || errors.Is(err, workflow.ErrStaleContinuation) {
		return kernel.Token{}, workflow.ReasonStale, nil
	}
	if err != nil {
		return kernel.Token{}, "", err
	}
	return token, "", nil
}

func (h HandleStatusEventCommandHandler) discard(e event.StatusEvent, reason string) workflow.ResumeResult {
	h.metrics.EventDiscarded(reason)
	h.logger.Info().
		Str("order_id", e.OrderID).
		Str("event_type", e.EventType).
		Str("status", e.Status).
		Str("reason", reason).
		Msg("status event discarded")
	return workflow.ResumeResult{OrderID: e.OrderID, Reason: reason}
}
