package commands

import (
	"context"
	"errors"
	"fmt"
	"time"

	"fulfillment/internal/core/application/workflow"
	"fulfillment/internal/core/domain/model/order"
	"fulfillment/internal/core/domain/services"
	"fulfillment/internal/core/ports"
	"fulfillment/internal/pkg/errs"
	"fulfillment/internal/pkg/metrics"

	"github.com/rs/zerolog"
)

const (
	watchdogActor     = "watchdog"
	stageTimeoutEvent = "StageTimeout"
)

// SweepResult reports one watchdog pass.
type SweepResult struct {
	Scanned int      `json:"scanned"`
	Resumed []string `json:"resumed"`
}

// SweepStuckOrdersCommandHandler is the stuck-stage watchdog. Every order
// whose continuation is older than the threshold is resumed with a TIMEOUT
// outcome, which the workflow treats as a rejection.
type SweepStuckOrdersCommandHandler struct {
	uowFactory ports.UnitOfWorkFactory
	resumer    WorkflowResumer
	now        func() time.Time
	logger     zerolog.Logger
	metrics    *metrics.Workflow
}

// NewSweepStuckOrdersCommandHandler creates the watchdog. now defaults to
// time.Now and m may be nil.
func NewSweepStuckOrdersCommandHandler(
	uowFactory ports.UnitOfWorkFactory,
	resumer WorkflowResumer,
	now func() time.Time,
	logger zerolog.Logger,
	m *metrics.Workflow,
) (SweepStuckOrdersCommandHandler, error) {
	if uowFactory == nil {
		return SweepStuckOrdersCommandHandler{}, errs.NewValueIsRequiredError("uowFactory")
	}
	if resumer == nil {
		return SweepStuckOrdersCommandHandler{}, errs.NewValueIsRequiredError("resumer")
	}
	if now == nil {
		now = time.Now
	}

	return SweepStuckOrdersCommandHandler{
		uowFactory: uowFactory,
		resumer:    resumer,
		now:        now,
		logger:     logger,
		metrics:    m,
	}, nil
}

// Handle times out every stuck order found. Failures of single orders do not
// stop the pass; they are joined into the returned error.
func (h SweepStuckOrdersCommandHandler) Handle(ctx context.Context, cmd SweepStuckOrdersCommand) (SweepResult, error) {
	if err := cmd.Validate(); err != nil {
		return SweepResult{}, err
	}

	stuck, err := h.listStuck(ctx, h.now().Add(-cmd.OlderThan()), cmd.Limit())
	if err != nil {
		return SweepResult{}, err
	}

	result := SweepResult{Scanned: len(stuck), Resumed: []string{}}
	var failures []error
	for _, o := range stuck {
		if ctxErr := ctx.Err(); ctxErr != nil {
			failures = append(failures, ctxErr)
			break
		}

		res, err := h.resumer.Resume(ctx, o.OrderID(), o.PendingToken(), workflow.Outcome{
			EventType: stageTimeoutEvent,
			Status:    services.TimeoutStatus,
			ActorID:   watchdogActor,
			Payload: map[string]any{
				"stage":         o.Status().String(),
				"pending_since": o.PendingSince().UTC().Format(time.RFC3339),
			},
		})
		if err != nil {
			failures = append(failures, fmt.Errorf("order %s: %w", o.OrderID(), err))
			continue
		}
		if !res.Applied {
			continue
		}

		h.metrics.Swept()
		h.logger.Warn().
			Str("order_id", o.OrderID()).
			Str("stage", o.Status().String()).
			Time("pending_since", o.PendingSince()).
			Str("action", res.Action.String()).
			Msg("stuck stage timed out")
		result.Resumed = append(result.Resumed, o.OrderID())
	}

	return result, errors.Join(failures...)
}

func (h SweepStuckOrdersCommandHandler) listStuck(ctx context.Context, olderThan time.Time, limit int) ([]*order.Order, error) {
	uow := h.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, err
	}
	defer func() {
		_ = uow.Rollback(ctx)
	}()

	return uow.OrderRepository().ListStuck(ctx, olderThan, limit)
}
