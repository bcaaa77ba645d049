package workflow

import (
	"context"
	"fmt"

	"fulfillment/internal/core/domain/model/event"
	"fulfillment/internal/core/domain/model/kernel"
	"fulfillment/internal/core/domain/model/order"
	"fulfillment/internal/core/domain/services"
	"fulfillment/internal/core/ports"
	"fulfillment/internal/pkg/metrics"

	"github.com/rs/zerolog"
)

// FailureHandler moves an order to Failed after a permanent failure or once
// the retry policy is exhausted. Escalated orders are also sent to the manual
// review queue. The notification is best-effort, like completion.
type FailureHandler struct {
	queue     ports.WorkQueue
	publisher ports.EventPublisher
	logger    zerolog.Logger
	metrics   *metrics.Workflow
}

// NewFailureHandler creates the failure handler.
func NewFailureHandler(
	queue ports.WorkQueue,
	publisher ports.EventPublisher,
	logger zerolog.Logger,
	m *metrics.Workflow,
) FailureHandler {
	return FailureHandler{
		queue:     queue,
		publisher: publisher,
		logger:    logger,
		metrics:   m,
	}
}

func (h FailureHandler) Handle(
	ctx context.Context,
	uow ports.UnitOfWork,
	in StageInput,
	d services.Decision,
) (StageOutput, error) {
	if d.Action != services.ActionFail && d.Action != services.ActionEscalate {
		return StageOutput{}, fmt.Errorf("failure handler cannot %s", d.Action)
	}

	failed := in
	failed.Context = in.Context.Clone()
	if failed.Context.Details == nil {
		failed.Context.Details = make(map[string]any, 1)
	}
	failed.Context.Details["reason"] = d.Reason

	rec, err := enterStage(ctx, uow, failed, order.Failed, kernel.Token{})
	if err != nil {
		return StageOutput{}, fmt.Errorf("marking order failed: %w", err)
	}

	orderID := in.Order.OrderID()
	kind := event.KindFailed
	if d.Action == services.ActionEscalate {
		kind = event.KindEscalated
	}
	n := event.Notification{
		OrderID: orderID,
		Kind:    kind,
		LocalID: in.Order.LocalID(),
		Message: d.Reason,
		At:      in.At,
	}
	snapshot := rec.Context()
	escalate := d.Action == services.ActionEscalate

	return StageOutput{
		Ack:    Ack{Status: AckFailed, OrderID: orderID},
		Record: rec,
		Effect: func(ctx context.Context) error {
			var enqueueErr error
			if escalate && h.queue != nil {
				enqueueErr = h.queue.Enqueue(ctx, ports.ManualQueue, ports.WorkItem{
					OrderID: orderID,
					Action:  ports.ActionManualRevision,
					Details: snapshot,
				})
			}
			h.notify(ctx, n)
			return enqueueErr
		},
	}, nil
}

func (h FailureHandler) notify(ctx context.Context, n event.Notification) {
	if h.publisher == nil {
		return
	}
	if err := h.publisher.PublishNotification(ctx, n); err != nil {
		h.metrics.NotificationFailed()
		h.logger.Warn().
			Err(err).
			Str("order_id", n.OrderID).
			Str("kind", string(n.Kind)).
			Msg("notification not published")
	}
}
