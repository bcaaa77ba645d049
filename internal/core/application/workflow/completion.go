package workflow

import (
	"context"
	"fmt"

	"fulfillment/internal/core/domain/model/event"
	"fulfillment/internal/core/domain/model/kernel"
	"fulfillment/internal/core/domain/model/order"
	"fulfillment/internal/core/ports"
	"fulfillment/internal/pkg/metrics"

	"github.com/rs/zerolog"
)

// CompletionHandler is the EntregaCompleta stage: it closes the last pending
// record, appends a closed Delivered record, marks the order Delivered and,
// after commit, publishes the thank-you notification.
//
// Publishing is best-effort. A failure is logged and counted, never rolled
// back and never reported to the caller.
type CompletionHandler struct {
	publisher ports.EventPublisher
	logger    zerolog.Logger
	metrics   *metrics.Workflow
}

// NewEntregaCompleta creates the completion handler.
func NewEntregaCompleta(
	publisher ports.EventPublisher,
	logger zerolog.Logger,
	m *metrics.Workflow,
) CompletionHandler {
	return CompletionHandler{
		publisher: publisher,
		logger:    logger,
		metrics:   m,
	}
}

func (h CompletionHandler) Stage() order.Status {
	return order.Delivered
}

func (h CompletionHandler) Handle(ctx context.Context, uow ports.UnitOfWork, in StageInput) (StageOutput, error) {
	rec, err := enterStage(ctx, uow, in, order.Delivered, kernel.Token{})
	if err != nil {
		return StageOutput{}, fmt.Errorf("EntregaCompleta: %w", err)
	}

	n := event.Notification{
		OrderID: in.Order.OrderID(),
		Kind:    event.KindCompleted,
		LocalID: in.Order.LocalID(),
		Message: fmt.Sprintf("Thank you! Order %s has been delivered.", in.Order.OrderID()),
		At:      in.At,
	}

	return StageOutput{
		Ack:    Ack{Status: AckCompleted, OrderID: in.Order.OrderID()},
		Record: rec,
		Effect: func(ctx context.Context) error {
			h.notify(ctx, n)
			return nil
		},
	}, nil
}

func (h CompletionHandler) notify(ctx context.Context, n event.Notification) {
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

