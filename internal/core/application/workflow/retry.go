package workflow

import (
	"context"
	"fmt"

	"fulfillment/internal/core/domain/model/history"
	"fulfillment/internal/core/domain/model/order"
	"fulfillment/internal/core/domain/services"
	"fulfillment/internal/core/ports"
)

// RetryHandler re-runs the originating stage of a phase after a rejection.
//
// It closes the pending record, appends a closed RetryKitchen or RetryDelivery
// marker carrying the incremented retry count and invokes ProcesarPedido or
// Delivery in the same unit of work. All other context fields are kept.
type RetryHandler struct {
	kitchen  StageHandler
	delivery StageHandler
}

// NewRetryHandler creates a retry handler re-entering kitchen for the kitchen
// phase and delivery for the delivery phase.
func NewRetryHandler(kitchen, delivery StageHandler) RetryHandler {
	return RetryHandler{kitchen: kitchen, delivery: delivery}
}

func (h RetryHandler) Handle(
	ctx context.Context,
	uow ports.UnitOfWork,
	in StageInput,
	d services.Decision,
) (StageOutput, error) {
	if d.Action != services.ActionRetry {
		return StageOutput{}, fmt.Errorf("retry handler cannot %s", d.Action)
	}

	target := h.kitchen
	if d.Marker == order.RetryDelivery {
		target = h.delivery
	}
	if target.Stage() != d.Next {
		return StageOutput{}, fmt.Errorf("retry marker %s does not lead to %s", d.Marker, d.Next)
	}

	ledger := uow.HistoryRepository()
	orderID := in.Order.OrderID()

	if in.Pending != nil && in.Pending.IsPending() {
		if err := ledger.Close(ctx, orderID, in.Pending.RecordID(), in.At); err != nil {
			return StageOutput{}, fmt.Errorf("closing %s record: %w", in.Pending.Status(), err)
		}
	}

	retried := in
	retried.Context = in.Context.Clone()
	retried.Context.RetryCount = d.RetryCount

	marker, err := history.NewClosedRecord(orderID, d.Marker, retried.Context, in.ActorID, in.At, in.previousRecordID())
	if err != nil {
		return StageOutput{}, err
	}
	if err = ledger.Append(ctx, marker); err != nil {
		return StageOutput{}, fmt.Errorf("appending %s record: %w", d.Marker, err)
	}

	retried.Pending = nil
	retried.LastRecordID = marker.RecordID()
	return target.Handle(ctx, uow, retried)
}
