package workflow

import (
	"context"
	"fmt"
	"time"

	"fulfillment/internal/core/domain/model/history"
	"fulfillment/internal/core/domain/model/kernel"
	"fulfillment/internal/core/domain/model/order"
	"fulfillment/internal/core/ports"
)

// AckStatus is the short acknowledgement a stage returns once it suspended.
type AckStatus string

const (
	AckQueuedForKitchen   AckStatus = "QueuedForKitchen"
	AckCooking            AckStatus = "Cooking"
	AckKitchenFinished    AckStatus = "KitchenFinished"
	AckReadyForDelivery   AckStatus = "ReadyForDelivery"
	AckDeliveryInProgress AckStatus = "DeliveryInProgress"
	AckCompleted          AckStatus = "Completed"
	AckFailed             AckStatus = "Failed"
)

// Ack acknowledges a stage entry without waiting for the external actor.
type Ack struct {
	Status  AckStatus `json:"status"`
	OrderID string    `json:"order_id"`
}

// Effect is a stage side effect executed after the transition committed.
type Effect func(ctx context.Context) error

// StageInput is what a stage handler needs to enter its stage.
type StageInput struct {
	// Order is the aggregate being moved; it is mutated by the handler.
	Order *order.Order

	// Context is the payload carried into the new stage.
	Context order.Context

	// Expected is the pending token the order row must still hold for the
	// conditional update to apply (zero for a freshly created order).
	Expected kernel.Token

	// Pending is the open record of the stage being left, if any.
	Pending *history.Record

	// LastRecordID is the most recent record id of the order when it differs
	// from Pending (e.g. after a retry marker was appended).
	LastRecordID string

	ActorID string
	At      time.Time
}

func (in StageInput) previousRecordID() string {
	if in.LastRecordID != "" {
		return in.LastRecordID
	}
	if in.Pending != nil {
		return in.Pending.RecordID()
	}
	return ""
}

// StageOutput is returned by a stage handler.
type StageOutput struct {
	Ack Ack

	// Record is the ledger record that was appended.
	Record *history.Record

	// Effect runs after commit; nil when the stage has no side effect.
	Effect Effect
}

// StageHandler enters one workflow stage within the caller's unit of work.
type StageHandler interface {
	// Stage returns the status the handler enters.
	Stage() order.Status

	// Handle writes the ledger record and updates the order. It must not
	// perform external side effects; those are returned as StageOutput.Effect.
	Handle(ctx context.Context, uow ports.UnitOfWork, in StageInput) (StageOutput, error)
}

// suspendingStage is a stage that mints a token and waits for an external actor.
type suspendingStage struct {
	name   string
	status order.Status
	ack    AckStatus
	effect func(orderID string, snapshot order.Context) Effect
}

// NewProcesarPedido returns the handler that enters Processing and sends the
// order to the kitchen queue.
func NewProcesarPedido(queue ports.WorkQueue) StageHandler {
	return suspendingStage{
		name:   "ProcesarPedido",
		status: order.Processing,
		ack:    AckQueuedForKitchen,
		effect: enqueueEffect(queue, ports.KitchenQueue, ports.ActionCook),
	}
}

// NewPedidoEnCocina returns the handler that enters InKitchen.
func NewPedidoEnCocina() StageHandler {
	return suspendingStage{name: "PedidoEnCocina", status: order.InKitchen, ack: AckCooking}
}

// NewCocinaCompleta returns the handler that enters KitchenDone.
func NewCocinaCompleta() StageHandler {
	return suspendingStage{name: "CocinaCompleta", status: order.KitchenDone, ack: AckKitchenFinished}
}

// NewEmpaquetado returns the handler that enters Packed.
func NewEmpaquetado() StageHandler {
	return suspendingStage{name: "Empaquetado", status: order.Packed, ack: AckReadyForDelivery}
}

// NewDelivery returns the handler that enters OutForDelivery and sends the
// order to the delivery queue.
func NewDelivery(queue ports.WorkQueue) StageHandler {
	return suspendingStage{
		name:   "Delivery",
		status: order.OutForDelivery,
		ack:    AckDeliveryInProgress,
		effect: enqueueEffect(queue, ports.DeliveryQueue, ports.ActionDeliver),
	}
}

func (s suspendingStage) Stage() order.Status {
	return s.status
}

func (s suspendingStage) String() string {
	return s.name
}

func (s suspendingStage) Handle(ctx context.Context, uow ports.UnitOfWork, in StageInput) (StageOutput, error) {
	token := kernel.NewToken()

	rec, err := enterStage(ctx, uow, in, s.status, token)
	if err != nil {
		return StageOutput{}, fmt.Errorf("%s: %w", s.name, err)
	}

	out := StageOutput{
		Ack:    Ack{Status: s.ack, OrderID: in.Order.OrderID()},
		Record: rec,
	}
	if s.effect != nil {
		out.Effect = s.effect(in.Order.OrderID(), rec.Context())
	}
	return out, nil
}

func enqueueEffect(queue ports.WorkQueue, name ports.QueueName, action ports.WorkAction) func(string, order.Context) Effect {
	return func(orderID string, snapshot order.Context) Effect {
		return func(ctx context.Context) error {
			return queue.Enqueue(ctx, name, ports.WorkItem{
				OrderID: orderID,
				Action:  action,
				Details: snapshot,
			})
		}
	}
}

// enterStage performs the durable part of every transition: close the record
// of the stage being left, append the record of the stage being entered and
// move the order with a conditional update on the expected token.
func enterStage(
	ctx context.Context,
	uow ports.UnitOfWork,
	in StageInput,
	status order.Status,
	token kernel.Token,
) (*history.Record, error) {
	if err := in.Order.Validate(); err != nil {
		return nil, err
	}
	ledger := uow.HistoryRepository()
	orderID := in.Order.OrderID()

	if in.Pending != nil && in.Pending.IsPending() {
		if err := ledger.Close(ctx, orderID, in.Pending.RecordID(), in.At); err != nil {
			return nil, fmt.Errorf("closing %s record: %w", in.Pending.Status(), err)
		}
	}

	var (
		rec *history.Record
		err error
	)
	if status.Suspends() {
		rec, err = history.NewRecord(orderID, status, token, in.Context, in.ActorID, in.At, in.previousRecordID())
	} else {
		rec, err = history.NewClosedRecord(orderID, status, in.Context, in.ActorID, in.At, in.previousRecordID())
	}
	if err != nil {
		return nil, err
	}
	if err = ledger.Append(ctx, rec); err != nil {
		return nil, fmt.Errorf("appending %s record: %w", status, err)
	}

	if err = in.Order.EnterStage(status, token, in.At); err != nil {
		return nil, err
	}
	if err = uow.OrderRepository().Update(ctx, in.Order, in.Expected); err != nil {
		return nil, err
	}
	return rec, nil
}
