package queries

import (
	"context"

	"fulfillment/internal/core/ports"
	"fulfillment/internal/pkg/errs"
)

// GetOrderHistoryQueryHandler reads the ledger through a short read-only unit of work.
type GetOrderHistoryQueryHandler struct {
	uowFactory ports.UnitOfWorkFactory
}

func NewGetOrderHistoryQueryHandler(uowFactory ports.UnitOfWorkFactory) (GetOrderHistoryQueryHandler, error) {
	if uowFactory == nil {
		return GetOrderHistoryQueryHandler{}, errs.NewValueIsRequiredError("uowFactory")
	}
	return GetOrderHistoryQueryHandler{uowFactory: uowFactory}, nil
}

// Handle returns the ledger ascending by record id. An unknown order yields
// an error wrapping errs.ErrObjectNotFound.
func (h GetOrderHistoryQueryHandler) Handle(
	ctx context.Context,
	query GetOrderHistoryQuery,
) ([]GetOrderHistoryQueryResponse, error) {
	if err := query.Validate(); err != nil {
		return nil, err
	}

	uow := h.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, err
	}
	defer func() {
		_ = uow.Rollback(ctx)
	}()

	if _, err := uow.OrderRepository().Get(ctx, query.OrderID()); err != nil {
		return nil, err
	}

	records, err := uow.HistoryRepository().List(ctx, query.OrderID())
	if err != nil {
		return nil, err
	}

	rows := make([]GetOrderHistoryQueryResponse, 0, len(records))
	for _, r := range records {
		row := GetOrderHistoryQueryResponse{
			OrderID:     r.OrderID(),
			RecordID:    r.RecordID(),
			Status:      r.Status().String(),
			StartedAt:   r.StartedAt(),
			CompletedAt: r.CompletedAt(),
			ActorID:     r.ActorID(),
			Details:     r.Context(),
		}
		if r.IsPending() {
			row.ContinuationToken = r.Token().String()
		}
		rows = append(rows, row)
	}
	return rows, nil
}
