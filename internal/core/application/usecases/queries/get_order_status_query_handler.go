package queries

import (
	"context"

	"fulfillment/internal/core/ports"
	"fulfillment/internal/pkg/errs"
)

// GetOrderStatusQueryHandler reads orders through a short read-only unit of work.
type GetOrderStatusQueryHandler struct {
	uowFactory ports.UnitOfWorkFactory
}

func NewGetOrderStatusQueryHandler(uowFactory ports.UnitOfWorkFactory) (GetOrderStatusQueryHandler, error) {
	if uowFactory == nil {
		return GetOrderStatusQueryHandler{}, errs.NewValueIsRequiredError("uowFactory")
	}
	return GetOrderStatusQueryHandler{uowFactory: uowFactory}, nil
}

// Handle returns the order state, or an error wrapping errs.ErrObjectNotFound.
func (h GetOrderStatusQueryHandler) Handle(
	ctx context.Context,
	query GetOrderStatusQuery,
) (GetOrderStatusQueryResponse, error) {
	if err := query.Validate(); err != nil {
		return GetOrderStatusQueryResponse{}, err
	}

	uow := h.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return GetOrderStatusQueryResponse{}, err
	}
	defer func() {
		_ = uow.Rollback(ctx)
	}()

	o, err := uow.OrderRepository().Get(ctx, query.OrderID())
	if err != nil {
		return GetOrderStatusQueryResponse{}, err
	}

	resp := GetOrderStatusQueryResponse{
		OrderID:     o.OrderID(),
		LocalID:     o.LocalID(),
		Status:      o.Status().String(),
		ExecutionID: o.ExecutionID(),
		Pending:     o.IsPending(),
		CreatedAt:   o.CreatedAt(),
		UpdatedAt:   o.UpdatedAt(),
	}
	if o.IsPending() {
		since := o.PendingSince()
		resp.PendingSince = &since
	}
	return resp, nil
}
