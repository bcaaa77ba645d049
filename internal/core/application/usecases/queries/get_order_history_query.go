package queries

import (
	"errors"
	"strings"
	"time"

	"fulfillment/internal/core/domain/model/order"
	"fulfillment/internal/pkg/errs"
	"fulfillment/internal/pkg/guard"
)

var ErrGetOrderHistoryQueryIsNotConstructed = errors.New(
	"GetOrderHistoryQuery must be created via NewGetOrderHistoryQuery constructor",
)

// GetOrderHistoryQuery retrieves the ledger of one order, oldest record first.
type GetOrderHistoryQuery struct {
	orderID string

	guard guard.ConstructorGuard
}

func NewGetOrderHistoryQuery(orderID string) (GetOrderHistoryQuery, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return GetOrderHistoryQuery{}, errs.NewValueIsRequiredError("orderID")
	}
	return GetOrderHistoryQuery{orderID: orderID, guard: guard.NewConstructorGuard()}, nil
}

// Validate ensures the query was created through the constructor.
func (q GetOrderHistoryQuery) Validate() error {
	return q.guard.Validate(ErrGetOrderHistoryQueryIsNotConstructed)
}

func (q GetOrderHistoryQuery) OrderID() string {
	return q.orderID
}

// GetOrderHistoryQueryResponse is one ledger row. ContinuationToken is only
// present on the record still awaiting an actor.
type GetOrderHistoryQueryResponse struct {
	OrderID           string        `json:"order_id"`
	RecordID          string        `json:"record_id"`
	Status            string        `json:"status"`
	ContinuationToken string        `json:"continuation_token,omitempty"`
	StartedAt         time.Time     `json:"hora_inicio"`
	CompletedAt       *time.Time    `json:"hora_fin,omitempty"`
	ActorID           string        `json:"actor_id,omitempty"`
	Details           order.Context `json:"details"`
}
