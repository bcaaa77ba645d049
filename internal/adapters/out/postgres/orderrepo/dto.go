// Package orderrepo persists order aggregates with GORM.
package orderrepo

import (
	"time"

	"fulfillment/internal/core/domain/model/kernel"
	"fulfillment/internal/core/domain/model/order"
)

// OrderDTO is the row of the orders table. PendingToken is empty while the
// order awaits nothing; the watchdog scans (pending_token, pending_since).
type OrderDTO struct {
	OrderID      string     `gorm:"column:order_id;type:varchar(128);primaryKey"`
	LocalID      string     `gorm:"column:local_id;type:varchar(128)"`
	Status       string     `gorm:"column:status;type:varchar(32);not null;index"`
	ExecutionID  string     `gorm:"column:execution_id;type:varchar(64);not null"`
	PendingToken string     `gorm:"column:pending_token;type:varchar(36);not null;default:'';index:idx_orders_pending,priority:1"`
	PendingSince *time.Time `gorm:"column:pending_since;index:idx_orders_pending,priority:2"`
	CreatedAt    time.Time  `gorm:"column:created_at;not null"`
	UpdatedAt    time.Time  `gorm:"column:updated_at;not null"`
}

// TableName overrides GORM's default "order_dtos".
func (OrderDTO) TableName() string {
	return "orders"
}

func fromDomain(o *order.Order) OrderDTO {
	dto := OrderDTO{
		OrderID:      o.OrderID(),
		LocalID:      o.LocalID(),
		Status:       o.Status().String(),
		ExecutionID:  o.ExecutionID(),
		PendingToken: o.PendingToken().String(),
		CreatedAt:    o.CreatedAt(),
		UpdatedAt:    o.UpdatedAt(),
	}
	if o.IsPending() {
		since := o.PendingSince()
		dto.PendingSince = &since
	}
	return dto
}

func toDomain(dto OrderDTO) (*order.Order, error) {
	status, err := order.ParseStatus(dto.Status)
	if err != nil {
		return nil, err
	}
	token, err := kernel.ParseToken(dto.PendingToken)
	if err != nil {
		return nil, err
	}

	var since time.Time
	if dto.PendingSince != nil {
		since = dto.PendingSince.UTC()
	}

	return order.RestoreOrder(
		dto.OrderID,
		dto.LocalID,
		status,
		dto.ExecutionID,
		token,
		since,
		dto.CreatedAt.UTC(),
		dto.UpdatedAt.UTC(),
	), nil
}
