package orderrepo

import (
	"context"
	"errors"
	"time"

	"fulfillment/internal/core/domain/model/kernel"
	"fulfillment/internal/core/domain/model/order"
	"fulfillment/internal/pkg/errs"

	"gorm.io/gorm"
)

// GormOrderRepository implements ports.OrderRepository using GORM.
// The gorm.DB must be opened with TranslateError so duplicate keys surface
// as gorm.ErrDuplicatedKey.
type GormOrderRepository struct {
	db *gorm.DB
}

// NewGormOrderRepository creates a repository bound to db, which may be a transaction.
func NewGormOrderRepository(db *gorm.DB) *GormOrderRepository {
	return &GormOrderRepository{db: db}
}

// Add inserts a new order.
func (r *GormOrderRepository) Add(ctx context.Context, aggregate *order.Order) error {
	if err := aggregate.Validate(); err != nil {
		return err
	}

	dto := fromDomain(aggregate)
	if err := r.db.WithContext(ctx).Create(&dto).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return errs.NewObjectAlreadyExistsErrorWithCause("orderID", dto.OrderID, err)
		}
		return err
	}
	return nil
}

// Update writes the order only while the stored pending token equals
// expected. Under READ COMMITTED a concurrent writer holding the row lock
// makes this statement wait and then match zero rows.
func (r *GormOrderRepository) Update(ctx context.Context, aggregate *order.Order, expected kernel.Token) error {
	if err := aggregate.Validate(); err != nil {
		return err
	}

	dto := fromDomain(aggregate)
	result := r.db.WithContext(ctx).
		Model(&OrderDTO{}).
		Where("order_id = ? AND pending_token = ?", dto.OrderID, expected.String()).
		Updates(map[string]any{
			"local_id":      dto.LocalID,
			"status":        dto.Status,
			"pending_token": dto.PendingToken,
			"pending_since": dto.PendingSince,
			"updated_at":    dto.UpdatedAt,
		})
	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected == 0 {
		return errs.NewConcurrentUpdateError("order", dto.OrderID)
	}
	return nil
}

// Get retrieves an order by its external id.
func (r *GormOrderRepository) Get(ctx context.Context, orderID string) (*order.Order, error) {
	var dto OrderDTO
	if err := r.db.WithContext(ctx).First(&dto, "order_id = ?", orderID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.NewObjectNotFoundErrorWithCause("orderID", orderID, err)
		}
		return nil, err
	}

	return toDomain(dto)
}

// ListStuck returns orders pending since before olderThan, oldest first.
func (r *GormOrderRepository) ListStuck(ctx context.Context, olderThan time.Time, limit int) ([]*order.Order, error) {
	query := r.db.WithContext(ctx).
		Where("pending_token <> '' AND pending_since < ?", olderThan).
		Order("pending_since, order_id")
	if limit > 0 {
		query = query.Limit(limit)
	}

	var dtos []OrderDTO
	if err := query.Find(&dtos).Error; err != nil {
		return nil, err
	}

	orders := make([]*order.Order, 0, len(dtos))
	for _, dto := range dtos {
		o, err := toDomain(dto)
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}

	return orders, nil
}
