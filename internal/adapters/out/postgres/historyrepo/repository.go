package historyrepo

import (
	"context"
	"errors"
	"time"

	"fulfillment/internal/core/domain/model/history"
	"fulfillment/internal/pkg/errs"

	"gorm.io/gorm"
)

// GormHistoryRepository implements ports.HistoryRepository using GORM.
type GormHistoryRepository struct {
	db *gorm.DB
}

// NewGormHistoryRepository creates a repository bound to db, which may be a transaction.
func NewGormHistoryRepository(db *gorm.DB) *GormHistoryRepository {
	return &GormHistoryRepository{db: db}
}

// Append inserts record.
func (r *GormHistoryRepository) Append(ctx context.Context, record *history.Record) error {
	if err := record.Validate(); err != nil {
		return err
	}

	dto := fromDomain(record)
	if err := r.db.WithContext(ctx).Create(&dto).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return errs.NewObjectAlreadyExistsErrorWithCause("recordID", dto.RecordID, err)
		}
		return err
	}
	return nil
}

// Close sets hora_fin on an open record.
func (r *GormHistoryRepository) Close(ctx context.Context, orderID, recordID string, at time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&RecordDTO{}).
		Where("order_id = ? AND record_id = ? AND hora_fin IS NULL", orderID, recordID).
		Update("hora_fin", at.UTC())
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected > 0 {
		return nil
	}

	var count int64
	if err := r.db.WithContext(ctx).
		Model(&RecordDTO{}).
		Where("order_id = ? AND record_id = ?", orderID, recordID).
		Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return errs.NewObjectNotFoundError("recordID", recordID)
	}
	return errs.NewConcurrentUpdateError("record", recordID)
}

// Latest returns the newest record of the order.
func (r *GormHistoryRepository) Latest(ctx context.Context, orderID string) (*history.Record, error) {
	var dto RecordDTO
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("record_id DESC").
		First(&dto).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.NewObjectNotFoundErrorWithCause("orderID", orderID, err)
		}
		return nil, err
	}

	return toDomain(dto)
}

// List returns the ledger of the order ascending by record id.
func (r *GormHistoryRepository) List(ctx context.Context, orderID string) ([]*history.Record, error) {
	var dtos []RecordDTO
	if err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("record_id").
		Find(&dtos).Error; err != nil {
		return nil, err
	}

	records := make([]*history.Record, 0, len(dtos))
	for _, dto := range dtos {
		rec, err := toDomain(dto)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}
