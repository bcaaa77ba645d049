// Package historyrepo persists the stage ledger with GORM.
package historyrepo

import (
	"time"

	"fulfillment/internal/core/domain/model/history"
	"fulfillment/internal/core/domain/model/kernel"
	"fulfillment/internal/core/domain/model/order"
)

// RecordDTO is one row of the history table. Rows are keyed by
// (order_id, record_id) and record ids sort chronologically.
type RecordDTO struct {
	OrderID           string        `gorm:"column:order_id;type:varchar(128);primaryKey"`
	RecordID          string        `gorm:"column:record_id;type:varchar(40);primaryKey"`
	Status            string        `gorm:"column:status;type:varchar(32);not null"`
	ContinuationToken string        `gorm:"column:continuation_token;type:varchar(36);not null;default:''"`
	HoraInicio        time.Time     `gorm:"column:hora_inicio;not null"`
	HoraFin           *time.Time    `gorm:"column:hora_fin"`
	ActorID           string        `gorm:"column:actor_id;type:varchar(128)"`
	Details           order.Context `gorm:"column:details;type:jsonb;serializer:json"`
}

// TableName overrides GORM's default "record_dtos".
func (RecordDTO) TableName() string {
	return "history"
}

func fromDomain(r *history.Record) RecordDTO {
	return RecordDTO{
		OrderID:           r.OrderID(),
		RecordID:          r.RecordID(),
		Status:            r.Status().String(),
		ContinuationToken: r.Token().String(),
		HoraInicio:        r.StartedAt(),
		HoraFin:           r.CompletedAt(),
		ActorID:           r.ActorID(),
		Details:           r.Context(),
	}
}

func toDomain(dto RecordDTO) (*history.Record, error) {
	status, err := order.ParseStatus(dto.Status)
	if err != nil {
		return nil, err
	}
	token, err := kernel.ParseToken(dto.ContinuationToken)
	if err != nil {
		return nil, err
	}

	var completed *time.Time
	if dto.HoraFin != nil {
		at := dto.HoraFin.UTC()
		completed = &at
	}

	return history.RestoreRecord(
		dto.OrderID,
		dto.RecordID,
		status,
		token,
		dto.HoraInicio.UTC(),
		completed,
		dto.ActorID,
		dto.Details,
	), nil
}
