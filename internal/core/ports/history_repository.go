package ports

import (
	"context"
	"time"

	"fulfillment/internal/core/domain/model/history"
)

// HistoryRepository is the append-only ledger of stage transitions.
type HistoryRepository interface {
	// Append inserts a record. Records are never rewritten except by Close.
	// A record id already taken for the order fails with an error wrapping
	// errs.ErrObjectAlreadyExists.
	Append(ctx context.Context, record *history.Record) error

	// Close stamps completed_at on an open record. Closing an unknown record
	// fails with an error wrapping errs.ErrObjectNotFound, closing an already
	// closed one with an error wrapping errs.ErrConcurrentUpdate.
	Close(ctx context.Context, orderID, recordID string, at time.Time) error

	// Latest returns the record with the greatest record id for the order.
	// Returns an error wrapping errs.ErrObjectNotFound when the order has no records.
	Latest(ctx context.Context, orderID string) (*history.Record, error)

	// List returns all records of the order ascending by record id.
	List(ctx context.Context, orderID string) ([]*history.Record, error)
}
