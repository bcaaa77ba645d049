package history

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"fulfillment/internal/core/domain/model/kernel"
	"fulfillment/internal/core/domain/model/order"
	"fulfillment/internal/pkg/errs"
)

// RecordIDLayout is the fixed-width UTC layout of record identifiers.
// Lexical order of identifiers equals chronological order.
const RecordIDLayout = "2006-01-02T15:04:05.000000000Z"

var (
	// ErrRecordIsNotConstructed is returned when a Record was not created via NewRecord or RestoreRecord.
	ErrRecordIsNotConstructed = errors.New("Record must be created via NewRecord constructor")

	// ErrRecordAlreadyClosed is returned when closing a record twice.
	ErrRecordAlreadyClosed = errors.New("history record is already closed")
)

// Record is one immutable ledger entry describing a stage transition.
// Only completedAt is ever written after the record is appended.
//
// A record is pending while it holds a continuation token and has no
// completedAt. The workflow keeps at most one pending record per order.
type Record struct {
	orderID     string
	recordID    string
	status      order.Status
	token       kernel.Token
	startedAt   time.Time
	completedAt *time.Time
	actorID     string
	context     order.Context

	isConstructed bool
}

// NewRecord creates a ledger entry for orderID entering status at startedAt.
//
// previousID is the identifier of the order's latest record ("" for the first
// one); the new identifier is guaranteed to sort after it even when clocks
// collide.
//
// Example:
//
//	rec, err := history.NewRecord("O1", order.InKitchen, token, ctx, "cook-7", now, latest.RecordID())
func NewRecord(
	orderID string,
	status order.Status,
	token kernel.Token,
	ctx order.Context,
	actorID string,
	startedAt time.Time,
	previousID string,
) (*Record, error) {
	if strings.TrimSpace(orderID) == "" {
		return nil, errs.NewValueIsRequiredError("orderID")
	}
	if err := status.Validate(); err != nil {
		return nil, err
	}

	return &Record{
		orderID:       orderID,
		recordID:      NextRecordID(startedAt, previousID),
		status:        status,
		token:         token,
		startedAt:     startedAt.UTC(),
		actorID:       actorID,
		context:       ctx.Clone(),
		isConstructed: true,
	}, nil
}

// NewClosedRecord creates a record that is completed at the moment it starts.
// Used for retry markers and terminal stages.
func NewClosedRecord(
	orderID string,
	status order.Status,
	ctx order.Context,
	actorID string,
	at time.Time,
	previousID string,
) (*Record, error) {
	r, err := NewRecord(orderID, status, kernel.Token{}, ctx, actorID, at, previousID)
	if err != nil {
		return nil, err
	}
	completed := r.startedAt
	r.completedAt = &completed
	return r, nil
}

// RestoreRecord rebuilds a record from persisted state.
func RestoreRecord(
	orderID, recordID string,
	status order.Status,
	token kernel.Token,
	startedAt time.Time,
	completedAt *time.Time,
	actorID string,
	ctx order.Context,
) *Record {
	return &Record{
		orderID:       orderID,
		recordID:      recordID,
		status:        status,
		token:         token,
		startedAt:     startedAt,
		completedAt:   completedAt,
		actorID:       actorID,
		context:       ctx,
		isConstructed: true,
	}
}

// NextRecordID formats at as a record identifier that sorts strictly after previous.
func NextRecordID(at time.Time, previous string) string {
	at = at.UTC()
	if previous != "" {
		if prev, err := time.Parse(RecordIDLayout, previous); err == nil && !at.After(prev) {
			at = prev.Add(time.Nanosecond)
		}
	}
	return at.Format(RecordIDLayout)
}

// Validate ensures the record was properly constructed.
func (r *Record) Validate() error {
	if r == nil || !r.isConstructed {
		return ErrRecordIsNotConstructed
	}
	return nil
}

// Close stamps completedAt. Closing a closed record fails with ErrRecordAlreadyClosed.
func (r *Record) Close(at time.Time) error {
	if r.completedAt != nil {
		return fmt.Errorf("%w: %s/%s", ErrRecordAlreadyClosed, r.orderID, r.recordID)
	}
	completed := at.UTC()
	r.completedAt = &completed
	return nil
}

// IsPending reports whether the record still awaits its continuation.
func (r *Record) IsPending() bool {
	return !r.token.IsZero() && r.completedAt == nil
}

// OrderID returns the order the record belongs to.
func (r *Record) OrderID() string {
	return r.orderID
}

// RecordID returns the sortable record identifier.
func (r *Record) RecordID() string {
	return r.recordID
}

// Status returns the stage the record describes.
func (r *Record) Status() order.Status {
	return r.status
}

// Token returns the continuation token, or the zero token for non-suspending records.
func (r *Record) Token() kernel.Token {
	return r.token
}

func (r *Record) StartedAt() time.Time {
	return r.startedAt
}

// CompletedAt returns nil while the record is open.
func (r *Record) CompletedAt() *time.Time {
	return r.completedAt
}

func (r *Record) ActorID() string {
	return r.actorID
}

// Context returns a copy of the context snapshot.
func (r *Record) Context() order.Context {
	return r.context.Clone()
}
