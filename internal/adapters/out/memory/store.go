// Package memory provides in-process implementations of the storage, queue and
// event bus ports. They back the memory driver mode and the workflow tests.
package memory

import (
	"context"
	"errors"
	"slices"
	"sort"
	"time"

	"fulfillment/internal/core/domain/model/history"
	"fulfillment/internal/core/domain/model/kernel"
	"fulfillment/internal/core/domain/model/order"
	"fulfillment/internal/core/ports"
	"fulfillment/internal/pkg/errs"
)

var (
	ErrNoActiveTransaction = errors.New("no active transaction")
	ErrTransactionActive   = errors.New("transaction already active")
)

type orderRow struct {
	orderID      string
	localID      string
	status       order.Status
	executionID  string
	pendingToken kernel.Token
	pendingSince time.Time
	createdAt    time.Time
	updatedAt    time.Time
}

type recordRow struct {
	orderID     string
	recordID    string
	status      order.Status
	token       kernel.Token
	startedAt   time.Time
	completedAt *time.Time
	actorID     string
	context     order.Context
}

// Store holds orders and the ledger. Transactions are serialised: a unit of
// work owns the store from Begin until Commit or Rollback.
type Store struct {
	sem    chan struct{}
	orders map[string]orderRow
	ledger map[string][]recordRow
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		sem:    make(chan struct{}, 1),
		orders: make(map[string]orderRow),
		ledger: make(map[string][]recordRow),
	}
}

// UnitOfWorkFactory creates units of work over one Store.
type UnitOfWorkFactory struct {
	store *Store
}

// NewUnitOfWorkFactory creates a factory for store.
func NewUnitOfWorkFactory(store *Store) UnitOfWorkFactory {
	return UnitOfWorkFactory{store: store}
}

func (f UnitOfWorkFactory) Create() ports.UnitOfWork {
	return &UnitOfWork{store: f.store}
}

// UnitOfWork stages writes and applies them to the store on Commit.
type UnitOfWork struct {
	store  *Store
	active bool
	orders map[string]orderRow
	ledger map[string][]recordRow
}

func (u *UnitOfWork) Begin(ctx context.Context) error {
	if u.active {
		return ErrTransactionActive
	}
	select {
	case u.store.sem <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	u.active = true
	u.orders = make(map[string]orderRow)
	u.ledger = make(map[string][]recordRow)
	return nil
}

func (u *UnitOfWork) Commit(_ context.Context) error {
	if !u.active {
		return ErrNoActiveTransaction
	}
	for id, row := range u.orders {
		u.store.orders[id] = row
	}
	for id, rows := range u.ledger {
		u.store.ledger[id] = rows
	}
	u.release()
	return nil
}

// Rollback discards staged writes. It is a no-op without an active transaction.
func (u *UnitOfWork) Rollback(_ context.Context) error {
	if !u.active {
		return nil
	}
	u.release()
	return nil
}

func (u *UnitOfWork) release() {
	u.active = false
	u.orders = nil
	u.ledger = nil
	<-u.store.sem
}

func (u *UnitOfWork) OrderRepository() ports.OrderRepository {
	return orderRepository{uow: u}
}

func (u *UnitOfWork) HistoryRepository() ports.HistoryRepository {
	return historyRepository{uow: u}
}

func (u *UnitOfWork) order(id string) (orderRow, bool) {
	if row, ok := u.orders[id]; ok {
		return row, true
	}
	row, ok := u.store.orders[id]
	return row, ok
}

func (u *UnitOfWork) records(orderID string) []recordRow {
	if rows, ok := u.ledger[orderID]; ok {
		return rows
	}
	return u.store.ledger[orderID]
}

// stagedRecords returns a private copy of the order's ledger for mutation.
func (u *UnitOfWork) stagedRecords(orderID string) []recordRow {
	if rows, ok := u.ledger[orderID]; ok {
		return rows
	}
	rows := slices.Clone(u.store.ledger[orderID])
	u.ledger[orderID] = rows
	return rows
}

type orderRepository struct {
	uow *UnitOfWork
}

func (r orderRepository) Add(_ context.Context, aggregate *order.Order) error {
	if !r.uow.active {
		return ErrNoActiveTransaction
	}
	if err := aggregate.Validate(); err != nil {
		return err
	}
	if _, ok := r.uow.order(aggregate.OrderID()); ok {
		return errs.NewObjectAlreadyExistsError("orderID", aggregate.OrderID())
	}
	r.uow.orders[aggregate.OrderID()] = fromOrder(aggregate)
	return nil
}

func (r orderRepository) Update(_ context.Context, aggregate *order.Order, expected kernel.Token) error {
	if !r.uow.active {
		return ErrNoActiveTransaction
	}
	if err := aggregate.Validate(); err != nil {
		return err
	}
	current, ok := r.uow.order(aggregate.OrderID())
	if !ok {
		return errs.NewObjectNotFoundError("orderID", aggregate.OrderID())
	}
	if !current.pendingToken.Equal(expected) {
		return errs.NewConcurrentUpdateError("order", aggregate.OrderID())
	}
	r.uow.orders[aggregate.OrderID()] = fromOrder(aggregate)
	return nil
}

func (r orderRepository) Get(_ context.Context, orderID string) (*order.Order, error) {
	if !r.uow.active {
		return nil, ErrNoActiveTransaction
	}
	row, ok := r.uow.order(orderID)
	if !ok {
		return nil, errs.NewObjectNotFoundError("orderID", orderID)
	}
	return row.toDomain(), nil
}

func (r orderRepository) ListStuck(_ context.Context, olderThan time.Time, limit int) ([]*order.Order, error) {
	if !r.uow.active {
		return nil, ErrNoActiveTransaction
	}
	seen := make(map[string]struct{})
	var stuck []orderRow
	collect := func(row orderRow) {
		if _, dup := seen[row.orderID]; dup {
			return
		}
		seen[row.orderID] = struct{}{}
		if !row.pendingToken.IsZero() && row.pendingSince.Before(olderThan) {
			stuck = append(stuck, row)
		}
	}
	for _, row := range r.uow.orders {
		collect(row)
	}
	for _, row := range r.uow.store.orders {
		collect(row)
	}

	sort.Slice(stuck, func(i, j int) bool {
		if stuck[i].pendingSince.Equal(stuck[j].pendingSince) {
			return stuck[i].orderID < stuck[j].orderID
		}
		return stuck[i].pendingSince.Before(stuck[j].pendingSince)
	})
	if limit > 0 && len(stuck) > limit {
		stuck = stuck[:limit]
	}

	result := make([]*order.Order, 0, len(stuck))
	for _, row := range stuck {
		result = append(result, row.toDomain())
	}
	return result, nil
}

type historyRepository struct {
	uow *UnitOfWork
}

func (r historyRepository) Append(_ context.Context, record *history.Record) error {
	if !r.uow.active {
		return ErrNoActiveTransaction
	}
	if err := record.Validate(); err != nil {
		return err
	}
	rows := r.uow.stagedRecords(record.OrderID())
	for _, row := range rows {
		if row.recordID == record.RecordID() {
			return errs.NewObjectAlreadyExistsError("recordID", record.RecordID())
		}
	}
	rows = append(rows, fromRecord(record))
	sort.Slice(rows, func(i, j int) bool { return rows[i].recordID < rows[j].recordID })
	r.uow.ledger[record.OrderID()] = rows
	return nil
}

func (r historyRepository) Close(_ context.Context, orderID, recordID string, at time.Time) error {
	if !r.uow.active {
		return ErrNoActiveTransaction
	}
	rows := r.uow.stagedRecords(orderID)
	for i := range rows {
		if rows[i].recordID != recordID {
			continue
		}
		if rows[i].completedAt != nil {
			return errs.NewConcurrentUpdateError("record", recordID)
		}
		completed := at.UTC()
		rows[i].completedAt = &completed
		return nil
	}
	return errs.NewObjectNotFoundError("recordID", recordID)
}

func (r historyRepository) Latest(_ context.Context, orderID string) (*history.Record, error) {
	if !r.uow.active {
		return nil, ErrNoActiveTransaction
	}
	rows := r.uow.records(orderID)
	if len(rows) == 0 {
		return nil, errs.NewObjectNotFoundError("orderID", orderID)
	}
	return rows[len(rows)-1].toDomain(), nil
}

func (r historyRepository) List(_ context.Context, orderID string) ([]*history.Record, error) {
	if !r.uow.active {
		return nil, ErrNoActiveTransaction
	}
	rows := r.uow.records(orderID)
	result := make([]*history.Record, 0, len(rows))
	for _, row := range rows {
		result = append(result, row.toDomain())
	}
	return result, nil
}

func fromOrder(o *order.Order) orderRow {
	return orderRow{
		orderID:      o.OrderID(),
		localID:      o.LocalID(),
		status:       o.Status(),
		executionID:  o.ExecutionID(),
		pendingToken: o.PendingToken(),
		pendingSince: o.PendingSince(),
		createdAt:    o.CreatedAt(),
		updatedAt:    o.UpdatedAt(),
	}
}

func (row orderRow) toDomain() *order.Order {
	return order.RestoreOrder(
		row.orderID,
		row.localID,
		row.status,
		row.executionID,
		row.pendingToken,
		row.pendingSince,
		row.createdAt,
		row.updatedAt,
	)
}

func fromRecord(r *history.Record) recordRow {
	var completed *time.Time
	if at := r.CompletedAt(); at != nil {
		c := *at
		completed = &c
	}
	return recordRow{
		orderID:     r.OrderID(),
		recordID:    r.RecordID(),
		status:      r.Status(),
		token:       r.Token(),
		startedAt:   r.StartedAt(),
		completedAt: completed,
		actorID:     r.ActorID(),
		context:     r.Context(),
	}
}

func (row recordRow) toDomain() *history.Record {
	var completed *time.Time
	if row.completedAt != nil {
		c := *row.completedAt
		completed = &c
	}
	return history.RestoreRecord(
		row.orderID,
		row.recordID,
		row.status,
		row.token,
		row.startedAt,
		completed,
		row.actorID,
		row.context.Clone(),
	)
}
