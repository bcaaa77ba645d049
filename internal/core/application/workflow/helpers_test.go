package workflow_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"fulfillment/internal/adapters/out/memory"
	"fulfillment/internal/core/application/workflow"
	"fulfillment/internal/core/domain/model/event"
	"fulfillment/internal/core/domain/model/history"
	"fulfillment/internal/core/domain/model/order"
	"fulfillment/internal/core/ports"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type harness struct {
	store   *memory.Store
	factory ports.UnitOfWorkFactory
	queue   *memory.WorkQueue
	bus     *memory.Bus
	orch    *workflow.Orchestrator
}

// steppingClock returns a clock advancing one second per call.
func steppingClock() func() time.Time {
	var mu sync.Mutex
	current := time.Date(2025, 3, 14, 12, 0, 0, 0, time.UTC)
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		current = current.Add(time.Second)
		return current
	}
}

func newHarness(t *testing.T, opts ...workflow.Option) *harness {
	t.Helper()

	h := &harness{
		store: memory.NewStore(),
		queue: memory.NewWorkQueue(),
		bus:   memory.NewBus(),
	}
	h.factory = memory.NewUnitOfWorkFactory(h.store)

	opts = append([]workflow.Option{workflow.WithClock(steppingClock())}, opts...)
	orch, err := workflow.NewOrchestrator(h.factory, h.queue, h.bus, opts...)
	require.NoError(t, err)
	h.orch = orch
	return h
}

func (h *harness) order(t *testing.T, orderID string) *order.Order {
	t.Helper()
	uow := h.factory.Create()
	require.NoError(t, uow.Begin(t.Context()))
	defer func() { _ = uow.Rollback(t.Context()) }()

	o, err := uow.OrderRepository().Get(t.Context(), orderID)
	require.NoError(t, err)
	return o
}

func (h *harness) ledger(t *testing.T, orderID string) []*history.Record {
	t.Helper()
	uow := h.factory.Create()
	require.NoError(t, uow.Begin(t.Context()))
	defer func() { _ = uow.Rollback(t.Context()) }()

	records, err := uow.HistoryRepository().List(t.Context(), orderID)
	require.NoError(t, err)
	return records
}

func pendingCount(records []*history.Record) int {
	n := 0
	for _, r := range records {
		if r.IsPending() {
			n++
		}
	}
	return n
}

func statuses(records []*history.Record) []order.Status {
	out := make([]order.Status, 0, len(records))
	for _, r := range records {
		out = append(out, r.Status())
	}
	return out
}

type MockWorkQueue struct{ mock.Mock }

func (m *MockWorkQueue) Enqueue(ctx context.Context, queue ports.QueueName, item ports.WorkItem) error {
	args := m.Called(ctx, queue, item)
	return args.Error(0)
}

type MockPublisher struct{ mock.Mock }

func (m *MockPublisher) PublishStatus(ctx context.Context, e event.StatusEvent) error {
	args := m.Called(ctx, e)
	return args.Error(0)
}

func (m *MockPublisher) PublishNotification(ctx context.Context, n event.Notification) error {
	args := m.Called(ctx, n)
	return args.Error(0)
}

// failingLedgerFactory wraps a factory so every ledger append fails.
type failingLedgerFactory struct {
	inner ports.UnitOfWorkFactory
	err   error
}

func (f failingLedgerFactory) Create() ports.UnitOfWork {
	return failingLedgerUoW{UnitOfWork: f.inner.Create(), err: f.err}
}

type failingLedgerUoW struct {
	ports.UnitOfWork
	err error
}

func (u failingLedgerUoW) HistoryRepository() ports.HistoryRepository {
	return failingLedger{HistoryRepository: u.UnitOfWork.HistoryRepository(), err: u.err}
}

type failingLedger struct {
	ports.HistoryRepository
	err error
}

func (l failingLedger) Append(context.Context, *history.Record) error {
	return l.err
}
