package commands_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"fulfillment/internal/adapters/out/memory"
	"fulfillment/internal/core/application/workflow"
	"fulfillment/internal/core/domain/model/history"
	"fulfillment/internal/core/domain/model/kernel"
	"fulfillment/internal/core/domain/model/order"
	"fulfillment/internal/core/ports"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var epoch = time.Date(2025, 3, 14, 12, 0, 0, 0, time.UTC)

type harness struct {
	factory ports.UnitOfWorkFactory
	queue   *memory.WorkQueue
	bus     *memory.Bus
	inbound *memory.InboundQueue
	orch    *workflow.Orchestrator
}

// steppingClock returns a clock advancing one second per call from epoch.
func steppingClock() func() time.Time {
	var mu sync.Mutex
	current := epoch
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		current = current.Add(time.Second)
		return current
	}
}

func newHarness(t *testing.T, opts ...workflow.Option) *harness {
	t.Helper()
	return buildHarness(t, func(q *memory.WorkQueue) ports.WorkQueue { return q }, opts...)
}

// newFlakyHarness is newHarness whose work queue rejects the first failures
// enqueues to queue.
func newFlakyHarness(t *testing.T, queue ports.QueueName, failures int) *harness {
	t.Helper()
	return buildHarness(t, func(q *memory.WorkQueue) ports.WorkQueue {
		return &flakyQueue{WorkQueue: q, queue: queue, failures: failures}
	})
}

func buildHarness(t *testing.T, wrap func(*memory.WorkQueue) ports.WorkQueue, opts ...workflow.Option) *harness {
	t.Helper()

	h := &harness{
		factory: memory.NewUnitOfWorkFactory(memory.NewStore()),
		queue:   memory.NewWorkQueue(),
		bus:     memory.NewBus(),
		inbound: memory.NewInboundQueue(),
	}

	opts = append([]workflow.Option{workflow.WithClock(steppingClock())}, opts...)
	orch, err := workflow.NewOrchestrator(h.factory, wrap(h.queue), h.bus, opts...)
	require.NoError(t, err)
	h.orch = orch
	return h
}

type flakyQueue struct {
	*memory.WorkQueue
	mu       sync.Mutex
	queue    ports.QueueName
	failures int
}

func (q *flakyQueue) Enqueue(ctx context.Context, queue ports.QueueName, item ports.WorkItem) error {
	q.mu.Lock()
	fail := queue == q.queue && q.failures > 0
	if fail {
		q.failures--
	}
	q.mu.Unlock()

	if fail {
		return errors.New("queue unavailable")
	}
	return q.WorkQueue.Enqueue(ctx, queue, item)
}

func (h *harness) start(t *testing.T, orderID string) {
	t.Helper()
	_, err := h.orch.Start(t.Context(), orderID, order.Context{LocalID: "L1"})
	require.NoError(t, err)
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

type MockStarter struct{ mock.Mock }

func (m *MockStarter) Start(ctx context.Context, orderID string, initial order.Context) (workflow.ExecutionHandle, error) {
	args := m.Called(ctx, orderID, initial)
	return args.Get(0).(workflow.ExecutionHandle), args.Error(1)
}

type MockResumer struct{ mock.Mock }

func (m *MockResumer) Resume(
	ctx context.Context,
	orderID string,
	token kernel.Token,
	outcome workflow.Outcome,
) (workflow.ResumeResult, error) {
	args := m.Called(ctx, orderID, token, outcome)
	return args.Get(0).(workflow.ResumeResult), args.Error(1)
}

type MockInboundQueue struct{ mock.Mock }

func (m *MockInboundQueue) Receive(ctx context.Context, opts ports.ReceiveOptions) ([]ports.InboundMessage, error) {
	args := m.Called(ctx, opts)
	if msgs := args.Get(0); msgs != nil {
		return msgs.([]ports.InboundMessage), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockInboundQueue) Delete(ctx context.Context, receipt string) error {
	args := m.Called(ctx, receipt)
	return args.Error(0)
}

func (m *MockInboundQueue) Send(ctx context.Context, body string) (string, error) {
	args := m.Called(ctx, body)
	return args.String(0), args.Error(1)
}

func intPtr(v int) *int {
	return &v
}
