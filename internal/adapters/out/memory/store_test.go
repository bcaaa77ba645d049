package memory_test

import (
	"context"
	"testing"
	"time"

	"fulfillment/internal/adapters/out/memory"
	"fulfillment/internal/core/domain/model/history"
	"fulfillment/internal/core/domain/model/kernel"
	"fulfillment/internal/core/domain/model/order"
	"fulfillment/internal/pkg/errs"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2025, 3, 14, 12, 0, 0, 0, time.UTC)

func TestUnitOfWork_CommitAndRollback(t *testing.T) {
	ctx := t.Context()
	factory := memory.NewUnitOfWorkFactory(memory.NewStore())

	o, err := order.NewOrder("O1", "L1", now)
	require.NoError(t, err)

	uow := factory.Create()
	require.NoError(t, uow.Begin(ctx))
	require.NoError(t, uow.OrderRepository().Add(ctx, o))
	require.NoError(t, uow.Rollback(ctx))

	uow = factory.Create()
	require.NoError(t, uow.Begin(ctx))
	_, err = uow.OrderRepository().Get(ctx, "O1")
	require.ErrorIs(t, err, errs.ErrObjectNotFound)
	require.NoError(t, uow.OrderRepository().Add(ctx, o))
	require.NoError(t, uow.Commit(ctx))
	require.NoError(t, uow.Rollback(ctx), "rollback after commit is a no-op")

	uow = factory.Create()
	require.NoError(t, uow.Begin(ctx))
	defer func() { _ = uow.Rollback(ctx) }()
	got, err := uow.OrderRepository().Get(ctx, "O1")
	require.NoError(t, err)
	assert.Equal(t, "L1", got.LocalID())
	assert.Equal(t, o.ExecutionID(), got.ExecutionID())

	err = uow.OrderRepository().Add(ctx, o)
	require.ErrorIs(t, err, errs.ErrObjectAlreadyExists)
}

func TestUnitOfWork_RequiresBegin(t *testing.T) {
	uow := memory.NewUnitOfWorkFactory(memory.NewStore()).Create()

	_, err := uow.OrderRepository().Get(t.Context(), "O1")
	require.ErrorIs(t, err, memory.ErrNoActiveTransaction)
	require.ErrorIs(t, uow.Commit(t.Context()), memory.ErrNoActiveTransaction)
}

func TestUnitOfWork_BeginHonoursContext(t *testing.T) {
	factory := memory.NewUnitOfWorkFactory(memory.NewStore())
	holder := factory.Create()
	require.NoError(t, holder.Begin(t.Context()))
	defer func() { _ = holder.Rollback(t.Context()) }()

	ctx, cancel := context.WithTimeout(t.Context(), 20*time.Millisecond)
	defer cancel()

	err := factory.Create().Begin(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestOrderRepository_ConditionalUpdate(t *testing.T) {
	ctx := t.Context()
	factory := memory.NewUnitOfWorkFactory(memory.NewStore())
	o, _ := order.NewOrder("O1", "", now)
	first := kernel.NewToken()

	uow := factory.Create()
	require.NoError(t, uow.Begin(ctx))
	require.NoError(t, uow.OrderRepository().Add(ctx, o))
	require.NoError(t, o.EnterStage(order.Processing, first, now))
	require.NoError(t, uow.OrderRepository().Update(ctx, o, kernel.Token{}))
	require.NoError(t, uow.Commit(ctx))

	uow = factory.Create()
	require.NoError(t, uow.Begin(ctx))
	defer func() { _ = uow.Rollback(ctx) }()

	require.NoError(t, o.EnterStage(order.InKitchen, kernel.NewToken(), now))
	err := uow.OrderRepository().Update(ctx, o, kernel.NewToken())
	require.ErrorIs(t, err, errs.ErrConcurrentUpdate)

	require.NoError(t, uow.OrderRepository().Update(ctx, o, first))
	err = uow.OrderRepository().Update(ctx, o, first)
	require.ErrorIs(t, err, errs.ErrConcurrentUpdate, "token already consumed")
}

func TestOrderRepository_ListStuck(t *testing.T) {
	ctx := t.Context()
	factory := memory.NewUnitOfWorkFactory(memory.NewStore())

	uow := factory.Create()
	require.NoError(t, uow.Begin(ctx))
	for i, id := range []string{"old", "older", "fresh"} {
		o, _ := order.NewOrder(id, "", now)
		require.NoError(t, uow.OrderRepository().Add(ctx, o))
		entered := now.Add(-time.Duration(2-i) * time.Hour)
		if id == "fresh" {
			entered = now
		}
		require.NoError(t, o.EnterStage(order.Processing, kernel.NewToken(), entered))
		require.NoError(t, uow.OrderRepository().Update(ctx, o, kernel.Token{}))
	}
	idle, _ := order.NewOrder("idle", "", now.Add(-10*time.Hour))
	require.NoError(t, uow.OrderRepository().Add(ctx, idle))
	require.NoError(t, uow.Commit(ctx))

	uow = factory.Create()
	require.NoError(t, uow.Begin(ctx))
	defer func() { _ = uow.Rollback(ctx) }()

	stuck, err := uow.OrderRepository().ListStuck(ctx, now.Add(-30*time.Minute), 10)
	require.NoError(t, err)
	require.Len(t, stuck, 2)
	assert.Equal(t, "old", stuck[0].OrderID())
	assert.Equal(t, "older", stuck[1].OrderID())

	limited, err := uow.OrderRepository().ListStuck(ctx, now.Add(-30*time.Minute), 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestHistoryRepository(t *testing.T) {
	ctx := t.Context()
	factory := memory.NewUnitOfWorkFactory(memory.NewStore())

	token := kernel.NewToken()
	first, _ := history.NewRecord("O1", order.Processing, token, order.Context{OrderID: "O1"}, "", now, "")
	second, _ := history.NewRecord("O1", order.InKitchen, kernel.NewToken(), order.Context{OrderID: "O1"}, "", now, first.RecordID())

	uow := factory.Create()
	require.NoError(t, uow.Begin(ctx))
	ledger := uow.HistoryRepository()

	_, err := ledger.Latest(ctx, "O1")
	require.ErrorIs(t, err, errs.ErrObjectNotFound)

	require.NoError(t, ledger.Append(ctx, first))
	require.ErrorIs(t, ledger.Append(ctx, first), errs.ErrObjectAlreadyExists)
	require.NoError(t, ledger.Close(ctx, "O1", first.RecordID(), now.Add(time.Minute)))
	require.ErrorIs(t, ledger.Close(ctx, "O1", first.RecordID(), now), errs.ErrConcurrentUpdate)
	require.ErrorIs(t, ledger.Close(ctx, "O1", "missing", now), errs.ErrObjectNotFound)
	require.NoError(t, ledger.Append(ctx, second))
	require.NoError(t, uow.Commit(ctx))

	uow = factory.Create()
	require.NoError(t, uow.Begin(ctx))
	defer func() { _ = uow.Rollback(ctx) }()

	latest, err := uow.HistoryRepository().Latest(ctx, "O1")
	require.NoError(t, err)
	assert.Equal(t, second.RecordID(), latest.RecordID())
	assert.True(t, latest.IsPending())

	all, err := uow.HistoryRepository().List(ctx, "O1")
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, order.Processing, all[0].Status())
	require.NotNil(t, all[0].CompletedAt())
	assert.Equal(t, now.Add(time.Minute), *all[0].CompletedAt())
	assert.True(t, all[0].Token().Equal(token))
}
