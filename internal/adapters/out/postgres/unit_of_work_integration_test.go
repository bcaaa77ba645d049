package postgres_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"fulfillment/internal/adapters/out/memory"
	postgres_adapter "fulfillment/internal/adapters/out/postgres"
	"fulfillment/internal/core/application/workflow"
	"fulfillment/internal/core/domain/model/order"
	"fulfillment/internal/core/ports"
	"fulfillment/internal/pkg/errs"

	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	gorm_postgres "gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// UnitOfWorkIntegrationTestSuite exercises transactions and whole workflow
// transitions against PostgreSQL.
type UnitOfWorkIntegrationTestSuite struct {
	suite.Suite
	container *postgres.PostgresContainer
	db        *gorm.DB
	factory   ports.UnitOfWorkFactory
}

func (suite *UnitOfWorkIntegrationTestSuite) SetupSuite() {
	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"postgres:15-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(30*time.Second)),
	)
	suite.Require().NoError(err)
	suite.container = container

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	suite.Require().NoError(err)

	db, err := gorm.Open(gorm_postgres.Open(dsn), &gorm.Config{TranslateError: true})
	suite.Require().NoError(err)
	suite.db = db

	suite.Require().NoError(postgres_adapter.Migrate(ctx, db))
	suite.factory = postgres_adapter.NewGormUnitOfWorkFactory(db)
}

func (suite *UnitOfWorkIntegrationTestSuite) SetupTest() {
	suite.Require().NoError(suite.db.Exec("TRUNCATE TABLE orders, history").Error)
}

func (suite *UnitOfWorkIntegrationTestSuite) TearDownSuite() {
	if suite.container != nil {
		suite.Require().NoError(suite.container.Terminate(context.Background()))
	}
}

func (suite *UnitOfWorkIntegrationTestSuite) TestTransactionLifecycle() {
	ctx := context.Background()
	uow := suite.factory.Create()

	suite.Require().Error(uow.Commit(ctx), "commit without begin")
	suite.Require().NoError(uow.Rollback(ctx), "rollback without begin is a no-op")

	suite.Require().NoError(uow.Begin(ctx))
	suite.Require().NoError(uow.Begin(ctx), "repeated begin is safe")
	suite.Require().NoError(uow.Commit(ctx))
	suite.Require().NoError(uow.Rollback(ctx), "rollback after commit is a no-op")
}

func (suite *UnitOfWorkIntegrationTestSuite) TestRollbackDiscardsChanges() {
	ctx := context.Background()
	o, err := order.NewOrder("O1", "", time.Now())
	suite.Require().NoError(err)

	uow := suite.factory.Create()
	suite.Require().NoError(uow.Begin(ctx))
	suite.Require().NoError(uow.OrderRepository().Add(ctx, o))
	suite.Require().NoError(uow.Rollback(ctx))

	_, err = suite.factory.Create().OrderRepository().Get(ctx, "O1")
	suite.Require().ErrorIs(err, errs.ErrObjectNotFound)
}

func (suite *UnitOfWorkIntegrationTestSuite) newOrchestrator() *workflow.Orchestrator {
	orch, err := workflow.NewOrchestrator(suite.factory, memory.NewWorkQueue(), memory.NewBus())
	suite.Require().NoError(err)
	return orch
}

func (suite *UnitOfWorkIntegrationTestSuite) current(orderID string) *order.Order {
	o, err := suite.factory.Create().OrderRepository().Get(context.Background(), orderID)
	suite.Require().NoError(err)
	return o
}

func (suite *UnitOfWorkIntegrationTestSuite) TestWorkflowRunsToDelivered() {
	ctx := context.Background()
	orch := suite.newOrchestrator()

	_, err := orch.Start(ctx, "O1", order.Context{LocalID: "L7"})
	suite.Require().NoError(err)

	for range 5 {
		token := suite.current("O1").PendingToken()
		res, err := orch.Resume(ctx, "O1", token, workflow.Outcome{Status: "Listo"})
		suite.Require().NoError(err)
		suite.Require().True(res.Applied)
	}

	final := suite.current("O1")
	suite.Equal(order.Delivered, final.Status())
	suite.False(final.IsPending())

	records, err := suite.factory.Create().HistoryRepository().List(ctx, "O1")
	suite.Require().NoError(err)
	suite.Require().Len(records, 6)
	for _, r := range records {
		suite.False(r.IsPending(), r.Status().String())
	}
}

func (suite *UnitOfWorkIntegrationTestSuite) TestConcurrentResumesApplyOnce() {
	ctx := context.Background()
	orch := suite.newOrchestrator()

	_, err := orch.Start(ctx, "O1", order.Context{})
	suite.Require().NoError(err)
	token := suite.current("O1").PendingToken()

	const callers = 8
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		applied  int
		failures []error
	)
	for range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := orch.Resume(ctx, "O1", token, workflow.Outcome{Status: "EnPreparacion"})
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failures = append(failures, err)
				return
			}
			if res.Applied {
				applied++
			}
		}()
	}
	wg.Wait()

	suite.Empty(failures)
	suite.Equal(1, applied)

	records, err := suite.factory.Create().HistoryRepository().List(ctx, "O1")
	suite.Require().NoError(err)
	suite.Require().Len(records, 2)
	suite.Equal(order.InKitchen, records[1].Status())
	suite.True(records[1].IsPending())
}

func TestUnitOfWorkIntegrationTestSuite(t *testing.T) {
	suite.Run(t, new(UnitOfWorkIntegrationTestSuite))
}
