package orderrepo_test

import (
	"context"
	"testing"
	"time"

	"fulfillment/internal/adapters/out/postgres/orderrepo"
	"fulfillment/internal/core/domain/model/kernel"
	"fulfillment/internal/core/domain/model/order"
	"fulfillment/internal/pkg/errs"

	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	postgresdriver "gorm.io/driver/postgres"
	"gorm.io/gorm"
)

var createdAt = time.Date(2025, 3, 14, 12, 0, 0, 0, time.UTC)

// OrderRepositoryIntegrationTestSuite runs the order repository against a
// PostgreSQL container.
type OrderRepositoryIntegrationTestSuite struct {
	suite.Suite
	container  *postgres.PostgresContainer
	db         *gorm.DB
	repository *orderrepo.GormOrderRepository
}

func (suite *OrderRepositoryIntegrationTestSuite) SetupSuite() {
	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"postgres:15-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	suite.Require().NoError(err)
	suite.container = container

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	suite.Require().NoError(err)

	db, err := gorm.Open(postgresdriver.Open(connStr), &gorm.Config{TranslateError: true})
	suite.Require().NoError(err)
	suite.db = db

	suite.Require().NoError(db.AutoMigrate(&orderrepo.OrderDTO{}))
}

func (suite *OrderRepositoryIntegrationTestSuite) SetupTest() {
	suite.Require().NoError(suite.db.Exec("TRUNCATE TABLE orders").Error)
	suite.repository = orderrepo.NewGormOrderRepository(suite.db)
}

func (suite *OrderRepositoryIntegrationTestSuite) TearDownSuite() {
	if suite.container != nil {
		suite.Require().NoError(suite.container.Terminate(context.Background()))
	}
}

func (suite *OrderRepositoryIntegrationTestSuite) newOrder(orderID string) *order.Order {
	o, err := order.NewOrder(orderID, "L7", createdAt)
	suite.Require().NoError(err)
	return o
}

func (suite *OrderRepositoryIntegrationTestSuite) TestAddAndGet() {
	ctx := context.Background()
	o := suite.newOrder("O1")
	token := kernel.NewToken()
	suite.Require().NoError(o.EnterStage(order.Processing, token, createdAt))
	suite.Require().NoError(suite.repository.Add(ctx, o))

	got, err := suite.repository.Get(ctx, "O1")
	suite.Require().NoError(err)
	suite.Equal("O1", got.OrderID())
	suite.Equal("L7", got.LocalID())
	suite.Equal(order.Processing, got.Status())
	suite.Equal(o.ExecutionID(), got.ExecutionID())
	suite.True(got.PendingToken().Equal(token))
	suite.True(got.PendingSince().Equal(createdAt))
}

func (suite *OrderRepositoryIntegrationTestSuite) TestAdd_Duplicate() {
	ctx := context.Background()
	suite.Require().NoError(suite.repository.Add(ctx, suite.newOrder("O1")))

	err := suite.repository.Add(ctx, suite.newOrder("O1"))
	suite.Require().ErrorIs(err, errs.ErrObjectAlreadyExists)
}

func (suite *OrderRepositoryIntegrationTestSuite) TestGet_NotFound() {
	got, err := suite.repository.Get(context.Background(), "O99")
	suite.Nil(got)

	var notFoundErr *errs.ObjectNotFoundError
	suite.Require().ErrorAs(err, &notFoundErr)
}

func (suite *OrderRepositoryIntegrationTestSuite) TestUpdate_IsConditionalOnToken() {
	ctx := context.Background()
	o := suite.newOrder("O1")
	suite.Require().NoError(suite.repository.Add(ctx, o))

	first := kernel.NewToken()
	suite.Require().NoError(o.EnterStage(order.Processing, first, createdAt.Add(time.Second)))
	suite.Require().NoError(suite.repository.Update(ctx, o, kernel.Token{}))

	second := kernel.NewToken()
	suite.Require().NoError(o.EnterStage(order.InKitchen, second, createdAt.Add(2*time.Second)))

	err := suite.repository.Update(ctx, o, kernel.NewToken())
	suite.Require().ErrorIs(err, errs.ErrConcurrentUpdate)

	suite.Require().NoError(suite.repository.Update(ctx, o, first))

	got, err := suite.repository.Get(ctx, "O1")
	suite.Require().NoError(err)
	suite.Equal(order.InKitchen, got.Status())
	suite.True(got.PendingToken().Equal(second))
}

func (suite *OrderRepositoryIntegrationTestSuite) TestUpdate_ClearsTokenOnTerminalStage() {
	ctx := context.Background()
	o := suite.newOrder("O1")
	token := kernel.NewToken()
	suite.Require().NoError(o.EnterStage(order.Processing, token, createdAt))
	suite.Require().NoError(suite.repository.Add(ctx, o))

	suite.Require().NoError(o.EnterStage(order.Failed, kernel.Token{}, createdAt.Add(time.Minute)))
	suite.Require().NoError(suite.repository.Update(ctx, o, token))

	got, err := suite.repository.Get(ctx, "O1")
	suite.Require().NoError(err)
	suite.Equal(order.Failed, got.Status())
	suite.False(got.IsPending())
	suite.True(got.PendingSince().IsZero())
}

func (suite *OrderRepositoryIntegrationTestSuite) TestListStuck() {
	ctx := context.Background()
	for i, id := range []string{"O3", "O1", "O2"} {
		o := suite.newOrder(id)
		suite.Require().NoError(o.EnterStage(order.Processing, kernel.NewToken(), createdAt.Add(time.Duration(i)*time.Minute)))
		suite.Require().NoError(suite.repository.Add(ctx, o))
	}
	suite.Require().NoError(suite.repository.Add(ctx, suite.newOrder("idle")))

	stuck, err := suite.repository.ListStuck(ctx, createdAt.Add(90*time.Second), 0)
	suite.Require().NoError(err)
	suite.Require().Len(stuck, 2)
	suite.Equal("O3", stuck[0].OrderID())
	suite.Equal("O1", stuck[1].OrderID())

	limited, err := suite.repository.ListStuck(ctx, createdAt.Add(time.Hour), 1)
	suite.Require().NoError(err)
	suite.Require().Len(limited, 1)
	suite.Equal("O3", limited[0].OrderID())
}

func TestOrderRepositoryIntegrationTestSuite(t *testing.T) {
	suite.Run(t, new(OrderRepositoryIntegrationTestSuite))
}
