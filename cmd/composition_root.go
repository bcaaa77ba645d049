package cmd

import (
	"context"
	"errors"
	"fmt"

	httpin "fulfillment/internal/adapters/in/http"
	"fulfillment/internal/adapters/in/kafkaconsumer"
	"fulfillment/internal/adapters/out/kafkabus"
	"fulfillment/internal/adapters/out/memory"
	"fulfillment/internal/adapters/out/postgres"
	"fulfillment/internal/adapters/out/redisqueue"
	"fulfillment/internal/core/application/usecases/commands"
	"fulfillment/internal/core/application/usecases/queries"
	"fulfillment/internal/core/application/workflow"
	"fulfillment/internal/core/domain/model/event"
	"fulfillment/internal/core/domain/services"
	"fulfillment/internal/core/ports"
	"fulfillment/internal/jobs"
	"fulfillment/internal/pkg/metrics"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	postgresdriver "gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// CompositionRoot owns the adapters selected by Config and builds the use
// case handlers on top of them.
type CompositionRoot struct {
	cfg    Config
	logger zerolog.Logger

	registry *prometheus.Registry
	metrics  *metrics.Workflow

	gormDB      *gorm.DB
	redisClient redis.UniversalClient
	memoryBus   *memory.Bus

	uowFactory ports.UnitOfWorkFactory
	workQueue  ports.WorkQueue
	inbound    ports.InboundQueue
	publisher  ports.EventPublisher

	orchestrator *workflow.Orchestrator

	closers []func() error
}

func NewCompositionRoot(ctx context.Context, cfg Config, logger zerolog.Logger) (*CompositionRoot, error) {
	c := &CompositionRoot{
		cfg:      cfg,
		logger:   logger,
		registry: prometheus.NewRegistry(),
	}

	c.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m, err := metrics.NewWorkflow(c.registry)
	if err != nil {
		return nil, err
	}
	c.metrics = m

	if err := c.openStore(); err != nil {
		return nil, c.fail(err)
	}
	if err := c.openQueues(ctx); err != nil {
		return nil, c.fail(err)
	}
	if err := c.openBus(); err != nil {
		return nil, c.fail(err)
	}

	c.orchestrator, err = workflow.NewOrchestrator(
		c.uowFactory,
		c.workQueue,
		c.publisher,
		workflow.WithRetryPolicy(services.RetryPolicy{MaxRetries: cfg.MaxRetries}),
		workflow.WithLogger(c.component("orchestrator")),
		workflow.WithMetrics(c.metrics),
	)
	if err != nil {
		return nil, c.fail(err)
	}

	return c, nil
}

func (c *CompositionRoot) component(name string) zerolog.Logger {
	return c.logger.With().Str("component", name).Logger()
}

func (c *CompositionRoot) fail(err error) error {
	return errors.Join(err, c.Close())
}

func (c *CompositionRoot) openStore() error {
	switch c.cfg.Store {
	case StoreMemory:
		c.uowFactory = memory.NewUnitOfWorkFactory(memory.NewStore())
	default:
		db, err := gorm.Open(postgresdriver.Open(c.cfg.DSN()), &gorm.Config{TranslateError: true})
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		sqlDB, err := db.DB()
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		c.closers = append(c.closers, sqlDB.Close)
		c.gormDB = db
		c.uowFactory = postgres.NewGormUnitOfWorkFactory(db)
	}
	return nil
}

func (c *CompositionRoot) openQueues(ctx context.Context) error {
	switch c.cfg.Queue {
	case QueueMemory:
		c.workQueue = memory.NewWorkQueue()
		c.inbound = memory.NewInboundQueue()
	default:
		client := redis.NewClient(&redis.Options{
			Addr:     c.cfg.RedisAddr,
			Password: c.cfg.RedisPassword,
			DB:       c.cfg.RedisDB,
		})
		c.closers = append(c.closers, client.Close)
		c.redisClient = client

		if err := client.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("connect to redis: %w", err)
		}

		c.workQueue = redisqueue.NewWorkQueue(client, c.cfg.WorkStreamPrefix)
		inbound, err := redisqueue.NewInboundQueue(ctx, client, c.cfg.InboundStream, c.cfg.InboundGroup, c.cfg.InboundConsumer)
		if err != nil {
			return err
		}
		c.inbound = inbound
	}
	return nil
}

func (c *CompositionRoot) openBus() error {
	switch c.cfg.Bus {
	case BusMemory:
		c.memoryBus = memory.NewBus()
		c.publisher = c.memoryBus
	default:
		publisher, err := kafkabus.NewPublisher(
			kafkabus.NewWriter(c.cfg.KafkaHost, c.cfg.KafkaStatusTopic),
			kafkabus.NewWriter(c.cfg.KafkaHost, c.cfg.KafkaNotificationTopic),
		)
		if err != nil {
			return err
		}
		c.closers = append(c.closers, publisher.Close)
		c.publisher = publisher
	}
	return nil
}

// Close releases every opened connection in reverse order.
func (c *CompositionRoot) Close() error {
	var errList []error
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](); err != nil {
			errList = append(errList, err)
		}
	}
	c.closers = nil
	return errors.Join(errList...)
}

// Migrate creates the orders and history tables. It is a no-op for the
// in-memory store.
func (c *CompositionRoot) Migrate(ctx context.Context) error {
	if c.gormDB == nil {
		return nil
	}
	return postgres.Migrate(ctx, c.gormDB)
}

func (c *CompositionRoot) CreateDispatchInboundCommandHandler() (commands.DispatchInboundCommandHandler, error) {
	return commands.NewDispatchInboundCommandHandler(c.inbound, c.orchestrator, c.component("dispatcher"), c.metrics)
}

func (c *CompositionRoot) CreateSubmitOrderCommandHandler() (commands.SubmitOrderCommandHandler, error) {
	return commands.NewSubmitOrderCommandHandler(c.inbound)
}

func (c *CompositionRoot) CreateHandleStatusEventCommandHandler() (commands.HandleStatusEventCommandHandler, error) {
	return commands.NewHandleStatusEventCommandHandler(c.uowFactory, c.orchestrator, c.component("callback_dispatcher"), c.metrics)
}

func (c *CompositionRoot) CreateSweepStuckOrdersCommandHandler() (commands.SweepStuckOrdersCommandHandler, error) {
	return commands.NewSweepStuckOrdersCommandHandler(c.uowFactory, c.orchestrator, nil, c.component("watchdog"), c.metrics)
}

func (c *CompositionRoot) CreateGetOrderStatusQueryHandler() (queries.GetOrderStatusQueryHandler, error) {
	return queries.NewGetOrderStatusQueryHandler(c.uowFactory)
}

func (c *CompositionRoot) CreateGetOrderHistoryQueryHandler() (queries.GetOrderHistoryQueryHandler, error) {
	return queries.NewGetOrderHistoryQueryHandler(c.uowFactory)
}

// CreateEcho builds the HTTP server with all routes mounted.
func (c *CompositionRoot) CreateEcho() (*echo.Echo, error) {
	dispatch, err := c.CreateDispatchInboundCommandHandler()
	if err != nil {
		return nil, err
	}
	submit, err := c.CreateSubmitOrderCommandHandler()
	if err != nil {
		return nil, err
	}
	status, err := c.CreateGetOrderStatusQueryHandler()
	if err != nil {
		return nil, err
	}
	history, err := c.CreateGetOrderHistoryQueryHandler()
	if err != nil {
		return nil, err
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())

	httpin.NewServer(dispatch, submit, status, history, c.publisher, c.registry, c.component("http")).Register(e)
	return e, nil
}

// StatusEventRunner consumes status events until its context ends.
type StatusEventRunner interface {
	Run(ctx context.Context) error
}

// CreateStatusEventRunner connects the event bus to the callback dispatcher.
// With the in-memory bus the dispatcher is subscribed directly and the
// returned runner only waits for shutdown.
func (c *CompositionRoot) CreateStatusEventRunner() (StatusEventRunner, error) {
	handler, err := c.CreateHandleStatusEventCommandHandler()
	if err != nil {
		return nil, err
	}

	if c.memoryBus != nil {
		c.memoryBus.Subscribe(func(ctx context.Context, e event.StatusEvent) error {
			cmd, err := commands.NewHandleStatusEventCommand(e)
			if err != nil {
				return err
			}
			_, err = handler.Handle(ctx, cmd)
			return err
		})
		return idleRunner{}, nil
	}

	reader := kafkaconsumer.NewReader(c.cfg.KafkaHost, c.cfg.KafkaConsumerGroup, c.cfg.KafkaStatusTopic)
	consumer, err := kafkaconsumer.NewStatusConsumer(reader, handler, c.component("status_consumer"))
	if err != nil {
		return nil, err
	}
	return consumer, nil
}

type idleRunner struct{}

func (idleRunner) Run(ctx context.Context) error {
	<-ctx.Done()
	return nil
}

// CreateJobManager builds the inbound poller and the watchdog. Either is left
// out when its schedule is empty; the watchdog also when STAGE_TIMEOUT is 0.
func (c *CompositionRoot) CreateJobManager() (*jobs.JobManager, error) {
	var scheduled []jobs.Job

	if c.cfg.InboundPollSchedule != "" {
		dispatch, err := c.CreateDispatchInboundCommandHandler()
		if err != nil {
			return nil, err
		}
		batch, wait := c.cfg.InboundBatchSize, 0
		scheduled = append(scheduled, jobs.NewInboundDispatchJob(
			dispatch,
			c.cfg.InboundPollSchedule,
			commands.DispatchOptions{MaxMessages: &batch, WaitSeconds: &wait},
			c.logger,
		))
	}

	if c.cfg.StuckSweepSchedule != "" && c.cfg.StageTimeout > 0 {
		sweep, err := c.CreateSweepStuckOrdersCommandHandler()
		if err != nil {
			return nil, err
		}
		job, err := jobs.NewStuckSweepJob(sweep, c.cfg.StuckSweepSchedule, c.cfg.StageTimeout, c.cfg.StuckSweepLimit, c.logger)
		if err != nil {
			return nil, err
		}
		scheduled = append(scheduled, job)
	}

	return jobs.NewJobManager(scheduled...), nil
}
