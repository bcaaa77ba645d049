package jobs

import (
	"context"

	"fulfillment/internal/core/application/usecases/commands"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// InboundDispatcher pops and dispatches one batch of inbound orders.
type InboundDispatcher interface {
	Handle(ctx context.Context, cmd commands.DispatchInboundCommand) (commands.DispatchResult, error)
}

// InboundDispatchJob polls the inbound queue on a schedule.
type InboundDispatchJob struct {
	handler  InboundDispatcher
	schedule string
	options  commands.DispatchOptions
	cron     *cron.Cron
	logger   zerolog.Logger
}

// NewInboundDispatchJob creates the poller. schedule is any robfig/cron spec
// such as "@every 5s".
func NewInboundDispatchJob(
	handler InboundDispatcher,
	schedule string,
	options commands.DispatchOptions,
	logger zerolog.Logger,
) *InboundDispatchJob {
	logger = logger.With().Str("component", "inbound_dispatch_job").Logger()
	return &InboundDispatchJob{
		handler:  handler,
		schedule: schedule,
		options:  options,
		cron:     newCron(logger),
		logger:   logger,
	}
}

// Start schedules the job. Runs use ctx and stop dispatching once it ends.
func (j *InboundDispatchJob) Start(ctx context.Context) error {
	if _, err := j.cron.AddFunc(j.schedule, func() { j.run(ctx) }); err != nil {
		return err
	}

	j.cron.Start()
	j.logger.Info().Str("schedule", j.schedule).Msg("inbound dispatch job started")
	return nil
}

// Stop stops scheduling and waits for a running dispatch to finish.
func (j *InboundDispatchJob) Stop() {
	<-j.cron.Stop().Done()
	j.logger.Info().Msg("inbound dispatch job stopped")
}

func (j *InboundDispatchJob) run(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}

	result, err := j.handler.Handle(ctx, commands.NewDispatchInboundCommand(j.options))
	if err != nil {
		j.logger.Error().Err(err).Msg("inbound dispatch failed")
		return
	}
	if result.Popped == 0 {
		return
	}

	ev := j.logger.Info()
	if result.HasFailures() {
		ev = j.logger.Warn()
	}
	ev.Int("popped", result.Popped).
		Int("started", len(result.Executions)).
		Int("failed", len(result.Failures)).
		Msg("inbound batch dispatched")
}
