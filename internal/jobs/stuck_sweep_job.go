package jobs

import (
	"context"
	"time"

	"fulfillment/internal/core/application/usecases/commands"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// StuckOrderSweeper resumes orders stuck in a stage.
type StuckOrderSweeper interface {
	Handle(ctx context.Context, cmd commands.SweepStuckOrdersCommand) (commands.SweepResult, error)
}

// StuckSweepJob is the stuck-stage watchdog schedule.
type StuckSweepJob struct {
	handler  StuckOrderSweeper
	schedule string
	command  commands.SweepStuckOrdersCommand
	cron     *cron.Cron
	logger   zerolog.Logger
}

// NewStuckSweepJob creates the watchdog job. Orders awaiting a continuation
// for longer than olderThan are resumed with a timeout outcome.
func NewStuckSweepJob(
	handler StuckOrderSweeper,
	schedule string,
	olderThan time.Duration,
	limit int,
	logger zerolog.Logger,
) (*StuckSweepJob, error) {
	cmd, err := commands.NewSweepStuckOrdersCommand(olderThan, limit)
	if err != nil {
		return nil, err
	}

	logger = logger.With().Str("component", "stuck_sweep_job").Logger()
	return &StuckSweepJob{
		handler:  handler,
		schedule: schedule,
		command:  cmd,
		cron:     newCron(logger),
		logger:   logger,
	}, nil
}

func (j *StuckSweepJob) Start(ctx context.Context) error {
	if _, err := j.cron.AddFunc(j.schedule, func() { j.run(ctx) }); err != nil {
		return err
	}

	j.cron.Start()
	j.logger.Info().
		Str("schedule", j.schedule).
		Dur("older_than", j.command.OlderThan()).
		Msg("stuck sweep job started")
	return nil
}

func (j *StuckSweepJob) Stop() {
	<-j.cron.Stop().Done()
	j.logger.Info().Msg("stuck sweep job stopped")
}

func (j *StuckSweepJob) run(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}

	result, err := j.handler.Handle(ctx, j.command)
	if err != nil {
		j.logger.Error().Err(err).
			Int("scanned", result.Scanned).
			Int("resumed", len(result.Resumed)).
			Msg("stuck sweep failed")
		return
	}
	if len(result.Resumed) > 0 {
		j.logger.Warn().
			Int("scanned", result.Scanned).
			Strs("resumed", result.Resumed).
			Msg("resumed stuck orders")
	}
}
