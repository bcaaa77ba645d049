package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"fulfillment/cmd"
	"fulfillment/internal/core/application/usecases/commands"

	"github.com/alecthomas/kong"
	"github.com/joho/godotenv"
	"github.com/labstack/gommon/log"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

type CLI struct {
	cmd.Config `embed:""`

	Serve    ServeCmd    `cmd:"" default:"1" help:"Run the HTTP API, the status event consumer and the scheduled jobs."`
	Dispatch DispatchCmd `cmd:"" help:"Pop one batch from the inbound queue and start a workflow per order."`
	Migrate  MigrateCmd  `cmd:"" help:"Create or update the database schema."`
	Sweep    SweepCmd    `cmd:"" help:"Resume orders stuck in a stage with a timeout outcome."`
}

func main() {
	// A missing .env is fine; the environment may be set by the host.
	_ = godotenv.Load(".env")

	var cli CLI
	kctx := kong.Parse(&cli,
		kong.Name("fulfillment"),
		kong.Description("Order fulfillment workflow engine."),
		kong.UsageOnError(),
	)

	logger := newLogger(cli.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	kctx.BindTo(ctx, (*context.Context)(nil))

	if err := kctx.Run(&cli.Config, logger); err != nil {
		logger.Error().Err(err).Str("command", kctx.Command()).Msg("command failed")
		stop()
		os.Exit(1)
	}
}

func newLogger(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(os.Stderr).Level(lvl).With().Timestamp().Str("service", "fulfillment").Logger()
}

// echoLevel maps the zerolog level onto echo's own logger.
func echoLevel(level zerolog.Level) log.Lvl {
	switch {
	case level <= zerolog.DebugLevel:
		return log.DEBUG
	case level == zerolog.InfoLevel:
		return log.INFO
	case level == zerolog.WarnLevel:
		return log.WARN
	case level == zerolog.Disabled:
		return log.OFF
	default:
		return log.ERROR
	}
}

type ServeCmd struct{}

func (ServeCmd) Run(ctx context.Context, cfg *cmd.Config, logger zerolog.Logger) error {
	app, err := cmd.NewCompositionRoot(ctx, *cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := app.Close(); err != nil {
			logger.Error().Err(err).Msg("failed to close connections")
		}
	}()

	e, err := app.CreateEcho()
	if err != nil {
		return err
	}
	e.Logger.SetLevel(echoLevel(logger.GetLevel()))

	runner, err := app.CreateStatusEventRunner()
	if err != nil {
		return err
	}
	jobManager, err := app.CreateJobManager()
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		addr := fmt.Sprintf("0.0.0.0:%s", cfg.HTTPPort)
		logger.Info().Str("addr", addr).Msg("http server started")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return e.Shutdown(shutdownCtx)
	})
	g.Go(func() error {
		return runner.Run(gctx)
	})
	g.Go(func() error {
		if err := jobManager.StartAll(gctx); err != nil {
			return err
		}
		<-gctx.Done()
		jobManager.StopAll()
		return nil
	})

	err = g.Wait()
	logger.Info().Msg("shut down")
	return err
}

type DispatchCmd struct {
	MaxMessages       int `default:"1" help:"Messages to pop (1-10)."`
	WaitSeconds       int `default:"5" help:"Long-poll wait in seconds (0-20)."`
	VisibilityTimeout int `default:"30" help:"Seconds a popped message stays hidden."`
}

func (c DispatchCmd) Run(ctx context.Context, cfg *cmd.Config, logger zerolog.Logger) error {
	app, err := cmd.NewCompositionRoot(ctx, *cfg, logger)
	if err != nil {
		return err
	}
	defer func() { _ = app.Close() }()

	handler, err := app.CreateDispatchInboundCommandHandler()
	if err != nil {
		return err
	}

	result, err := handler.Handle(ctx, commands.NewDispatchInboundCommand(commands.DispatchOptions{
		MaxMessages:       &c.MaxMessages,
		WaitSeconds:       &c.WaitSeconds,
		VisibilityTimeout: &c.VisibilityTimeout,
	}))
	if err != nil {
		return err
	}
	if err := printJSON(result); err != nil {
		return err
	}
	if result.HasFailures() {
		return fmt.Errorf("%d of %d messages failed", len(result.Failures), result.Popped)
	}
	return nil
}

type MigrateCmd struct{}

func (MigrateCmd) Run(ctx context.Context, cfg *cmd.Config, logger zerolog.Logger) error {
	app, err := cmd.NewCompositionRoot(ctx, *cfg, logger)
	if err != nil {
		return err
	}
	defer func() { _ = app.Close() }()

	if err := app.Migrate(ctx); err != nil {
		return err
	}
	logger.Info().Str("store", cfg.Store).Msg("schema migrated")
	return nil
}

type SweepCmd struct {
	OlderThan time.Duration `help:"Stage age that counts as stuck (defaults to STAGE_TIMEOUT)."`
	Limit     int           `default:"100" help:"Orders resumed per pass."`
}

func (c SweepCmd) Run(ctx context.Context, cfg *cmd.Config, logger zerolog.Logger) error {
	olderThan := c.OlderThan
	if olderThan == 0 {
		olderThan = cfg.StageTimeout
	}
	command, err := commands.NewSweepStuckOrdersCommand(olderThan, c.Limit)
	if err != nil {
		return err
	}

	app, err := cmd.NewCompositionRoot(ctx, *cfg, logger)
	if err != nil {
		return err
	}
	defer func() { _ = app.Close() }()

	handler, err := app.CreateSweepStuckOrdersCommandHandler()
	if err != nil {
		return err
	}

	result, err := handler.Handle(ctx, command)
	if printErr := printJSON(result); printErr != nil {
		return errors.Join(err, printErr)
	}
	return err
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

