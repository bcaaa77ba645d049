// Package kafkaconsumer feeds status events from Kafka into the callback
// dispatcher.
package kafkaconsumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"fulfillment/internal/core/application/usecases/commands"
	"fulfillment/internal/core/application/workflow"
	"fulfillment/internal/core/domain/model/event"
	"fulfillment/internal/pkg/errs"
	"fulfillment/internal/pkg/mq"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
)

// MessageReader is the part of *kafka.Reader the consumer needs.
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// StatusEventHandler resumes the workflow for one status event.
type StatusEventHandler interface {
	Handle(ctx context.Context, cmd commands.HandleStatusEventCommand) (workflow.ResumeResult, error)
}

// NewReader creates a consumer-group reader for topic.
func NewReader(brokers []string, groupID, topic string) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		GroupID:  groupID,
		Topic:    topic,
		MinBytes: 1,
		MaxBytes: 10e6,
	})
}

// StatusConsumer reads status events and hands them to the callback
// dispatcher. Offsets are committed once a message was handled or given up
// on; a message whose handling keeps failing is logged and skipped, leaving
// the order to the stuck-stage watchdog.
type StatusConsumer struct {
	reader     MessageReader
	handler    StatusEventHandler
	logger     zerolog.Logger
	maxRetries uint64
	fetchPause time.Duration
}

// Option configures a StatusConsumer.
type Option func(*StatusConsumer)

// WithMaxRetries bounds the attempts to handle one message.
func WithMaxRetries(n uint64) Option {
	return func(c *StatusConsumer) { c.maxRetries = n }
}

// WithFetchPause sets the pause after a failed fetch.
func WithFetchPause(d time.Duration) Option {
	return func(c *StatusConsumer) { c.fetchPause = d }
}

func NewStatusConsumer(
	reader MessageReader,
	handler StatusEventHandler,
	logger zerolog.Logger,
	opts ...Option,
) (*StatusConsumer, error) {
	if reader == nil {
		return nil, errs.NewValueIsRequiredError("reader")
	}
	if handler == nil {
		return nil, errs.NewValueIsRequiredError("handler")
	}

	c := &StatusConsumer{
		reader:     reader,
		handler:    handler,
		logger:     logger,
		maxRetries: 5,
		fetchPause: time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Run consumes until ctx is cancelled, then closes the reader.
func (c *StatusConsumer) Run(ctx context.Context) error {
	defer func() {
		if err := c.reader.Close(); err != nil {
			c.logger.Error().Err(err).Msg("failed to close kafka reader")
		}
	}()

	c.logger.Info().Msg("status consumer started")
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				c.logger.Info().Msg("status consumer stopped")
				return nil
			}
			c.logger.Error().Err(err).Msg("could not fetch message, retrying")
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(c.fetchPause):
			}
			continue
		}

		c.process(mq.Extract(ctx, msg), msg)

		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			c.logger.Error().Err(err).Int64("offset", msg.Offset).Msg("failed to commit message")
		}
	}
}

func (c *StatusConsumer) process(ctx context.Context, msg kafka.Message) {
	logger := c.logger.With().
		Int("partition", msg.Partition).
		Int64("offset", msg.Offset).
		Str("key", string(msg.Key)).
		Logger()

	cmd, err := decode(msg.Value)
	if err != nil {
		logger.Warn().Err(err).Msg("skipping malformed status event")
		return
	}

	var res workflow.ResumeResult
	b := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), c.maxRetries), ctx)
	err = backoff.Retry(func() error {
		var handleErr error
		res, handleErr = c.handler.Handle(ctx, cmd)
		if handleErr != nil && !retryable(handleErr) {
			return backoff.Permanent(handleErr)
		}
		return handleErr
	}, b)
	if err != nil {
		logger.Error().Err(err).Str("order_id", cmd.OrderID()).Msg("failed to handle status event")
		return
	}

	logger.Debug().
		Str("order_id", res.OrderID).
		Bool("applied", res.Applied).
		Stringer("status", res.Status).
		Str("reason", res.Reason).
		Msg("status event handled")
}

func decode(value []byte) (commands.HandleStatusEventCommand, error) {
	var e event.StatusEvent
	if err := json.Unmarshal(value, &e); err != nil {
		return commands.HandleStatusEventCommand{}, fmt.Errorf("decode status event: %w", err)
	}
	return commands.NewHandleStatusEventCommand(e)
}

// retryable reports whether handling may succeed when tried again. A stage
// failure means the transition already committed, so the event was consumed.
func retryable(err error) bool {
	switch {
	case errors.Is(err, workflow.ErrStageFailed),
		errors.Is(err, errs.ErrValueIsRequired),
		errors.Is(err, errs.ErrValueIsInvalid),
		errors.Is(err, errs.ErrValueIsOutOfRange),
		errors.Is(err, context.Canceled):
		return false
	}
	return true
}
