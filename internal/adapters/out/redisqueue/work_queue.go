// Package redisqueue implements the stage work queues and the inbound order
// queue on Redis streams.
package redisqueue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"fulfillment/internal/core/ports"

	"github.com/cenkalti/backoff/v4"
	"github.com/redis/go-redis/v9"
)

const (
	payloadField = "payload"

	defaultMaxRetries = 4
)

// Option configures the retry behaviour of the queues.
type Option func(*retryConfig)

type retryConfig struct {
	maxRetries      uint64
	initialInterval time.Duration
	maxElapsed      time.Duration
}

// WithMaxRetries bounds how often a failed XADD is retried.
func WithMaxRetries(n uint64) Option {
	return func(c *retryConfig) { c.maxRetries = n }
}

// WithInitialInterval sets the first backoff interval.
func WithInitialInterval(d time.Duration) Option {
	return func(c *retryConfig) { c.initialInterval = d }
}

func newRetryConfig(opts []Option) retryConfig {
	c := retryConfig{
		maxRetries:      defaultMaxRetries,
		initialInterval: 100 * time.Millisecond,
		maxElapsed:      10 * time.Second,
	}
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// retry runs op with bounded exponential backoff.
func (c retryConfig) retry(ctx context.Context, op func() error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.initialInterval
	b.MaxElapsedTime = c.maxElapsed
	return backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(b, c.maxRetries), ctx))
}

// WorkQueue appends work items to one stream per queue name,
// "<prefix>:<queue>", with the JSON item in the payload field.
type WorkQueue struct {
	client redis.UniversalClient
	prefix string
	retry  retryConfig
}

// NewWorkQueue creates a work queue writing streams under prefix.
func NewWorkQueue(client redis.UniversalClient, prefix string, opts ...Option) *WorkQueue {
	return &WorkQueue{
		client: client,
		prefix: prefix,
		retry:  newRetryConfig(opts),
	}
}

// Stream returns the stream key of queue.
func (q *WorkQueue) Stream(queue ports.QueueName) string {
	return fmt.Sprintf("%s:%s", q.prefix, queue)
}

// Enqueue appends item. Transient Redis errors are retried with backoff.
func (q *WorkQueue) Enqueue(ctx context.Context, queue ports.QueueName, item ports.WorkItem) error {
	payload, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("encode work item: %w", err)
	}

	stream := q.Stream(queue)
	err = q.retry.retry(ctx, func() error {
		return q.client.XAdd(ctx, &redis.XAddArgs{
			Stream: stream,
			Values: map[string]any{payloadField: payload},
		}).Err()
	})
	if err != nil {
		return fmt.Errorf("enqueue %s for order %s: %w", queue, item.OrderID, err)
	}
	return nil
}
