package redisqueue

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"fulfillment/internal/core/ports"
	"fulfillment/internal/pkg/errs"

	"github.com/redis/go-redis/v9"
)

// InboundQueue is the new-order queue on a Redis stream read through a
// consumer group. A received entry stays in the group's pending list until
// Delete acknowledges it; entries pending longer than the visibility timeout
// are claimed again by the next Receive.
type InboundQueue struct {
	client   redis.UniversalClient
	stream   string
	group    string
	consumer string
	retry    retryConfig
}

// NewInboundQueue creates the consumer group on stream when missing.
func NewInboundQueue(
	ctx context.Context,
	client redis.UniversalClient,
	stream, group, consumer string,
	opts ...Option,
) (*InboundQueue, error) {
	if stream == "" {
		return nil, errs.NewValueIsRequiredError("stream")
	}
	if group == "" {
		return nil, errs.NewValueIsRequiredError("group")
	}
	if consumer == "" {
		return nil, errs.NewValueIsRequiredError("consumer")
	}

	err := client.XGroupCreateMkStream(ctx, stream, group, "0").Err()
	if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
		return nil, fmt.Errorf("create consumer group %s on %s: %w", group, stream, err)
	}

	return &InboundQueue{
		client:   client,
		stream:   stream,
		group:    group,
		consumer: consumer,
		retry:    newRetryConfig(opts),
	}, nil
}

// Send appends body and returns the stream entry id.
func (q *InboundQueue) Send(ctx context.Context, body string) (string, error) {
	var id string
	err := q.retry.retry(ctx, func() error {
		var err error
		id, err = q.client.XAdd(ctx, &redis.XAddArgs{
			Stream: q.stream,
			Values: map[string]any{payloadField: body},
		}).Result()
		return err
	})
	if err != nil {
		return "", fmt.Errorf("send inbound message: %w", err)
	}
	return id, nil
}

// Receive first reclaims entries whose visibility timeout elapsed, then reads
// new ones, blocking up to opts.Wait when nothing is available.
func (q *InboundQueue) Receive(ctx context.Context, opts ports.ReceiveOptions) ([]ports.InboundMessage, error) {
	limit := opts.MaxMessages
	if limit <= 0 {
		limit = 1
	}

	out := make([]ports.InboundMessage, 0, limit)

	if opts.VisibilityTimeout > 0 {
		claimed, _, err := q.client.XAutoClaim(ctx, &redis.XAutoClaimArgs{
			Stream:   q.stream,
			Group:    q.group,
			Consumer: q.consumer,
			MinIdle:  opts.VisibilityTimeout,
			Start:    "0-0",
			Count:    int64(limit),
		}).Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("reclaim inbound messages: %w", err)
		}
		out = appendMessages(out, claimed)
	}

	if len(out) >= limit {
		return out[:limit], nil
	}

	// A negative Block omits the BLOCK argument; zero would block forever.
	block := opts.Wait
	if block <= 0 || len(out) > 0 {
		block = -1
	}

	streams, err := q.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    q.group,
		Consumer: q.consumer,
		Streams:  []string{q.stream, ">"},
		Count:    int64(limit - len(out)),
		Block:    block,
	}).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return out, nil
		}
		return nil, fmt.Errorf("read inbound messages: %w", err)
	}
	for _, s := range streams {
		out = appendMessages(out, s.Messages)
	}
	return out, nil
}

func appendMessages(out []ports.InboundMessage, messages []redis.XMessage) []ports.InboundMessage {
	for _, m := range messages {
		body, _ := m.Values[payloadField].(string)
		out = append(out, ports.InboundMessage{ID: m.ID, Receipt: m.ID, Body: body})
	}
	return out
}

// Delete acknowledges the entry and removes it from the stream.
func (q *InboundQueue) Delete(ctx context.Context, receipt string) error {
	acked, err := q.client.XAck(ctx, q.stream, q.group, receipt).Result()
	if err != nil {
		return fmt.Errorf("ack inbound message %s: %w", receipt, err)
	}
	if acked == 0 {
		return errs.NewObjectNotFoundError("receipt", receipt)
	}
	if err := q.client.XDel(ctx, q.stream, receipt).Err(); err != nil {
		return fmt.Errorf("delete inbound message %s: %w", receipt, err)
	}
	return nil
}
