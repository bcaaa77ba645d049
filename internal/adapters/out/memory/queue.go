package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"fulfillment/internal/core/ports"
	"fulfillment/internal/pkg/errs"
)

// WorkQueue keeps work items per queue in memory.
type WorkQueue struct {
	mu    sync.Mutex
	items map[ports.QueueName][]ports.WorkItem
}

// NewWorkQueue creates an empty work queue.
func NewWorkQueue() *WorkQueue {
	return &WorkQueue{items: make(map[ports.QueueName][]ports.WorkItem)}
}

func (q *WorkQueue) Enqueue(ctx context.Context, queue ports.QueueName, item ports.WorkItem) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items[queue] = append(q.items[queue], item)
	return nil
}

// Items returns a copy of the items currently on queue.
func (q *WorkQueue) Items(queue ports.QueueName) []ports.WorkItem {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]ports.WorkItem, len(q.items[queue]))
	copy(out, q.items[queue])
	return out
}

type inboundMessage struct {
	id             string
	body           string
	receipt        string
	receives       int
	invisibleUntil time.Time
}

// InboundQueue is an SQS-like queue: received messages stay hidden for the
// visibility timeout and reappear unless deleted.
type InboundQueue struct {
	mu       sync.Mutex
	seq      int
	messages []*inboundMessage
	changed  chan struct{}
	now      func() time.Time
}

// NewInboundQueue creates an empty inbound queue.
func NewInboundQueue() *InboundQueue {
	return &InboundQueue{
		changed: make(chan struct{}),
		now:     time.Now,
	}
}

func (q *InboundQueue) Send(ctx context.Context, body string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	q.mu.Lock()
	defer q.mu.Unlock()

	q.seq++
	id := fmt.Sprintf("m-%d", q.seq)
	q.messages = append(q.messages, &inboundMessage{id: id, body: body})
	close(q.changed)
	q.changed = make(chan struct{})
	return id, nil
}

func (q *InboundQueue) Receive(ctx context.Context, opts ports.ReceiveOptions) ([]ports.InboundMessage, error) {
	limit := opts.MaxMessages
	if limit <= 0 {
		limit = 1
	}

	var deadline <-chan time.Time
	if opts.Wait > 0 {
		timer := time.NewTimer(opts.Wait)
		defer timer.Stop()
		deadline = timer.C
	}

	for {
		received, changed := q.take(limit, opts.VisibilityTimeout)
		if len(received) > 0 || deadline == nil {
			return received, nil
		}
		select {
		case <-changed:
		case <-deadline:
			received, _ = q.take(limit, opts.VisibilityTimeout)
			return received, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

func (q *InboundQueue) take(limit int, visibility time.Duration) ([]ports.InboundMessage, <-chan struct{}) {
	q.mu.Lock()
	defer q.mu.Unlock()

	now := q.now()
	var out []ports.InboundMessage
	for _, m := range q.messages {
		if len(out) == limit {
			break
		}
		if now.Before(m.invisibleUntil) {
			continue
		}
		m.receives++
		m.receipt = fmt.Sprintf("%s#%d", m.id, m.receives)
		m.invisibleUntil = now.Add(visibility)
		out = append(out, ports.InboundMessage{ID: m.id, Receipt: m.receipt, Body: m.body})
	}
	return out, q.changed
}

func (q *InboundQueue) Delete(_ context.Context, receipt string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	for i, m := range q.messages {
		if m.receipt == receipt && receipt != "" {
			q.messages = append(q.messages[:i], q.messages[i+1:]...)
			return nil
		}
	}
	return errs.NewObjectNotFoundError("receipt", receipt)
}

// Len returns the number of messages not yet deleted.
func (q *InboundQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.messages)
}

// ExpireVisibility makes every hidden message receivable again.
func (q *InboundQueue) ExpireVisibility() {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, m := range q.messages {
		m.invisibleUntil = time.Time{}
	}
	close(q.changed)
	q.changed = make(chan struct{})
}
