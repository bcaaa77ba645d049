package memory

import (
	"context"
	"errors"
	"sync"

	"fulfillment/internal/core/domain/model/event"
	"fulfillment/internal/core/ports"
)

// Bus is a synchronous fan-out event bus. PublishStatus delivers the event to
// every subscriber before returning.
type Bus struct {
	mu            sync.RWMutex
	handlers      []ports.StatusEventHandler
	statuses      []event.StatusEvent
	notifications []event.Notification
}

// NewBus creates a bus without subscribers.
func NewBus() *Bus {
	return &Bus{}
}

// Subscribe registers h for status events.
func (b *Bus) Subscribe(h ports.StatusEventHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers = append(b.handlers, h)
}

func (b *Bus) PublishStatus(ctx context.Context, e event.StatusEvent) error {
	b.mu.Lock()
	b.statuses = append(b.statuses, e)
	handlers := make([]ports.StatusEventHandler, len(b.handlers))
	copy(handlers, b.handlers)
	b.mu.Unlock()

	var errList []error
	for _, h := range handlers {
		if err := h(ctx, e); err != nil {
			errList = append(errList, err)
		}
	}
	return errors.Join(errList...)
}

func (b *Bus) PublishNotification(_ context.Context, n event.Notification) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.notifications = append(b.notifications, n)
	return nil
}

// Notifications returns the notifications published so far.
func (b *Bus) Notifications() []event.Notification {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]event.Notification, len(b.notifications))
	copy(out, b.notifications)
	return out
}

// Statuses returns the status events published so far.
func (b *Bus) Statuses() []event.StatusEvent {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]event.StatusEvent, len(b.statuses))
	copy(out, b.statuses)
	return out
}
