package commands

import (
	"errors"
	"time"

	"fulfillment/internal/pkg/guard"
)

var ErrDispatchInboundCommandIsNotConstructed = errors.New(
	"DispatchInboundCommand must be created via NewDispatchInboundCommand constructor",
)

// Receive limits of one dispatch batch.
const (
	DefaultMaxMessages       = 1
	MinMaxMessages           = 1
	MaxMaxMessages           = 10
	DefaultWaitSeconds       = 5
	MaxWaitSeconds           = 20
	DefaultVisibilitySeconds = 30
)

// DispatchOptions are the caller supplied batch options. Nil fields take
// their defaults.
type DispatchOptions struct {
	MaxMessages       *int `json:"max_messages,omitempty"`
	WaitSeconds       *int `json:"wait_seconds,omitempty"`
	VisibilityTimeout *int `json:"visibility_timeout,omitempty"`
}

// DispatchInboundCommand pops a batch of new-order messages and starts a
// workflow for each one.
//
// Example:
//
//	n := 5
//	cmd := NewDispatchInboundCommand(DispatchOptions{MaxMessages: &n})
//	res, err := handler.Handle(ctx, cmd)
type DispatchInboundCommand struct { //nolint:recvcheck //using for validation
	maxMessages int
	wait        time.Duration
	visibility  time.Duration

	guard guard.ConstructorGuard
}

// NewDispatchInboundCommand clamps opts into the supported ranges:
// max_messages to [1, 10], wait_seconds to [0, 20]. A visibility timeout
// that is missing or not positive becomes 30 seconds.
func NewDispatchInboundCommand(opts DispatchOptions) DispatchInboundCommand {
	maxMessages := DefaultMaxMessages
	if opts.MaxMessages != nil {
		maxMessages = min(max(*opts.MaxMessages, MinMaxMessages), MaxMaxMessages)
	}

	waitSeconds := DefaultWaitSeconds
	if opts.WaitSeconds != nil {
		waitSeconds = min(max(*opts.WaitSeconds, 0), MaxWaitSeconds)
	}

	visibility := DefaultVisibilitySeconds
	if opts.VisibilityTimeout != nil && *opts.VisibilityTimeout > 0 {
		visibility = *opts.VisibilityTimeout
	}

	return DispatchInboundCommand{
		maxMessages: maxMessages,
		wait:        time.Duration(waitSeconds) * time.Second,
		visibility:  time.Duration(visibility) * time.Second,
		guard:       guard.NewConstructorGuard(),
	}
}

// Validate ensures the command was created through the constructor.
func (c DispatchInboundCommand) Validate() error {
	return c.guard.Validate(ErrDispatchInboundCommandIsNotConstructed)
}

func (c DispatchInboundCommand) MaxMessages() int {
	return c.maxMessages
}

func (c DispatchInboundCommand) Wait() time.Duration {
	return c.wait
}

func (c DispatchInboundCommand) VisibilityTimeout() time.Duration {
	return c.visibility
}
