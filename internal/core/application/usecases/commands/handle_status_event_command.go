package commands

import (
	"errors"
	"maps"
	"strings"

	"fulfillment/internal/core/domain/model/event"
	"fulfillment/internal/pkg/guard"
)

var ErrHandleStatusEventCommandIsNotConstructed = errors.New(
	"HandleStatusEventCommand must be created via NewHandleStatusEventCommand constructor",
)

// HandleStatusEventCommand carries one status event from the event bus to
// the callback dispatcher.
type HandleStatusEventCommand struct { //nolint:recvcheck //using for validation
	event event.StatusEvent

	guard guard.ConstructorGuard
}

// NewHandleStatusEventCommand validates e. Only the order id is required;
// an empty status is read as the default accepted outcome.
func NewHandleStatusEventCommand(e event.StatusEvent) (HandleStatusEventCommand, error) {
	if err := e.Validate(); err != nil {
		return HandleStatusEventCommand{}, err
	}

	e.OrderID = strings.TrimSpace(e.OrderID)
	e.Payload = maps.Clone(e.Payload)

	return HandleStatusEventCommand{
		event: e,
		guard: guard.NewConstructorGuard(),
	}, nil
}

// Validate ensures the command was created through the constructor.
func (c HandleStatusEventCommand) Validate() error {
	return c.guard.Validate(ErrHandleStatusEventCommandIsNotConstructed)
}

func (c HandleStatusEventCommand) OrderID() string {
	return c.event.OrderID
}

// Event returns a copy of the wrapped event.
func (c HandleStatusEventCommand) Event() event.StatusEvent {
	e := c.event
	e.Payload = maps.Clone(c.event.Payload)
	return e
}
