package commands

import (
	"errors"
	"math"
	"time"

	"fulfillment/internal/pkg/errs"
	"fulfillment/internal/pkg/guard"
)

var ErrSweepStuckOrdersCommandIsNotConstructed = errors.New(
	"SweepStuckOrdersCommand must be created via NewSweepStuckOrdersCommand constructor",
)

const DefaultSweepLimit = 100

// SweepStuckOrdersCommand asks the watchdog to time out continuations that
// have been pending for longer than olderThan.
type SweepStuckOrdersCommand struct { //nolint:recvcheck //using for validation
	olderThan time.Duration
	limit     int

	guard guard.ConstructorGuard
}

// NewSweepStuckOrdersCommand requires a positive threshold. A limit that is
// not positive becomes DefaultSweepLimit.
func NewSweepStuckOrdersCommand(olderThan time.Duration, limit int) (SweepStuckOrdersCommand, error) {
	if olderThan <= 0 {
		return SweepStuckOrdersCommand{}, errs.NewValueIsOutOfRangeError("olderThan", olderThan, time.Nanosecond, time.Duration(math.MaxInt64))
	}
	if limit <= 0 {
		limit = DefaultSweepLimit
	}

	return SweepStuckOrdersCommand{
		olderThan: olderThan,
		limit:     limit,
		guard:     guard.NewConstructorGuard(),
	}, nil
}

// Validate ensures the command was created through the constructor.
func (c SweepStuckOrdersCommand) Validate() error {
	return c.guard.Validate(ErrSweepStuckOrdersCommandIsNotConstructed)
}

func (c SweepStuckOrdersCommand) OlderThan() time.Duration {
	return c.olderThan
}

func (c SweepStuckOrdersCommand) Limit() int {
	return c.limit
}
