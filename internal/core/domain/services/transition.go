package services

import (
	"errors"
	"fmt"
	"strings"

	"fulfillment/internal/core/domain/model/order"
)

// ErrNotAwaiting is returned when a decision is requested for an order that is
// not resting in a suspending stage.
var ErrNotAwaiting = errors.New("order is not awaiting an outcome")

// DefaultOutcomeStatus is assumed when a worker reports no status.
const DefaultOutcomeStatus = "ACEPTADO"

// TimeoutStatus is reported by the stuck-stage watchdog.
const TimeoutStatus = "TIMEOUT"

// OutcomeKind classifies a status reported by an external actor.
type OutcomeKind int

const (
	// OutcomeAccepted lets the workflow advance to the next stage.
	OutcomeAccepted OutcomeKind = iota

	// OutcomeRejected sends the workflow back to the originating stage of its phase.
	OutcomeRejected

	// OutcomeFailed ends the workflow.
	OutcomeFailed
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeRejected:
		return "rejected"
	case OutcomeFailed:
		return "failed"
	default:
		return "accepted"
	}
}

var (
	rejectedStatuses = map[string]struct{}{
		"REJECTED": {}, "RECHAZADO": {}, "RETRY": {}, "REINTENTAR": {}, TimeoutStatus: {},
	}
	failedStatuses = map[string]struct{}{
		"FAILED": {}, "FALLIDO": {}, "CANCELLED": {}, "CANCELADO": {},
	}
)

// ClassifyOutcome maps a reported status to an OutcomeKind, case-insensitively.
// Anything not recognised as a rejection or a failure counts as acceptance,
// including worker-specific progress statuses such as "EnPreparacion".
func ClassifyOutcome(status string) OutcomeKind {
	s := strings.ToUpper(strings.TrimSpace(status))
	if _, ok := rejectedStatuses[s]; ok {
		return OutcomeRejected
	}
	if _, ok := failedStatuses[s]; ok {
		return OutcomeFailed
	}
	return OutcomeAccepted
}

// Action is what the orchestrator must do with a resumed order.
type Action int

const (
	// ActionAdvance runs the handler of the next stage.
	ActionAdvance Action = iota + 1

	// ActionRetry records a retry marker and re-runs the originating stage.
	ActionRetry

	// ActionFail marks the order Failed after a permanent failure.
	ActionFail

	// ActionEscalate marks the order Failed and hands it to manual review.
	ActionEscalate

	// ActionComplete runs the completion handler.
	ActionComplete
)

func (a Action) String() string {
	switch a {
	case ActionAdvance:
		return "advance"
	case ActionRetry:
		return "retry"
	case ActionFail:
		return "fail"
	case ActionEscalate:
		return "escalate"
	case ActionComplete:
		return "complete"
	default:
		return "unknown"
	}
}

// RetryPolicy bounds how often a phase may be retried.
// MaxRetries of 0 means unbounded.
type RetryPolicy struct {
	MaxRetries int
}

// Decision is the outcome of DecideTransition.
type Decision struct {
	// Action to perform.
	Action Action

	// Next is the stage the order ends up in.
	Next order.Status

	// Marker is the ledger-only retry status (RetryKitchen or RetryDelivery) for ActionRetry.
	Marker order.Status

	// RetryCount is the context retry count after the transition.
	RetryCount int

	// Reason is a human-readable explanation for logs and the ledger.
	Reason string
}

// DecideTransition computes the next step for an order resting in current
// after an actor reported kind. It is a pure function of its inputs.
//
// Rules:
//   - accepted: advance to the next stage; from OutForDelivery complete the order
//   - rejected in the kitchen phase: retry via RetryKitchen into Processing
//   - rejected in the delivery phase: retry via RetryDelivery into OutForDelivery
//   - rejected beyond policy.MaxRetries (when > 0): escalate to Failed
//   - failed: fail the order
//
// Returns ErrNotAwaiting when current is terminal or not a suspending stage.
//
// Example:
//
//	d, err := services.DecideTransition(order.InKitchen, services.ClassifyOutcome("RECHAZADO"), 0, policy)
//	// d.Action == services.ActionRetry, d.Next == order.Processing, d.RetryCount == 1
func DecideTransition(current order.Status, kind OutcomeKind, retryCount int, policy RetryPolicy) (Decision, error) {
	if current.IsTerminal() || !current.Suspends() {
		return Decision{}, fmt.Errorf("%w: %s", ErrNotAwaiting, current)
	}

	switch kind {
	case OutcomeFailed:
		return Decision{
			Action:     ActionFail,
			Next:       order.Failed,
			RetryCount: retryCount,
			Reason:     fmt.Sprintf("permanent failure reported in %s", current),
		}, nil

	case OutcomeRejected:
		next, marker := order.Processing, order.RetryKitchen
		if current.IsDeliveryPhase() {
			next, marker = order.OutForDelivery, order.RetryDelivery
		}
		attempts := retryCount + 1
		if policy.MaxRetries > 0 && attempts > policy.MaxRetries {
			return Decision{
				Action:     ActionEscalate,
				Next:       order.Failed,
				RetryCount: retryCount,
				Reason:     fmt.Sprintf("retry limit %d exceeded in %s", policy.MaxRetries, current),
			}, nil
		}
		return Decision{
			Action:     ActionRetry,
			Next:       next,
			Marker:     marker,
			RetryCount: attempts,
			Reason:     fmt.Sprintf("rejected in %s, attempt %d", current, attempts),
		}, nil

	default:
		next, err := current.Next()
		if err != nil {
			return Decision{}, err
		}
		action := ActionAdvance
		if next == order.Delivered {
			action = ActionComplete
		}
		return Decision{
			Action:     action,
			Next:       next,
			RetryCount: retryCount,
			Reason:     fmt.Sprintf("accepted in %s", current),
		}, nil
	}
}
