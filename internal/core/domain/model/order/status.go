package order

import (
	"fmt"

	"fulfillment/internal/pkg/errs"
)

// Status is the fulfillment state of an order and the status written to
// each ledger record.
//
// Workflow:
//
//	Processing ──> InKitchen ──> KitchenDone ──> Packed ──> OutForDelivery ──> Delivered
//	    ^              │              │            │              ^
//	    └─RetryKitchen─┴──────────────┘            └─RetryDelivery┘
//
// Any non-terminal status may move to Failed. RetryKitchen and RetryDelivery
// are ledger-only markers; an order never rests in them.
type Status int

const (
	// Unknown represents an invalid or undefined status.
	Unknown Status = iota

	// Processing is entered by ProcesarPedido; the order waits on the kitchen queue.
	Processing

	// InKitchen is entered by PedidoEnCocina once the kitchen picked the order up.
	InKitchen

	// KitchenDone is entered by CocinaCompleta when cooking finished.
	KitchenDone

	// Packed is entered by Empaquetado; the order waits for a rider.
	Packed

	// OutForDelivery is entered by Delivery; the order waits on the delivery queue.
	OutForDelivery

	// Delivered is terminal and entered by EntregaCompleta.
	Delivered

	// Failed is terminal: a permanent failure or an escalation after too many retries.
	Failed

	// RetryKitchen marks a rejected kitchen-phase stage in the ledger.
	RetryKitchen

	// RetryDelivery marks a rejected delivery-phase stage in the ledger.
	RetryDelivery
)

var statusNames = map[Status]string{
	Unknown:        "Unknown",
	Processing:     "Processing",
	InKitchen:      "InKitchen",
	KitchenDone:    "KitchenDone",
	Packed:         "Packed",
	OutForDelivery: "OutForDelivery",
	Delivered:      "Delivered",
	Failed:         "Failed",
	RetryKitchen:   "RetryKitchen",
	RetryDelivery:  "RetryDelivery",
}

// ParseStatus converts a persisted status name back to a Status.
// Returns a ValueIsInvalidError for unknown names.
func ParseStatus(s string) (Status, error) {
	for status, name := range statusNames {
		if status != Unknown && name == s {
			return status, nil
		}
	}
	return Unknown, errs.NewValueIsInvalidErrorWithCause("status", fmt.Errorf("%q is not a valid status", s))
}

// String returns the status name used in storage and on the wire.
func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return "Unknown"
}

// Validate checks that s is a known status.
func (s Status) Validate() error {
	if _, ok := statusNames[s]; !ok || s == Unknown {
		return errs.NewValueIsInvalidErrorWithCause("status", fmt.Errorf("%d is not a valid status", s))
	}
	return nil
}

// IsTerminal reports whether no further transition is possible.
func (s Status) IsTerminal() bool {
	return s == Delivered || s == Failed
}

// Suspends reports whether entering s leaves the workflow waiting for an external actor.
func (s Status) Suspends() bool {
	switch s { //nolint:exhaustive // only awaited stages suspend
	case Processing, InKitchen, KitchenDone, Packed, OutForDelivery:
		return true
	default:
		return false
	}
}

// IsKitchenPhase reports whether s belongs to the kitchen part of the workflow,
// where a rejection re-enters Processing.
func (s Status) IsKitchenPhase() bool {
	return s == Processing || s == InKitchen || s == KitchenDone
}

// IsDeliveryPhase reports whether s belongs to the delivery part of the workflow,
// where a rejection re-enters OutForDelivery.
func (s Status) IsDeliveryPhase() bool {
	return s == Packed || s == OutForDelivery
}

// Next returns the stage that follows s on acceptance.
// Returns an error for terminal statuses and ledger-only markers.
func (s Status) Next() (Status, error) {
	switch s { //nolint:exhaustive // remaining statuses have no successor
	case Processing:
		return InKitchen, nil
	case InKitchen:
		return KitchenDone, nil
	case KitchenDone:
		return Packed, nil
	case Packed:
		return OutForDelivery, nil
	case OutForDelivery:
		return Delivered, nil
	default:
		return Unknown, errs.NewValueIsInvalidErrorWithCause(
			"status",
			fmt.Errorf("%s has no next stage", s),
		)
	}
}

// CanTransitionTo reports whether an order in s may move to next.
func (s Status) CanTransitionTo(next Status) bool {
	if s.IsTerminal() || !s.Suspends() {
		return false
	}
	if next == Failed {
		return true
	}
	if following, err := s.Next(); err == nil && following == next {
		return true
	}
	switch {
	case s.IsKitchenPhase():
		return next == Processing
	case s.IsDeliveryPhase():
		return next == OutForDelivery
	default:
		return false
	}
}
