package event

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"

	"fulfillment/internal/pkg/errs"
)

// StatusEvent is a status change reported by an external worker.
// Keys other than the well-known ones are kept in Payload.
//
// Wire form:
//
//	{"order_id": "O1", "event_type": "KitchenStarted", "status": "EnPreparacion", "actor_id": "cook-7", "station": 3}
//
// event_id is optional. Workers that may report the same outcome twice in a
// row for one order (repeated rejections) set it to tell the reports apart.
type StatusEvent struct {
	EventID   string
	OrderID   string
	EventType string
	Status    string
	ActorID   string
	LocalID   string
	Payload   map[string]any
}

var knownKeys = map[string]struct{}{
	"event_id":   {},
	"order_id":   {},
	"event_type": {},
	"status":     {},
	"actor_id":   {},
	"local_id":   {},
}

// Validate checks the fields the callback dispatcher relies on.
func (e StatusEvent) Validate() error {
	if strings.TrimSpace(e.OrderID) == "" {
		return errs.NewValueIsRequiredError("order_id")
	}
	return nil
}

// Key identifies the event for deduplication: its event_id when present,
// otherwise a digest of its JSON form. Redeliveries of one event share a key.
func (e StatusEvent) Key() string {
	if id := strings.TrimSpace(e.EventID); id != "" {
		return "id:" + id
	}
	data, err := json.Marshal(e)
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(data)
	return "sha256:" + hex.EncodeToString(sum[:])
}

// MarshalJSON flattens Payload next to the well-known keys.
func (e StatusEvent) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(e.Payload)+len(knownKeys))
	for k, v := range e.Payload {
		if _, ok := knownKeys[k]; !ok {
			out[k] = v
		}
	}
	out["order_id"] = e.OrderID
	out["event_type"] = e.EventType
	out["status"] = e.Status
	out["actor_id"] = e.ActorID
	if e.LocalID != "" {
		out["local_id"] = e.LocalID
	}
	if e.EventID != "" {
		out["event_id"] = e.EventID
	}
	return json.Marshal(out)
}

// UnmarshalJSON reads the well-known keys and keeps the rest in Payload.
// Non-string values of well-known keys are rendered with their JSON text.
func (e *StatusEvent) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*e = StatusEvent{
		EventID:   stringField(raw["event_id"]),
		OrderID:   stringField(raw["order_id"]),
		EventType: stringField(raw["event_type"]),
		Status:    stringField(raw["status"]),
		ActorID:   stringField(raw["actor_id"]),
		LocalID:   stringField(raw["local_id"]),
	}

	for k, v := range raw {
		if _, ok := knownKeys[k]; ok {
			continue
		}
		var value any
		if err := json.Unmarshal(v, &value); err != nil {
			return err
		}
		if e.Payload == nil {
			e.Payload = make(map[string]any)
		}
		e.Payload[k] = value
	}
	return nil
}

func stringField(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}
