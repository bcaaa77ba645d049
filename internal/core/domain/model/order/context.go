package order

import "maps"

// LineItem is one product line of an order.
type LineItem struct {
	ProductID string `json:"product_id"`
	Name      string `json:"name,omitempty"`
	Quantity  int    `json:"quantity"`
}

// Context is the payload carried from stage to stage and snapshotted into
// every ledger record. Items, LocalID and OrderID survive retries unchanged;
// RetryCount only grows.
type Context struct {
	OrderID    string         `json:"order_id"`
	LocalID    string         `json:"local_id,omitempty"`
	ActorID    string         `json:"actor_id,omitempty"`
	RetryCount int            `json:"retry_count"`
	Items      []LineItem     `json:"items,omitempty"`
	Event      string         `json:"event,omitempty"`
	Status     string         `json:"status,omitempty"`
	Details    map[string]any `json:"details,omitempty"`

	// EventKey identifies the status event that produced the record.
	EventKey string `json:"event_key,omitempty"`
}

// Clone returns a copy that shares no slices or maps with c.
// Nested values inside Details are shared.
func (c Context) Clone() Context {
	out := c
	if c.Items != nil {
		out.Items = make([]LineItem, len(c.Items))
		copy(out.Items, c.Items)
	}
	if c.Details != nil {
		out.Details = maps.Clone(c.Details)
	}
	return out
}
