package commands

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"fulfillment/internal/core/domain/model/order"
)

// ErrMalformedMessage is returned for inbound messages that carry neither the
// JSON nor the text form of a new order.
var ErrMalformedMessage = errors.New("malformed inbound message")

// textSeparators are tried in order; the first one present splits the body.
var textSeparators = []string{",", "|", ":", ";"}

// InboundOrder is the content of one new-order message.
type InboundOrder struct {
	OrderID string           `json:"id_pedido"`
	Status  string           `json:"estado"`
	LocalID string           `json:"local_id,omitempty"`
	Items   []order.LineItem `json:"items,omitempty"`
}

// looseString accepts JSON strings and numbers.
type looseString string

func (s *looseString) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err == nil {
		*s = looseString(str)
		return nil
	}
	var num json.Number
	if err := json.Unmarshal(data, &num); err != nil {
		return err
	}
	*s = looseString(num.String())
	return nil
}

// ParseInboundMessage reads body as
//
//	{"id_pedido": "O1", "estado": "NUEVO", "local_id": "L7", "items": [...]}
//
// or as text "<id><sep><estado>" where sep is one of , | : ;
// A body that is not valid JSON is read as text.
func ParseInboundMessage(body string) (InboundOrder, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return InboundOrder{}, fmt.Errorf("%w: empty body", ErrMalformedMessage)
	}

	if strings.HasPrefix(body, "{") && json.Valid([]byte(body)) {
		return parseJSONMessage(body)
	}

	for _, sep := range textSeparators {
		left, right, found := strings.Cut(body, sep)
		if !found {
			continue
		}
		id, status := strings.TrimSpace(left), strings.TrimSpace(right)
		if id == "" || status == "" {
			break
		}
		return InboundOrder{OrderID: id, Status: status}, nil
	}
	return InboundOrder{}, fmt.Errorf("%w: expected {id_pedido, estado} or id,estado", ErrMalformedMessage)
}

func parseJSONMessage(body string) (InboundOrder, error) {
	var raw struct {
		OrderID *looseString     `json:"id_pedido"`
		Status  *looseString     `json:"estado"`
		LocalID looseString      `json:"local_id"`
		Items   []order.LineItem `json:"items"`
	}
	if err := json.Unmarshal([]byte(body), &raw); err != nil {
		return InboundOrder{}, fmt.Errorf("%w: %w", ErrMalformedMessage, err)
	}
	if raw.Status == nil {
		return InboundOrder{}, fmt.Errorf("%w: estado is required", ErrMalformedMessage)
	}
	if raw.OrderID == nil || strings.TrimSpace(string(*raw.OrderID)) == "" {
		return InboundOrder{}, fmt.Errorf("%w: id_pedido is required", ErrMalformedMessage)
	}

	return InboundOrder{
		OrderID: strings.TrimSpace(string(*raw.OrderID)),
		Status:  strings.TrimSpace(string(*raw.Status)),
		LocalID: strings.TrimSpace(string(raw.LocalID)),
		Items:   raw.Items,
	}, nil
}

// Body renders the order in its JSON message form.
func (o InboundOrder) Body() (string, error) {
	b, err := json.Marshal(o)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
