package commands_test

import (
	"testing"
	"time"

	"fulfillment/internal/core/application/usecases/commands"
	"fulfillment/internal/core/domain/model/order"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDispatchInboundCommand_Clamping(t *testing.T) {
	tests := []struct {
		name        string
		opts        commands.DispatchOptions
		maxMessages int
		wait        time.Duration
		visibility  time.Duration
	}{
		{
			name:        "defaults",
			maxMessages: 1,
			wait:        5 * time.Second,
			visibility:  30 * time.Second,
		},
		{
			name: "in range",
			opts: commands.DispatchOptions{
				MaxMessages:       intPtr(5),
				WaitSeconds:       intPtr(0),
				VisibilityTimeout: intPtr(45),
			},
			maxMessages: 5,
			wait:        0,
			visibility:  45 * time.Second,
		},
		{
			name: "above limits",
			opts: commands.DispatchOptions{
				MaxMessages: intPtr(50),
				WaitSeconds: intPtr(60),
			},
			maxMessages: 10,
			wait:        20 * time.Second,
			visibility:  30 * time.Second,
		},
		{
			name: "below limits",
			opts: commands.DispatchOptions{
				MaxMessages:       intPtr(0),
				WaitSeconds:       intPtr(-3),
				VisibilityTimeout: intPtr(-1),
			},
			maxMessages: 1,
			wait:        0,
			visibility:  30 * time.Second,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := commands.NewDispatchInboundCommand(tt.opts)
			require.NoError(t, cmd.Validate())
			assert.Equal(t, tt.maxMessages, cmd.MaxMessages())
			assert.Equal(t, tt.wait, cmd.Wait())
			assert.Equal(t, tt.visibility, cmd.VisibilityTimeout())
		})
	}
}

func TestParseInboundMessage(t *testing.T) {
	tests := []struct {
		name string
		body string
		want commands.InboundOrder
	}{
		{
			name: "json",
			body: `{"id_pedido": "O1", "estado": "NUEVO"}`,
			want: commands.InboundOrder{OrderID: "O1", Status: "NUEVO"},
		},
		{
			name: "json with local and items",
			body: `{"id_pedido": "O2", "estado": "NUEVO", "local_id": "L7", "items": [{"product_id": "P1", "quantity": 2}]}`,
			want: commands.InboundOrder{
				OrderID: "O2",
				Status:  "NUEVO",
				LocalID: "L7",
				Items:   []order.LineItem{{ProductID: "P1", Quantity: 2}},
			},
		},
		{
			name: "json numeric id",
			body: `{"id_pedido": 42, "estado": "NUEVO"}`,
			want: commands.InboundOrder{OrderID: "42", Status: "NUEVO"},
		},
		{name: "comma", body: "O3,NUEVO", want: commands.InboundOrder{OrderID: "O3", Status: "NUEVO"}},
		{name: "pipe", body: " O4 | PAGADO ", want: commands.InboundOrder{OrderID: "O4", Status: "PAGADO"}},
		{name: "colon", body: "O5:NUEVO", want: commands.InboundOrder{OrderID: "O5", Status: "NUEVO"}},
		{name: "semicolon", body: "O6;NUEVO", want: commands.InboundOrder{OrderID: "O6", Status: "NUEVO"}},
		{name: "first separator wins", body: "O7,A|B", want: commands.InboundOrder{OrderID: "O7", Status: "A|B"}},
		{name: "invalid json read as text", body: "{O8},NUEVO", want: commands.InboundOrder{OrderID: "{O8}", Status: "NUEVO"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := commands.ParseInboundMessage(tt.body)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseInboundMessage_Malformed(t *testing.T) {
	for _, body := range []string{
		"",
		"O1",
		"O1,",
		",NUEVO",
		`{"id_pedido": "O1"}`,
		`{"estado": "NUEVO"}`,
		`{broken`,
		`{"id_pedido": "O1", "estado": null}`,
	} {
		_, err := commands.ParseInboundMessage(body)
		require.ErrorIs(t, err, commands.ErrMalformedMessage, body)
	}
}

func TestInboundOrder_BodyRoundTrip(t *testing.T) {
	in := commands.InboundOrder{
		OrderID: "O1",
		Status:  "NUEVO",
		LocalID: "L7",
		Items:   []order.LineItem{{ProductID: "P1", Name: "Empanada", Quantity: 3}},
	}
	body, err := in.Body()
	require.NoError(t, err)

	out, err := commands.ParseInboundMessage(body)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}
