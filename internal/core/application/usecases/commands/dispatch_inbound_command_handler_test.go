package commands_test

import (
	"errors"
	"strings"
	"testing"
	"time"

	"fulfillment/internal/core/application/usecases/commands"
	"fulfillment/internal/core/application/workflow"
	"fulfillment/internal/core/ports"
	"fulfillment/internal/pkg/metrics"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func batch(n int) commands.DispatchInboundCommand {
	return commands.NewDispatchInboundCommand(commands.DispatchOptions{
		MaxMessages: intPtr(n),
		WaitSeconds: intPtr(0),
	})
}

func TestDispatcher_StartsWorkflowsAndKeepsMalformedMessages(t *testing.T) {
	h := newHarness(t)
	ctx := t.Context()
	for _, body := range []string{
		"O1,NUEVO",
		`{"id_pedido": "O2", "estado": "NUEVO", "local_id": "L7"}`,
		"garbage",
	} {
		_, err := h.inbound.Send(ctx, body)
		require.NoError(t, err)
	}

	reg := prometheus.NewRegistry()
	m, err := metrics.NewWorkflow(reg)
	require.NoError(t, err)
	d, err := commands.NewDispatchInboundCommandHandler(h.inbound, h.orch, zerolog.Nop(), m)
	require.NoError(t, err)

	res, err := d.Handle(ctx, batch(10))
	require.NoError(t, err)

	assert.Equal(t, 3, res.Popped)
	require.Len(t, res.Executions, 2)
	assert.Equal(t, commands.Execution{
		MessageID:    "m-1",
		OrderID:      "O1",
		Status:       "NUEVO",
		ExecutionRef: h.order(t, "O1").ExecutionID(),
	}, res.Executions[0])
	assert.Equal(t, "O2", res.Executions[1].OrderID)
	assert.Equal(t, "L7", h.order(t, "O2").LocalID())

	require.Len(t, res.Failures, 1)
	assert.Equal(t, "m-3", res.Failures[0].MessageID)
	assert.Contains(t, res.Failures[0].Error, commands.ErrMalformedMessage.Error())
	assert.True(t, res.HasFailures())

	assert.Equal(t, 1, h.inbound.Len())
	assert.Len(t, h.queue.Items(ports.KitchenQueue), 2)

	expected := `
# HELP fulfillment_inbound_messages_total Inbound messages handled by the dispatcher, by result.
# TYPE fulfillment_inbound_messages_total counter
fulfillment_inbound_messages_total{result="malformed"} 1
fulfillment_inbound_messages_total{result="started"} 2
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "fulfillment_inbound_messages_total"))
}

func TestDispatcher_EmptyQueue(t *testing.T) {
	h := newHarness(t)
	d, err := commands.NewDispatchInboundCommandHandler(h.inbound, h.orch, zerolog.Nop(), nil)
	require.NoError(t, err)

	res, err := d.Handle(t.Context(), batch(5))
	require.NoError(t, err)
	assert.Equal(t, 0, res.Popped)
	assert.NotNil(t, res.Executions)
	assert.Empty(t, res.Executions)
	assert.NotNil(t, res.Failures)
	assert.False(t, res.HasFailures())
}

func TestDispatcher_DuplicateMessagesStartOnce(t *testing.T) {
	h := newHarness(t)
	ctx := t.Context()
	_, _ = h.inbound.Send(ctx, "O1,NUEVO")
	_, _ = h.inbound.Send(ctx, "O1|NUEVO")

	d, _ := commands.NewDispatchInboundCommandHandler(h.inbound, h.orch, zerolog.Nop(), nil)
	res, err := d.Handle(ctx, batch(2))
	require.NoError(t, err)

	require.Len(t, res.Executions, 2)
	assert.Equal(t, res.Executions[0].ExecutionRef, res.Executions[1].ExecutionRef)
	assert.Equal(t, 0, h.inbound.Len())
	assert.Len(t, h.ledger(t, "O1"), 1)
	assert.Len(t, h.queue.Items(ports.KitchenQueue), 2, "the kitchen hand-off is at least once")
}

func TestDispatcher_RedeliveryRecoversFailedKitchenHandoff(t *testing.T) {
	h := newFlakyHarness(t, ports.KitchenQueue, 1)
	ctx := t.Context()
	_, err := h.inbound.Send(ctx, "O1,NUEVO")
	require.NoError(t, err)

	d, err := commands.NewDispatchInboundCommandHandler(h.inbound, h.orch, zerolog.Nop(), nil)
	require.NoError(t, err)

	first, err := d.Handle(ctx, batch(1))
	require.NoError(t, err)
	require.Len(t, first.Failures, 1)
	assert.Contains(t, first.Failures[0].Error, workflow.ErrStageFailed.Error())
	assert.Empty(t, first.Executions)
	assert.Equal(t, 1, h.inbound.Len(), "message stays for redelivery")
	assert.Empty(t, h.queue.Items(ports.KitchenQueue))

	h.inbound.ExpireVisibility()

	second, err := d.Handle(ctx, batch(1))
	require.NoError(t, err)
	assert.Empty(t, second.Failures)
	require.Len(t, second.Executions, 1)
	assert.Equal(t, 0, h.inbound.Len())
	assert.Len(t, h.ledger(t, "O1"), 1)

	kitchen := h.queue.Items(ports.KitchenQueue)
	require.Len(t, kitchen, 1)
	assert.Equal(t, "O1", kitchen[0].OrderID)
	assert.Equal(t, ports.ActionCook, kitchen[0].Action)
}

func TestDispatcher_DeletesOnlyStartedMessages(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		startErr error
		deleted  bool
	}{
		{name: "started", body: "O1,NUEVO", deleted: true},
		{name: "start failed", body: "O1,NUEVO", startErr: errors.New("store down")},
		{name: "side effect failed", body: "O1,NUEVO", startErr: workflow.ErrStageFailed},
		{name: "malformed", body: "O1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := t.Context()
			msg := ports.InboundMessage{ID: "m-1", Receipt: "m-1#1", Body: tt.body}

			inbound := new(MockInboundQueue)
			inbound.On("Receive", ctx, ports.ReceiveOptions{MaxMessages: 1, VisibilityTimeout: 30 * time.Second}).
				Return([]ports.InboundMessage{msg}, nil).
				Once()
			if tt.deleted {
				inbound.On("Delete", ctx, "m-1#1").Return(nil).Once()
			}

			starter := new(MockStarter)
			starter.On("Start", ctx, "O1", mock.Anything).
				Return(workflow.ExecutionHandle{OrderID: "O1", ExecutionID: "exec-1"}, tt.startErr).
				Maybe()

			d, err := commands.NewDispatchInboundCommandHandler(inbound, starter, zerolog.Nop(), nil)
			require.NoError(t, err)

			res, err := d.Handle(ctx, batch(1))
			require.NoError(t, err)
			assert.Equal(t, 1, res.Popped)
			if tt.deleted {
				require.Len(t, res.Executions, 1)
				assert.Empty(t, res.Failures)
			} else {
				assert.Empty(t, res.Executions)
				require.Len(t, res.Failures, 1)
				inbound.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
			}
			inbound.AssertExpectations(t)
		})
	}
}

func TestDispatcher_DeleteFailureStillReportsExecution(t *testing.T) {
	ctx := t.Context()
	msg := ports.InboundMessage{ID: "m-1", Receipt: "m-1#1", Body: "O1,NUEVO"}

	inbound := new(MockInboundQueue)
	inbound.On("Receive", ctx, mock.Anything).Return([]ports.InboundMessage{msg}, nil).Once()
	inbound.On("Delete", ctx, "m-1#1").Return(errors.New("receipt expired")).Once()

	starter := new(MockStarter)
	starter.On("Start", ctx, "O1", mock.Anything).
		Return(workflow.ExecutionHandle{OrderID: "O1", ExecutionID: "exec-1"}, nil).
		Once()

	d, _ := commands.NewDispatchInboundCommandHandler(inbound, starter, zerolog.Nop(), nil)
	res, err := d.Handle(ctx, batch(1))
	require.NoError(t, err)
	require.Len(t, res.Executions, 1)
	assert.Equal(t, "exec-1", res.Executions[0].ExecutionRef)
	assert.Empty(t, res.Failures)
}

func TestDispatcher_ReceiveError(t *testing.T) {
	ctx := t.Context()
	boom := errors.New("queue unavailable")

	inbound := new(MockInboundQueue)
	inbound.On("Receive", ctx, mock.Anything).Return(nil, boom).Once()

	d, _ := commands.NewDispatchInboundCommandHandler(inbound, new(MockStarter), zerolog.Nop(), nil)
	_, err := d.Handle(ctx, batch(1))
	require.ErrorIs(t, err, boom)
}

func TestDispatcher_ValidationError(t *testing.T) {
	inbound := new(MockInboundQueue)
	d, _ := commands.NewDispatchInboundCommandHandler(inbound, new(MockStarter), zerolog.Nop(), nil)

	_, err := d.Handle(t.Context(), commands.DispatchInboundCommand{})
	require.ErrorIs(t, err, commands.ErrDispatchInboundCommandIsNotConstructed)
	inbound.AssertNotCalled(t, "Receive", mock.Anything, mock.Anything)
}
