package services_test

import (
	"testing"

	"fulfillment/internal/core/domain/model/order"
	"fulfillment/internal/core/domain/services"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyOutcome(t *testing.T) {
	tests := []struct {
		status string
		want   services.OutcomeKind
	}{
		{"ACEPTADO", services.OutcomeAccepted},
		{"", services.OutcomeAccepted},
		{"EnPreparacion", services.OutcomeAccepted},
		{"rechazado", services.OutcomeRejected},
		{"REJECTED", services.OutcomeRejected},
		{" Retry ", services.OutcomeRejected},
		{"REINTENTAR", services.OutcomeRejected},
		{"TIMEOUT", services.OutcomeRejected},
		{"failed", services.OutcomeFailed},
		{"FALLIDO", services.OutcomeFailed},
		{"Cancelled", services.OutcomeFailed},
		{"CANCELADO", services.OutcomeFailed},
	}
	for _, tt := range tests {
		t.Run(tt.status, func(t *testing.T) {
			assert.Equal(t, tt.want, services.ClassifyOutcome(tt.status))
		})
	}
}

func TestDecideTransition_Advance(t *testing.T) {
	tests := []struct {
		from   order.Status
		next   order.Status
		action services.Action
	}{
		{order.Processing, order.InKitchen, services.ActionAdvance},
		{order.InKitchen, order.KitchenDone, services.ActionAdvance},
		{order.KitchenDone, order.Packed, services.ActionAdvance},
		{order.Packed, order.OutForDelivery, services.ActionAdvance},
		{order.OutForDelivery, order.Delivered, services.ActionComplete},
	}
	for _, tt := range tests {
		t.Run(tt.from.String(), func(t *testing.T) {
			d, err := services.DecideTransition(tt.from, services.OutcomeAccepted, 2, services.RetryPolicy{})

			require.NoError(t, err)
			assert.Equal(t, tt.action, d.Action)
			assert.Equal(t, tt.next, d.Next)
			assert.Equal(t, 2, d.RetryCount)
		})
	}
}

func TestDecideTransition_Retry(t *testing.T) {
	tests := []struct {
		from   order.Status
		next   order.Status
		marker order.Status
	}{
		{order.Processing, order.Processing, order.RetryKitchen},
		{order.InKitchen, order.Processing, order.RetryKitchen},
		{order.KitchenDone, order.Processing, order.RetryKitchen},
		{order.Packed, order.OutForDelivery, order.RetryDelivery},
		{order.OutForDelivery, order.OutForDelivery, order.RetryDelivery},
	}
	for _, tt := range tests {
		t.Run(tt.from.String(), func(t *testing.T) {
			d, err := services.DecideTransition(tt.from, services.OutcomeRejected, 0, services.RetryPolicy{})

			require.NoError(t, err)
			assert.Equal(t, services.ActionRetry, d.Action)
			assert.Equal(t, tt.next, d.Next)
			assert.Equal(t, tt.marker, d.Marker)
			assert.Equal(t, 1, d.RetryCount)
		})
	}
}

func TestDecideTransition_UnboundedRetriesByDefault(t *testing.T) {
	d, err := services.DecideTransition(order.InKitchen, services.OutcomeRejected, 1000, services.RetryPolicy{})

	require.NoError(t, err)
	assert.Equal(t, services.ActionRetry, d.Action)
	assert.Equal(t, 1001, d.RetryCount)
}

func TestDecideTransition_Escalate(t *testing.T) {
	policy := services.RetryPolicy{MaxRetries: 3}

	d, err := services.DecideTransition(order.OutForDelivery, services.OutcomeRejected, 2, policy)
	require.NoError(t, err)
	assert.Equal(t, services.ActionRetry, d.Action)
	assert.Equal(t, 3, d.RetryCount)

	d, err = services.DecideTransition(order.OutForDelivery, services.OutcomeRejected, 3, policy)
	require.NoError(t, err)
	assert.Equal(t, services.ActionEscalate, d.Action)
	assert.Equal(t, order.Failed, d.Next)
	assert.Equal(t, 3, d.RetryCount)
	assert.Contains(t, d.Reason, "retry limit 3 exceeded")
}

func TestDecideTransition_Fail(t *testing.T) {
	d, err := services.DecideTransition(order.Packed, services.OutcomeFailed, 1, services.RetryPolicy{})

	require.NoError(t, err)
	assert.Equal(t, services.ActionFail, d.Action)
	assert.Equal(t, order.Failed, d.Next)
}

func TestDecideTransition_NotAwaiting(t *testing.T) {
	for _, s := range []order.Status{order.Delivered, order.Failed, order.RetryKitchen, order.Unknown} {
		_, err := services.DecideTransition(s, services.OutcomeAccepted, 0, services.RetryPolicy{})
		require.ErrorIs(t, err, services.ErrNotAwaiting, s.String())
	}
}

func TestActionAndOutcomeStrings(t *testing.T) {
	assert.Equal(t, "advance", services.ActionAdvance.String())
	assert.Equal(t, "escalate", services.ActionEscalate.String())
	assert.Equal(t, "unknown", services.Action(0).String())
	assert.Equal(t, "rejected", services.OutcomeRejected.String())
}
