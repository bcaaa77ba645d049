package metrics_test

import (
	"strings"
	"testing"

	"fulfillment/internal/pkg/metrics"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWorkflow_RegistersCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()

	m, err := metrics.NewWorkflow(reg)
	require.NoError(t, err)

	m.StageEntered("InKitchen")
	m.StageEntered("InKitchen")
	m.Transition("advance")
	m.EventDiscarded("stale")
	m.NotificationFailed()
	m.Dispatched("started")
	m.Swept()
	m.ObserveResume(0.01)

	expected := `
# HELP fulfillment_stages_entered_total Stages entered, by stage.
# TYPE fulfillment_stages_entered_total counter
fulfillment_stages_entered_total{stage="InKitchen"} 2
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "fulfillment_stages_entered_total"))

	count, err := testutil.GatherAndCount(reg, "fulfillment_transitions_total", "fulfillment_discarded_events_total")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestNewWorkflow_DuplicateRegistrationFails(t *testing.T) {
	reg := prometheus.NewRegistry()

	_, err := metrics.NewWorkflow(reg)
	require.NoError(t, err)

	_, err = metrics.NewWorkflow(reg)
	require.Error(t, err)
}

func TestNewWorkflow_RequiresRegisterer(t *testing.T) {
	_, err := metrics.NewWorkflow(nil)
	require.Error(t, err)
}

func TestNilWorkflowIsNoop(t *testing.T) {
	var m *metrics.Workflow

	assert.NotPanics(t, func() {
		m.StageEntered("Processing")
		m.Transition("retry")
		m.EventDiscarded("unknown_order")
		m.SideEffectFailed("Processing")
		m.NotificationFailed()
		m.Dispatched("failed")
		m.Swept()
		m.ObserveResume(1)
	})
}
