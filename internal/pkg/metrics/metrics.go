// Package metrics holds the Prometheus collectors of the fulfillment workflow.
// Collectors are registered on an injected Registerer; nothing is global.
// A nil *Workflow is valid and records nothing.
package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "fulfillment"

// Workflow groups the workflow collectors.
type Workflow struct {
	stagesEntered        *prometheus.CounterVec
	transitions          *prometheus.CounterVec
	discardedEvents      *prometheus.CounterVec
	sideEffectFailures   *prometheus.CounterVec
	notificationFailures prometheus.Counter
	dispatched           *prometheus.CounterVec
	sweptOrders          prometheus.Counter
	resumeDuration       prometheus.Histogram
}

// NewWorkflow creates the collectors and registers them on reg.
func NewWorkflow(reg prometheus.Registerer) (*Workflow, error) {
	if reg == nil {
		return nil, errors.New("metrics registerer is required")
	}

	m := &Workflow{
		stagesEntered: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stages_entered_total",
			Help:      "Stages entered, by stage.",
		}, []string{"stage"}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transitions_total",
			Help:      "Resumed transitions, by decided action.",
		}, []string{"action"}),
		discardedEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "discarded_events_total",
			Help:      "Status events discarded by the callback dispatcher, by reason.",
		}, []string{"reason"}),
		sideEffectFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stage_side_effect_failures_total",
			Help:      "Stage side effects that failed after the transition was committed, by stage.",
		}, []string{"stage"}),
		notificationFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notification_failures_total",
			Help:      "Best-effort notifications that could not be published.",
		}),
		dispatched: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "inbound_messages_total",
			Help:      "Inbound messages handled by the dispatcher, by result.",
		}, []string{"result"}),
		sweptOrders: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "watchdog_resumed_orders_total",
			Help:      "Stuck orders resumed by the watchdog with a timeout outcome.",
		}),
		resumeDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "resume_duration_seconds",
			Help:      "Time spent applying one resumed transition.",
			Buckets:   prometheus.DefBuckets,
		}),
	}

	for _, c := range []prometheus.Collector{
		m.stagesEntered,
		m.transitions,
		m.discardedEvents,
		m.sideEffectFailures,
		m.notificationFailures,
		m.dispatched,
		m.sweptOrders,
		m.resumeDuration,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}

	return m, nil
}

func (m *Workflow) StageEntered(stage string) {
	if m == nil {
		return
	}
	m.stagesEntered.WithLabelValues(stage).Inc()
}

func (m *Workflow) Transition(action string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(action).Inc()
}

// EventDiscarded counts a status event dropped as stale, duplicate or unknown.
func (m *Workflow) EventDiscarded(reason string) {
	if m == nil {
		return
	}
	m.discardedEvents.WithLabelValues(reason).Inc()
}

func (m *Workflow) SideEffectFailed(stage string) {
	if m == nil {
		return
	}
	m.sideEffectFailures.WithLabelValues(stage).Inc()
}

func (m *Workflow) NotificationFailed() {
	if m == nil {
		return
	}
	m.notificationFailures.Inc()
}

// Dispatched counts an inbound message by result: started, malformed,
// start_failed or delete_failed.
func (m *Workflow) Dispatched(result string) {
	if m == nil {
		return
	}
	m.dispatched.WithLabelValues(result).Inc()
}

func (m *Workflow) Swept() {
	if m == nil {
		return
	}
	m.sweptOrders.Inc()
}

func (m *Workflow) ObserveResume(seconds float64) {
	if m == nil {
		return
	}
	m.resumeDuration.Observe(seconds)
}
