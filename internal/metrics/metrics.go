// Package metrics exposes Prometheus metrics for the node monitor.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// State labels, one per published node state kind.
var stateLabels = []string{"idle", "bootstrapping", "ready", "failed"}

// Monitor records lifecycle and polling activity. A nil *Monitor is valid
// and records nothing.
type Monitor struct {
	registry *prometheus.Registry

	polls  *prometheus.CounterVec
	starts *prometheus.CounterVec
	state  *prometheus.GaugeVec
	slot   prometheus.Gauge
	epoch  prometheus.Gauge
}

// New creates a Monitor backed by its own registry.
func New() *Monitor {
	m := &Monitor{
		registry: prometheus.NewRegistry(),
		polls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tipwatch",
			Subsystem: "monitor",
			Name:      "polls_total",
			Help:      "Status polls against the node segmented by outcome.",
		}, []string{"outcome"}),
		starts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tipwatch",
			Subsystem: "monitor",
			Name:      "starts_total",
			Help:      "Node start attempts segmented by result.",
		}, []string{"result"}),
		state: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "tipwatch",
			Subsystem: "monitor",
			Name:      "state",
			Help:      "Currently published node state (1 for the active state, 0 otherwise).",
		}, []string{"state"}),
		slot: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "tipwatch",
			Subsystem: "monitor",
			Name:      "tip_slot",
			Help:      "Slot of the last ready tip.",
		}),
		epoch: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "tipwatch",
			Subsystem: "monitor",
			Name:      "tip_epoch",
			Help:      "Epoch of the last ready tip.",
		}),
	}
	m.registry.MustRegister(m.polls, m.starts, m.state, m.slot, m.epoch)
	m.SetState("idle")
	return m
}

// Registry returns the underlying registry.
func (m *Monitor) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler returns an HTTP handler serving the registry in the Prometheus
// exposition format.
func (m *Monitor) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObservePoll counts one poll. Outcome should be a stable string such as
// "ok", "malformed" or "unavailable".
func (m *Monitor) ObservePoll(outcome string) {
	if m == nil {
		return
	}
	if outcome == "" {
		outcome = "unknown"
	}
	m.polls.WithLabelValues(outcome).Inc()
}

// ObserveStart counts one start attempt.
func (m *Monitor) ObserveStart(result string) {
	if m == nil {
		return
	}
	if result == "" {
		result = "unknown"
	}
	m.starts.WithLabelValues(result).Inc()
}

// SetState marks state as the active state.
func (m *Monitor) SetState(state string) {
	if m == nil {
		return
	}
	for _, s := range stateLabels {
		v := 0.0
		if s == state {
			v = 1
		}
		m.state.WithLabelValues(s).Set(v)
	}
}

// SetTip records the last ready tip position.
func (m *Monitor) SetTip(slot, epoch uint64) {
	if m == nil {
		return
	}
	m.slot.Set(float64(slot))
	m.epoch.Set(float64(epoch))
}
