package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics are the per-enemy tracker counters. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	cycles         *prometheus.CounterVec
	transitions    *prometheus.CounterVec
	switches       *prometheus.CounterVec
	skippedUpdates *prometheus.CounterVec
	cycleDuration  *prometheus.HistogramVec
}

// NewMetrics creates the tracker metrics and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		cycles: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "autoaim_tracker_cycles_total",
				Help: "Estimation cycles run, by enemy and resulting lifecycle phase",
			},
			[]string{"enemy", "phase"},
		),
		transitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "autoaim_tracker_phase_transitions_total",
				Help: "Lifecycle phase changes",
			},
			[]string{"enemy", "from", "to"},
		),
		switches: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "autoaim_tracker_plate_switches_total",
				Help: "Tracked plate identity switches",
			},
			[]string{"enemy"},
		),
		skippedUpdates: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "autoaim_tracker_skipped_updates_total",
				Help: "Filter corrections skipped because the innovation was degenerate",
			},
			[]string{"enemy"},
		),
		cycleDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "autoaim_tracker_cycle_duration_seconds",
				Help:    "Wall time spent in one estimation cycle",
				Buckets: prometheus.ExponentialBuckets(1e-6, 4, 10),
			},
			[]string{"enemy"},
		),
	}
	reg.MustRegister(m.cycles, m.transitions, m.switches, m.skippedUpdates, m.cycleDuration)
	return m
}

// ObserveCycle counts a completed cycle and its duration.
func (m *Metrics) ObserveCycle(enemy, phase string, d time.Duration) {
	if m == nil {
		return
	}
	m.cycles.WithLabelValues(enemy, phase).Inc()
	m.cycleDuration.WithLabelValues(enemy).Observe(d.Seconds())
}

// ObserveTransition counts a lifecycle phase change.
func (m *Metrics) ObserveTransition(enemy, from, to string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(enemy, from, to).Inc()
}

// IncSwitch counts a plate switch.
func (m *Metrics) IncSwitch(enemy string) {
	if m == nil {
		return
	}
	m.switches.WithLabelValues(enemy).Inc()
}

// IncSkippedUpdate counts a skipped filter correction.
func (m *Metrics) IncSkippedUpdate(enemy string) {
	if m == nil {
		return
	}
	m.skippedUpdates.WithLabelValues(enemy).Inc()
}
