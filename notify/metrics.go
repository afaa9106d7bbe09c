package notify

import "github.com/prometheus/client_golang/prometheus"

// Metrics exposes the operator-facing counters and gauges this subsystem
// would never expose on its own (spec.md is silent on observability, but
// the ambient stack carries it regardless — see SPEC_FULL.md §4.11).
type Metrics struct {
	Registry *prometheus.Registry

	QueueDepthPages prometheus.Gauge
	FullWarnings    prometheus.Counter
	WakeupsSent     prometheus.Counter
	OverflowDrains  prometheus.Counter
}

// NewMetrics registers a fresh set of collectors against a new registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		Registry: reg,
		QueueDepthPages: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "notifyd_queue_depth_pages",
			Help: "Number of pages between tail and head in the notification queue.",
		}),
		FullWarnings: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "notifyd_queue_full_warnings_total",
			Help: "Number of queue-full warnings emitted by the publish path.",
		}),
		WakeupsSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "notifyd_wakeups_sent_total",
			Help: "Number of process wakeup signals sent to listeners.",
		}),
		OverflowDrains: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "notifyd_overflow_drain_iterations_total",
			Help: "Number of overflow-protocol cooperative drain iterations performed by publishers.",
		}),
	}
	reg.MustRegister(m.QueueDepthPages, m.FullWarnings, m.WakeupsSent, m.OverflowDrains)
	return m
}

// Observe updates QueueDepthPages from the given head/tail page ids,
// counting forward from tail to head across the wrap at GCO().MaxPage.
func (m *Metrics) Observe(headPage, tailPage int64) {
	depth := headPage - tailPage
	if depth < 0 {
		depth += GCO().MaxPage + 1
	}
	m.QueueDepthPages.Set(float64(depth))
}
