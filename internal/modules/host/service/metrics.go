package service

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics records host-side plugin activity. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	loads        *prometheus.CounterVec
	unloads      prometheus.Counter
	loaded       prometheus.Gauge
	submitted    *prometheus.CounterVec
	solutions    *prometheus.CounterVec
	uncorrelated prometheus.Counter
	stopSeconds  prometheus.Histogram
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		loads: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cuckoohost",
			Subsystem: "loader",
			Name:      "loads_total",
			Help:      "Plugin load attempts by result.",
		}, []string{"result"}),
		unloads: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "cuckoohost",
			Subsystem: "loader",
			Name:      "unloads_total",
			Help:      "Plugin handles released.",
		}),
		loaded: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "cuckoohost",
			Subsystem: "loader",
			Name:      "handles",
			Help:      "Plugin handles currently bound.",
		}),
		submitted: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cuckoohost",
			Subsystem: "session",
			Name:      "jobs_pushed_total",
			Help:      "Jobs pushed to a plugin input queue by status.",
		}, []string{"status"}),
		solutions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cuckoohost",
			Subsystem: "session",
			Name:      "solutions_total",
			Help:      "Solutions drained from plugin output queues.",
		}, []string{"plugin"}),
		uncorrelated: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "cuckoohost",
			Subsystem: "session",
			Name:      "uncorrelated_solutions_total",
			Help:      "Solutions whose nonce matched no submitted job.",
		}),
		stopSeconds: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "cuckoohost",
			Subsystem: "handle",
			Name:      "stop_seconds",
			Help:      "Time from stop signal until the plugin reported stopped.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 5},
		}),
	}
}

func (m *Metrics) load(result string) {
	if m == nil {
		return
	}
	m.loads.WithLabelValues(result).Inc()
	if result == "ok" {
		m.loaded.Inc()
	}
}

func (m *Metrics) unload() {
	if m == nil {
		return
	}
	m.unloads.Inc()
	m.loaded.Dec()
}

func (m *Metrics) pushed(status string) {
	if m == nil {
		return
	}
	m.submitted.WithLabelValues(status).Inc()
}

func (m *Metrics) solution(plugin string, correlated bool) {
	if m == nil {
		return
	}
	m.solutions.WithLabelValues(plugin).Inc()
	if !correlated {
		m.uncorrelated.Inc()
	}
}

func (m *Metrics) stopped(d time.Duration) {
	if m == nil {
		return
	}
	m.stopSeconds.Observe(d.Seconds())
}
