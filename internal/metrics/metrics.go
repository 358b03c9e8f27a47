package metrics

import "github.com/prometheus/client_golang/prometheus"

// EngineMetrics exposes counters for store merges.
// All methods are nil-safe so callers can run without metrics.
type EngineMetrics struct {
	appliedTotal  *prometheus.CounterVec
	rejectedTotal *prometheus.CounterVec
	records       prometheus.Gauge
	applyLatency  *prometheus.HistogramVec
}

func NewEngineMetrics(reg prometheus.Registerer) *EngineMetrics {
	m := &EngineMetrics{
		appliedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "callinbox",
			Subsystem: "store",
			Name:      "applied_total",
			Help:      "Store events applied, by source and outcome",
		}, []string{"source", "outcome"}),
		rejectedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "callinbox",
			Subsystem: "store",
			Name:      "rejected_total",
			Help:      "Store events rejected as malformed, by source",
		}, []string{"source"}),
		records: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "callinbox",
			Subsystem: "store",
			Name:      "records",
			Help:      "Records currently held in the authoritative sequence",
		}),
		applyLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "callinbox",
			Subsystem: "store",
			Name:      "apply_seconds",
			Help:      "Time spent applying an event including index recompute",
			Buckets:   prometheus.ExponentialBuckets(0.00001, 4, 10),
		}, []string{"source"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.appliedTotal, m.rejectedTotal, m.records, m.applyLatency)
	return m
}

func (m *EngineMetrics) ObserveApplied(source, outcome string, records int, seconds float64) {
	if m == nil {
		return
	}
	m.appliedTotal.WithLabelValues(source, outcome).Inc()
	m.records.Set(float64(records))
	m.applyLatency.WithLabelValues(source).Observe(seconds)
}

func (m *EngineMetrics) ObserveRejected(source string) {
	if m == nil {
		return
	}
	m.rejectedTotal.WithLabelValues(source).Inc()
}
