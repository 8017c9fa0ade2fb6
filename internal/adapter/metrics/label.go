package metrics

import "github.com/prometheus/client_golang/prometheus"

// LabelMetrics holds Prometheus metrics for label operations.
type LabelMetrics struct {
	Operations   *prometheus.CounterVec
	CreationWait prometheus.Histogram
	Contacts     *prometheus.CounterVec
}

// NewLabelMetrics creates and registers label metrics on the given registry.
func NewLabelMetrics(reg prometheus.Registerer) *LabelMetrics {
	m := &LabelMetrics{
		Operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "labels",
			Name:      "operations_total",
			Help:      "Total label operations, by operation and outcome.",
		}, []string{"op", "outcome"}),
		CreationWait: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "labels",
			Name:      "creation_wait_seconds",
			Help:      "Time until a newly created label became visible.",
			Buckets:   []float64{0.5, 1, 2, 4, 6, 8, 10, 15, 30},
		}),
		Contacts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "labels",
			Name:      "contacts_total",
			Help:      "Total contacts submitted in batch label calls, by action.",
		}, []string{"action"}),
	}

	reg.MustRegister(m.Operations, m.CreationWait, m.Contacts)
	return m
}
