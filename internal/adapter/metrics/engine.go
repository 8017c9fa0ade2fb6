package metrics

import "github.com/prometheus/client_golang/prometheus"

// EngineMetrics holds Prometheus metrics for calls to the automation gateway.
type EngineMetrics struct {
	Requests        *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	Retries         *prometheus.CounterVec
	StatusChanges   *prometheus.CounterVec
}

// NewEngineMetrics creates and registers gateway metrics on the given registry.
func NewEngineMetrics(reg prometheus.Registerer) *EngineMetrics {
	m := &EngineMetrics{
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "requests_total",
			Help:      "Total gateway requests, by endpoint and result.",
		}, []string{"endpoint", "result"}),
		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "request_duration_seconds",
			Help:      "Gateway request duration in seconds, by endpoint.",
			Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		}, []string{"endpoint"}),
		Retries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "retries_total",
			Help:      "Total retried gateway reads, by endpoint.",
		}, []string{"endpoint"}),
		StatusChanges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "status_changes_total",
			Help:      "Connectivity changes observed by the session watcher, by new state.",
		}, []string{"state"}),
	}

	reg.MustRegister(m.Requests, m.RequestDuration, m.Retries, m.StatusChanges)
	return m
}
