package metrics

import "github.com/prometheus/client_golang/prometheus"

// PairingMetrics holds Prometheus metrics for the pairing handshake and the session registry.
type PairingMetrics struct {
	Attempts     *prometheus.CounterVec
	Duration     prometheus.Histogram
	CodesEmitted prometheus.Counter
	LiveSessions prometheus.Gauge
	Evictions    prometheus.Counter
}

// NewPairingMetrics creates and registers pairing metrics on the given registry.
func NewPairingMetrics(reg prometheus.Registerer) *PairingMetrics {
	m := &PairingMetrics{
		Attempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pairing",
			Name:      "attempts_total",
			Help:      "Total pairing attempts, by outcome.",
		}, []string{"outcome"}),
		Duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "pairing",
			Name:      "duration_seconds",
			Help:      "Time from pairing start until the engine resolved the attempt.",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300},
		}),
		CodesEmitted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pairing",
			Name:      "codes_emitted_total",
			Help:      "Total pairing codes produced by the engine.",
		}),
		LiveSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "sessions",
			Name:      "live",
			Help:      "Number of stored sessions that are not disconnected.",
		}),
		Evictions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sessions",
			Name:      "evictions_total",
			Help:      "Total disconnected sessions evicted before re-pairing.",
		}),
	}

	reg.MustRegister(m.Attempts, m.Duration, m.CodesEmitted, m.LiveSessions, m.Evictions)
	return m
}
