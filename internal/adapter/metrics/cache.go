package metrics

import "github.com/prometheus/client_golang/prometheus"

// CacheMetrics holds Prometheus metrics for the credential verification cache.
type CacheMetrics struct {
	Hits          *prometheus.CounterVec
	Misses        prometheus.Counter
	Invalidations prometheus.Counter
}

// NewCacheMetrics creates and registers cache metrics on the given registry.
func NewCacheMetrics(reg prometheus.Registerer) *CacheMetrics {
	m := &CacheMetrics{
		Hits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "credential_cache",
			Name:      "hits_total",
			Help:      "Total number of credential cache hits, by cached verdict.",
		}, []string{"verdict"}),
		Misses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "credential_cache",
			Name:      "misses_total",
			Help:      "Total number of credential cache misses.",
		}),
		Invalidations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "credential_cache",
			Name:      "invalidations_total",
			Help:      "Total number of credential cache invalidations.",
		}),
	}

	reg.MustRegister(m.Hits, m.Misses, m.Invalidations)
	return m
}
