package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus metrics for the rule module. Cache counters are
// observability only; correctness never depends on them.
type Metrics struct {
	CacheHits         prometheus.Counter
	CacheMisses       prometheus.Counter
	CacheInvalidation prometheus.Counter
	RuleMutations     *prometheus.CounterVec
}

// New creates and registers all rule metrics.
func New() *Metrics {
	return &Metrics{
		CacheHits: promauto.NewCounter(prometheus.CounterOpts{
			Name: "fraudwatch_rule_cache_hits_total",
			Help: "Total number of active-rule cache hits",
		}),
		CacheMisses: promauto.NewCounter(prometheus.CounterOpts{
			Name: "fraudwatch_rule_cache_misses_total",
			Help: "Total number of active-rule cache misses (synchronous reloads)",
		}),
		CacheInvalidation: promauto.NewCounter(prometheus.CounterOpts{
			Name: "fraudwatch_rule_cache_invalidations_total",
			Help: "Total number of explicit rule cache invalidations",
		}),
		RuleMutations: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "fraudwatch_rule_mutations_total",
			Help: "Total number of rule lifecycle mutations by operation",
		}, []string{"operation"}),
	}
}

func (m *Metrics) IncrementCacheHits() {
	m.CacheHits.Inc()
}

func (m *Metrics) IncrementCacheMisses() {
	m.CacheMisses.Inc()
}

func (m *Metrics) IncrementCacheInvalidations() {
	m.CacheInvalidation.Inc()
}

func (m *Metrics) IncrementMutations(operation string) {
	m.RuleMutations.WithLabelValues(operation).Inc()
}
