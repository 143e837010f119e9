package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus metrics for the detection module.
type Metrics struct {
	Decisions          *prometheus.CounterVec
	Duplicates         prometheus.Counter
	SystemErrors       prometheus.Counter
	EvaluationTimeouts prometheus.Counter
	EvaluationDuration prometheus.Histogram
}

// New creates and registers all detection metrics.
func New() *Metrics {
	return &Metrics{
		Decisions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "fraudwatch_decisions_total",
			Help: "Total number of fraud decisions by final status",
		}, []string{"status"}),
		Duplicates: promauto.NewCounter(prometheus.CounterOpts{
			Name: "fraudwatch_duplicate_transactions_total",
			Help: "Total number of checks rejected as duplicate transaction ids",
		}),
		SystemErrors: promauto.NewCounter(prometheus.CounterOpts{
			Name: "fraudwatch_detection_system_errors_total",
			Help: "Total number of checks that took the fail-closed error path",
		}),
		EvaluationTimeouts: promauto.NewCounter(prometheus.CounterOpts{
			Name: "fraudwatch_rule_evaluation_timeouts_total",
			Help: "Total number of rule evaluations that exceeded their deadline",
		}),
		EvaluationDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "fraudwatch_rule_evaluation_duration_seconds",
			Help:    "Latency of rule evaluation including cache reads",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

func (m *Metrics) IncrementDecisions(status string) {
	m.Decisions.WithLabelValues(status).Inc()
}

func (m *Metrics) IncrementDuplicates() {
	m.Duplicates.Inc()
}

func (m *Metrics) IncrementSystemErrors() {
	m.SystemErrors.Inc()
}

func (m *Metrics) IncrementEvaluationTimeouts() {
	m.EvaluationTimeouts.Inc()
}

func (m *Metrics) ObserveEvaluationDuration(seconds float64) {
	m.EvaluationDuration.Observe(seconds)
}
