package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all application metrics
type Metrics struct {
	// Query pipeline metrics
	QueriesTotal     *prometheus.CounterVec
	QueryValidations *prometheus.CounterVec
	QueryLatency     prometheus.Histogram
	WarehouseLatency prometheus.Histogram

	// Compliance metrics. Decryption failures and audit fallbacks are the
	// alertable signals; they must stay distinguishable from ordinary denials.
	AccessDecisions    *prometheus.CounterVec
	PHIRedactions      prometheus.Counter
	AuditEventsWritten prometheus.Counter
	AuditFallbacks     prometheus.Counter
	DecryptionFailures prometheus.Counter
	AlertsPublished    *prometheus.CounterVec
}

// New creates and registers all application metrics on the given registerer.
// Tests pass a fresh prometheus.NewRegistry to avoid cross-test collisions.
func New(namespace string, reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		QueriesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "queries_total",
			Help:      "Total number of queries processed, by outcome",
		}, []string{"outcome"}),
		QueryValidations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "query_validations_total",
			Help:      "Total number of query validations, by result",
		}, []string{"result"}),
		QueryLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "query_duration_seconds",
			Help:      "End-to-end query handling duration",
			Buckets:   []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		}),
		WarehouseLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "warehouse_query_duration_seconds",
			Help:      "Warehouse execution duration",
			Buckets:   []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		}),
		AccessDecisions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "access_decisions_total",
			Help:      "Total number of access control decisions, by decision",
		}, []string{"decision"}),
		PHIRedactions: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "phi_redactions_total",
			Help:      "Total number of result fields replaced by ciphertext",
		}),
		AuditEventsWritten: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audit_events_written_total",
			Help:      "Total number of audit events written to the durable sink",
		}),
		AuditFallbacks: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audit_fallback_total",
			Help:      "Total number of audit events diverted to the local fallback sink",
		}),
		DecryptionFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "decryption_failures_total",
			Help:      "Total number of failed decryptions (possible tampering)",
		}),
		AlertsPublished: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "security_alerts_total",
			Help:      "Total number of security alerts raised, by kind",
		}, []string{"kind"}),
	}
}
