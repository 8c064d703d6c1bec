// Package metrics registers the identity registry's Prometheus metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the resolution engine's Prometheus collectors.
type Metrics struct {
	DecisionsTotal      *prometheus.CounterVec
	BatchItemsTotal     prometheus.Counter
	BatchItemErrors     prometheus.Counter
	ReviewResolvedTotal prometheus.Counter
	AuditEmitFailures   prometheus.Counter
	ResolveDuration     prometheus.Histogram
}

// New creates and registers all collectors on the default registry.
func New() *Metrics {
	return &Metrics{
		DecisionsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "gsid_registry_decisions_total",
			Help: "Resolution decisions by action and match strategy.",
		}, []string{"action", "strategy"}),
		BatchItemsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "gsid_registry_batch_items_total",
			Help: "Batch registration items processed.",
		}),
		BatchItemErrors: promauto.NewCounter(prometheus.CounterOpts{
			Name: "gsid_registry_batch_item_errors_total",
			Help: "Batch items isolated and rolled back after a failure.",
		}),
		ReviewResolvedTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "gsid_registry_reviews_resolved_total",
			Help: "Review cases cleared by a reviewer.",
		}),
		AuditEmitFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "gsid_registry_audit_emit_failures_total",
			Help: "Audit events that could not be written to the outbox.",
		}),
		ResolveDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "gsid_registry_resolve_duration_seconds",
			Help:    "Latency of resolution decisions.",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

// ObserveDecision records one decision outcome.
func (m *Metrics) ObserveDecision(action, strategy string, took time.Duration) {
	if m == nil {
		return
	}
	m.DecisionsTotal.WithLabelValues(action, strategy).Inc()
	m.ResolveDuration.Observe(took.Seconds())
}

// ObserveBatchItem records one processed batch item.
func (m *Metrics) ObserveBatchItem(failed bool) {
	if m == nil {
		return
	}
	m.BatchItemsTotal.Inc()
	if failed {
		m.BatchItemErrors.Inc()
	}
}

// ObserveReviewResolved records one cleared review case.
func (m *Metrics) ObserveReviewResolved() {
	if m == nil {
		return
	}
	m.ReviewResolvedTotal.Inc()
}

// ObserveAuditFailure records one failed audit emission.
func (m *Metrics) ObserveAuditFailure() {
	if m == nil {
		return
	}
	m.AuditEmitFailures.Inc()
}
