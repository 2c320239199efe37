// Package metrics exposes Prometheus instrumentation for the sync service.
// Everything registers on the default registry and is served at /metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ContactOutcomes counts per-contact results.
	// Labels: operation (contact, queue, full), result (created, updated, skipped, failed)
	ContactOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "contactsync_contacts_total",
			Help: "Contacts processed by sync operation and result",
		},
		[]string{"operation", "result"},
	)

	ContactsScanned = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "contactsync_contacts_scanned_total",
			Help: "Source contacts read and fingerprinted by full syncs",
		},
	)

	RunDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "contactsync_run_duration_seconds",
			Help:    "Duration of sync operations",
			Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120, 300, 600},
		},
		[]string{"operation"},
	)

	RunFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "contactsync_run_failures_total",
			Help: "Sync operations aborted by a fatal error",
		},
		[]string{"operation", "kind"},
	)

	LastFullSync = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "contactsync_last_full_sync_timestamp",
			Help: "Unix timestamp of the last completed full sync",
		},
	)

	// TargetRequests counts calls to the marketing API. status is the HTTP
	// code or "error" for transport failures.
	TargetRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "contactsync_target_requests_total",
			Help: "Requests sent to the marketing API",
		},
		[]string{"method", "status"},
	)

	TokenRefreshes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "contactsync_token_refreshes_total",
			Help: "OAuth token fetches by result",
		},
		[]string{"result"},
	)

	SegmentCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "contactsync_segment_calls_total",
			Help: "Segment membership calls by direction and result",
		},
		[]string{"direction", "result"},
	)

	// CircuitBreakerState is 0=closed, 1=open, 2=half-open.
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "contactsync_circuit_breaker_state",
			Help: "Marketing API circuit breaker state",
		},
		[]string{"name"},
	)
)

// ObserveRun records the duration of an operation started at start.
func ObserveRun(operation string, start time.Time) {
	RunDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}
