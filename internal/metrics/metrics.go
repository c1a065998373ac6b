package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Tracks the number of outbound batch requests to the market-data provider.
	ProviderRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "marketdata_requests_total",
			Help: "Total number of provider requests made (by endpoint and result).",
		},
		[]string{"endpoint", "result"}, // result = "ok" | "error"
	)

	// Measures duration of provider batch requests.
	ProviderRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "marketdata_request_duration_seconds",
			Help:    "Duration of provider requests in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 15), // 1ms → ~16s
		},
		[]string{"endpoint"},
	)

	// Tracks provider credits spent against the rolling budget.
	CreditsSpentTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "marketdata_credits_spent_total",
			Help: "Total provider credits consumed across all batch requests.",
		},
	)

	// Measures time spent waiting for the credit window to roll over.
	CreditWaitSeconds = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "marketdata_credit_wait_seconds_total",
			Help: "Cumulative seconds spent sleeping on the credit budget.",
		},
	)

	// Tracks FX cache hits and misses.
	FxCacheAccess = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fx_cache_access_total",
			Help: "Number of FX rate cache hits/misses.",
		},
		[]string{"result"}, // hit | miss
	)

	// Tracks classification outcomes per run.
	InstrumentsClassified = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "screener_instruments_classified_total",
			Help: "Instruments classified, by status and region.",
		},
		[]string{"status", "region"},
	)

	// Tracks rejection reasons for diagnostics.
	RejectionsByReason = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "screener_rejections_total",
			Help: "Rejected instruments by reason.",
		},
		[]string{"reason"},
	)

	// Tracks run events published to NATS.
	EventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "screener_events_published_total",
			Help: "Run events published, by subject and result.",
		},
		[]string{"subject", "result"}, // result = "ok" | "error"
	)

	// Tracks total errors (aggregated).
	ErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "screener_errors_total",
			Help: "Total errors by component and kind.",
		},
		[]string{"component", "kind"},
	)
)

// IncError increments the aggregated error counter.
func IncError(component, kind string) {
	ErrorsTotal.WithLabelValues(component, kind).Inc()
}

// ObserveDuration records elapsed time since start on a histogram.
func ObserveDuration(h *prometheus.HistogramVec, start time.Time, labels ...string) {
	h.WithLabelValues(labels...).Observe(time.Since(start).Seconds())
}
