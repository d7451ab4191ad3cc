package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for MintVault.
type Metrics struct {
	// --- Engine ---
	OpsApplied    *prometheus.CounterVec
	OpsRejected   *prometheus.CounterVec
	OpDuration    *prometheus.HistogramVec
	OpenPositions prometheus.Gauge
	MintedTotal   *prometheus.CounterVec
	BurnedTotal   *prometheus.CounterVec
	FeesCollected *prometheus.CounterVec

	// --- Oracle ---
	OracleRequests *prometheus.CounterVec
	OracleDuration *prometheus.HistogramVec
	OracleErrors   *prometheus.CounterVec

	// --- Effects ---
	EffectsEmitted   *prometheus.CounterVec
	EffectPublishErr *prometheus.CounterVec

	// --- Store ---
	StoreWrites   *prometheus.CounterVec
	StoreDuration *prometheus.HistogramVec
	StoreErrors   *prometheus.CounterVec

	// --- HTTP API ---
	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec
}

// NewMetrics creates and registers all Prometheus metrics.
func NewMetrics() *Metrics {
	opBuckets := []float64{
		0.0001, 0.00025, 0.0005, 0.001, 0.0025, 0.005,
		0.01, 0.025, 0.05, 0.1, 0.25, 0.5,
	}

	oracleBuckets := []float64{
		0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025,
		0.05, 0.1, 0.25, 0.5, 1.0, 2.5,
	}

	return &Metrics{
		// Engine
		OpsApplied: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "mint_ops_applied_total",
			Help: "Operations applied successfully",
		}, []string{"op"}),

		OpsRejected: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "mint_ops_rejected_total",
			Help: "Operations rejected (validation, ratio, authorization)",
		}, []string{"op", "reason"}),

		OpDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "mint_op_duration_seconds",
			Help:    "Time to execute one operation, oracle round trips included",
			Buckets: opBuckets,
		}, []string{"op"}),

		OpenPositions: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "mint_open_positions",
			Help: "Positions opened since process start",
		}),

		MintedTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "mint_minted_total",
			Help: "Synthetic units minted",
		}, []string{"asset"}),

		BurnedTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "mint_burned_total",
			Help: "Synthetic units burned",
		}, []string{"asset"}),

		FeesCollected: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "mint_protocol_fees_total",
			Help: "Protocol fees routed to the collector, in collateral units",
		}, []string{"collateral"}),

		// Oracle
		OracleRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "mint_oracle_requests_total",
			Help: "Oracle price lookups",
		}, []string{"oracle"}),

		OracleDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "mint_oracle_request_duration_seconds",
			Help:    "Oracle request-reply latency",
			Buckets: oracleBuckets,
		}, []string{"oracle"}),

		OracleErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "mint_oracle_errors_total",
			Help: "Oracle lookup failures",
		}, []string{"oracle", "reason"}),

		// Effects
		EffectsEmitted: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "mint_effects_emitted_total",
			Help: "Effect instructions emitted by operations",
		}, []string{"kind"}),

		EffectPublishErr: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "mint_effect_publish_errors_total",
			Help: "Failed outbound effect publishes",
		}, []string{"kind"}),

		// Store
		StoreWrites: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "mint_store_writes_total",
			Help: "Store write operations",
		}, []string{"record"}),

		StoreDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "mint_store_duration_seconds",
			Help:    "Store access latency",
			Buckets: opBuckets,
		}, []string{"record", "kind"}),

		StoreErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "mint_store_errors_total",
			Help: "Store failures",
		}, []string{"record"}),

		// HTTP API
		HTTPRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "mint_http_requests_total",
			Help: "HTTP requests by route and status",
		}, []string{"route", "status"}),

		HTTPDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "mint_http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: opBuckets,
		}, []string{"route"}),
	}
}
