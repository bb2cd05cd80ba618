// Package telemetry provides observability primitives for the database gateway.
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds all Prometheus collectors for the gateway.
type Metrics struct {
	RequestsTotal    *prometheus.CounterVec
	RequestDuration  *prometheus.HistogramVec
	ActiveRequests   prometheus.Gauge
	StoreOpDuration  *prometheus.HistogramVec
	StoreOpErrors    *prometheus.CounterVec
	PolicyRejections *prometheus.CounterVec
	CacheHits        prometheus.Counter
	CacheMisses      prometheus.Counter
	StoreUp          prometheus.Gauge
}

// NewMetrics creates and registers all metrics with the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dbgateway",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests.",
		}, []string{"method", "path", "status"}),

		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:                       "dbgateway",
			Name:                            "request_duration_seconds",
			Help:                            "HTTP request duration in seconds.",
			NativeHistogramBucketFactor:     1.1,
			NativeHistogramMaxBucketNumber:  100,
			NativeHistogramMinResetDuration: 0,
		}, []string{"method", "path"}),

		ActiveRequests: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "dbgateway",
			Name:      "active_requests",
			Help:      "Number of currently active requests.",
		}),

		StoreOpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:                       "dbgateway",
			Name:                            "store_op_duration_seconds",
			Help:                            "Store operation duration in seconds.",
			NativeHistogramBucketFactor:     1.1,
			NativeHistogramMaxBucketNumber:  100,
			NativeHistogramMinResetDuration: 0,
		}, []string{"action", "collection"}),

		StoreOpErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dbgateway",
			Name:      "store_op_errors_total",
			Help:      "Total store operation failures.",
		}, []string{"action", "collection"}),

		PolicyRejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dbgateway",
			Name:      "policy_rejections_total",
			Help:      "Requests rejected by policy, by reason.",
		}, []string{"reason"}),

		CacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "dbgateway",
			Name:      "cache_hits_total",
			Help:      "Read results served from cache.",
		}),

		CacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "dbgateway",
			Name:      "cache_misses_total",
			Help:      "Read results not found in cache.",
		}),

		StoreUp: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "dbgateway",
			Name:      "store_up",
			Help:      "Whether the last store ping succeeded (1) or failed (0).",
		}),
	}

	reg.MustRegister(
		m.RequestsTotal,
		m.RequestDuration,
		m.ActiveRequests,
		m.StoreOpDuration,
		m.StoreOpErrors,
		m.PolicyRejections,
		m.CacheHits,
		m.CacheMisses,
		m.StoreUp,
	)
	return m
}
