// Package metrics defines the gateway's Prometheus metrics and the HTTP
// server that exposes them. All metrics live on a dedicated registry so
// the scrape surface contains exactly what the gateway registers plus the
// standard process and Go runtime collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Label values for SubmitTotal.
const (
	SubmitAccepted = "accepted"
	SubmitRejected = "rejected"
)

// Label values for HLRRequests beyond the classification labels
// ("valid"/"invalid") stamped by the client.
const (
	ResultTimeout = "timeout"
	ResultError   = "error"
)

// Label values for DelivrdTotal.
const (
	ReasonInvalidNumber = "invalid_number"
	ReasonTimeout       = "timeout"
	ReasonHLRError      = "hlr_error"
)

var registry = prometheus.NewRegistry()

func init() {
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
}

// Registry returns the gateway's metrics registry.
func Registry() *prometheus.Registry { return registry }

var (
	// SubmitTotal counts submit_sm requests by outcome.
	SubmitTotal = promauto.With(registry).NewCounterVec(prometheus.CounterOpts{
		Name: "submit_total",
		Help: "Total number of SubmitSM requests",
	}, []string{"status"})

	// HLRRequests counts provider requests by result.
	HLRRequests = promauto.With(registry).NewCounterVec(prometheus.CounterOpts{
		Name: "hlr_requests_total",
		Help: "Total number of HLR API requests",
	}, []string{"result"})

	// HLRCacheHits counts lookups answered from cache.
	HLRCacheHits = promauto.With(registry).NewCounter(prometheus.CounterOpts{
		Name: "hlr_cache_hits_total",
		Help: "Total number of HLR cache hits",
	})

	// HLRCacheMisses counts lookups that went to the provider.
	HLRCacheMisses = promauto.With(registry).NewCounter(prometheus.CounterOpts{
		Name: "hlr_cache_misses_total",
		Help: "Total number of HLR cache misses",
	})

	// DelivrdTotal counts DELIVRD receipts by the reason the message was
	// accepted.
	DelivrdTotal = promauto.With(registry).NewCounterVec(prometheus.CounterOpts{
		Name: "delivrd_total",
		Help: "Total number of DELIVRD messages sent",
	}, []string{"reason"})

	// HLRLatency observes provider round-trip time.
	HLRLatency = promauto.With(registry).NewHistogram(prometheus.HistogramOpts{
		Name:    "hlr_latency_seconds",
		Help:    "HLR API response time in seconds",
		Buckets: []float64{0.1, 0.5, 1.0, 2.0, 5.0, 10.0},
	})

	// SubmitProcessing observes end-to-end submit_sm handling time.
	SubmitProcessing = promauto.With(registry).NewHistogram(prometheus.HistogramOpts{
		Name:    "submit_processing_seconds",
		Help:    "SubmitSM processing time in seconds",
		Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1.0, 2.0},
	})

	// ActiveConnections tracks open SMPP sessions.
	ActiveConnections = promauto.With(registry).NewGauge(prometheus.GaugeOpts{
		Name: "active_smpp_connections",
		Help: "Current number of active SMPP connections",
	})

	// ActiveTasks tracks in-flight submit handlers and pending receipts.
	ActiveTasks = promauto.With(registry).NewGauge(prometheus.GaugeOpts{
		Name: "active_tasks",
		Help: "Current number of active gateway tasks",
	})

	// RedisPoolSize reports the configured Redis connection pool size.
	RedisPoolSize = promauto.With(registry).NewGauge(prometheus.GaugeOpts{
		Name: "redis_connection_pool_size",
		Help: "Current Redis connection pool size",
	})

	// DLRDropped counts receipts dropped because the session was no
	// longer bound when the delay expired.
	DLRDropped = promauto.With(registry).NewCounter(prometheus.CounterOpts{
		Name: "dlr_dropped_total",
		Help: "Total number of delivery receipts dropped on unbound sessions",
	})

	// StoreAppendsDropped counts lookup rows dropped because the store
	// append queue was full.
	StoreAppendsDropped = promauto.With(registry).NewCounter(prometheus.CounterOpts{
		Name: "store_appends_dropped_total",
		Help: "Total number of lookup rows dropped due to a full append queue",
	})
)
