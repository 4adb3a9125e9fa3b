// Package metrics provides Prometheus metrics for the edge proxy.
package metrics

import (
	"path"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Default histogram buckets for request latency.
var defaultBuckets = []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10}

// Metrics holds all Prometheus metric collectors for the edge proxy.
type Metrics struct {
	Registry *prometheus.Registry

	RequestsTotal    *prometheus.CounterVec
	RequestDuration  *prometheus.HistogramVec
	RequestsInFlight prometheus.Gauge

	UpstreamDuration  *prometheus.HistogramVec
	UpstreamResponses *prometheus.CounterVec

	CacheHits   prometheus.Counter
	CacheMisses prometheus.Counter
}

// New creates a Metrics instance with a custom registry and all collectors registered.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	m := &Metrics{
		Registry: reg,

		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "petclinic_edge_http_requests_total",
			Help: "Total inbound HTTP requests.",
		}, []string{"method", "status_code", "path_class"}),

		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "petclinic_edge_http_request_duration_seconds",
			Help:    "Inbound HTTP request latency in seconds.",
			Buckets: defaultBuckets,
		}, []string{"method", "status_code", "path_class"}),

		RequestsInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "petclinic_edge_http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed.",
		}),

		UpstreamDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "petclinic_edge_upstream_request_duration_seconds",
			Help:    "WAS call latency in seconds.",
			Buckets: defaultBuckets,
		}, []string{"method"}),

		UpstreamResponses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "petclinic_edge_upstream_responses_total",
			Help: "Total WAS responses by method and status code.",
		}, []string{"method", "status_code"}),

		CacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "petclinic_edge_cache_hits_total",
			Help: "Static-asset requests answered from cache.",
		}),

		CacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "petclinic_edge_cache_misses_total",
			Help: "Static-asset requests forwarded after a cache miss.",
		}),
	}

	reg.MustRegister(
		m.RequestsTotal,
		m.RequestDuration,
		m.RequestsInFlight,
		m.UpstreamDuration,
		m.UpstreamResponses,
		m.CacheHits,
		m.CacheMisses,
	)

	return m
}

// knownMethods lists the allowed HTTP method label values (bounded cardinality).
var knownMethods = map[string]bool{
	"GET": true, "POST": true, "PUT": true, "DELETE": true,
	"PATCH": true, "HEAD": true, "OPTIONS": true,
}

// NormalizeMethod returns a bounded HTTP method label for Prometheus metrics.
// Non-standard methods are mapped to "other" to prevent cardinality explosion.
func NormalizeMethod(method string) string {
	if knownMethods[method] {
		return method
	}
	return "other"
}

// reservedPaths are the edge's own fixed routes, labeled as-is. The metrics
// endpoint is configurable, so its path is passed to NormalizePath instead.
var reservedPaths = map[string]bool{
	"/health": true, "/edge/status": true,
}

// staticExtensions mirrors the default cacheable asset extensions.
var staticExtensions = map[string]bool{
	".css": true, ".js": true, ".png": true, ".jpg": true, ".jpeg": true,
	".gif": true, ".ico": true, ".svg": true, ".woff": true, ".woff2": true,
	".map": true,
}

// NormalizePath returns a bounded path label for Prometheus metrics: the
// edge's own routes (including the configured metrics path) label as
// themselves, asset paths as "static", everything else as "app".
func NormalizePath(p, metricsPath string) string {
	if reservedPaths[p] || (metricsPath != "" && p == metricsPath) {
		return p
	}
	if staticExtensions[strings.ToLower(path.Ext(p))] {
		return "static"
	}
	return "app"
}
