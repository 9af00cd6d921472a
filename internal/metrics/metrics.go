// ABOUTME: Prometheus metrics for the console: upstream API calls, editor sessions, page requests.
// ABOUTME: Each Collector owns its registry so tests and multiple servers never collide.

package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "airtruct_console"

// Collector holds the console's metric vectors. A nil *Collector records nothing.
type Collector struct {
	registry *prometheus.Registry

	UpstreamRequests *prometheus.CounterVec
	UpstreamDuration *prometheus.HistogramVec
	EditorOperations *prometheus.CounterVec
	HTTPRequests     *prometheus.CounterVec
}

// New creates a Collector with its own registry.
func New() *Collector {
	reg := prometheus.NewRegistry()
	c := &Collector{
		registry: reg,
		UpstreamRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upstream_requests_total",
			Help:      "Requests made to the coordinator API",
		}, []string{"operation", "status_code"}),
		UpstreamDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "upstream_request_duration_seconds",
			Help:      "Duration of coordinator API requests in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		EditorOperations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "editor_operations_total",
			Help:      "Operations applied to live editor sessions",
		}, []string{"op", "status"}),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Requests served by the console",
		}, []string{"method", "status_code"}),
	}
	reg.MustRegister(c.UpstreamRequests, c.UpstreamDuration, c.EditorOperations, c.HTTPRequests)
	return c
}

// WatchSessions exposes the live editor session count as a gauge.
func (c *Collector) WatchSessions(count func() int) {
	if c == nil {
		return
	}
	c.registry.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "editor_sessions",
		Help:      "Number of open editor sessions",
	}, func() float64 { return float64(count()) }))
}

// Handler serves the metrics in the Prometheus text format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// Gatherer exposes the registry for tests.
func (c *Collector) Gatherer() prometheus.Gatherer {
	return c.registry
}

// RecordUpstream records one coordinator API call. Status 0 means the request never completed.
func (c *Collector) RecordUpstream(operation string, statusCode int, d time.Duration) {
	if c == nil {
		return
	}
	c.UpstreamRequests.WithLabelValues(operation, strconv.Itoa(statusCode)).Inc()
	c.UpstreamDuration.WithLabelValues(operation).Observe(d.Seconds())
}

// RecordEditorOp records one editor operation.
func (c *Collector) RecordEditorOp(op string, err error) {
	if c == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	c.EditorOperations.WithLabelValues(op, status).Inc()
}

// RecordHTTP records one console request.
func (c *Collector) RecordHTTP(method string, statusCode int) {
	if c == nil {
		return
	}
	c.HTTPRequests.WithLabelValues(method, strconv.Itoa(statusCode)).Inc()
}
