// Package metrics provides Prometheus instrumentation for the Riders hooks:
// outbound HTTP requests, cache lookups and queue traffic.
//
// A nil *Collector is valid and records nothing, so components can take one
// as an optional dependency.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector holds the Riders metric vectors. It is safe for concurrent use.
type Collector struct {
	requestsTotal    *prometheus.CounterVec
	requestDuration  *prometheus.HistogramVec
	requestsInFlight *prometheus.GaugeVec

	cacheHits   *prometheus.CounterVec
	cacheMisses *prometheus.CounterVec

	messagesPublished *prometheus.CounterVec
	messagesConsumed  *prometheus.CounterVec
	messagesRequeued  *prometheus.CounterVec

	errorsTotal *prometheus.CounterVec
}

// NewCollector creates a collector on the default registerer.
func NewCollector() *Collector {
	return NewCollectorWithRegistry(prometheus.DefaultRegisterer)
}

// NewCollectorWithRegistry creates a collector using the supplied registerer.
func NewCollectorWithRegistry(registry prometheus.Registerer) *Collector {
	factory := promauto.With(registry)
	return &Collector{
		requestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "riders_http_requests_total",
				Help: "Total number of outbound HTTP requests",
			},
			[]string{"method", "status_code"},
		),
		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "riders_http_request_duration_seconds",
				Help:    "Duration of outbound HTTP requests in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "status_code"},
		),
		requestsInFlight: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "riders_http_requests_in_flight",
				Help: "Number of outbound HTTP requests currently in flight",
			},
			[]string{"method"},
		),
		cacheHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "riders_cache_hits_total",
				Help: "Total number of cache hits",
			},
			[]string{"name"},
		),
		cacheMisses: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "riders_cache_misses_total",
				Help: "Total number of cache misses",
			},
			[]string{"name"},
		),
		messagesPublished: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "riders_queue_messages_published_total",
				Help: "Total number of messages published",
			},
			[]string{"exchange", "routing_key"},
		),
		messagesConsumed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "riders_queue_messages_consumed_total",
				Help: "Total number of messages acknowledged by consumers",
			},
			[]string{"queue"},
		),
		messagesRequeued: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "riders_queue_messages_requeued_total",
				Help: "Total number of messages rejected and requeued after a callback error",
			},
			[]string{"queue"},
		),
		errorsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "riders_errors_total",
				Help: "Total number of errors by component and kind",
			},
			[]string{"component", "kind"},
		),
	}
}

// RecordRequestStart increments the in-flight gauge.
func (c *Collector) RecordRequestStart(method string) {
	if c == nil {
		return
	}
	c.requestsInFlight.WithLabelValues(method).Inc()
}

// RecordRequestEnd decrements the in-flight gauge.
func (c *Collector) RecordRequestEnd(method string) {
	if c == nil {
		return
	}
	c.requestsInFlight.WithLabelValues(method).Dec()
}

// RecordRequest records a completed request. statusCode 0 means no response.
func (c *Collector) RecordRequest(method string, statusCode int, duration time.Duration) {
	if c == nil {
		return
	}
	code := strconv.Itoa(statusCode)
	c.requestsTotal.WithLabelValues(method, code).Inc()
	c.requestDuration.WithLabelValues(method, code).Observe(duration.Seconds())
}

func (c *Collector) RecordCacheHit(name string) {
	if c == nil {
		return
	}
	c.cacheHits.WithLabelValues(name).Inc()
}

func (c *Collector) RecordCacheMiss(name string) {
	if c == nil {
		return
	}
	c.cacheMisses.WithLabelValues(name).Inc()
}

func (c *Collector) RecordPublish(exchange, routingKey string) {
	if c == nil {
		return
	}
	c.messagesPublished.WithLabelValues(exchange, routingKey).Inc()
}

func (c *Collector) RecordConsume(queue string) {
	if c == nil {
		return
	}
	c.messagesConsumed.WithLabelValues(queue).Inc()
}

func (c *Collector) RecordRequeue(queue string) {
	if c == nil {
		return
	}
	c.messagesRequeued.WithLabelValues(queue).Inc()
}

// RecordError counts an error of the given kind (connectivity, routing, ...).
func (c *Collector) RecordError(component, kind string) {
	if c == nil {
		return
	}
	c.errorsTotal.WithLabelValues(component, kind).Inc()
}
