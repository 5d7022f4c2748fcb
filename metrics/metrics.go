// Package metrics exposes client-side Prometheus metrics: API requests,
// token refreshes and hub activity.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector implements the Metrics interfaces of the client transport, the
// refresh manager and the hub.
type Collector struct {
	requests        *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	refreshes       *prometheus.CounterVec
	hubReconnects   prometheus.Counter
	hubEvents       *prometheus.CounterVec
}

func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "learnlink_client_requests_total",
			Help: "API requests by method and status code",
		}, []string{"method", "status_code"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "learnlink_client_request_duration_seconds",
			Help:    "API request latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"method"}),
		refreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "learnlink_client_token_refreshes_total",
			Help: "Access token refreshes by outcome",
		}, []string{"outcome"}),
		hubReconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "learnlink_client_hub_reconnects_total",
			Help: "Hub reconnect attempts",
		}),
		hubEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "learnlink_client_hub_events_total",
			Help: "Hub events received by name",
		}, []string{"event"}),
	}

	reg.MustRegister(
		c.requests,
		c.requestDuration,
		c.refreshes,
		c.hubReconnects,
		c.hubEvents,
	)
	return c
}

// RecordRequest records one HTTP attempt. statusCode is 0 when no response
// arrived.
func (c *Collector) RecordRequest(method string, statusCode int, duration time.Duration) {
	c.requests.WithLabelValues(method, strconv.Itoa(statusCode)).Inc()
	c.requestDuration.WithLabelValues(method).Observe(duration.Seconds())
}

func (c *Collector) RecordRefresh(success bool) {
	outcome := "failure"
	if success {
		outcome = "success"
	}
	c.refreshes.WithLabelValues(outcome).Inc()
}

func (c *Collector) RecordReconnect() {
	c.hubReconnects.Inc()
}

func (c *Collector) RecordEvent(event string) {
	c.hubEvents.WithLabelValues(event).Inc()
}

// Handler serves the gatherer's metrics for scraping
func Handler(gatherer prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	return mux
}
