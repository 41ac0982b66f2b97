// Package metrics collects and exposes the gateway's Prometheus metrics.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector gathers the gateway's counters and latency histograms.
type Collector struct {
	registry *prometheus.Registry

	httpRequests  *prometheus.CounterVec
	httpLatency   *prometheus.HistogramVec
	proxyRequests *prometheus.CounterVec
	oauthFlows    *prometheus.CounterVec
	logins        *prometheus.CounterVec
}

// NewCollector builds a Collector on its own registry, including the
// standard Go and process collectors.
func NewCollector() *Collector {
	reg := prometheus.NewRegistry()

	c := &Collector{
		registry: reg,
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gateway_http_requests_total",
			Help: "HTTP requests served, by route and status code.",
		}, []string{"route", "method", "status"}),
		httpLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "gateway_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds, by route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
		proxyRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gateway_proxy_requests_total",
			Help: "Requests forwarded to upstream services, by upstream and status code.",
		}, []string{"upstream", "status"}),
		oauthFlows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gateway_oauth_flows_total",
			Help: "OAuth flow outcomes, by provider and result.",
		}, []string{"provider", "outcome"}),
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gateway_logins_total",
			Help: "Password login outcomes.",
		}, []string{"outcome"}),
	}

	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		c.httpRequests,
		c.httpLatency,
		c.proxyRequests,
		c.oauthFlows,
		c.logins,
	)

	return c
}

// Handler exposes the registry for the /metrics endpoint.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// RecordRequest counts one served request.
func (c *Collector) RecordRequest(route, method string, status int, dur time.Duration) {
	c.httpRequests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	c.httpLatency.WithLabelValues(route).Observe(dur.Seconds())
}

// RecordProxy counts one forwarded request.
func (c *Collector) RecordProxy(upstream string, status int) {
	c.proxyRequests.WithLabelValues(upstream, strconv.Itoa(status)).Inc()
}

// RecordOAuth counts one OAuth flow outcome, e.g. "success",
// "invalid_state", "exchange_failed".
func (c *Collector) RecordOAuth(provider, outcome string) {
	c.oauthFlows.WithLabelValues(provider, outcome).Inc()
}

// RecordLogin counts one password login outcome.
func (c *Collector) RecordLogin(outcome string) {
	c.logins.WithLabelValues(outcome).Inc()
}
