// Package metrics holds the Prometheus collectors shared by both entrypoints.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "concierge_http_requests_total",
		Help: "Total number of handled requests",
	}, []string{"route", "status"})
	HTTPRequestDurationSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "concierge_http_request_duration_seconds",
		Help:    "Time until response headers were produced",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
	UpstreamErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "concierge_upstream_errors_total",
		Help: "Total number of failed calls to external providers",
	}, []string{"provider"})
)

// ObserveRequest records one handled request.
func ObserveRequest(route string, status int, since time.Time) {
	HTTPRequestsTotal.WithLabelValues(route, strconv.Itoa(status)).Inc()
	HTTPRequestDurationSeconds.WithLabelValues(route).Observe(time.Since(since).Seconds())
}

func UpstreamError(provider string) {
	UpstreamErrorsTotal.WithLabelValues(provider).Inc()
}
