package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	register(
		HTTPRequests,
		HTTPDuration,
		CheckThrottled,
	)
}

var (
	// route is the chi route pattern, never the raw path, to keep cardinality bounded.
	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "API requests by method, route pattern and status code.",
		},
		[]string{"method", "route", "code"},
	)

	HTTPDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "API handler latency in seconds.",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		},
		[]string{"method", "route"},
	)

	// result: limited|limiter_error
	CheckThrottled = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "redemption_check_throttled_total",
			Help: "Pass code checks refused or let through because of the per-merchant limiter.",
		},
		[]string{"result"},
	)
)

func ObserveHTTP(method, route string, code int, elapsed time.Duration) {
	HTTPRequests.WithLabelValues(method, route, strconv.Itoa(code)).Inc()
	HTTPDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

func IncCheckThrottled(result string) {
	CheckThrottled.WithLabelValues(norm(result)).Inc()
}
