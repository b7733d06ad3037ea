package prometheus

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var RequestCounter = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "plant_http_requests_total",
		Help: "Total number of HTTP requests by method, path and status",
	},
	[]string{"method", "path", "status"},
)

var RequestDurationHistogram = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "plant_http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	},
	[]string{"method", "path"},
)

var ChatMessageCounter = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "plant_chat_messages_total",
		Help: "Total number of chat messages forwarded to the AI agent",
	},
)

var QueryExecutionCounter = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "plant_query_executions_total",
		Help: "Total number of analytical queries executed",
	},
)

func init() {
	prometheus.MustRegister(RequestCounter)
	prometheus.MustRegister(RequestDurationHistogram)
	prometheus.MustRegister(ChatMessageCounter)
	prometheus.MustRegister(QueryExecutionCounter)
}

// RegisterConnectionGauge exposes the number of cached plant connections.
// Registered from main once the cache exists.
func RegisterConnectionGauge(size func() int) {
	prometheus.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "plant_connections_cached",
			Help: "Number of plant connection entries currently cached",
		},
		func() float64 { return float64(size()) },
	))
}

func GetPrometheusHandler() http.Handler {
	return promhttp.Handler()
}

// MetricsMiddleware is an Echo middleware function that records HTTP request metrics
func MetricsMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			err := next(c)

			method := c.Request().Method
			path := c.Path()
			status := strconv.Itoa(c.Response().Status)

			duration := time.Since(start).Seconds()
			RequestDurationHistogram.WithLabelValues(method, path).Observe(duration)
			RequestCounter.WithLabelValues(method, path, status).Inc()

			return err
		}
	}
}
