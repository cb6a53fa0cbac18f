package metrics

import (
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

// HTTPMetrics HTTP 请求指标
type HTTPMetrics struct {
	RequestDuration *prometheus.HistogramVec
	RequestsTotal   *prometheus.CounterVec
	InFlight        prometheus.Gauge
}

// NewHTTPMetrics 创建并注册 HTTP 指标
func NewHTTPMetrics(reg prometheus.Registerer) *HTTPMetrics {
	m := &HTTPMetrics{
		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "status_code"}),
		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests.",
		}, []string{"method", "route", "status_code"}),
		InFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Number of HTTP requests currently being processed.",
		}),
	}

	reg.MustRegister(m.RequestDuration, m.RequestsTotal, m.InFlight)
	return m
}

// Middleware gin 中间件，跳过 /metrics、/healthz 与 WebSocket 路由
func (m *HTTPMetrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		route := c.FullPath()
		if route == "/metrics" || route == "/healthz" || strings.HasPrefix(route, "/ws/") {
			c.Next()
			return
		}
		if route == "" {
			route = "unmatched"
		}

		m.InFlight.Inc()
		defer m.InFlight.Dec()

		timer := prometheus.NewTimer(prometheus.ObserverFunc(func(v float64) {
			status := strconv.Itoa(c.Writer.Status())
			m.RequestDuration.WithLabelValues(c.Request.Method, route, status).Observe(v)
			m.RequestsTotal.WithLabelValues(c.Request.Method, route, status).Inc()
		}))
		defer timer.ObserveDuration()

		c.Next()
	}
}
