package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"

	"dispatch-service/internal/errs"
)

// Metrics groups the service's Prometheus collectors.
type Metrics struct {
	httpRequestsTotal    *prometheus.CounterVec
	httpRequestDuration  *prometheus.HistogramVec
	coordinationTotal    *prometheus.CounterVec
	availabilityAttempts prometheus.Histogram
	notificationsTotal   *prometheus.CounterVec
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		httpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		coordinationTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "coordination_actions_total",
				Help: "Responder and owner actions by outcome",
			},
			[]string{"action", "outcome"},
		),
		availabilityAttempts: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "availability_update_attempts",
				Help:    "Write attempts needed per availability update",
				Buckets: []float64{1, 2, 3, 4, 5},
			},
		),
		notificationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "notifications_total",
				Help: "Dispatched alert events by sink and result",
			},
			[]string{"sink", "result"},
		),
	}
	reg.MustRegister(
		m.httpRequestsTotal,
		m.httpRequestDuration,
		m.coordinationTotal,
		m.availabilityAttempts,
		m.notificationsTotal,
	)
	return m
}

// ObserveAction counts one coordination action. A nil receiver is a no-op.
func (m *Metrics) ObserveAction(action string, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = errs.KindOf(err).String()
	}
	m.coordinationTotal.WithLabelValues(action, outcome).Inc()
}

func (m *Metrics) ObserveAvailabilityAttempts(n int) {
	if m == nil {
		return
	}
	m.availabilityAttempts.Observe(float64(n))
}

func (m *Metrics) ObserveNotification(sink string, err error) {
	if m == nil {
		return
	}
	result := "success"
	if err != nil {
		result = "failed"
	}
	m.notificationsTotal.WithLabelValues(sink, result).Inc()
}

// Middleware records request count and latency per route template.
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		m.httpRequestsTotal.WithLabelValues(c.Request.Method, path, strconv.Itoa(c.Writer.Status())).Inc()
		m.httpRequestDuration.WithLabelValues(c.Request.Method, path).Observe(time.Since(start).Seconds())
	}
}
