package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"dispatch-service/internal/errs"
)

func TestObserveAction(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.ObserveAction("accept", nil)
	m.ObserveAction("accept", errs.ErrNotFoundOrInactive)
	m.ObserveAction("accept", errs.ErrNotFoundOrInactive)
	m.ObserveAction("availability", errors.New("db down"))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.coordinationTotal.WithLabelValues("accept", "ok")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.coordinationTotal.WithLabelValues("accept", "not_found")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.coordinationTotal.WithLabelValues("availability", "internal")))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveAction("accept", nil)
		m.ObserveAvailabilityAttempts(2)
		m.ObserveNotification("kafka", nil)
	})
}

func TestMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := New(prometheus.NewRegistry())
	r := gin.New()
	r.Use(m.Middleware())
	r.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.httpRequestsTotal.WithLabelValues("GET", "/health", "200")))
}
