package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"dispatch-service/internal/auth"
	"dispatch-service/internal/logging"
	"dispatch-service/internal/metrics"
	"dispatch-service/internal/models"
)

// RouterConfig carries what the router needs besides the handler.
type RouterConfig struct {
	BasePath  string
	Validator auth.Validator
	Metrics   *metrics.Metrics
	Gatherer  prometheus.Gatherer
}

func NewRouter(logger *logging.Logger, cfg RouterConfig, h *Handler) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestLoggingMiddleware(logger))
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Middleware())
	}

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if cfg.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{})))
	}

	base := r.Group(cfg.BasePath)
	authed := base.Group("", AuthMiddleware(cfg.Validator, logger))

	responder := authed.Group("/responder", RequireRole(models.RoleResponder))
	{
		// Coordination
		responder.PUT("/accept-alert", h.AcceptAlert)
		responder.PUT("/reject-alert", h.RejectAlert)
		responder.PUT("/forward-alert", h.ForwardAlert)
		responder.PUT("/resolve-alert", h.ResolveAlert)
		responder.PUT("/arrival", h.UpdateArrival)

		// Views
		responder.GET("/pending-alerts", h.PendingAlerts)
		responder.GET("/accepted-alerts", h.AcceptedAlerts)
		responder.GET("/active-alerts", h.ActiveAlerts)
		responder.GET("/my-alerts", h.History)
		responder.GET("/alert-details/:alertId", h.AlertDetail)

		// Profile and availability
		responder.GET("/profile", h.Profile)
		responder.PUT("/status", h.SetAvailability)
		responder.PUT("/availability", h.SetAvailability)

		responder.GET("/ws", h.Subscribe)
	}

	user := authed.Group("/user", RequireRole(models.RoleUser, models.RoleResponder))
	{
		user.PUT("/cancel-alert", h.CancelAlert)
	}
	return r
}
