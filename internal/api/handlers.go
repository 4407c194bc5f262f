package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"dispatch-service/internal/coordination"
	"dispatch-service/internal/errs"
	"dispatch-service/internal/logging"
	"dispatch-service/internal/notification"
)

type Handler struct {
	engine *coordination.Engine
	hub    *notification.Hub
	logger *logging.Logger
}

func NewHandler(engine *coordination.Engine, hub *notification.Hub, logger *logging.Logger) *Handler {
	return &Handler{engine: engine, hub: hub, logger: logger}
}

type alertRequest struct {
	AlertID string `json:"alertId"`
}

type forwardRequest struct {
	AlertID     string `json:"alertId"`
	BadgeNumber string `json:"badgeNumber"`
}

type arrivalRequest struct {
	AlertID string  `json:"alertId"`
	ETA     *string `json:"eta"`
	Arrived bool    `json:"arrived"`
}

type statusRequest struct {
	Status string `json:"status"`
}

func (h *Handler) AcceptAlert(c *gin.Context) {
	var req alertRequest
	alertID, ok := h.bindAlert(c, &req, &req.AlertID)
	if !ok {
		return
	}
	entry, err := h.engine.AcceptAlert(c.Request.Context(), alertID, h.caller(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Alert accepted", "assignment": entry})
}

func (h *Handler) RejectAlert(c *gin.Context) {
	var req alertRequest
	alertID, ok := h.bindAlert(c, &req, &req.AlertID)
	if !ok {
		return
	}
	entry, err := h.engine.RejectAlert(c.Request.Context(), alertID, h.caller(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Alert rejected", "assignment": entry})
}

func (h *Handler) ForwardAlert(c *gin.Context) {
	var req forwardRequest
	alertID, ok := h.bindAlert(c, &req, &req.AlertID)
	if !ok {
		return
	}
	target, err := h.engine.ForwardAlert(c.Request.Context(), alertID, h.caller(c), req.BadgeNumber)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message":     fmt.Sprintf("Alert forwarded to responder with badge number %s", target.BadgeNumber),
		"badgeNumber": target.BadgeNumber,
	})
}

func (h *Handler) ResolveAlert(c *gin.Context) {
	var req alertRequest
	alertID, ok := h.bindAlert(c, &req, &req.AlertID)
	if !ok {
		return
	}
	if err := h.engine.ResolveAlert(c.Request.Context(), alertID, h.caller(c)); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Alert resolved"})
}

func (h *Handler) UpdateArrival(c *gin.Context) {
	var req arrivalRequest
	alertID, ok := h.bindAlert(c, &req, &req.AlertID)
	if !ok {
		return
	}
	entry, err := h.engine.UpdateArrival(c.Request.Context(), alertID, h.caller(c), req.ETA, req.Arrived)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, entry)
}

func (h *Handler) CancelAlert(c *gin.Context) {
	var req alertRequest
	alertID, ok := h.bindAlert(c, &req, &req.AlertID)
	if !ok {
		return
	}
	if err := h.engine.CancelAlert(c.Request.Context(), alertID, h.caller(c)); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Alert canceled"})
}

func (h *Handler) PendingAlerts(c *gin.Context) {
	list, err := h.engine.PendingAlerts(c.Request.Context(), h.caller(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h *Handler) AcceptedAlerts(c *gin.Context) {
	list, err := h.engine.AcceptedAlerts(c.Request.Context(), h.caller(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h *Handler) ActiveAlerts(c *gin.Context) {
	list, err := h.engine.ActiveAlerts(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h *Handler) History(c *gin.Context) {
	list, err := h.engine.History(c.Request.Context(), h.caller(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h *Handler) AlertDetail(c *gin.Context) {
	alertID, err := uuid.Parse(c.Param("alertId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid alertId"})
		return
	}
	detail, err := h.engine.AlertDetail(c.Request.Context(), alertID, h.caller(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, detail)
}

func (h *Handler) Profile(c *gin.Context) {
	r, err := h.engine.Profile(c.Request.Context(), h.caller(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, r)
}

func (h *Handler) SetAvailability(c *gin.Context) {
	var req statusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}
	r, err := h.engine.SetAvailability(c.Request.Context(), h.caller(c), req.Status)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Status updated", "responder": r})
}

// bindAlert decodes the body into req and parses the alert id it carries.
// On failure it has already written a 400.
func (h *Handler) bindAlert(c *gin.Context, req any, raw *string) (uuid.UUID, bool) {
	if err := c.ShouldBindJSON(req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return uuid.Nil, false
	}
	id, err := uuid.Parse(strings.TrimSpace(*raw))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid alertId"})
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handler) caller(c *gin.Context) uuid.UUID {
	id, _ := identityFrom(c)
	return id.UserID
}

// fail maps err onto a response. Internal errors are logged and answered
// with a generic message.
func (h *Handler) fail(c *gin.Context, err error) {
	kind := errs.KindOf(err)
	switch kind {
	case errs.KindInternal:
		h.logger.WithField(requestIDKey, c.GetString(requestIDKey)).
			Errorf("%s %s failed: %v", c.Request.Method, c.FullPath(), err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	case errs.KindUnauthenticated:
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
	default:
		c.JSON(kind.HTTPStatus(), gin.H{"error": publicMessage(err)})
	}
}

var publicSentinels = []error{
	errs.ErrNotFoundOrUnauthorized,
	errs.ErrNotFoundOrInactive,
	errs.ErrResponderNotFound,
	errs.ErrNotFound,
	errs.ErrForbidden,
	errs.ErrConflict,
}

// publicMessage drops the operation prefix and keeps the sentinel text, plus
// the detail for invalid arguments.
func publicMessage(err error) string {
	if errors.Is(err, errs.ErrInvalidArgument) {
		msg := err.Error()
		if i := strings.Index(msg, errs.ErrInvalidArgument.Error()); i >= 0 {
			return msg[i:]
		}
		return errs.ErrInvalidArgument.Error()
	}
	for _, s := range publicSentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "request failed"
}
