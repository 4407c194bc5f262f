package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"dispatch-service/internal/logging"
	"dispatch-service/internal/models"
)

const (
	maxConnsPerResponder = 10
	writeWait            = 5 * time.Second
)

// Conn is the part of *websocket.Conn the hub writes to.
type Conn interface {
	SetWriteDeadline(t time.Time) error
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// Hub manages websocket connections of responders and pushes alert events to them.
type Hub struct {
	connections map[uuid.UUID]map[Conn]bool // responderID -> set of connections
	mutex       sync.Mutex
	logger      *logging.Logger
}

func NewHub(logger *logging.Logger) *Hub {
	return &Hub{
		connections: make(map[uuid.UUID]map[Conn]bool),
		logger:      logger,
	}
}

func (h *Hub) Name() string { return "websocket" }

// Add registers a connection. It returns false when the responder already
// has the maximum number of open connections.
func (h *Hub) Add(responderID uuid.UUID, conn Conn) bool {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	if _, exists := h.connections[responderID]; !exists {
		h.connections[responderID] = make(map[Conn]bool)
	}
	if len(h.connections[responderID]) >= maxConnsPerResponder {
		h.logger.Warnf("Max connections reached for responder %s", responderID)
		return false
	}
	h.connections[responderID][conn] = true
	h.logger.Infof("Added WebSocket connection for responder %s (total: %d)", responderID, len(h.connections[responderID]))
	return true
}

// Remove unregisters a connection.
func (h *Hub) Remove(responderID uuid.UUID, conn Conn) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	if conns, exists := h.connections[responderID]; exists {
		delete(conns, conn)
		if len(conns) == 0 {
			delete(h.connections, responderID)
		}
		h.logger.Infof("Removed WebSocket connection for responder %s (remaining: %d)", responderID, len(conns))
	}
}

// Connected reports how many connections the responder has open.
func (h *Hub) Connected(responderID uuid.UUID) int {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	return len(h.connections[responderID])
}

// Send pushes ev to its target responder, or to every connected responder
// when the event has no target. Broken connections are closed and dropped.
func (h *Hub) Send(_ context.Context, ev models.Event) error {
	message, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}

	h.mutex.Lock()
	defer h.mutex.Unlock()
	if ev.TargetResponderID != nil {
		h.sendTo(*ev.TargetResponderID, message)
		return nil
	}
	for responderID := range h.connections {
		h.sendTo(responderID, message)
	}
	return nil
}

// sendTo must be called with the mutex held.
func (h *Hub) sendTo(responderID uuid.UUID, message []byte) {
	conns, exists := h.connections[responderID]
	if !exists {
		return
	}
	for conn := range conns {
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteMessage(websocket.TextMessage, message); err != nil {
			h.logger.Errorf("Failed to send WebSocket message to responder %s: %v", responderID, err)
			_ = conn.Close()
			delete(conns, conn)
		}
	}
	if len(conns) == 0 {
		delete(h.connections, responderID)
	}
}

// Close closes every open connection.
func (h *Hub) Close() {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	for responderID, conns := range h.connections {
		for conn := range conns {
			_ = conn.Close()
		}
		delete(h.connections, responderID)
	}
}
