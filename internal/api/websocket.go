package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// Subscribe upgrades the request to a websocket that receives the caller's
// alert events until the client disconnects.
func (h *Handler) Subscribe(c *gin.Context) {
	responderID := h.caller(c)
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Errorf("WebSocket upgrade failed for responder %s: %v", responderID, err)
		return
	}
	if !h.hub.Add(responderID, conn) {
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "too many connections"))
		_ = conn.Close()
		return
	}
	defer func() {
		h.hub.Remove(responderID, conn)
		_ = conn.Close()
	}()

	conn.SetReadLimit(512)
	for {
		// Clients only send control frames; reading keeps pings and closes flowing.
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Warnf("WebSocket closed for responder %s: %v", responderID, err)
			}
			return
		}
	}
}
