package realtime

import (
	"net/http"
	"time"

	"outreach-platform/internal/auth"
	"outreach-platform/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const (
	maxFrameBytes = 64 << 10
	writeWait     = 10 * time.Second
)

// Handler upgrades authenticated HTTP requests to websocket sessions and runs
// the per-connection read loop. One goroutine per connection; frames from a
// single client are processed in order.
type Handler struct {
	registry *Registry
	tokens   *auth.Manager
	upgrader websocket.Upgrader
}

func NewHandler(registry *Registry, tokens *auth.Manager) *Handler {
	return &Handler{
		registry: registry,
		tokens:   tokens,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// Dashboard origins are enforced at the edge proxy.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// Serve is the Gin endpoint for GET /ws?token=...&campaign_id=...
//
// The token is verified BEFORE the upgrade so an unauthenticated caller gets
// a clean 401 instead of a half-open socket.
func (h *Handler) Serve(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
		return
	}
	claims, err := h.tokens.VerifyAccess(token, time.Now())
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}
	if claims.OrganizationID == "" {
		c.JSON(http.StatusForbidden, gin.H{"error": "organization required"})
		return
	}

	ws, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.FromGin(c).Warn("websocket upgrade failed", "error", err)
		return
	}

	conn := &wsConn{ws: ws}
	clientID, err := h.registry.Connect(c.Request.Context(), claims, conn, c.Query("campaign_id"))
	if err != nil {
		logger.FromGin(c).Warn("websocket connect refused", "error", err)
		_ = ws.Close()
		return
	}

	ws.SetReadLimit(maxFrameBytes)
	ws.SetPongHandler(func(string) error {
		h.registry.Heartbeat(clientID)
		return nil
	})

	h.readLoop(c, clientID, ws)
}

func (h *Handler) readLoop(c *gin.Context, clientID string, ws *websocket.Conn) {
	defer h.registry.Disconnect(clientID)

	ctx := c.Request.Context()
	for {
		var msg Message
		if err := ws.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.FromGin(c).Info("websocket read error", "client_id", clientID, "error", err)
			}
			return
		}
		h.registry.HandleMessage(ctx, clientID, msg)
	}
}

// wsConn adapts *websocket.Conn to the registry's Conn interface, adding the
// write deadline gorilla requires callers to manage.
type wsConn struct {
	ws *websocket.Conn
}

func (w *wsConn) WriteJSON(v any) error {
	_ = w.ws.SetWriteDeadline(time.Now().Add(writeWait))
	return w.ws.WriteJSON(v)
}

func (w *wsConn) Ping(deadline time.Time) error {
	return w.ws.WriteControl(websocket.PingMessage, nil, deadline)
}

func (w *wsConn) Close() error { return w.ws.Close() }
