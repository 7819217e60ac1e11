// internal/handlers/websocket/websocket.go
package handlers

import (
	"net/http"
	"strings"
	"time"

	wstypes "cuscatlan-service/internal/domain/websocket"
	"cuscatlan-service/internal/pkg/response"
	ws "cuscatlan-service/internal/websocket"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

type WebSocketHandler struct {
	hub      *ws.Hub
	upgrader websocket.Upgrader
	logger   *zap.Logger
}

// NewWebSocketHandler accepts upgrades from the given origins. "*" allows any.
// Requests without an Origin header (native clients) are always accepted.
func NewWebSocketHandler(hub *ws.Hub, allowedOrigins []string, logger *zap.Logger) *WebSocketHandler {
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[strings.TrimRight(o, "/")] = true
	}

	return &WebSocketHandler{
		hub: hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				if origin == "" || allowed["*"] {
					return true
				}
				return allowed[strings.TrimRight(origin, "/")]
			},
		},
		logger: logger,
	}
}

// HandleConnection handles WebSocket connection with authentication
func (h *WebSocketHandler) HandleConnection(c *gin.Context) {
	token := h.extractToken(c)
	if token == "" {
		response.Error(c, http.StatusUnauthorized, "missing authentication token", nil)
		return
	}

	auth, err := h.hub.AuthenticateClient(c.Request.Context(), token)
	if err != nil {
		h.logger.Warn("websocket authentication failed",
			zap.Error(err),
			zap.String("ip", c.ClientIP()),
		)
		response.Error(c, http.StatusUnauthorized, "authentication failed", err)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("websocket upgrade failed",
			zap.Error(err),
			zap.String("ip", c.ClientIP()),
		)
		return
	}

	client := ws.NewClient(h.hub, conn, auth)
	h.hub.Register <- client

	h.logger.Debug("websocket upgrade complete",
		zap.String("identity", auth.Identity),
		zap.String("session_id", auth.SessionID),
		zap.String("role", auth.Role),
	)

	go client.WritePump()
	go client.ReadPump()
}

// extractToken prefers the query parameter since browsers cannot set headers on upgrade
func (h *WebSocketHandler) extractToken(c *gin.Context) string {
	if token := c.Query("token"); token != "" {
		return token
	}

	authHeader := c.GetHeader("Authorization")
	if authHeader != "" {
		parts := strings.Split(authHeader, " ")
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return parts[1]
		}
	}

	return ""
}

// GetStats returns WebSocket connection statistics (admin only)
func (h *WebSocketHandler) GetStats(c *gin.Context) {
	stats := map[string]interface{}{
		"total_connections": h.hub.TotalClients(),
		"timestamp":         time.Now().UTC(),
	}

	if identity := c.Query("identity"); identity != "" {
		stats["identity"] = identity
		stats["identity_connections"] = h.hub.GetConnectedClients(strings.ToLower(strings.TrimSpace(identity)))
	}

	response.Success(c, http.StatusOK, "websocket stats", stats)
}

type alertRequest struct {
	Severity string `json:"severity" binding:"required,oneof=info warning critical"`
	Title    string `json:"title" binding:"required,max=120"`
	Message  string `json:"message" binding:"max=1000"`
}

// BroadcastAlert pushes a system alert to every connection on the system channel (admin only)
func (h *WebSocketHandler) BroadcastAlert(c *gin.Context) {
	var req alertRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, "invalid request", err)
		return
	}

	h.hub.BroadcastSystemAlert(&wstypes.SystemAlertData{
		Severity: req.Severity,
		Title:    req.Title,
		Message:  req.Message,
	})

	response.Success(c, http.StatusAccepted, "alert queued", nil)
}

// Disconnect closes every connection of an identity (admin only)
func (h *WebSocketHandler) Disconnect(c *gin.Context) {
	identity := strings.ToLower(strings.TrimSpace(c.Param("identity")))
	if !h.hub.IsUserConnected(identity) {
		response.NotFound(c, "identity has no open connections")
		return
	}

	h.hub.DisconnectUser(identity, "Disconnected by an administrator")
	response.Success(c, http.StatusOK, "connections closed", gin.H{"identity": identity})
}
