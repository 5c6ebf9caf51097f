package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"logitrack/internal/api/middleware"
	"logitrack/internal/websocket"
	"logitrack/pkg/log"
)

// WebSocketHandler upgrades authenticated requests into invalidation push
// streams. Authentication runs before the upgrade, from the header or the
// ?token= parameter.
type WebSocketHandler struct {
	manager *websocket.Manager
	logger  zerolog.Logger
}

func NewWebSocketHandler(manager *websocket.Manager) *WebSocketHandler {
	return &WebSocketHandler{
		manager: manager,
		logger:  log.WithComponent("ws-handler"),
	}
}

func (h *WebSocketHandler) HandleWebSocket(c *gin.Context) {
	userID := middleware.UserID(c)
	clientID := uuid.New().String()

	conn, err := h.manager.GetUpgrader().Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// the upgrader has already written the error response
		h.logger.Warn().Err(err).Msg("Failed to upgrade connection to WebSocket")
		return
	}

	if err := h.manager.RegisterClient(clientID, userID, conn); err != nil {
		h.logger.Error().Err(err).Str("client", clientID).Msg("Failed to register WebSocket client")
		conn.Close()
		return
	}

	h.logger.Info().Str("client", clientID).Str("user", userID).Msg("WebSocket client connected")
}

// GetConnectedClients returns websocket client statistics
func (h *WebSocketHandler) GetConnectedClients(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"connectedClients": h.manager.GetConnectedClients(),
		"stats":            h.manager.GetClientStats(),
	})
}
