package websocket

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"geochat/internal/microservices/http-api/models"
	"geochat/internal/microservices/http-api/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// HTTP upgrade handler to WebSocket connections

// TokenValidator authenticates the token query parameter
type TokenValidator interface {
	ValidateToken(tokenString string) (*service.Claims, error)
}

// ChannelLookup rejects subscriptions to channels that do not exist
type ChannelLookup interface {
	Get(ctx context.Context, id string) (*models.Channel, error)
}

func newUpgrader(origins []string) websocket.Upgrader {
	allowed := make(map[string]bool, len(origins))
	for _, o := range origins {
		allowed[o] = true
	}
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		// non-browser clients (the CLI) send no Origin
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return origin == "" || allowed["*"] || allowed[origin]
		},
	}
}

// WSHandler: GET /ws?channel_id=&token= upgrades to a notification stream for one channel
func WSHandler(hub *Hub, validator TokenValidator, channels ChannelLookup, origins []string) gin.HandlerFunc {
	upgrader := newUpgrader(origins)

	return func(c *gin.Context) {
		token := c.Query("token")
		if token == "" {
			token = strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
		}
		claims, err := validator.ValidateToken(token)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		channelID := c.Query("channel_id")
		if channelID == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "channel_id is required"})
			return
		}
		if _, err := channels.Get(c.Request.Context(), channelID); err != nil {
			status := http.StatusInternalServerError
			if errors.Is(err, service.ErrChannelNotFound) {
				status = http.StatusNotFound
			}
			c.JSON(status, gin.H{"error": err.Error()})
			return
		}

		// upgrade HTTP connection to WebSocket; Upgrade already answered on failure
		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			hub.logger.Warn("websocket_upgrade_failed", "error", err)
			return
		}

		client := NewClient(uuid.New().String(), claims.UserID, claims.Username, channelID, conn, hub)
		if !hub.Join(client) {
			conn.Close()
			return
		}

		go client.WritePump()
		go client.ReadPump()
	}
}
