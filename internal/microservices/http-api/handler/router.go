package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"geochat/internal/metrics"
	"geochat/internal/microservices/http-api/dto"
	"geochat/internal/microservices/http-api/middleware"
	"geochat/internal/microservices/http-api/service"

	"github.com/gin-gonic/gin"
)

// RouterDeps = everything the HTTP surface is built from
type RouterDeps struct {
	Auth     service.AuthService
	Channels service.ChannelService
	Messages service.MessageService
	Users    service.UserService

	// WebSocket serves GET /ws; nil leaves the route out
	WebSocket gin.HandlerFunc
	// Health backs GET /healthz
	Health func(ctx context.Context) error
	// ClientConfig is served unauthenticated by GET /api/config
	ClientConfig dto.ClientConfigResponse

	Metrics     bool
	CORSOrigins []string
	Logger      *slog.Logger
}

func NewRouter(d RouterDeps) *gin.Engine {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger(d.Logger))
	r.Use(middleware.CORS(d.CORSOrigins))

	r.GET("/healthz", func(c *gin.Context) {
		if d.Health != nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
			defer cancel()
			if err := d.Health(ctx); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if d.Metrics {
		r.GET("/metrics", metrics.Handler())
	}
	if d.WebSocket != nil {
		r.GET("/ws", d.WebSocket)
	}

	api := r.Group("/api")
	api.GET("/config", func(c *gin.Context) {
		c.JSON(http.StatusOK, d.ClientConfig)
	})
	NewAuthHandler(d.Auth).RegisterRoutes(api.Group("/auth"))

	protected := api.Group("")
	protected.Use(middleware.AuthMiddleware(d.Auth))

	channels := protected.Group("/channels")
	NewChannelHandler(d.Channels).RegisterRoutes(channels)
	NewMessageHandler(d.Messages).RegisterRoutes(channels)

	NewUserHandler(d.Users).RegisterRoutes(protected.Group("/users"))

	return r
}
