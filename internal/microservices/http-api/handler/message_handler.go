package handler

import (
	"net/http"

	"geochat/internal/microservices/http-api/dto"
	"geochat/internal/microservices/http-api/middleware"
	"geochat/internal/microservices/http-api/service"

	"github.com/gin-gonic/gin"
)

type MessageHandler struct {
	svc service.MessageService
}

func NewMessageHandler(svc service.MessageService) *MessageHandler {
	return &MessageHandler{svc: svc}
}

// RegisterRoutes mounts the message routes under /channels/:id
func (h *MessageHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/:id/messages", h.List)
	rg.POST("/:id/messages", h.Send)
	rg.GET("/:id/messages/grouped", h.Grouped)
}

func (h *MessageHandler) List(c *gin.Context) {
	messages, err := h.svc.List(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": dto.ChatMessagesFromModels(messages)})
}

func (h *MessageHandler) Grouped(c *gin.Context) {
	channelID := c.Param("id")
	groups, err := h.svc.Grouped(c.Request.Context(), channelID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.GroupedMessagesResponse{
		ChannelID:     channelID,
		WindowSeconds: h.svc.GroupWindow().Seconds(),
		Groups:        groups,
	})
}

func (h *MessageHandler) Send(c *gin.Context) {
	var req dto.SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	msg, err := h.svc.Send(c.Request.Context(), c.Param("id"), middleware.UserID(c), req.Content)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, dto.ChatMessageFromModel(*msg))
}
