package handler

import (
	"net/http"

	"geochat/internal/geo"
	"geochat/internal/microservices/http-api/dto"
	"geochat/internal/microservices/http-api/middleware"
	"geochat/internal/microservices/http-api/service"

	"github.com/gin-gonic/gin"
)

type ChannelHandler struct {
	svc service.ChannelService
}

func NewChannelHandler(svc service.ChannelService) *ChannelHandler {
	return &ChannelHandler{svc: svc}
}

// RegisterRoutes mounts the channel routes on an authenticated group
func (h *ChannelHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("", h.List)
	rg.POST("", h.Create)
	rg.GET("/nearby", h.Nearby)
	rg.GET("/:id", h.Get)
}

func (h *ChannelHandler) List(c *gin.Context) {
	channels, err := h.svc.List(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": dto.ChannelsFromModels(channels)})
}

func (h *ChannelHandler) Nearby(c *gin.Context) {
	var q dto.NearbyQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	center := geo.Coordinates{Lat: *q.Lat, Lng: *q.Lng}
	channels, err := h.svc.Nearby(c.Request.Context(), center, q.RadiusKm)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"data":   dto.NearbyFromRepository(channels),
		"center": center,
	})
}

func (h *ChannelHandler) Create(c *gin.Context) {
	var req dto.CreateChannelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	channel, err := h.svc.Create(c.Request.Context(), service.CreateChannelInput{
		Name:        req.Name,
		Description: req.Description,
		Position:    geo.Coordinates{Lat: *req.Latitude, Lng: *req.Longitude},
		RadiusKm:    req.RadiusKm,
		CreatedBy:   middleware.UserID(c),
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, dto.ChannelFromModel(*channel))
}

func (h *ChannelHandler) Get(c *gin.Context) {
	channel, err := h.svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.ChannelFromModel(*channel))
}
