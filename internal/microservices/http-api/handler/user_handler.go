package handler

import (
	"net/http"

	"geochat/internal/geo"
	"geochat/internal/microservices/http-api/dto"
	"geochat/internal/microservices/http-api/middleware"
	"geochat/internal/microservices/http-api/service"

	"github.com/gin-gonic/gin"
)

type UserHandler struct {
	svc service.UserService
}

func NewUserHandler(svc service.UserService) *UserHandler {
	return &UserHandler{svc: svc}
}

// RegisterRoutes mounts the profile routes on an authenticated /users group
func (h *UserHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/me", h.Me)
	rg.PUT("/me/location", h.UpdateLocation)
	rg.PUT("/me/avatar", h.UpdateAvatar)
	rg.GET("/:id/author", h.Author)
}

func (h *UserHandler) Me(c *gin.Context) {
	user, err := h.svc.Me(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.UserFromModel(user))
}

func (h *UserHandler) UpdateLocation(c *gin.Context) {
	var req dto.UpdateLocationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	position := geo.Coordinates{Lat: *req.Latitude, Lng: *req.Longitude}
	if err := h.svc.UpdateLocation(c.Request.Context(), middleware.UserID(c), position); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, position)
}

func (h *UserHandler) UpdateAvatar(c *gin.Context) {
	var req dto.UpdateAvatarRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.svc.UpdateAvatar(c.Request.Context(), middleware.UserID(c), req.AvatarURL); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *UserHandler) Author(c *gin.Context) {
	author, err := h.svc.Author(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, author)
}
