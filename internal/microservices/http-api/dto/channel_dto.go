package dto

import (
	"time"

	"geochat/internal/microservices/http-api/models"
	"geochat/internal/microservices/http-api/repository"
)

// CreateChannelRequest: payload for creating a channel at a position
type CreateChannelRequest struct {
	Name        string   `json:"name" binding:"required,min=1,max=100"`
	Description string   `json:"description" binding:"max=1000"`
	Latitude    *float64 `json:"latitude" binding:"required,min=-90,max=90"`
	Longitude   *float64 `json:"longitude" binding:"required,min=-180,max=180"`
	RadiusKm    float64  `json:"radius_km" binding:"omitempty,gt=0,max=500"`
}

// NearbyQuery: query string of GET /channels/nearby
type NearbyQuery struct {
	Lat      *float64 `form:"lat" binding:"required,min=-90,max=90"`
	Lng      *float64 `form:"lng" binding:"required,min=-180,max=180"`
	RadiusKm float64  `form:"radius_km" binding:"omitempty,gt=0,max=500"`
}

type ChannelResponse struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Latitude    float64   `json:"latitude"`
	Longitude   float64   `json:"longitude"`
	RadiusKm    float64   `json:"radius_km"`
	CreatedBy   *string   `json:"created_by,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	DistanceKm  *float64  `json:"distance_km,omitempty"`
}

func ChannelFromModel(c models.Channel) ChannelResponse {
	return ChannelResponse{
		ID:          c.ID,
		Name:        c.Name,
		Description: c.Description,
		Latitude:    c.Latitude,
		Longitude:   c.Longitude,
		RadiusKm:    c.RadiusKm,
		CreatedBy:   c.CreatedBy,
		CreatedAt:   c.CreatedAt,
	}
}

func ChannelsFromModels(list []models.Channel) []ChannelResponse {
	resp := make([]ChannelResponse, 0, len(list))
	for _, c := range list {
		resp = append(resp, ChannelFromModel(c))
	}
	return resp
}

func NearbyFromRepository(list []repository.NearbyChannel) []ChannelResponse {
	resp := make([]ChannelResponse, 0, len(list))
	for _, n := range list {
		r := ChannelFromModel(n.Channel)
		d := n.DistanceKm
		r.DistanceKm = &d
		resp = append(resp, r)
	}
	return resp
}
