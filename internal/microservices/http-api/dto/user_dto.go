package dto

import (
	"time"

	"geochat/internal/microservices/http-api/models"
)

// UpdateLocationRequest: last known position of the caller
type UpdateLocationRequest struct {
	Latitude  *float64 `json:"latitude" binding:"required,min=-90,max=90"`
	Longitude *float64 `json:"longitude" binding:"required,min=-180,max=180"`
}

// UpdateAvatarRequest: nil or empty clears the avatar
type UpdateAvatarRequest struct {
	AvatarURL *string `json:"avatar_url" binding:"omitempty,max=2048"`
}

type UserResponse struct {
	ID                string     `json:"id"`
	Username          string     `json:"username"`
	Email             string     `json:"email"`
	AvatarURL         *string    `json:"avatar_url"`
	Latitude          *float64   `json:"latitude,omitempty"`
	Longitude         *float64   `json:"longitude,omitempty"`
	LocationUpdatedAt *time.Time `json:"location_updated_at,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
}

func UserFromModel(u *models.User) UserResponse {
	return UserResponse{
		ID:                u.ID,
		Username:          u.Username,
		Email:             u.Email,
		AvatarURL:         u.AvatarURL,
		Latitude:          u.Latitude,
		Longitude:         u.Longitude,
		LocationUpdatedAt: u.LocationUpdatedAt,
		CreatedAt:         u.CreatedAt,
	}
}
