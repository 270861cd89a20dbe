package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Channel = a topical chat room anchored at a position
type Channel struct {
	ID          string    `gorm:"primaryKey;type:uuid" json:"id"`
	Name        string    `gorm:"not null;uniqueIndex" json:"name"`
	Description string    `gorm:"type:text" json:"description"`
	Latitude    float64   `gorm:"not null;index:idx_channels_position" json:"latitude"`
	Longitude   float64   `gorm:"not null;index:idx_channels_position" json:"longitude"`
	RadiusKm    float64   `gorm:"not null;default:5" json:"radius_km"`
	CreatedBy   *string   `gorm:"type:uuid" json:"created_by,omitempty"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`

	Creator *User `gorm:"foreignKey:CreatedBy;constraint:OnDelete:SET NULL;" json:"-"`
}

func (c *Channel) BeforeCreate(tx *gorm.DB) (err error) {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	return
}

func (Channel) TableName() string {
	return "channels"
}
