package repository

import (
	"context"
	"fmt"

	"geochat/internal/geo"
	"geochat/internal/microservices/http-api/models"

	"gorm.io/gorm"
)

// kmPerDegreeLat is used for the bounding box prefilter of the radius query
const kmPerDegreeLat = 111.0

// NearbyChannel = a channel with its distance to the query center
type NearbyChannel struct {
	models.Channel
	DistanceKm float64 `gorm:"column:distance_km" json:"distance_km"`
}

type ChannelRepository interface {
	Create(ctx context.Context, channel *models.Channel) error
	GetByID(ctx context.Context, id string) (*models.Channel, error)
	List(ctx context.Context) ([]models.Channel, error)
	Nearby(ctx context.Context, center geo.Coordinates, radiusKm float64, limit int) ([]NearbyChannel, error)
}

type channelRepository struct {
	db *gorm.DB
}

func NewChannelRepository(db *gorm.DB) ChannelRepository {
	return &channelRepository{db: db}
}

func (r *channelRepository) Create(ctx context.Context, channel *models.Channel) error {
	if err := r.db.WithContext(ctx).Create(channel).Error; err != nil {
		return fmt.Errorf("create channel: %w", err)
	}
	return nil
}

func (r *channelRepository) GetByID(ctx context.Context, id string) (*models.Channel, error) {
	var channel models.Channel
	if err := r.db.WithContext(ctx).First(&channel, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &channel, nil
}

// List returns every channel, newest first
func (r *channelRepository) List(ctx context.Context) ([]models.Channel, error) {
	var channels []models.Channel
	if err := r.db.WithContext(ctx).Order("created_at DESC").Find(&channels).Error; err != nil {
		return nil, err
	}
	return channels, nil
}

// Nearby returns the channels within radiusKm of center, closest first.
// A latitude band prefilter keeps the haversine evaluation on the indexed subset.
func (r *channelRepository) Nearby(ctx context.Context, center geo.Coordinates, radiusKm float64, limit int) ([]NearbyChannel, error) {
	band := radiusKm / kmPerDegreeLat

	query := `
		SELECT * FROM (
			SELECT c.*,
				2 * 6371 * asin(least(1, sqrt(
					power(sin(radians(c.latitude - @lat) / 2), 2) +
					cos(radians(@lat)) * cos(radians(c.latitude)) *
					power(sin(radians(c.longitude - @lng) / 2), 2)
				))) AS distance_km
			FROM channels c
			WHERE c.latitude BETWEEN @minLat AND @maxLat
		) AS nearby
		WHERE distance_km <= @radius
		ORDER BY distance_km ASC
		LIMIT @limit
	`

	var channels []NearbyChannel
	err := r.db.WithContext(ctx).Raw(query, map[string]any{
		"lat":    center.Lat,
		"lng":    center.Lng,
		"minLat": center.Lat - band,
		"maxLat": center.Lat + band,
		"radius": radiusKm,
		"limit":  limit,
	}).Scan(&channels).Error
	if err != nil {
		return nil, fmt.Errorf("nearby channels: %w", err)
	}
	return channels, nil
}
