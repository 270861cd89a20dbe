package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"geochat/internal/geo"
	"geochat/internal/microservices/http-api/models"
	"geochat/internal/microservices/http-api/repository"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var (
	ErrChannelNotFound  = errors.New("channel not found")
	ErrChannelNameTaken = errors.New("channel name already in use")
	ErrInvalidChannel   = errors.New("invalid channel")
	ErrInvalidPosition  = errors.New("invalid position")
)

// nearbyLimit caps the radius query result
const nearbyLimit = 100

// defaultChannelRadiusKm is used when a channel is created without a radius
const defaultChannelRadiusKm = 5

// CreateChannelInput = fields of a new channel
type CreateChannelInput struct {
	Name        string
	Description string
	Position    geo.Coordinates
	RadiusKm    float64
	CreatedBy   string
}

type ChannelService interface {
	List(ctx context.Context) ([]models.Channel, error)
	Nearby(ctx context.Context, center geo.Coordinates, radiusKm float64) ([]repository.NearbyChannel, error)
	Create(ctx context.Context, in CreateChannelInput) (*models.Channel, error)
	Get(ctx context.Context, id string) (*models.Channel, error)
}

type channelService struct {
	repo          repository.ChannelRepository
	defaultRadius float64
}

// NewChannelService: defaultRadiusKm applies to nearby queries that do not name a radius
func NewChannelService(repo repository.ChannelRepository, defaultRadiusKm float64) ChannelService {
	return &channelService{repo: repo, defaultRadius: defaultRadiusKm}
}

func (s *channelService) List(ctx context.Context) ([]models.Channel, error) {
	channels, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list channels: %w", err)
	}
	return channels, nil
}

func (s *channelService) Nearby(ctx context.Context, center geo.Coordinates, radiusKm float64) ([]repository.NearbyChannel, error) {
	if !center.Valid() {
		return nil, ErrInvalidPosition
	}
	if radiusKm <= 0 {
		radiusKm = s.defaultRadius
	}
	return s.repo.Nearby(ctx, center, radiusKm, nearbyLimit)
}

func (s *channelService) Create(ctx context.Context, in CreateChannelInput) (*models.Channel, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidChannel)
	}
	if !in.Position.Valid() {
		return nil, ErrInvalidPosition
	}
	radius := in.RadiusKm
	if radius <= 0 {
		radius = defaultChannelRadiusKm
	}

	channel := &models.Channel{
		Name:        name,
		Description: strings.TrimSpace(in.Description),
		Latitude:    in.Position.Lat,
		Longitude:   in.Position.Lng,
		RadiusKm:    radius,
	}
	if in.CreatedBy != "" {
		createdBy := in.CreatedBy
		channel.CreatedBy = &createdBy
	}

	if err := s.repo.Create(ctx, channel); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrChannelNameTaken
		}
		return nil, err
	}
	return channel, nil
}

func (s *channelService) Get(ctx context.Context, id string) (*models.Channel, error) {
	if !validID(id) {
		return nil, ErrChannelNotFound
	}
	channel, err := s.repo.GetByID(ctx, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrChannelNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get channel %s: %w", id, err)
	}
	return channel, nil
}

// validID reports whether id can name a row; ids are uuids, so anything else is unknown
func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}
