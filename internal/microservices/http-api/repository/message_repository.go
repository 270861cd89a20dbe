package repository

import (
	"context"
	"fmt"

	"geochat/internal/microservices/http-api/models"

	"gorm.io/gorm"
)

type MessageRepository interface {
	Create(ctx context.Context, message *models.Message) error
	ListByChannel(ctx context.Context, channelID string, limit int) ([]models.Message, error)
}

type messageRepository struct {
	db *gorm.DB
}

func NewMessageRepository(db *gorm.DB) MessageRepository {
	return &messageRepository{db: db}
}

// Create inserts the message; gorm fills ID and CreatedAt
func (r *messageRepository) Create(ctx context.Context, message *models.Message) error {
	if err := r.db.WithContext(ctx).Create(message).Error; err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	return nil
}

// ListByChannel returns the newest `limit` messages of a channel in ascending creation
// order, authors preloaded. A limit <= 0 returns the whole history.
func (r *messageRepository) ListByChannel(ctx context.Context, channelID string, limit int) ([]models.Message, error) {
	var messages []models.Message

	if limit <= 0 {
		err := r.db.WithContext(ctx).
			Preload("User").
			Where("channel_id = ?", channelID).
			Order("created_at ASC").
			Order("id ASC").
			Find(&messages).Error
		return messages, err
	}

	// newest page first, then flipped so the caller always gets ascending order
	err := r.db.WithContext(ctx).
		Preload("User").
		Where("channel_id = ?", channelID).
		Order("created_at DESC").
		Order("id DESC").
		Limit(limit).
		Find(&messages).Error
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}
