package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"geochat/internal/chat"
	"geochat/internal/metrics"
	"geochat/internal/microservices/http-api/models"
	"geochat/internal/microservices/http-api/repository"
)

var (
	ErrEmptyMessage = errors.New("message content is empty")
	ErrRateLimited  = errors.New("too many messages, slow down")
)

// EventPublisher hands insert events to the notification stream
type EventPublisher interface {
	Publish(ctx context.Context, evt chat.InsertEvent) error
}

type MessageServiceOptions struct {
	GroupWindow  time.Duration
	HistoryLimit int
	RatePerSec   float64
	RateBurst    int
	Logger       *slog.Logger
}

type MessageService interface {
	chat.MessageStore
	Send(ctx context.Context, channelID, userID, content string) (*models.Message, error)
	List(ctx context.Context, channelID string) ([]models.Message, error)
	Grouped(ctx context.Context, channelID string) ([]chat.MessageGroup, error)
	GroupWindow() time.Duration
}

type messageService struct {
	messages  repository.MessageRepository
	channels  repository.ChannelRepository
	publisher EventPublisher
	grouper   *chat.Grouper
	limiter   *limiterPool
	limit     int
	logger    *slog.Logger
}

func NewMessageService(
	messages repository.MessageRepository,
	channels repository.ChannelRepository,
	publisher EventPublisher,
	opts MessageServiceOptions,
) MessageService {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &messageService{
		messages:  messages,
		channels:  channels,
		publisher: publisher,
		grouper:   chat.NewGrouper(opts.GroupWindow),
		limiter:   newLimiterPool(opts.RatePerSec, opts.RateBurst),
		limit:     opts.HistoryLimit,
		logger:    opts.Logger,
	}
}

func (s *messageService) GroupWindow() time.Duration { return s.grouper.Window }

// Send stores a message from userID and publishes its insert event.
// A publish failure is logged only: the row is committed and readers still see it on reload.
func (s *messageService) Send(ctx context.Context, channelID, userID, content string) (*models.Message, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		metrics.MessagesSent.WithLabelValues("rejected").Inc()
		return nil, ErrEmptyMessage
	}
	if !s.limiter.Allow(userID) {
		metrics.MessagesSent.WithLabelValues("rate_limited").Inc()
		return nil, ErrRateLimited
	}
	if err := s.ensureChannel(ctx, channelID); err != nil {
		return nil, err
	}

	author := userID
	msg := &models.Message{
		ChannelID: channelID,
		UserID:    &author,
		Content:   content,
	}
	if err := s.messages.Create(ctx, msg); err != nil {
		metrics.MessagesSent.WithLabelValues("failed").Inc()
		return nil, err
	}
	metrics.MessagesSent.WithLabelValues("stored").Inc()

	if s.publisher != nil {
		if err := s.publisher.Publish(ctx, msg.InsertEvent()); err != nil {
			s.logger.Warn("message_publish_failed", "message_id", msg.ID, "channel_id", channelID, "error", err)
		}
	}

	s.logger.Debug("message_sent", "message_id", msg.ID, "channel_id", channelID, "user_id", userID)
	return msg, nil
}

// List returns the channel history in ascending creation order, authors joined
func (s *messageService) List(ctx context.Context, channelID string) ([]models.Message, error) {
	if err := s.ensureChannel(ctx, channelID); err != nil {
		return nil, err
	}
	messages, err := s.messages.ListByChannel(ctx, channelID, s.limit)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	return messages, nil
}

// ListMessages is the bulk read in view-layer form
func (s *messageService) ListMessages(ctx context.Context, channelID string) ([]chat.Message, error) {
	rows, err := s.List(ctx, channelID)
	if err != nil {
		return nil, err
	}
	out := make([]chat.Message, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].ToChat())
	}
	return out, nil
}

func (s *messageService) Grouped(ctx context.Context, channelID string) ([]chat.MessageGroup, error) {
	messages, err := s.ListMessages(ctx, channelID)
	if err != nil {
		return nil, err
	}
	return s.grouper.Group(messages), nil
}

func (s *messageService) ensureChannel(ctx context.Context, channelID string) error {
	if !validID(channelID) {
		return ErrChannelNotFound
	}
	_, err := s.channels.GetByID(ctx, channelID)
	if err == nil {
		return nil
	}
	if isNotFound(err) {
		return ErrChannelNotFound
	}
	return fmt.Errorf("get channel %s: %w", channelID, err)
}
