package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"geochat/internal/chat"
	"geochat/internal/geo"
	"geochat/internal/microservices/http-api/models"
	"geochat/internal/microservices/http-api/repository"

	"gorm.io/gorm"
)

var (
	ErrUserNotFound   = errors.New("user not found")
	ErrAuthorNotFound = errors.New("author not found")
)

type UserService interface {
	Me(ctx context.Context, userID string) (*models.User, error)
	UpdateLocation(ctx context.Context, userID string, position geo.Coordinates) error
	UpdateAvatar(ctx context.Context, userID string, avatarURL *string) error
	Author(ctx context.Context, userID string) (*chat.Author, error)
}

type userService struct {
	users   repository.UserRepository
	authors repository.AuthorStore
	logger  *slog.Logger
	now     func() time.Time
}

func NewUserService(users repository.UserRepository, authors repository.AuthorStore, logger *slog.Logger) UserService {
	if logger == nil {
		logger = slog.Default()
	}
	return &userService{users: users, authors: authors, logger: logger, now: time.Now}
}

func (s *userService) Me(ctx context.Context, userID string) (*models.User, error) {
	user, err := s.users.FindByID(ctx, userID)
	if isNotFound(err) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return user, nil
}

func (s *userService) UpdateLocation(ctx context.Context, userID string, position geo.Coordinates) error {
	if !position.Valid() {
		return ErrInvalidPosition
	}
	err := s.users.UpdateLocation(ctx, userID, position.Lat, position.Lng, s.now().UTC())
	if isNotFound(err) {
		return ErrUserNotFound
	}
	if err != nil {
		return fmt.Errorf("update location: %w", err)
	}
	s.logger.Debug("user_location_updated", "user_id", userID, "position", position.String())
	return nil
}

// UpdateAvatar sets the avatar reference; an empty value clears it
func (s *userService) UpdateAvatar(ctx context.Context, userID string, avatarURL *string) error {
	if avatarURL != nil && strings.TrimSpace(*avatarURL) == "" {
		avatarURL = nil
	}
	err := s.users.UpdateAvatar(ctx, userID, avatarURL)
	if isNotFound(err) {
		return ErrUserNotFound
	}
	if err != nil {
		return fmt.Errorf("update avatar: %w", err)
	}
	if err := s.authors.Invalidate(ctx, userID); err != nil {
		s.logger.Warn("author_cache_invalidate_failed", "user_id", userID, "error", err)
	}
	return nil
}

func (s *userService) Author(ctx context.Context, userID string) (*chat.Author, error) {
	if !validID(userID) {
		return nil, ErrAuthorNotFound
	}
	author, err := s.authors.LookupAuthor(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("lookup author: %w", err)
	}
	if author == nil {
		return nil, ErrAuthorNotFound
	}
	return author, nil
}

func isNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
