package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"geochat/internal/chat"
	"geochat/internal/microservices/http-api/models"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// AuthorStore is the point lookup of author display info, with cache invalidation
type AuthorStore interface {
	chat.AuthorStore
	Invalidate(ctx context.Context, userID string) error
}

type userAuthorStore struct {
	users UserRepository
}

// NewAuthorStore resolves authors straight from the users table
func NewAuthorStore(users UserRepository) AuthorStore {
	return &userAuthorStore{users: users}
}

// LookupAuthor returns nil, nil when the user does not exist
func (s *userAuthorStore) LookupAuthor(ctx context.Context, userID string) (*chat.Author, error) {
	if userID == "" {
		return nil, nil
	}
	user, err := s.users.FindByID(ctx, userID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return models.AuthorOf(user), nil
}

func (s *userAuthorStore) Invalidate(ctx context.Context, userID string) error { return nil }

// cachedAuthorStore is a redis read-through cache in front of another AuthorStore.
// Redis failures degrade to the underlying store; misses are not cached.
type cachedAuthorStore struct {
	next   AuthorStore
	rdb    *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

func NewCachedAuthorStore(next AuthorStore, rdb *redis.Client, ttl time.Duration, logger *slog.Logger) AuthorStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &cachedAuthorStore{next: next, rdb: rdb, ttl: ttl, logger: logger}
}

func authorKey(userID string) string {
	return fmt.Sprintf("author:%s", userID)
}

func (s *cachedAuthorStore) LookupAuthor(ctx context.Context, userID string) (*chat.Author, error) {
	if userID == "" {
		return nil, nil
	}
	key := authorKey(userID)

	raw, err := s.rdb.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var author chat.Author
		if err := json.Unmarshal(raw, &author); err == nil {
			return &author, nil
		}
		s.logger.Warn("author_cache_corrupt", "user_id", userID)
	case !errors.Is(err, redis.Nil):
		s.logger.Warn("author_cache_unavailable", "user_id", userID, "error", err)
	}

	author, err := s.next.LookupAuthor(ctx, userID)
	if err != nil || author == nil {
		return author, err
	}

	if data, err := json.Marshal(author); err == nil {
		if err := s.rdb.Set(ctx, key, data, s.ttl).Err(); err != nil {
			s.logger.Warn("author_cache_write_failed", "user_id", userID, "error", err)
		}
	}
	return author, nil
}

func (s *cachedAuthorStore) Invalidate(ctx context.Context, userID string) error {
	if err := s.rdb.Del(ctx, authorKey(userID)).Err(); err != nil {
		return fmt.Errorf("invalidate author %s: %w", userID, err)
	}
	return s.next.Invalidate(ctx, userID)
}
