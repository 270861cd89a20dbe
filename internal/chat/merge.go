package chat

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	ErrForeignChannel   = errors.New("event belongs to another channel")
	ErrDuplicateMessage = errors.New("message already in list")
	ErrAuthorNotFound   = errors.New("author not found")
)

// InsertEvent = raw fields of a newly inserted message row, author by reference only
type InsertEvent struct {
	ID        string    `json:"id"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
	UserID    string    `json:"user_id"`
	ChannelID string    `json:"channel_id"`
}

// MessageStore is the bulk read side of the message table
type MessageStore interface {
	// ListMessages returns the channel messages in ascending creation order, authors joined
	ListMessages(ctx context.Context, channelID string) ([]Message, error)
}

// AuthorStore resolves an author reference to display info.
// A nil author with a nil error means the record does not exist.
type AuthorStore interface {
	LookupAuthor(ctx context.Context, userID string) (*Author, error)
}

// Subscription delivers insert events for one channel until closed
type Subscription interface {
	Events() <-chan InsertEvent
	// Err reports why Events was closed, nil after a regular Close
	Err() error
	Close() error
}

// NotificationStream opens insert-event subscriptions
type NotificationStream interface {
	Subscribe(ctx context.Context, channelID string) (Subscription, error)
}

// Merge incorporates one insert event into list.
// The event is dropped (list returned unchanged with a non-nil error) when it belongs to
// another channel, is already present, or its author cannot be resolved. Otherwise the
// resolved message is appended at the end; the list is never reordered.
func Merge(ctx context.Context, authors AuthorStore, list []Message, channelID string, evt InsertEvent) ([]Message, error) {
	if evt.ChannelID != channelID {
		return list, ErrForeignChannel
	}

	for i := len(list) - 1; i >= 0; i-- {
		if list[i].ID == evt.ID {
			return list, ErrDuplicateMessage
		}
	}

	author, err := authors.LookupAuthor(ctx, evt.UserID)
	if err != nil {
		return list, fmt.Errorf("lookup author %s: %w", evt.UserID, err)
	}
	if author == nil {
		return list, fmt.Errorf("%w: %s", ErrAuthorNotFound, evt.UserID)
	}

	return append(list, Message{
		ID:        evt.ID,
		Content:   evt.Content,
		CreatedAt: evt.CreatedAt,
		Author:    author,
	}), nil
}
