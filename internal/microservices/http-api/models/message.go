package models

import (
	"time"

	"geochat/internal/chat"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Message = one row of the messages table.
// UserID is nulled when the author account is deleted; such rows stay in the table
// but are excluded from grouped rendering.
type Message struct {
	ID        string    `gorm:"primaryKey;type:uuid" json:"id"`
	ChannelID string    `gorm:"type:uuid;not null;index:idx_messages_channel_created,priority:1" json:"channel_id"`
	UserID    *string   `gorm:"type:uuid;index" json:"user_id"`
	Content   string    `gorm:"type:text;not null" json:"content"`
	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP;index:idx_messages_channel_created,priority:2" json:"created_at"`

	// Associations
	User    *User    `gorm:"foreignKey:UserID;constraint:OnDelete:SET NULL;" json:"user,omitempty"`
	Channel *Channel `gorm:"foreignKey:ChannelID;constraint:OnDelete:CASCADE;" json:"-"`
}

func (m *Message) BeforeCreate(tx *gorm.DB) (err error) {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	return
}

func (Message) TableName() string {
	return "messages"
}

// ToChat converts the row (with its preloaded user) into the view-layer message
func (m *Message) ToChat() chat.Message {
	msg := chat.Message{ID: m.ID, Content: m.Content, CreatedAt: m.CreatedAt}
	if m.User != nil {
		msg.Author = AuthorOf(m.User)
	}
	return msg
}

// InsertEvent returns the raw notification payload for the row
func (m *Message) InsertEvent() chat.InsertEvent {
	evt := chat.InsertEvent{ID: m.ID, Content: m.Content, CreatedAt: m.CreatedAt, ChannelID: m.ChannelID}
	if m.UserID != nil {
		evt.UserID = *m.UserID
	}
	return evt
}

// AuthorOf extracts the display info of u
func AuthorOf(u *User) *chat.Author {
	return &chat.Author{UserID: u.ID, Username: u.Username, AvatarURL: u.AvatarURL}
}
