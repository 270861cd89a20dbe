package dto

import (
	"time"

	"geochat/internal/chat"
	"geochat/internal/microservices/http-api/models"
)

// SendMessageRequest: payload for posting into a channel.
// Emptiness after trimming is checked by the service.
type SendMessageRequest struct {
	Content string `json:"content" binding:"required,max=4000"`
}

// ChatMessageResponse is one row of the bulk read: raw row fields plus the joined author (null when missing)
type ChatMessageResponse struct {
	ID        string       `json:"id"`
	ChannelID string       `json:"channel_id"`
	Content   string       `json:"content"`
	CreatedAt time.Time    `json:"created_at"`
	UserID    *string      `json:"user_id"`
	User      *chat.Author `json:"user"`
}

func ChatMessageFromModel(m models.Message) ChatMessageResponse {
	resp := ChatMessageResponse{
		ID:        m.ID,
		ChannelID: m.ChannelID,
		Content:   m.Content,
		CreatedAt: m.CreatedAt,
		UserID:    m.UserID,
	}
	if m.User != nil {
		resp.User = models.AuthorOf(m.User)
	}
	return resp
}

func ChatMessagesFromModels(list []models.Message) []ChatMessageResponse {
	resp := make([]ChatMessageResponse, 0, len(list))
	for _, m := range list {
		resp = append(resp, ChatMessageFromModel(m))
	}
	return resp
}

// GroupedMessagesResponse: server-side grouping with the configured window
type GroupedMessagesResponse struct {
	ChannelID     string              `json:"channel_id"`
	WindowSeconds float64             `json:"window_seconds"`
	Groups        []chat.MessageGroup `json:"groups"`
}
