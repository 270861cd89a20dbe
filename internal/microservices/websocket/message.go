package websocket

import (
	"encoding/json"
	"log/slog"
	"time"

	"geochat/internal/chat"
)

// Message protocol definitions

type MessageType string

const (
	TypeMessageCreated MessageType = "message_created" // a row was inserted in the channel
	TypeSubscribed     MessageType = "subscribed"      // the channel subscription is live
	TypeSystem         MessageType = "system"          // server notice, the connection closes after it
)

// Message structure for WebSocket communication.
// message_created frames carry the raw row; the author is a reference only.
type Message struct {
	Type      MessageType       `json:"type"`
	ChannelID string            `json:"channel_id,omitempty"`
	Message   *chat.InsertEvent `json:"message,omitempty"`
	Content   string            `json:"content,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}

// NewEventMessage wraps an insert event
func NewEventMessage(evt chat.InsertEvent) *Message {
	return &Message{
		Type:      TypeMessageCreated,
		ChannelID: evt.ChannelID,
		Message:   &evt,
		Timestamp: time.Now().UTC(),
	}
}

// NewSubscribedMessage acknowledges the join; events for the channel follow it
func NewSubscribedMessage(channelID string) *Message {
	return &Message{
		Type:      TypeSubscribed,
		ChannelID: channelID,
		Content:   "subscribed to channel " + channelID,
		Timestamp: time.Now().UTC(),
	}
}

// specify the message for system
func NewSystemMessage(channelID, content string) *Message {
	return &Message{
		Type:      TypeSystem,
		ChannelID: channelID,
		Content:   content,
		Timestamp: time.Now().UTC(),
	}
}

// ToJSON: marshal Message struct to JSON
func (m *Message) ToJSON() ([]byte, error) {
	data, err := json.Marshal(m)
	if err != nil {
		slog.Error("Failed to marshal message to JSON", "error", err)
		return nil, err
	}
	return data, nil
}

// MessageFromJSON: unmarshal JSON data to Message struct
func MessageFromJSON(data []byte) (*Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
