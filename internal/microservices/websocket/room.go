package websocket

import (
	"log/slog"
	"sync"

	"geochat/internal/chat"
)

// Room = the websocket clients of one chat channel, sharing one broker subscription
type Room struct {
	ID      string             // channel ID
	Clients map[string]*Client // map[clientID] -> *Client
	mu      sync.RWMutex       // mutex for concurrent access

	sub    chat.Subscription
	logger *slog.Logger
}

// NewRoom creates a room fed by sub
func NewRoom(id string, sub chat.Subscription, logger *slog.Logger) *Room {
	return &Room{
		ID:      id,
		Clients: make(map[string]*Client),
		sub:     sub,
		logger:  logger.With("channel_id", id),
	}
}

// AddUser: adds new client to the room
func (r *Room) AddUser(c *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Clients[c.ID] == nil {
		r.logger.Info("client_joined", "client_id", c.ID, "user_id", c.UserID)
		r.Clients[c.ID] = c
	} else {
		r.logger.Warn("client_already_in_room", "client_id", c.ID)
	}
}

// RemoveUser: removes client from the room
func (r *Room) RemoveUser(c *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Clients[c.ID] != nil {
		r.logger.Info("client_left", "client_id", c.ID, "user_id", c.UserID)
		delete(r.Clients, c.ID)
	}
}

// Broadcast queues message on every client and returns the ones whose buffer was full
func (r *Room) Broadcast(message []byte) []*Client {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var slow []*Client
	for _, client := range r.Clients {
		if !client.SendMessage(message) {
			slow = append(slow, client)
		}
	}
	return slow
}

// GetUserCount: returns the number of clients in the room
func (r *Room) GetUserCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.Clients)
}

// GetClients: returns copy of clients list in the room
func (r *Room) GetClients() []*Client {
	r.mu.RLock()
	defer r.mu.RUnlock()
	clients := make([]*Client, 0, len(r.Clients))
	for _, client := range r.Clients {
		clients = append(clients, client)
	}
	return clients
}

// pump relays subscription events until the subscription ends
func (r *Room) pump(h *Hub) {
	for evt := range r.sub.Events() {
		frame, err := NewEventMessage(evt).ToJSON()
		if err != nil {
			continue
		}
		for _, c := range r.Broadcast(frame) {
			r.logger.Warn("client_too_slow", "client_id", c.ID)
			h.Leave(c)
		}
	}
	if err := r.sub.Err(); err != nil {
		r.logger.Warn("room_stream_ended", "error", err)
		h.roomFailed(r)
	}
}
