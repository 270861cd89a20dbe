package websocket

import (
	"context"
	"log/slog"

	"geochat/internal/chat"
	"geochat/internal/metrics"
)

// Central hub managing all connections and rooms
// Each WebSocket connection runs in its own goroutine
// but they all communicate through channels to avoid race conditions.
// Only Run touches the rooms map and closes client send channels.
type Hub struct {
	stream chat.NotificationStream
	logger *slog.Logger

	register   chan *Client
	unregister chan *Client
	failed     chan *Room
	stats      chan chan int
	done       chan struct{}

	rooms   map[string]*Room
	clients map[*Client]*Room
}

func NewHub(stream chat.NotificationStream, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		stream:     stream,
		logger:     logger,
		register:   make(chan *Client),
		unregister: make(chan *Client),
		failed:     make(chan *Room),
		stats:      make(chan chan int),
		done:       make(chan struct{}),
		rooms:      make(map[string]*Room),
		clients:    make(map[*Client]*Room),
	}
}

// Run owns the hub state until ctx is done; every client is disconnected on return
func (h *Hub) Run(ctx context.Context) error {
	defer h.shutdown()
	for {
		select {
		case <-ctx.Done():
			return nil
		case c := <-h.register:
			h.join(ctx, c)
		case c := <-h.unregister:
			h.leave(c)
		case r := <-h.failed:
			h.dropRoom(r)
		case reply := <-h.stats:
			reply <- len(h.rooms)
		}
	}
}

// Join hands c to the hub; false once the hub stopped
func (h *Hub) Join(c *Client) bool {
	select {
	case h.register <- c:
		return true
	case <-h.done:
		return false
	}
}

// Leave disconnects c; safe to call more than once
func (h *Hub) Leave(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

func (h *Hub) roomFailed(r *Room) {
	select {
	case h.failed <- r:
	case <-h.done:
	}
}

func (h *Hub) join(ctx context.Context, c *Client) {
	room := h.rooms[c.ChannelID]
	if room == nil {
		sub, err := h.stream.Subscribe(ctx, c.ChannelID)
		if err != nil {
			h.logger.Error("room_subscribe_failed", "channel_id", c.ChannelID, "error", err)
			h.notify(c, "notification stream unavailable")
			close(c.SendChannel)
			return
		}
		room = NewRoom(c.ChannelID, sub, h.logger)
		h.rooms[c.ChannelID] = room
		go room.pump(h)
	}

	room.AddUser(c)
	h.clients[c] = room
	metrics.WebsocketClients.Inc()
	h.send(c, NewSubscribedMessage(c.ChannelID))
}

func (h *Hub) leave(c *Client) {
	room, ok := h.clients[c]
	if !ok {
		return
	}
	delete(h.clients, c)
	room.RemoveUser(c)
	close(c.SendChannel)
	metrics.WebsocketClients.Dec()

	if room.GetUserCount() == 0 && h.rooms[room.ID] == room {
		delete(h.rooms, room.ID)
		room.sub.Close()
	}
}

// dropRoom disconnects the clients of a room whose stream ended; they reconnect and reload
func (h *Hub) dropRoom(r *Room) {
	if h.rooms[r.ID] == r {
		delete(h.rooms, r.ID)
	}
	for _, c := range r.GetClients() {
		h.notify(c, "notification stream interrupted")
		h.leave(c)
	}
}

func (h *Hub) notify(c *Client, content string) {
	h.send(c, NewSystemMessage(c.ChannelID, content))
}

func (h *Hub) send(c *Client, msg *Message) {
	frame, err := msg.ToJSON()
	if err == nil {
		c.SendMessage(frame)
	}
}

func (h *Hub) shutdown() {
	close(h.done)
	for c := range h.clients {
		h.leave(c)
	}
	for id, r := range h.rooms {
		delete(h.rooms, id)
		r.sub.Close()
	}
}

// RoomCount returns the channels with at least one connected client
func (h *Hub) RoomCount() int {
	reply := make(chan int, 1)
	select {
	case h.stats <- reply:
		return <-reply
	case <-h.done:
		return 0
	}
}
