package websocket

import (
	"log/slog"
	"time"

	"github.com/gorilla/websocket"
)

// Individual client connection handler
// one client = one connection subscribed to one channel

const ( // ping pong(2-way heartbeat) to keep connection alive
	WriteWait      = 10 * time.Second    // max time write a message to the peer
	PongWait       = 60 * time.Second    // max time to wait for pong from peer => no pong = no connection
	PingPeriod     = (PongWait * 9) / 10 // 90% of pong wait, leaves room for network jitter
	MaxMessageSize = 512                 // maximum message size allowed from peer
	SendBuffer     = 64                  // outbound frames queued per client
)

type Client struct {
	ID          string          // unique per connection
	UserID      string          // user ID get from auth token(JWT.claims)
	UserName    string          // user name get from auth token(JWT.claims)
	ChannelID   string          // subscribed chat channel
	Conn        *websocket.Conn // WebSocket connection
	SendChannel chan []byte     // outbound frames, closed by the hub only
	Hub         *Hub            // reference to the central Hub
	logger      *slog.Logger
}

// constructor new client
func NewClient(id, userID, userName, channelID string, conn *websocket.Conn, hub *Hub) *Client {
	return &Client{
		ID:          id,
		UserID:      userID,
		UserName:    userName,
		ChannelID:   channelID,
		Conn:        conn,
		SendChannel: make(chan []byte, SendBuffer),
		Hub:         hub,
		logger:      hub.logger.With("client_id", id, "channel_id", channelID),
	}
}

// ReadPump consumes inbound frames until the peer goes away.
// Messages are posted over HTTP; inbound frames only keep the connection alive.
func (c *Client) ReadPump() {
	defer func() {
		c.Hub.Leave(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(MaxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(PongWait))
	c.Conn.SetPongHandler(func(string) error {
		return c.Conn.SetReadDeadline(time.Now().Add(PongWait))
	})

	for {
		if _, _, err := c.Conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Warn("websocket_read_failed", "error", err)
			}
			return
		}
	}
}

// WritePump drains SendChannel to the connection and pings the peer
func (c *Client) WritePump() {
	ticker := time.NewTicker(PingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.SendChannel:
			c.Conn.SetWriteDeadline(time.Now().Add(WriteWait))
			if !ok {
				// hub closed the channel
				c.Conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.logger.Debug("websocket_write_failed", "error", err)
				return
			}
		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(WriteWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// SendMessage queues a frame without blocking; false when the buffer is full
func (c *Client) SendMessage(message []byte) bool {
	select {
	case c.SendChannel <- message:
		return true
	default:
		return false
	}
}
