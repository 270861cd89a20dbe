package websocket

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"geochat/internal/chat"
	"geochat/internal/microservices/http-api/models"
	"geochat/internal/microservices/http-api/service"
	"geochat/internal/realtime"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubValidator struct{}

func (stubValidator) ValidateToken(token string) (*service.Claims, error) {
	if token != "good" {
		return nil, service.ErrInvalidToken
	}
	return &service.Claims{UserID: "u1", Username: "alice"}, nil
}

type stubChannels map[string]bool

func (s stubChannels) Get(ctx context.Context, id string) (*models.Channel, error) {
	if !s[id] {
		return nil, service.ErrChannelNotFound
	}
	return &models.Channel{ID: id}, nil
}

type wsFixture struct {
	broker *realtime.MemoryBroker
	hub    *Hub
	server *httptest.Server
}

func newFixture(t *testing.T) *wsFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	broker := realtime.NewMemoryBroker(8, nil)
	hub := NewHub(broker, nil)
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	r := gin.New()
	r.GET("/ws", WSHandler(hub, stubValidator{}, stubChannels{"c1": true}, nil))
	server := httptest.NewServer(r)

	t.Cleanup(func() {
		server.Close()
		cancel()
		broker.Close()
	})
	return &wsFixture{broker: broker, hub: hub, server: server}
}

func (f *wsFixture) url(query string) string {
	return "ws" + strings.TrimPrefix(f.server.URL, "http") + "/ws?" + query
}

func readFrame(t *testing.T, conn *websocket.Conn) *Message {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	msg, err := MessageFromJSON(data)
	require.NoError(t, err)
	return msg
}

func TestWS_SubscribeAndReceive(t *testing.T) {
	f := newFixture(t)

	conn, _, err := websocket.DefaultDialer.Dial(f.url("channel_id=c1&token=good"), nil)
	require.NoError(t, err)
	defer conn.Close()

	hello := readFrame(t, conn)
	assert.Equal(t, TypeSubscribed, hello.Type)
	assert.Equal(t, "c1", hello.ChannelID)

	created := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, f.broker.Publish(context.Background(), chat.InsertEvent{
		ID: "m1", ChannelID: "c1", UserID: "u2", Content: "hi", CreatedAt: created,
	}))
	// another channel never reaches this client
	require.NoError(t, f.broker.Publish(context.Background(), chat.InsertEvent{ID: "m2", ChannelID: "c2"}))

	frame := readFrame(t, conn)
	assert.Equal(t, TypeMessageCreated, frame.Type)
	require.NotNil(t, frame.Message)
	assert.Equal(t, "m1", frame.Message.ID)
	assert.Equal(t, "u2", frame.Message.UserID)
	assert.True(t, created.Equal(frame.Message.CreatedAt))
	assert.Equal(t, 1, f.hub.RoomCount())
}

func TestWS_RoomReleasedWhenLastClientLeaves(t *testing.T) {
	f := newFixture(t)

	conn, _, err := websocket.DefaultDialer.Dial(f.url("channel_id=c1&token=good"), nil)
	require.NoError(t, err)
	readFrame(t, conn)
	assert.Equal(t, 1, f.broker.SubscriberCount("c1"))

	conn.Close()

	assert.Eventually(t, func() bool {
		return f.hub.RoomCount() == 0 && f.broker.SubscriberCount("c1") == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestWS_RejectsBeforeUpgrade(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name   string
		query  string
		status int
	}{
		{"bad token", "channel_id=c1&token=bad", http.StatusUnauthorized},
		{"missing channel", "token=good", http.StatusBadRequest},
		{"unknown channel", "channel_id=nope&token=good", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, resp, err := websocket.DefaultDialer.Dial(f.url(tt.query), nil)
			require.ErrorIs(t, err, websocket.ErrBadHandshake)
			require.NotNil(t, resp)
			assert.Equal(t, tt.status, resp.StatusCode)
		})
	}
}

func TestWS_StreamFailureDisconnectsClients(t *testing.T) {
	f := newFixture(t)

	conn, _, err := websocket.DefaultDialer.Dial(f.url("channel_id=c1&token=good"), nil)
	require.NoError(t, err)
	defer conn.Close()
	readFrame(t, conn)

	require.NoError(t, f.broker.Close())

	notice := readFrame(t, conn)
	assert.Equal(t, TypeSystem, notice.Type)
	assert.Contains(t, notice.Content, "interrupted")

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err = conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure))
}

func TestMessageWireFormat(t *testing.T) {
	evt := chat.InsertEvent{ID: "m1", ChannelID: "c1", UserID: "u1", Content: "hi", CreatedAt: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}

	data, err := NewEventMessage(evt).ToJSON()
	require.NoError(t, err)

	s := string(data)
	assert.Contains(t, s, `"type":"message_created"`)
	assert.Contains(t, s, `"channel_id":"c1"`)
	assert.Contains(t, s, `"message":{"id":"m1","content":"hi","created_at":"2024-03-01T12:00:00Z","user_id":"u1","channel_id":"c1"}`)
	assert.NotContains(t, s, `"content":""`)
}
