package client

// ws_client.go = notification stream of the CLI, one websocket per channel subscription.

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"geochat/internal/chat"
	ws "geochat/internal/microservices/websocket"

	"github.com/gorilla/websocket"
)

// ErrStreamClosed is reported when the stream ends without a local Close
var ErrStreamClosed = errors.New("notification stream closed by server")

const handshakeTimeout = 10 * time.Second

// WSStream opens one websocket per subscribed channel
type WSStream struct {
	wsURL  string
	token  string
	dialer *websocket.Dialer
	logger *slog.Logger
}

// NewWSStream derives the websocket endpoint from the API URL (http -> ws, https -> wss)
func NewWSStream(apiURL, token string, logger *slog.Logger) (*WSStream, error) {
	u, err := url.Parse(strings.TrimRight(apiURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid api url: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return nil, fmt.Errorf("unsupported api url scheme %q", u.Scheme)
	}
	u.Path += "/ws"
	if logger == nil {
		logger = slog.Default()
	}
	return &WSStream{
		wsURL:  u.String(),
		token:  token,
		dialer: &websocket.Dialer{HandshakeTimeout: handshakeTimeout},
		logger: logger,
	}, nil
}

// Subscribe connects and waits for the server acknowledgement, so events inserted after
// it returns are delivered.
func (s *WSStream) Subscribe(ctx context.Context, channelID string) (chat.Subscription, error) {
	target := s.wsURL + "?channel_id=" + url.QueryEscape(channelID)
	header := http.Header{}
	header.Set("Authorization", "Bearer "+s.token)

	conn, resp, err := s.dialer.DialContext(ctx, target, header)
	if err != nil {
		if resp != nil {
			return nil, &APIError{StatusCode: resp.StatusCode, Message: "websocket handshake refused"}
		}
		return nil, fmt.Errorf("websocket connect: %w", err)
	}

	_ = conn.SetReadDeadline(time.Now().Add(handshakeTimeout))
	_, data, err := conn.ReadMessage()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("websocket handshake: %w", err)
	}
	ack, err := ws.MessageFromJSON(data)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("websocket handshake: %w", err)
	}
	if ack.Type != ws.TypeSubscribed {
		conn.Close()
		return nil, fmt.Errorf("%w: %s", ErrStreamClosed, ack.Content)
	}
	_ = conn.SetReadDeadline(time.Time{})
	conn.SetPingHandler(func(appData string) error {
		return conn.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(ws.WriteWait))
	})

	sub := &wsSubscription{
		channelID: channelID,
		conn:      conn,
		events:    make(chan chat.InsertEvent, ws.SendBuffer),
		done:      make(chan struct{}),
		logger:    s.logger.With("channel_id", channelID),
	}
	go sub.readLoop()
	return sub, nil
}

type wsSubscription struct {
	channelID string
	conn      *websocket.Conn
	events    chan chat.InsertEvent
	done      chan struct{}
	logger    *slog.Logger

	once sync.Once
	mu   sync.Mutex
	err  error
}

func (s *wsSubscription) Events() <-chan chat.InsertEvent { return s.events }

func (s *wsSubscription) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *wsSubscription) Close() error {
	s.once.Do(func() {
		close(s.done)
		_ = s.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(ws.WriteWait))
	})
	return s.conn.Close()
}

func (s *wsSubscription) readLoop() {
	defer close(s.events)

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			s.finish(err)
			return
		}
		msg, err := ws.MessageFromJSON(data)
		if err != nil {
			s.logger.Warn("ws_bad_frame", "error", err)
			continue
		}

		switch msg.Type {
		case ws.TypeMessageCreated:
			if msg.Message == nil {
				continue
			}
			select {
			case s.events <- *msg.Message:
			case <-s.done:
				return
			}
		case ws.TypeSystem:
			s.finish(fmt.Errorf("%w: %s", ErrStreamClosed, msg.Content))
			return
		}
	}
}

// finish records why the stream ended; a local Close is not an error
func (s *wsSubscription) finish(err error) {
	select {
	case <-s.done:
		return
	default:
	}
	if !errors.Is(err, ErrStreamClosed) {
		err = fmt.Errorf("%w: %v", ErrStreamClosed, err)
	}
	s.mu.Lock()
	if s.err == nil {
		s.err = err
	}
	s.mu.Unlock()
}
