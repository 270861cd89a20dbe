package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"geochat/internal/chat"
	"geochat/internal/metrics"

	"github.com/jackc/pgx/v5"
)

// NotifyChannel is the LISTEN/NOTIFY channel fed by the messages insert trigger
const NotifyChannel = "message_inserted"

// ReconnectDelay is the pause before the listener reconnects after losing its connection
const ReconnectDelay = 2 * time.Second

// PostgresBroker turns row inserts into events: the messages trigger NOTIFYs the id of
// every new row, Run reads the row back and relays it into the local broker.
type PostgresBroker struct {
	dsn    string
	local  *MemoryBroker
	logger *slog.Logger
}

func NewPostgresBroker(dsn string, local *MemoryBroker, logger *slog.Logger) *PostgresBroker {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresBroker{dsn: dsn, local: local, logger: logger}
}

// Publish is a no-op: the insert trigger already announced the row
func (b *PostgresBroker) Publish(ctx context.Context, evt chat.InsertEvent) error {
	metrics.EventsPublished.WithLabelValues("postgres").Inc()
	return nil
}

func (b *PostgresBroker) Subscribe(ctx context.Context, channelID string) (chat.Subscription, error) {
	return b.local.Subscribe(ctx, channelID)
}

func (b *PostgresBroker) Close() error {
	return b.local.Close()
}

// Run listens until ctx is done, reconnecting after connection loss
func (b *PostgresBroker) Run(ctx context.Context) error {
	for {
		err := b.listen(ctx)
		if ctx.Err() != nil {
			return nil
		}
		b.logger.Error("pg_listener_disconnected", "error", err, "retry_in", ReconnectDelay)

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(ReconnectDelay):
		}
	}
}

func (b *PostgresBroker) listen(ctx context.Context) error {
	conn, err := pgx.Connect(ctx, b.dsn)
	if err != nil {
		return fmt.Errorf("connect listener: %w", err)
	}
	defer conn.Close(context.Background())

	if _, err := conn.Exec(ctx, "LISTEN "+pgx.Identifier{NotifyChannel}.Sanitize()); err != nil {
		return fmt.Errorf("listen %s: %w", NotifyChannel, err)
	}
	b.logger.Info("pg_listener_started", "channel", NotifyChannel)

	for {
		n, err := conn.WaitForNotification(ctx)
		if err != nil {
			return fmt.Errorf("wait for notification: %w", err)
		}
		ref, err := decodeRef([]byte(n.Payload))
		if err != nil {
			b.logger.Warn("pg_listener_bad_payload", "error", err)
			continue
		}
		evt, err := loadEvent(ctx, conn, ref)
		if errors.Is(err, errRowGone) {
			b.logger.Warn("pg_listener_row_gone", "message_id", ref.ID, "channel_id", ref.ChannelID)
			continue
		}
		if err != nil {
			return err
		}
		if err := b.local.Publish(ctx, evt); err != nil {
			return err
		}
	}
}

// notifyRef is the trigger payload
type notifyRef struct {
	ID        string `json:"id"`
	ChannelID string `json:"channel_id"`
}

func decodeRef(payload []byte) (notifyRef, error) {
	var ref notifyRef
	if err := json.Unmarshal(payload, &ref); err != nil {
		return ref, fmt.Errorf("decode notification: %w", err)
	}
	if ref.ID == "" || ref.ChannelID == "" {
		return ref, errors.New("decode notification: missing id or channel_id")
	}
	return ref, nil
}

// errRowGone: the announced row was deleted before it could be read
var errRowGone = errors.New("message row gone")

// rowQuerier is the part of *pgx.Conn loadEvent uses
type rowQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const selectInsertedSQL = `SELECT id::text, channel_id::text, user_id::text, content, created_at
FROM messages WHERE id = $1::uuid`

// loadEvent reads the announced row on the listener connection
func loadEvent(ctx context.Context, q rowQuerier, ref notifyRef) (chat.InsertEvent, error) {
	var (
		evt    chat.InsertEvent
		userID *string
	)
	err := q.QueryRow(ctx, selectInsertedSQL, ref.ID).Scan(&evt.ID, &evt.ChannelID, &userID, &evt.Content, &evt.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return evt, errRowGone
	}
	if err != nil {
		return evt, fmt.Errorf("load message %s: %w", ref.ID, err)
	}
	if userID != nil {
		evt.UserID = *userID
	}
	return evt, nil
}
