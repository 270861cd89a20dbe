package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"geochat/internal/chat"
	"geochat/internal/metrics"

	"github.com/redis/go-redis/v9"
)

const redisTopicPrefix = "geochat:channel:"

func redisTopic(channelID string) string {
	return redisTopicPrefix + channelID
}

// RedisBroker publishes through redis pub/sub so every API instance sees every insert.
// Run relays the pattern subscription into the local broker that serves Subscribe.
type RedisBroker struct {
	rdb    *redis.Client
	local  *MemoryBroker
	logger *slog.Logger
}

func NewRedisBroker(rdb *redis.Client, local *MemoryBroker, logger *slog.Logger) *RedisBroker {
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisBroker{rdb: rdb, local: local, logger: logger}
}

func (b *RedisBroker) Publish(ctx context.Context, evt chat.InsertEvent) error {
	data, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	if err := b.rdb.Publish(ctx, redisTopic(evt.ChannelID), data).Err(); err != nil {
		return fmt.Errorf("publish event %s: %w", evt.ID, err)
	}
	metrics.EventsPublished.WithLabelValues("redis").Inc()
	return nil
}

func (b *RedisBroker) Subscribe(ctx context.Context, channelID string) (chat.Subscription, error) {
	return b.local.Subscribe(ctx, channelID)
}

func (b *RedisBroker) Close() error {
	return b.local.Close()
}

// Run relays redis messages until ctx is done. go-redis reconnects the pubsub itself.
func (b *RedisBroker) Run(ctx context.Context) error {
	ps := b.rdb.PSubscribe(ctx, redisTopicPrefix+"*")
	defer ps.Close()

	if _, err := ps.Receive(ctx); err != nil {
		return fmt.Errorf("redis psubscribe: %w", err)
	}
	b.logger.Info("redis_relay_started", "pattern", redisTopicPrefix+"*")

	ch := ps.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			evt, err := decodeEvent([]byte(msg.Payload))
			if err != nil {
				b.logger.Warn("redis_relay_bad_payload", "topic", msg.Channel, "error", err)
				continue
			}
			if want := strings.TrimPrefix(msg.Channel, redisTopicPrefix); evt.ChannelID != want {
				b.logger.Warn("redis_relay_channel_mismatch", "topic", msg.Channel, "channel_id", evt.ChannelID)
				continue
			}
			if err := b.local.Publish(ctx, evt); err != nil {
				return err
			}
		}
	}
}

// decodeEvent parses the JSON insert event published on redis
func decodeEvent(payload []byte) (chat.InsertEvent, error) {
	var evt chat.InsertEvent
	if err := json.Unmarshal(payload, &evt); err != nil {
		return evt, fmt.Errorf("decode event: %w", err)
	}
	if evt.ID == "" || evt.ChannelID == "" {
		return evt, fmt.Errorf("decode event: missing id or channel_id")
	}
	return evt, nil
}
