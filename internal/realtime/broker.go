package realtime

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"geochat/internal/chat"
	"geochat/internal/metrics"
)

// DefaultBuffer is the per-subscription event buffer
const DefaultBuffer = 64

var (
	ErrBrokerClosed      = errors.New("broker closed")
	ErrSubscriberLagging = errors.New("subscriber too slow, events dropped")
)

// Broker fans out insert events to the subscribers of a channel
type Broker interface {
	chat.NotificationStream
	Publish(ctx context.Context, evt chat.InsertEvent) error
	Close() error
}

// MemoryBroker is the in-process broker. The redis and postgres backends relay into one.
// A subscription whose buffer is full is terminated with ErrSubscriberLagging instead
// of silently missing events.
type MemoryBroker struct {
	buffer int
	logger *slog.Logger

	mu     sync.RWMutex
	subs   map[string]map[*subscription]struct{}
	closed bool
}

// NewMemoryBroker creates a broker with the given per-subscription buffer
func NewMemoryBroker(buffer int, logger *slog.Logger) *MemoryBroker {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &MemoryBroker{
		buffer: buffer,
		logger: logger,
		subs:   make(map[string]map[*subscription]struct{}),
	}
}

// Subscribe opens a subscription on channelID; it ends when ctx is done or on Close
func (b *MemoryBroker) Subscribe(ctx context.Context, channelID string) (chat.Subscription, error) {
	sub := &subscription{
		broker:    b,
		channelID: channelID,
		events:    make(chan chat.InsertEvent, b.buffer),
		done:      make(chan struct{}),
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil, ErrBrokerClosed
	}
	if b.subs[channelID] == nil {
		b.subs[channelID] = make(map[*subscription]struct{})
	}
	b.subs[channelID][sub] = struct{}{}
	b.mu.Unlock()

	metrics.Subscribers.Inc()
	b.logger.Debug("subscription_opened", "channel_id", channelID)

	go func() {
		select {
		case <-ctx.Done():
			sub.Close()
		case <-sub.done:
		}
	}()

	return sub, nil
}

// Publish delivers evt to every subscription of its channel without blocking
func (b *MemoryBroker) Publish(ctx context.Context, evt chat.InsertEvent) error {
	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return ErrBrokerClosed
	}
	var lagging []*subscription
	for sub := range b.subs[evt.ChannelID] {
		if !sub.deliver(evt) {
			lagging = append(lagging, sub)
		}
	}
	b.mu.RUnlock()
	metrics.EventsPublished.WithLabelValues("memory").Inc()

	for _, sub := range lagging {
		metrics.SubscribersLagging.Inc()
		b.logger.Warn("subscription_lagging", "channel_id", sub.channelID)
		sub.terminate(ErrSubscriberLagging)
	}
	return nil
}

// SubscriberCount returns the open subscriptions of channelID
func (b *MemoryBroker) SubscriberCount(channelID string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[channelID])
}

// Close ends every subscription with ErrBrokerClosed
func (b *MemoryBroker) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	var all []*subscription
	for _, set := range b.subs {
		for sub := range set {
			all = append(all, sub)
		}
	}
	b.mu.Unlock()

	for _, sub := range all {
		sub.terminate(ErrBrokerClosed)
	}
	return nil
}

func (b *MemoryBroker) remove(sub *subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	set := b.subs[sub.channelID]
	if _, ok := set[sub]; !ok {
		return
	}
	delete(set, sub)
	if len(set) == 0 {
		delete(b.subs, sub.channelID)
	}
	metrics.Subscribers.Dec()
}

type subscription struct {
	broker    *MemoryBroker
	channelID string
	events    chan chat.InsertEvent
	done      chan struct{}

	mu     sync.Mutex
	closed bool
	err    error
}

func (s *subscription) Events() <-chan chat.InsertEvent { return s.events }

func (s *subscription) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *subscription) Close() error {
	s.terminate(nil)
	return nil
}

// deliver reports false when the buffer is full
func (s *subscription) deliver(evt chat.InsertEvent) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return true
	}
	select {
	case s.events <- evt:
		metrics.EventsDelivered.Inc()
		return true
	default:
		return false
	}
}

func (s *subscription) terminate(err error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.err = err
	close(s.events)
	close(s.done)
	s.mu.Unlock()

	s.broker.remove(s)
}
