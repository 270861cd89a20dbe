package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// ErrViewClosed is returned by Open when the view was closed or reopened before loading finished
var ErrViewClosed = errors.New("channel view closed")

// State of a ChannelView
type State int

const (
	StateUnmounted State = iota // no channel open, list discarded
	StateLoading                // subscribed, bulk fetch in flight
	StateLive                   // bulk fetch done, appending on notification
)

func (s State) String() string {
	switch s {
	case StateUnmounted:
		return "unmounted"
	case StateLoading:
		return "loading"
	case StateLive:
		return "live"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// ViewOptions configures a ChannelView
type ViewOptions struct {
	Grouper  *Grouper
	Logger   *slog.Logger
	OnChange func(groups []MessageGroup) // called after the initial load and every accepted append
	OnError  func(err error)             // fetch, subscription and lookup failures
}

// Callbacks never run concurrently with each other or with an unmount; once Close returns
// no callback of the closed generation fires. Callbacks must not call Open or Close.

// ChannelView holds the flat message list of one open channel.
//
// Lifecycle: Unmounted -> Loading -> Live -> Unmounted. The notification subscription is
// opened before the bulk fetch so no insert is missed; events wait in the subscription
// until the fetch completes and are deduplicated by id on merge. A single goroutine
// appends to the list. Every async result is checked against the view generation, so
// nothing resolved after Close or a reopen can touch the current list.
type ChannelView struct {
	messages MessageStore
	authors  AuthorStore
	stream   NotificationStream
	grouper  *Grouper
	logger   *slog.Logger
	onChange func([]MessageGroup)
	onError  func(error)

	// cbMu serializes callbacks with unmount
	cbMu sync.Mutex

	mu        sync.RWMutex
	state     State
	gen       uint64
	channelID string
	list      []Message
	sub       Subscription
	cancel    context.CancelFunc
}

// NewChannelView creates an unmounted view
func NewChannelView(messages MessageStore, authors AuthorStore, stream NotificationStream, opts ViewOptions) *ChannelView {
	if opts.Grouper == nil {
		opts.Grouper = NewGrouper(DefaultGroupWindow)
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &ChannelView{
		messages: messages,
		authors:  authors,
		stream:   stream,
		grouper:  opts.Grouper,
		logger:   opts.Logger,
		onChange: opts.OnChange,
		onError:  opts.OnError,
	}
}

// Open mounts the view on channelID. Any open channel is closed first.
// It blocks until the bulk fetch resolves and returns ErrViewClosed if the view was
// closed meanwhile.
func (v *ChannelView) Open(ctx context.Context, channelID string) error {
	v.Close()

	viewCtx, cancel := context.WithCancel(ctx)

	v.mu.Lock()
	v.gen++
	gen := v.gen
	v.state = StateLoading
	v.channelID = channelID
	v.list = nil
	v.cancel = cancel
	v.mu.Unlock()

	log := v.logger.With("channel_id", channelID)
	log.Debug("channel_view_loading")

	sub, err := v.stream.Subscribe(viewCtx, channelID)
	if err != nil {
		err = fmt.Errorf("subscribe to channel %s: %w", channelID, err)
		v.abort(gen, err)
		return err
	}

	v.mu.Lock()
	if v.gen != gen {
		v.mu.Unlock()
		sub.Close()
		return ErrViewClosed
	}
	v.sub = sub
	v.mu.Unlock()

	list, err := v.messages.ListMessages(viewCtx, channelID)
	if err != nil {
		if !v.alive(gen) {
			return ErrViewClosed
		}
		err = fmt.Errorf("load messages of channel %s: %w", channelID, err)
		v.abort(gen, err)
		return err
	}

	v.mu.Lock()
	if v.gen != gen {
		v.mu.Unlock()
		log.Debug("channel_view_fetch_discarded")
		return ErrViewClosed
	}
	v.list = list
	v.state = StateLive
	groups := v.grouper.Group(list)
	v.mu.Unlock()

	log.Info("channel_view_live", "messages", len(list))
	v.notify(gen, groups)

	go v.run(viewCtx, gen, channelID, sub)
	return nil
}

// Close unmounts the view: it unsubscribes and discards the list.
// Closing an unmounted view is a no-op.
func (v *ChannelView) Close() error {
	_, err := v.unmount(anyGen)
	return err
}

// anyGen matches every generation; real generations start at 1
const anyGen uint64 = 0

func (v *ChannelView) unmount(gen uint64) (bool, error) {
	v.cbMu.Lock()
	v.mu.Lock()
	if v.state == StateUnmounted || (gen != anyGen && v.gen != gen) {
		v.mu.Unlock()
		v.cbMu.Unlock()
		return false, nil
	}
	v.gen++
	v.state = StateUnmounted
	v.list = nil
	sub, cancel, channelID := v.sub, v.cancel, v.channelID
	v.sub, v.cancel, v.channelID = nil, nil, ""
	v.mu.Unlock()
	v.cbMu.Unlock()

	if cancel != nil {
		cancel()
	}
	v.logger.Debug("channel_view_unmounted", "channel_id", channelID)
	if sub != nil {
		return true, sub.Close()
	}
	return true, nil
}

// State returns the current lifecycle state
func (v *ChannelView) State() State {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.state
}

// ChannelID returns the open channel, empty when unmounted
func (v *ChannelView) ChannelID() string {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.channelID
}

// Snapshot returns a copy of the flat message list
func (v *ChannelView) Snapshot() []Message {
	v.mu.RLock()
	defer v.mu.RUnlock()
	out := make([]Message, len(v.list))
	copy(out, v.list)
	return out
}

// Groups regroups the current list
func (v *ChannelView) Groups() []MessageGroup {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.grouper.Group(v.list)
}

func (v *ChannelView) run(ctx context.Context, gen uint64, channelID string, sub Subscription) {
	log := v.logger.With("channel_id", channelID)
	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-sub.Events():
			if !ok {
				if err := sub.Err(); err != nil && v.alive(gen) {
					log.Error("channel_view_stream_closed", "error", err)
					v.report(gen, fmt.Errorf("notification stream of channel %s: %w", channelID, err))
				}
				return
			}
			v.apply(ctx, gen, channelID, evt, log)
		}
	}
}

func (v *ChannelView) apply(ctx context.Context, gen uint64, channelID string, evt InsertEvent, log *slog.Logger) {
	v.mu.RLock()
	if v.gen != gen {
		v.mu.RUnlock()
		return
	}
	current := v.list
	v.mu.RUnlock()

	next, err := Merge(ctx, v.authors, current, channelID, evt)
	switch {
	case err == nil:
	case errors.Is(err, ErrForeignChannel), errors.Is(err, ErrDuplicateMessage):
		log.Debug("channel_view_event_skipped", "message_id", evt.ID, "reason", err)
		return
	case errors.Is(err, ErrAuthorNotFound):
		log.Warn("channel_view_event_dropped", "message_id", evt.ID, "user_id", evt.UserID)
		return
	default:
		if !v.alive(gen) {
			return
		}
		log.Error("channel_view_lookup_failed", "message_id", evt.ID, "error", err)
		v.report(gen, err)
		return
	}

	v.mu.Lock()
	if v.gen != gen {
		v.mu.Unlock()
		return
	}
	v.list = next
	groups := v.grouper.Group(next)
	v.mu.Unlock()

	v.notify(gen, groups)
}

func (v *ChannelView) alive(gen uint64) bool {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.gen == gen
}

// abort returns a loading view to Unmounted after a failure, releasing the subscription
func (v *ChannelView) abort(gen uint64, err error) {
	if released, _ := v.unmount(gen); !released {
		return
	}
	v.logger.Error("channel_view_open_failed", "error", err)
	v.report(anyGen, err)
}

func (v *ChannelView) notify(gen uint64, groups []MessageGroup) {
	if v.onChange != nil {
		v.emit(gen, func() { v.onChange(groups) })
	}
}

// report delivers err unless gen was unmounted; abort passes anyGen since it unmounts first
func (v *ChannelView) report(gen uint64, err error) {
	if v.onError != nil {
		v.emit(gen, func() { v.onError(err) })
	}
}

func (v *ChannelView) emit(gen uint64, fn func()) {
	v.cbMu.Lock()
	defer v.cbMu.Unlock()
	if gen != anyGen && !v.alive(gen) {
		return
	}
	fn()
}
