package chat

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

const waitFor = 2 * time.Second

func ids(msgs []Message) []string {
	out := make([]string, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, m.ID)
	}
	return out
}

func TestChannelView_OpenLoadsAndGoesLive(t *testing.T) {
	defer goleak.VerifyNone(t)

	alice := author("alice")
	store := &fakeMessageStore{messages: []Message{msgAt("1", alice, 0), msgAt("2", alice, time.Minute)}}
	stream := newFakeStream()

	var changes atomic.Int32
	view := NewChannelView(store, new(mockAuthorStore), stream, ViewOptions{
		OnChange: func(groups []MessageGroup) { changes.Add(1) },
	})

	require.NoError(t, view.Open(context.Background(), "c1"))

	assert.Equal(t, StateLive, view.State())
	assert.Equal(t, "c1", view.ChannelID())
	assert.Equal(t, []string{"1", "2"}, ids(view.Snapshot()))
	require.Len(t, view.Groups(), 1)
	assert.Equal(t, int32(1), changes.Load())

	require.NoError(t, view.Close())
	assert.Equal(t, StateUnmounted, view.State())
	assert.Empty(t, view.Snapshot())
	assert.True(t, stream.subscription("c1", 0).isClosed())
}

func TestChannelView_AppendsRealtimeMessages(t *testing.T) {
	defer goleak.VerifyNone(t)

	alice, bob := author("alice"), author("bob")
	authors := new(mockAuthorStore)
	authors.On("LookupAuthor", mock.Anything, "id-bob").Return(bob, nil)

	store := &fakeMessageStore{messages: []Message{msgAt("1", alice, 0)}}
	stream := newFakeStream()

	groupsCh := make(chan []MessageGroup, 4)
	view := NewChannelView(store, authors, stream, ViewOptions{
		OnChange: func(groups []MessageGroup) { groupsCh <- groups },
	})
	require.NoError(t, view.Open(context.Background(), "c1"))
	<-groupsCh

	stream.push("c1", InsertEvent{ID: "2", Content: "yo", CreatedAt: base.Add(time.Minute), UserID: "id-bob", ChannelID: "c1"})

	select {
	case groups := <-groupsCh:
		require.Len(t, groups, 2)
		assert.Equal(t, "bob", groups[1].Username)
	case <-time.After(waitFor):
		t.Fatal("no change notification after realtime insert")
	}

	snapshot := view.Snapshot()
	assert.Equal(t, []string{"1", "2"}, ids(snapshot))
	for i := 1; i < len(snapshot); i++ {
		assert.False(t, snapshot[i].CreatedAt.Before(snapshot[i-1].CreatedAt))
	}

	require.NoError(t, view.Close())
}

func TestChannelView_MissingAuthorIsDropped(t *testing.T) {
	defer goleak.VerifyNone(t)

	alice := author("alice")
	authors := new(mockAuthorStore)
	authors.On("LookupAuthor", mock.Anything, "ghost").Return(nil, nil)
	authors.On("LookupAuthor", mock.Anything, "id-alice").Return(alice, nil)

	store := &fakeMessageStore{messages: []Message{msgAt("1", alice, 0)}}
	stream := newFakeStream()
	view := NewChannelView(store, authors, stream, ViewOptions{})
	require.NoError(t, view.Open(context.Background(), "c1"))

	stream.push("c1", InsertEvent{ID: "orphan", UserID: "ghost", ChannelID: "c1", CreatedAt: base.Add(time.Minute)})
	stream.push("c1", InsertEvent{ID: "3", UserID: "id-alice", ChannelID: "c1", CreatedAt: base.Add(2 * time.Minute)})

	assert.Eventually(t, func() bool { return len(view.Snapshot()) == 2 }, waitFor, 10*time.Millisecond)
	assert.Equal(t, []string{"1", "3"}, ids(view.Snapshot()))

	require.NoError(t, view.Close())
}

func TestChannelView_LookupFailureReported(t *testing.T) {
	defer goleak.VerifyNone(t)

	authors := new(mockAuthorStore)
	authors.On("LookupAuthor", mock.Anything, "u1").Return(nil, errors.New("store unavailable"))

	errCh := make(chan error, 1)
	stream := newFakeStream()
	view := NewChannelView(&fakeMessageStore{}, authors, stream, ViewOptions{
		OnError: func(err error) { errCh <- err },
	})
	require.NoError(t, view.Open(context.Background(), "c1"))

	stream.push("c1", InsertEvent{ID: "1", UserID: "u1", ChannelID: "c1"})

	select {
	case err := <-errCh:
		assert.Contains(t, err.Error(), "store unavailable")
	case <-time.After(waitFor):
		t.Fatal("lookup error not reported")
	}
	assert.Empty(t, view.Snapshot())
	assert.Equal(t, StateLive, view.State())

	require.NoError(t, view.Close())
}

func TestChannelView_EventsDuringLoadAreBufferedAndDeduplicated(t *testing.T) {
	defer goleak.VerifyNone(t)

	alice, bob := author("alice"), author("bob")
	authors := new(mockAuthorStore)
	authors.On("LookupAuthor", mock.Anything, "id-bob").Return(bob, nil)

	store := &fakeMessageStore{
		messages: []Message{msgAt("1", alice, 0), msgAt("2", alice, time.Minute)},
		gate:     make(chan struct{}),
		started:  make(chan struct{}),
	}
	stream := newFakeStream()
	view := NewChannelView(store, authors, stream, ViewOptions{})

	errCh := make(chan error, 1)
	go func() { errCh <- view.Open(context.Background(), "c1") }()
	<-store.started

	assert.Equal(t, StateLoading, view.State())
	// "2" is already part of the bulk fetch, "3" is new
	stream.push("c1", InsertEvent{ID: "2", UserID: "id-alice", ChannelID: "c1", CreatedAt: base.Add(time.Minute)})
	stream.push("c1", InsertEvent{ID: "3", UserID: "id-bob", ChannelID: "c1", CreatedAt: base.Add(2 * time.Minute)})
	assert.Empty(t, view.Snapshot())

	close(store.gate)
	require.NoError(t, <-errCh)

	assert.Eventually(t, func() bool { return len(view.Snapshot()) == 3 }, waitFor, 10*time.Millisecond)
	assert.Equal(t, []string{"1", "2", "3"}, ids(view.Snapshot()))
	authors.AssertNotCalled(t, "LookupAuthor", mock.Anything, "id-alice")

	require.NoError(t, view.Close())
}

func TestChannelView_CloseDuringFetchDiscardsResult(t *testing.T) {
	defer goleak.VerifyNone(t)

	store := &fakeMessageStore{
		messages: []Message{msgAt("1", author("alice"), 0)},
		gate:     make(chan struct{}),
		started:  make(chan struct{}),
	}
	stream := newFakeStream()

	var changes atomic.Int32
	view := NewChannelView(store, new(mockAuthorStore), stream, ViewOptions{
		OnChange: func([]MessageGroup) { changes.Add(1) },
	})

	errCh := make(chan error, 1)
	go func() { errCh <- view.Open(context.Background(), "c1") }()
	<-store.started

	require.NoError(t, view.Close())
	close(store.gate)

	assert.ErrorIs(t, <-errCh, ErrViewClosed)
	assert.Equal(t, StateUnmounted, view.State())
	assert.Empty(t, view.Snapshot())
	assert.Zero(t, changes.Load())
	assert.True(t, stream.subscription("c1", 0).isClosed())
}

func TestChannelView_FetchFailureUnmounts(t *testing.T) {
	defer goleak.VerifyNone(t)

	stream := newFakeStream()
	var reported []error
	var mu sync.Mutex
	view := NewChannelView(&fakeMessageStore{err: errors.New("timeout")}, new(mockAuthorStore), stream, ViewOptions{
		OnError: func(err error) {
			mu.Lock()
			reported = append(reported, err)
			mu.Unlock()
		},
	})

	err := view.Open(context.Background(), "c1")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "load messages of channel c1")
	assert.Equal(t, StateUnmounted, view.State())
	assert.True(t, stream.subscription("c1", 0).isClosed())
	mu.Lock()
	assert.Len(t, reported, 1)
	mu.Unlock()
}

func TestChannelView_SubscribeFailureUnmounts(t *testing.T) {
	stream := newFakeStream()
	stream.err = errors.New("stream offline")
	view := NewChannelView(&fakeMessageStore{}, new(mockAuthorStore), stream, ViewOptions{})

	err := view.Open(context.Background(), "c1")

	require.Error(t, err)
	assert.Equal(t, StateUnmounted, view.State())
}

func TestChannelView_SwitchingChannelsResetsState(t *testing.T) {
	defer goleak.VerifyNone(t)

	alice := author("alice")
	authors := new(mockAuthorStore)
	authors.On("LookupAuthor", mock.Anything, "id-alice").Return(alice, nil)

	store := &fakeMessageStore{messages: []Message{msgAt("1", alice, 0)}}
	stream := newFakeStream()
	view := NewChannelView(store, authors, stream, ViewOptions{})

	require.NoError(t, view.Open(context.Background(), "c1"))
	require.NoError(t, view.Open(context.Background(), "c2"))

	assert.True(t, stream.subscription("c1", 0).isClosed())
	assert.Equal(t, "c2", view.ChannelID())

	// an event for the channel we left never reaches the new list
	stream.push("c2", InsertEvent{ID: "x", UserID: "id-alice", ChannelID: "c1"})
	stream.push("c2", InsertEvent{ID: "2", UserID: "id-alice", ChannelID: "c2", CreatedAt: base.Add(time.Minute)})

	assert.Eventually(t, func() bool { return len(view.Snapshot()) == 2 }, waitFor, 10*time.Millisecond)
	assert.Equal(t, []string{"1", "2"}, ids(view.Snapshot()))

	require.NoError(t, view.Close())
}

func TestChannelView_StreamFailureReported(t *testing.T) {
	defer goleak.VerifyNone(t)

	errCh := make(chan error, 1)
	stream := newFakeStream()
	view := NewChannelView(&fakeMessageStore{}, new(mockAuthorStore), stream, ViewOptions{
		OnError: func(err error) { errCh <- err },
	})
	require.NoError(t, view.Open(context.Background(), "c1"))

	stream.subscription("c1", 0).fail(errors.New("connection reset"))

	select {
	case err := <-errCh:
		assert.Contains(t, err.Error(), "connection reset")
	case <-time.After(waitFor):
		t.Fatal("stream failure not reported")
	}

	require.NoError(t, view.Close())
}

func TestChannelView_CloseIsIdempotent(t *testing.T) {
	view := NewChannelView(&fakeMessageStore{}, new(mockAuthorStore), newFakeStream(), ViewOptions{})
	assert.NoError(t, view.Close())
	assert.NoError(t, view.Close())
	assert.Equal(t, "unmounted", view.State().String())
}

func TestChannelView_NoChangeObservedAfterClose(t *testing.T) {
	defer goleak.VerifyNone(t)

	authors := new(mockAuthorStore)
	authors.On("LookupAuthor", mock.Anything, "id-bob").Return(author("bob"), nil)
	stream := newFakeStream()

	var (
		closed   atomic.Bool
		late     atomic.Int32
		calls    atomic.Int32
		entered  = make(chan struct{})
		release  = make(chan struct{})
		enterOne sync.Once
	)
	view := NewChannelView(&fakeMessageStore{}, authors, stream, ViewOptions{
		OnChange: func(groups []MessageGroup) {
			if calls.Add(1) == 1 {
				return // initial load
			}
			if closed.Load() {
				late.Add(1)
			}
			enterOne.Do(func() { close(entered) })
			<-release
		},
	})
	require.NoError(t, view.Open(context.Background(), "c1"))

	stream.push("c1", InsertEvent{ID: "1", Content: "a", CreatedAt: base, UserID: "id-bob", ChannelID: "c1"})
	stream.push("c1", InsertEvent{ID: "2", Content: "b", CreatedAt: base.Add(time.Second), UserID: "id-bob", ChannelID: "c1"})
	<-entered

	closeDone := make(chan struct{})
	go func() {
		view.Close()
		closed.Store(true)
		close(closeDone)
	}()

	// Close waits for the callback in flight
	select {
	case <-closeDone:
		t.Fatal("Close returned while OnChange was running")
	case <-time.After(50 * time.Millisecond):
	}
	close(release)
	<-closeDone

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(0), late.Load())
	assert.Equal(t, StateUnmounted, view.State())
}
