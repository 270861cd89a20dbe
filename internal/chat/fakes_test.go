package chat

import (
	"context"
	"sync"

	"github.com/stretchr/testify/mock"
)

// mockAuthorStore mocks AuthorStore
type mockAuthorStore struct {
	mock.Mock
}

func (m *mockAuthorStore) LookupAuthor(ctx context.Context, userID string) (*Author, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Author), args.Error(1)
}

// fakeMessageStore serves a fixed list; when gate is set it blocks until the gate closes
type fakeMessageStore struct {
	messages []Message
	err      error
	gate     chan struct{}
	started  chan struct{}
}

func (f *fakeMessageStore) ListMessages(ctx context.Context, channelID string) ([]Message, error) {
	if f.started != nil {
		close(f.started)
	}
	if f.gate != nil {
		<-f.gate
	}
	if f.err != nil {
		return nil, f.err
	}
	out := make([]Message, len(f.messages))
	copy(out, f.messages)
	return out, nil
}

// fakeStream hands out buffered subscriptions and lets tests push events
type fakeStream struct {
	mu   sync.Mutex
	subs map[string][]*fakeSubscription
	err  error
}

func newFakeStream() *fakeStream {
	return &fakeStream{subs: make(map[string][]*fakeSubscription)}
}

func (s *fakeStream) Subscribe(ctx context.Context, channelID string) (Subscription, error) {
	if s.err != nil {
		return nil, s.err
	}
	sub := &fakeSubscription{events: make(chan InsertEvent, 16)}
	s.mu.Lock()
	s.subs[channelID] = append(s.subs[channelID], sub)
	s.mu.Unlock()
	return sub, nil
}

func (s *fakeStream) push(channelID string, evt InsertEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sub := range s.subs[channelID] {
		sub.send(evt)
	}
}

func (s *fakeStream) subscription(channelID string, i int) *fakeSubscription {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.subs[channelID][i]
}

type fakeSubscription struct {
	mu     sync.Mutex
	events chan InsertEvent
	closed bool
	err    error
}

func (s *fakeSubscription) Events() <-chan InsertEvent { return s.events }

func (s *fakeSubscription) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *fakeSubscription) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.events)
	}
	return nil
}

func (s *fakeSubscription) fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.err = err
		s.closed = true
		close(s.events)
	}
}

func (s *fakeSubscription) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *fakeSubscription) send(evt InsertEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.events <- evt
	}
}
