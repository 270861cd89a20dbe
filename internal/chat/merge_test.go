package chat

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestMerge_AppendsResolvedMessage(t *testing.T) {
	authors := new(mockAuthorStore)
	bob := author("bob")
	authors.On("LookupAuthor", mock.Anything, "id-bob").Return(bob, nil)

	list := []Message{msgAt("1", author("alice"), 0)}
	evt := InsertEvent{ID: "2", Content: "hi", CreatedAt: base.Add(time.Minute), UserID: "id-bob", ChannelID: "c1"}

	next, err := Merge(context.Background(), authors, list, "c1", evt)

	require.NoError(t, err)
	require.Len(t, next, 2)
	assert.Equal(t, "2", next[1].ID)
	assert.Equal(t, "hi", next[1].Content)
	assert.Same(t, bob, next[1].Author)
	assert.True(t, !next[1].CreatedAt.Before(next[0].CreatedAt))
	authors.AssertExpectations(t)
}

func TestMerge_ForeignChannelIgnored(t *testing.T) {
	authors := new(mockAuthorStore)
	list := []Message{msgAt("1", author("alice"), 0)}

	next, err := Merge(context.Background(), authors, list, "c1", InsertEvent{ID: "2", UserID: "u", ChannelID: "c2"})

	assert.ErrorIs(t, err, ErrForeignChannel)
	assert.Len(t, next, 1)
	authors.AssertNotCalled(t, "LookupAuthor", mock.Anything, mock.Anything)
}

func TestMerge_DuplicateIgnored(t *testing.T) {
	authors := new(mockAuthorStore)
	list := []Message{msgAt("1", author("alice"), 0)}

	next, err := Merge(context.Background(), authors, list, "c1", InsertEvent{ID: "1", UserID: "id-alice", ChannelID: "c1"})

	assert.ErrorIs(t, err, ErrDuplicateMessage)
	assert.Len(t, next, 1)
}

func TestMerge_MissingAuthorDropped(t *testing.T) {
	authors := new(mockAuthorStore)
	authors.On("LookupAuthor", mock.Anything, "ghost").Return(nil, nil)
	list := []Message{msgAt("1", author("alice"), 0)}

	next, err := Merge(context.Background(), authors, list, "c1", InsertEvent{ID: "2", UserID: "ghost", ChannelID: "c1"})

	assert.ErrorIs(t, err, ErrAuthorNotFound)
	assert.Len(t, next, 1)
}

func TestMerge_LookupFailureDropped(t *testing.T) {
	authors := new(mockAuthorStore)
	boom := errors.New("connection refused")
	authors.On("LookupAuthor", mock.Anything, "u1").Return(nil, boom)

	next, err := Merge(context.Background(), authors, nil, "c1", InsertEvent{ID: "2", UserID: "u1", ChannelID: "c1"})

	assert.ErrorIs(t, err, boom)
	assert.Empty(t, next)
}
