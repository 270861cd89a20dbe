package command

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"geochat/internal/chat"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
)

func init() {
	color.NoColor = true
}

func group(user string, at time.Time, ids ...string) chat.MessageGroup {
	g := chat.MessageGroup{Username: user}
	for i, id := range ids {
		g.Entries = append(g.Entries, chat.Entry{ID: id, Content: "msg " + id, CreatedAt: at.Add(time.Duration(i) * time.Minute)})
	}
	return g
}

func TestGroupRenderer_Incremental(t *testing.T) {
	var out bytes.Buffer
	r := newGroupRenderer(&out)
	at := time.Date(2024, 3, 1, 12, 0, 0, 0, time.Local)

	r.Render([]chat.MessageGroup{group("alice", at, "1", "2")})
	assert.Equal(t, " A  alice 12:00\n    msg 1\n    msg 2\n", out.String())

	// the next message joins alice's group: no new header
	out.Reset()
	r.Render([]chat.MessageGroup{group("alice", at, "1", "2", "3")})
	assert.Equal(t, "    msg 3\n", out.String())

	out.Reset()
	r.Render([]chat.MessageGroup{group("alice", at, "1", "2", "3"), group("bob", at.Add(time.Hour), "4")})
	assert.Equal(t, " B  bob 13:00\n    msg 4\n", out.String())

	// a later message from alice starts a new group with its own header
	out.Reset()
	r.Render([]chat.MessageGroup{
		group("alice", at, "1", "2", "3"),
		group("bob", at.Add(time.Hour), "4"),
		group("alice", at.Add(2*time.Hour), "5"),
	})
	assert.True(t, strings.HasPrefix(out.String(), " A  alice 14:00\n"))
}

func TestGroupRenderer_NothingNew(t *testing.T) {
	var out bytes.Buffer
	r := newGroupRenderer(&out)
	groups := []chat.MessageGroup{group("alice", time.Now(), "1")}

	r.Render(groups)
	out.Reset()
	r.Render(groups)

	assert.Empty(t, out.String())
}
