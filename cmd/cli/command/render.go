package command

import (
	"fmt"
	"io"
	"net/http"
	"sync"

	"geochat/cmd/cli/command/client"
	"geochat/internal/chat"
	"geochat/internal/microservices/http-api/dto"

	"github.com/fatih/color"
)

var (
	avatarColor = color.New(color.FgBlack, color.BgCyan, color.Bold)
	nameColor   = color.New(color.FgCyan, color.Bold)
	timeColor   = color.New(color.FgHiBlack)
	noticeColor = color.New(color.FgYellow)
	errorColor  = color.New(color.FgRed)
)

// groupRenderer prints a channel's groups incrementally.
// The list only grows at the end, so everything before the printed count is already on screen.
type groupRenderer struct {
	w io.Writer

	mu         sync.Mutex
	printed    int    // entries already written
	lastHeader string // key of the group whose header was written last
}

func newGroupRenderer(w io.Writer) *groupRenderer {
	return &groupRenderer{w: w}
}

func (r *groupRenderer) Render(groups []chat.MessageGroup) {
	r.mu.Lock()
	defer r.mu.Unlock()

	idx := 0
	for _, g := range groups {
		for i, e := range g.Entries {
			if idx >= r.printed {
				if i == 0 || r.lastHeader != g.Key() {
					r.header(g)
				}
				fmt.Fprintf(r.w, "    %s\n", e.Content)
				r.printed++
			}
			idx++
		}
	}
}

func (r *groupRenderer) header(g chat.MessageGroup) {
	r.lastHeader = g.Key()
	fmt.Fprintf(r.w, "%s %s %s\n",
		avatarColor.Sprintf(" %s ", g.Initial()),
		nameColor.Sprint(g.Username),
		timeColor.Sprint(g.Entries[0].CreatedAt.Local().Format("15:04")),
	)
}

func printNotice(w io.Writer, format string, args ...any) {
	noticeColor.Fprintf(w, format+"\n", args...)
}

func printError(w io.Writer, err error) {
	errorColor.Fprintf(w, "error: %v\n", err)
}

func printChannels(w io.Writer, channels []dto.ChannelResponse) {
	if len(channels) == 0 {
		printNotice(w, "no channels found")
		return
	}
	for _, c := range channels {
		dist := ""
		if c.DistanceKm != nil {
			dist = timeColor.Sprintf(" %.2f km", *c.DistanceKm)
		}
		fmt.Fprintf(w, "%s  %s  (%.5f, %.5f)%s\n", timeColor.Sprint(c.ID), nameColor.Sprint(c.Name), c.Latitude, c.Longitude, dist)
		if c.Description != "" {
			fmt.Fprintf(w, "    %s\n", c.Description)
		}
	}
}

// describeError turns API failures into something a user can act on
func describeError(err error) error {
	switch {
	case client.IsStatus(err, http.StatusUnauthorized):
		return fmt.Errorf("session expired or invalid, run 'geochat auth login': %w", err)
	case client.IsStatus(err, http.StatusTooManyRequests):
		return fmt.Errorf("sending too fast, wait a moment: %w", err)
	}
	return err
}

func initialOf(username string) string {
	return (&chat.Author{Username: username}).Initial()
}
