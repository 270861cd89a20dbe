package chat

import "time"

// DefaultGroupWindow is the max gap between two messages of one author rendered in the same group
const DefaultGroupWindow = 5 * time.Minute

// Grouper turns the flat, ascending message list into render groups.
// A zero or negative Window disables the time threshold (author equality only).
type Grouper struct {
	Window time.Duration
}

// NewGrouper creates a Grouper with the given window
func NewGrouper(window time.Duration) *Grouper {
	return &Grouper{Window: window}
}

// Group builds the groups for messages.
// Messages without an author are skipped and never start a group.
// A message joins the previous group only when the author matches and the gap to the
// group's last entry is within the window; a negative gap (out of order input) always
// starts a new group.
func (g *Grouper) Group(messages []Message) []MessageGroup {
	groups := make([]MessageGroup, 0, len(messages))

	for _, msg := range messages {
		if msg.Author == nil {
			continue
		}

		entry := Entry{ID: msg.ID, Content: msg.Content, CreatedAt: msg.CreatedAt}

		if n := len(groups); n > 0 && g.joins(groups[n-1], msg) {
			groups[n-1].Entries = append(groups[n-1].Entries, entry)
			continue
		}

		groups = append(groups, MessageGroup{
			Username:  msg.Author.Username,
			AvatarURL: msg.Author.AvatarURL,
			Entries:   []Entry{entry},
		})
	}

	return groups
}

func (g *Grouper) joins(last MessageGroup, msg Message) bool {
	if last.Username != msg.Author.Username {
		return false
	}
	if g.Window <= 0 {
		return true
	}
	gap := msg.CreatedAt.Sub(last.Last().CreatedAt)
	return gap >= 0 && gap <= g.Window
}

// Flatten returns the entries of groups in render order
func Flatten(groups []MessageGroup) []Entry {
	var n int
	for _, grp := range groups {
		n += len(grp.Entries)
	}
	entries := make([]Entry, 0, n)
	for _, grp := range groups {
		entries = append(entries, grp.Entries...)
	}
	return entries
}
