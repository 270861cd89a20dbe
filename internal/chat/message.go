package chat

import (
	"strings"
	"time"
	"unicode"
	"unicode/utf8"
)

// PlaceholderAvatar is shown when an author has no avatar image
const PlaceholderAvatar = "/placeholder.svg"

// Author = display info of a message author
type Author struct {
	UserID    string  `json:"user_id"`
	Username  string  `json:"username"`   // display label, also the grouping key
	AvatarURL *string `json:"avatar_url"` // nil when the user never set one
}

// AvatarOrPlaceholder returns the avatar reference, falling back to the placeholder image
func (a *Author) AvatarOrPlaceholder() string {
	if a == nil {
		return PlaceholderAvatar
	}
	return avatarOrPlaceholder(a.AvatarURL)
}

// Initial returns the upper-cased first character of the username, "?" when empty
func (a *Author) Initial() string {
	if a == nil {
		return "?"
	}
	return initial(a.Username)
}

// Message = one chat message as kept in the channel view
// Author is nil when the author record could not be resolved.
type Message struct {
	ID        string    `json:"id"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
	Author    *Author   `json:"user"`
}

// Entry = the part of a message a group keeps
type Entry struct {
	ID        string    `json:"id"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// MessageGroup = contiguous run of one author's messages, rendered together
type MessageGroup struct {
	Username  string  `json:"username"`
	AvatarURL *string `json:"avatar_url"`
	Entries   []Entry `json:"messages"`
}

// Key returns a stable render key for the group
func (g MessageGroup) Key() string {
	if len(g.Entries) == 0 {
		return g.Username
	}
	return g.Username + "-" + g.Entries[0].ID
}

// Initial returns the avatar fallback letter of the group author
func (g MessageGroup) Initial() string {
	return initial(g.Username)
}

// AvatarOrPlaceholder returns the group avatar or the placeholder image
func (g MessageGroup) AvatarOrPlaceholder() string {
	return avatarOrPlaceholder(g.AvatarURL)
}

// Last returns the newest entry of the group
func (g MessageGroup) Last() Entry {
	return g.Entries[len(g.Entries)-1]
}

func avatarOrPlaceholder(url *string) string {
	if url == nil || strings.TrimSpace(*url) == "" {
		return PlaceholderAvatar
	}
	return *url
}

func initial(username string) string {
	r, _ := utf8.DecodeRuneInString(username)
	if r == utf8.RuneError {
		return "?"
	}
	return string(unicode.ToUpper(r))
}
