package models

import (
	"time"

	"github.com/google/uuid"
)

// Role represents the author of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

const (
	// DefaultTitle is the placeholder title of a chat nobody has written in yet.
	DefaultTitle = "New Chat"
	// TitleMaxLen is the number of characters kept when a title is derived from content.
	TitleMaxLen = 40
	Ellipsis    = "…"
)

// Message is one turn in a conversation. Messages are immutable once created.
type Message struct {
	ID        string    `json:"id"`
	ChatID    string    `json:"chatId"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}

// Chat is a conversation. Messages are append-only and kept in chronological order.
type Chat struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
	Messages  []Message `json:"messages"`
}

// NewID returns a random version 4 UUID string.
func NewID() string {
	return uuid.NewString()
}

// Now returns the current time in UTC at millisecond precision, which is
// what survives a round trip through the ISO-8601 wire format.
func Now() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}

// NewChat returns an empty chat with the placeholder title.
func NewChat(now time.Time) Chat {
	return Chat{
		ID:        NewID(),
		Title:     DefaultTitle,
		CreatedAt: now,
		UpdatedAt: now,
		Messages:  []Message{},
	}
}

// NewMessage builds a message for chatID stamped with the current time.
func NewMessage(chatID string, role Role, content string) Message {
	return Message{
		ID:        NewID(),
		ChatID:    chatID,
		Role:      role,
		Content:   content,
		CreatedAt: Now(),
	}
}

// Clone returns a copy of c that shares no message storage with it.
func (c Chat) Clone() Chat {
	out := c
	out.Messages = make([]Message, len(c.Messages))
	copy(out.Messages, c.Messages)
	return out
}

// WithMessage returns a copy of c with m appended and UpdatedAt moved to m.CreatedAt.
func (c Chat) WithMessage(m Message) Chat {
	out := c
	out.Messages = make([]Message, len(c.Messages), len(c.Messages)+1)
	copy(out.Messages, c.Messages)
	out.Messages = append(out.Messages, m)
	out.UpdatedAt = m.CreatedAt
	return out
}

// Truncate shortens s to n characters, marking the cut with an ellipsis.
func Truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + Ellipsis
}

// DeriveTitle returns the title a chat should have after content is sent to it.
// Only the placeholder title is replaced.
func DeriveTitle(current, content string) string {
	if current != DefaultTitle {
		return current
	}
	return Truncate(content, TitleMaxLen)
}
