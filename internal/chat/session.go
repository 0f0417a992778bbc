package chat

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

const (
	DefaultTitle   = "New Chat"
	titleMaxLength = 35
	titleEllipsis  = "..."
)

// Session represents a chat session
type Session struct {
	ID        string        `json:"id"`
	Title     string        `json:"title"`
	Timestamp int64         `json:"timestamp"`
	Messages  []ChatMessage `json:"messages"`
	Files     []File        `json:"files"`
}

// NewSession creates a new empty Session instance
func NewSession() *Session {
	return &Session{
		ID:       uuid.NewString(),
		Title:    DefaultTitle,
		Messages: []ChatMessage{},
		Files:    []File{},
	}
}

// Empty reports whether the session has neither messages nor files.
func (s *Session) Empty() bool {
	return len(s.Messages) == 0 && len(s.Files) == 0
}

// Touch derives the title and stamps the save time.
func (s *Session) Touch(now time.Time) {
	s.Title = DeriveTitle(s.Messages, s.Files)
	s.Timestamp = now.UnixMilli()
}

// Clone returns a deep copy safe to hand out of a lock.
func (s *Session) Clone() *Session {
	out := *s
	out.Messages = append([]ChatMessage{}, s.Messages...)
	out.Files = append([]File{}, s.Files...)
	return &out
}

// SavedAt returns the last save time.
func (s *Session) SavedAt() time.Time {
	return time.UnixMilli(s.Timestamp)
}

// DeriveTitle names a session after its first user message, or after its
// attachments when nobody has spoken yet.
func DeriveTitle(messages []ChatMessage, files []File) string {
	for _, m := range messages {
		if m.Role != ChatRoleUser {
			continue
		}
		runes := []rune(m.Content)
		if len(runes) > titleMaxLength {
			return string(runes[:titleMaxLength]) + titleEllipsis
		}
		return m.Content
	}
	switch n := len(files); {
	case n == 1:
		return "Chat with 1 file"
	case n > 1:
		return fmt.Sprintf("Chat with %d files", n)
	}
	return DefaultTitle
}
