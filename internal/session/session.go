package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gennadis/ragdesk/internal/chat"
	"github.com/gennadis/ragdesk/storage"
)

// Store is the narrow persistence surface the manager needs.
type Store interface {
	Get(ctx context.Context, id string) (*chat.Session, error)
	Read(ctx context.Context) ([]*chat.Session, error)
	Upsert(ctx context.Context, session *chat.Session) error
	Delete(ctx context.Context, id string) error
}

type Option func(*Manager)

// WithClock overrides the clock used to stamp saved sessions.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		m.now = now
	}
}

// Manager owns the single active session and keeps the store in step
// with it.
type Manager struct {
	mu     sync.Mutex
	store  Store
	active *chat.Session
	now    func() time.Time
}

// NewManager creates a Manager with a fresh, unsaved active session
func NewManager(store Store, opts ...Option) *Manager {
	m := &Manager{
		store:  store,
		active: chat.NewSession(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Active returns a copy of the active session
func (m *Manager) Active() *chat.Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active.Clone()
}

// ActiveID returns the id of the active session
func (m *Manager) ActiveID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active.ID
}

// StartNewChat replaces the active session with an empty one. Nothing is
// written until the new session gets a message or a file.
func (m *Manager) StartNewChat() *chat.Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.active = chat.NewSession()

	slog.Debug("new chat started", slog.String("id", m.active.ID))
	return m.active.Clone()
}

// LoadChat makes the stored session with the given id active. It reports
// false, without error, when the id is unknown.
func (m *Manager) LoadChat(ctx context.Context, id string) (bool, error) {
	stored, err := m.store.Get(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		slog.Debug("load of unknown chat ignored", slog.String("id", id))
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to load chat %s: %w", id, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.active = stored

	slog.Debug("chat loaded",
		slog.String("id", id),
		slog.Int("messages", len(stored.Messages)),
		slog.Int("files", len(stored.Files)),
	)
	return true, nil
}

// SaveChat persists the active session unless it is empty
func (m *Manager) SaveChat(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saveLocked(ctx)
}

func (m *Manager) saveLocked(ctx context.Context) error {
	if m.active.Empty() {
		return nil
	}
	m.active.Touch(m.now())
	if err := m.store.Upsert(ctx, m.active); err != nil {
		return fmt.Errorf("failed to save chat %s: %w", m.active.ID, err)
	}
	return nil
}

// DeleteChat removes the session from the store. When it was the active
// session a new chat is started; the returned flag reports that.
func (m *Manager) DeleteChat(ctx context.Context, id string) (bool, error) {
	if err := m.store.Delete(ctx, id); err != nil {
		return false, fmt.Errorf("failed to delete chat %s: %w", id, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active.ID != id {
		return false, nil
	}
	m.active = chat.NewSession()

	slog.Debug("active chat deleted, new chat started",
		slog.String("deleted", id),
		slog.String("id", m.active.ID),
	)
	return true, nil
}

// ListChats returns all saved sessions, most recently saved first
func (m *Manager) ListChats(ctx context.Context) ([]*chat.Session, error) {
	sessions, err := m.store.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list chats: %w", err)
	}
	return sessions, nil
}

// AppendMessage adds a message to the active session and saves it
func (m *Manager) AppendMessage(ctx context.Context, msg chat.ChatMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.active.Messages = append(m.active.Messages, msg)
	return m.saveLocked(ctx)
}

// AttachFile adds a file reference to the active session and saves it
func (m *Manager) AttachFile(ctx context.Context, file chat.File) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.active.Files = append(m.active.Files, file)
	return m.saveLocked(ctx)
}

// DetachFile drops the file reference at index from the active session.
// The document itself stays on the service. An out of range index is
// reported as not removed.
func (m *Manager) DetachFile(ctx context.Context, index int) (chat.File, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if index < 0 || index >= len(m.active.Files) {
		return chat.File{}, false, nil
	}
	removed := m.active.Files[index]
	m.active.Files = append(m.active.Files[:index:index], m.active.Files[index+1:]...)
	if err := m.saveLocked(ctx); err != nil {
		return removed, true, err
	}
	return removed, true, nil
}
