package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/gennadis/ragdesk/internal/chat"
)

const (
	// SessionsKey holds the whole serialized session mapping.
	SessionsKey = "ragdesk_chats"
	// SnapshotVersion is the schema version written with every snapshot.
	SnapshotVersion = 1
)

// ErrUnsupportedVersion is returned for snapshots written by a newer client.
var ErrUnsupportedVersion = errors.New("storage: unsupported snapshot version")

// Snapshot is the complete persisted session mapping.
type Snapshot struct {
	Version int                      `json:"version"`
	Chats   map[string]*chat.Session `json:"chats"`
}

func newSnapshot() *Snapshot {
	return &Snapshot{Version: SnapshotVersion, Chats: make(map[string]*chat.Session)}
}

// decodeSnapshot accepts both the versioned envelope and the legacy bare
// id -> session mapping.
func decodeSnapshot(data []byte) (*Snapshot, error) {
	var probe struct {
		Version *int            `json:"version"`
		Chats   json.RawMessage `json:"chats"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot: %w", err)
	}

	snap := newSnapshot()
	if probe.Version == nil {
		if err := json.Unmarshal(data, &snap.Chats); err != nil {
			return nil, fmt.Errorf("failed to decode legacy snapshot: %w", err)
		}
		slog.Info("upgraded legacy session snapshot", slog.Int("count", len(snap.Chats)))
	} else {
		if *probe.Version > SnapshotVersion {
			return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, *probe.Version)
		}
		if len(probe.Chats) > 0 {
			if err := json.Unmarshal(probe.Chats, &snap.Chats); err != nil {
				return nil, fmt.Errorf("failed to decode snapshot chats: %w", err)
			}
		}
	}
	if snap.Chats == nil {
		snap.Chats = make(map[string]*chat.Session)
	}
	for id, s := range snap.Chats {
		if s == nil {
			delete(snap.Chats, id)
			continue
		}
		if s.ID == "" {
			s.ID = id
		}
	}
	return snap, nil
}

// Sessions is a storage for sessions
type Sessions struct {
	kv KV
	mu sync.Mutex
}

// NewSessions creates a new Sessions storage
func NewSessions(kv KV) *Sessions {
	return &Sessions{kv: kv}
}

func (s *Sessions) read(ctx context.Context) (*Snapshot, error) {
	data, err := s.kv.Get(ctx, SessionsKey)
	if errors.Is(err, ErrNotFound) {
		return newSnapshot(), nil
	}
	if err != nil {
		return nil, err
	}
	return decodeSnapshot(data)
}

func (s *Sessions) write(ctx context.Context, snap *Snapshot) error {
	snap.Version = SnapshotVersion
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}
	return s.kv.Set(ctx, SessionsKey, data)
}

// Get returns the session with the given id
func (s *Sessions) Get(ctx context.Context, id string) (*chat.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap, err := s.read(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get session %s: %w", id, err)
	}
	session, ok := snap.Chats[id]
	if !ok {
		return nil, ErrNotFound
	}
	return session.Clone(), nil
}

// Read returns all sessions, most recently saved first
func (s *Sessions) Read(ctx context.Context) ([]*chat.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap, err := s.read(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get sessions: %w", err)
	}
	sessions := make([]*chat.Session, 0, len(snap.Chats))
	for _, session := range snap.Chats {
		sessions = append(sessions, session.Clone())
	}
	sort.Slice(sessions, func(i, j int) bool {
		if sessions[i].Timestamp != sessions[j].Timestamp {
			return sessions[i].Timestamp > sessions[j].Timestamp
		}
		return sessions[i].ID < sessions[j].ID
	})

	slog.Debug("read sessions",
		slog.Int("count", len(sessions)),
	)
	return sessions, nil
}

// Upsert writes the session, replacing any entry with the same id
func (s *Sessions) Upsert(ctx context.Context, session *chat.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap, err := s.read(ctx)
	if err != nil {
		return fmt.Errorf("failed to upsert session %s: %w", session.ID, err)
	}
	snap.Chats[session.ID] = session.Clone()
	if err := s.write(ctx, snap); err != nil {
		return fmt.Errorf("failed to upsert session %s: %w", session.ID, err)
	}

	slog.Debug("session upserted",
		slog.String("id", session.ID),
		slog.String("title", session.Title),
		slog.Int("messages", len(session.Messages)),
		slog.Int("files", len(session.Files)),
	)
	return nil
}

// Delete deletes the given session by id from the storage. A missing id
// leaves the store untouched.
func (s *Sessions) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap, err := s.read(ctx)
	if err != nil {
		return fmt.Errorf("failed to delete session %s: %w", id, err)
	}
	if _, ok := snap.Chats[id]; !ok {
		return nil
	}
	delete(snap.Chats, id)
	if err := s.write(ctx, snap); err != nil {
		return fmt.Errorf("failed to delete session %s: %w", id, err)
	}

	slog.Debug("session deleted from sessions",
		slog.String("id", id),
	)
	return nil
}
