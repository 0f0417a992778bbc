package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite" // sqlite driver
)

// ErrNotFound is returned by KV.Get for a missing key and by Sessions.Get
// for a missing session.
var ErrNotFound = errors.New("storage: not found")

const (
	BackendFile     = "file"
	BackendSqlite   = "sqlite"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
)

// KV is a flat key/value store. Every Set replaces the whole value.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// Watcher is implemented by backends that can report writes made by
// other processes. The channel carries the changed key and is closed when
// ctx is done.
type Watcher interface {
	Watch(ctx context.Context) (<-chan string, error)
}

// Options selects and configures a KV backend.
type Options struct {
	Backend       string
	Path          string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	PostgresDSN   string
}

// Open builds the backend named by opts.Backend.
func Open(opts Options) (KV, error) {
	switch opts.Backend {
	case BackendFile, "":
		return NewFileKV(opts.Path)
	case BackendSqlite:
		if err := os.MkdirAll(opts.Path, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create storage directory: %w", err)
		}
		db, err := NewSqliteDB(filepath.Join(opts.Path, "ragdesk.db"))
		if err != nil {
			return nil, fmt.Errorf("failed to open sqlite database: %w", err)
		}
		return NewSqliteKV(db)
	case BackendRedis:
		return NewRedisKV(opts.RedisAddr, opts.RedisPassword, opts.RedisDB), nil
	case BackendPostgres:
		return NewPostgresKV(opts.PostgresDSN)
	case BackendMemory:
		return NewMemoryKV(), nil
	}
	return nil, fmt.Errorf("unknown storage backend %q", opts.Backend)
}

// NewSqliteDB creates a new sqlite database
func NewSqliteDB(file string) (*sqlx.DB, error) {
	return sqlx.Connect("sqlite", file)
}
