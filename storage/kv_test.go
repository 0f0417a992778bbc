package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func kvBackends(t *testing.T) map[string]KV {
	t.Helper()

	fileKV, err := NewFileKV(t.TempDir())
	require.NoError(t, err)

	db, err := NewSqliteDB(filepath.Join(t.TempDir(), "kv.db"))
	require.NoError(t, err)
	sqliteKV, err := NewSqliteKV(db)
	require.NoError(t, err)

	redis := miniredis.RunT(t)
	redisKV := NewRedisKV(redis.Addr(), "", 0)

	backends := map[string]KV{
		"memory": NewMemoryKV(),
		"file":   fileKV,
		"sqlite": sqliteKV,
		"redis":  redisKV,
	}
	if dsn := os.Getenv("RAGDESK_TEST_POSTGRES_DSN"); dsn != "" {
		pgKV, err := NewPostgresKV(dsn)
		require.NoError(t, err)
		backends["postgres"] = pgKV
	}
	for _, kv := range backends {
		kv := kv
		t.Cleanup(func() { _ = kv.Close() })
	}
	return backends
}

func TestKVContract(t *testing.T) {
	ctx := context.Background()
	for name, kv := range kvBackends(t) {
		t.Run(name, func(t *testing.T) {
			key := "contract_" + name

			_, err := kv.Get(ctx, key)
			assert.ErrorIs(t, err, ErrNotFound)

			require.NoError(t, kv.Set(ctx, key, []byte(`{"a":1}`)))
			got, err := kv.Get(ctx, key)
			require.NoError(t, err)
			assert.Equal(t, `{"a":1}`, string(got))

			require.NoError(t, kv.Set(ctx, key, []byte(`{"a":2}`)))
			got, err = kv.Get(ctx, key)
			require.NoError(t, err)
			assert.Equal(t, `{"a":2}`, string(got))

			require.NoError(t, kv.Delete(ctx, key))
			_, err = kv.Get(ctx, key)
			assert.ErrorIs(t, err, ErrNotFound)

			// deleting twice is fine
			require.NoError(t, kv.Delete(ctx, key))
		})
	}
}

func TestFileKVLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	kv, err := NewFileKV(dir)
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		require.NoError(t, kv.Set(context.Background(), "k", []byte("v")))
	}
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "k.json", entries[0].Name())
}

func TestFileKVRequiresDirectory(t *testing.T) {
	_, err := NewFileKV("  ")
	assert.Error(t, err)
}

func TestFileKVWatchReportsExternalWrites(t *testing.T) {
	dir := t.TempDir()
	watched, err := NewFileKV(dir)
	require.NoError(t, err)
	other, err := NewFileKV(dir)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	changes, err := watched.Watch(ctx)
	require.NoError(t, err)

	require.NoError(t, other.Set(context.Background(), SessionsKey, []byte("{}")))

	deadline := time.After(5 * time.Second)
	for {
		select {
		case key := <-changes:
			if key == SessionsKey {
				cancel()
				for range changes {
				}
				return
			}
		case <-deadline:
			t.Fatal("no change reported")
		}
	}
}

func TestOpenBackends(t *testing.T) {
	kv, err := Open(Options{Backend: BackendMemory})
	require.NoError(t, err)
	assert.IsType(t, &MemoryKV{}, kv)

	kv, err = Open(Options{Path: t.TempDir()})
	require.NoError(t, err)
	assert.IsType(t, &FileKV{}, kv)

	kv, err = Open(Options{Backend: BackendSqlite, Path: t.TempDir()})
	require.NoError(t, err)
	assert.IsType(t, &SqliteKV{}, kv)
	require.NoError(t, kv.Close())

	_, err = Open(Options{Backend: "floppy"})
	assert.Error(t, err)

	_, err = Open(Options{Backend: BackendPostgres})
	assert.Error(t, err)
}

func TestThemes(t *testing.T) {
	ctx := context.Background()
	themes := NewThemes(NewMemoryKV())

	name, err := themes.Read(ctx)
	require.NoError(t, err)
	assert.Empty(t, name)

	require.NoError(t, themes.Write(ctx, "cool-gray"))
	name, err = themes.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, "cool-gray", name)

	require.NoError(t, themes.Clear(ctx))
	name, err = themes.Read(ctx)
	require.NoError(t, err)
	assert.Empty(t, name)
}
