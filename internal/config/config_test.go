package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gennadis/ragdesk/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadFromFile(t *testing.T) {
	path := writeConfig(t, `
serviceURL: https://rag.example.com
requestTimeout: 45s
storeBackend: redis
redisAddr: 127.0.0.1:6379
maxParallelUploads: 3
logLevel: debug
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "https://rag.example.com", cfg.ServiceURL)
	assert.Equal(t, 45*time.Second, cfg.Timeout())
	assert.Equal(t, storage.BackendRedis, cfg.StoreBackend)
	assert.Equal(t, 3, cfg.MaxParallelUploads)
	assert.Equal(t, "debug", cfg.LogLevel)

	opts := cfg.StorageOptions()
	assert.Equal(t, "127.0.0.1:6379", opts.RedisAddr)
	assert.Equal(t, storage.BackendRedis, opts.Backend)
}

func TestEnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "serviceURL: https://file.example.com\n")
	t.Setenv("RAGDESK_SERVICE_URL", "https://env.example.com")
	t.Setenv("RAGDESK_MAX_PARALLEL_UPLOADS", "2")
	t.Setenv("RAGDESK_STORE_BACKEND", "memory")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "https://env.example.com", cfg.ServiceURL)
	assert.Equal(t, 2, cfg.MaxParallelUploads)
	assert.Equal(t, storage.BackendMemory, cfg.StoreBackend)
}

func TestConfigPathFromEnv(t *testing.T) {
	path := writeConfig(t, "serviceURL: https://named.example.com\n")
	t.Setenv("RAGDESK_CONFIG", path)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "https://named.example.com", cfg.ServiceURL)
}

func TestMissingExplicitFileFails(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestMissingDefaultFileUsesDefaults(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("HOME", t.TempDir())
	t.Setenv("RAGDESK_CONFIG", "")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, defaultServiceURL, cfg.ServiceURL)
	assert.Equal(t, 1, cfg.MaxParallelUploads)
	assert.Equal(t, storage.BackendFile, cfg.StoreBackend)
}

func TestValidateConfig(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"relative service url", func(c *Config) { c.ServiceURL = "localhost" }},
		{"bad timeout", func(c *Config) { c.RequestTimeout = "soon" }},
		{"zero timeout", func(c *Config) { c.RequestTimeout = "0s" }},
		{"no parallelism", func(c *Config) { c.MaxParallelUploads = 0 }},
		{"redis without addr", func(c *Config) { c.StoreBackend = storage.BackendRedis }},
		{"postgres without dsn", func(c *Config) { c.StoreBackend = storage.BackendPostgres }},
		{"file without path", func(c *Config) { c.StorePath = " " }},
		{"unknown backend", func(c *Config) { c.StoreBackend = "tape" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			assert.Error(t, validateConfig(cfg))
		})
	}

	assert.NoError(t, validateConfig(Default()))
}
