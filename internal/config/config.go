package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gennadis/ragdesk/storage"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	defaultServiceURL         = "http://localhost:8000"
	defaultRequestTimeout     = "2m"
	defaultMaxParallelUploads = 1
	defaultLogLevel           = "info"
	appDirName                = "ragdesk"
	configFileName            = "config.yaml"
)

// Config is the resolved client configuration.
type Config struct {
	ServiceURL         string `yaml:"serviceURL"`
	RequestTimeout     string `yaml:"requestTimeout"`
	StoreBackend       string `yaml:"storeBackend"`
	StorePath          string `yaml:"storePath"`
	RedisAddr          string `yaml:"redisAddr"`
	RedisPassword      string `yaml:"redisPassword"`
	RedisDB            int    `yaml:"redisDB"`
	PostgresDSN        string `yaml:"postgresDSN"`
	MaxParallelUploads int    `yaml:"maxParallelUploads"`
	LogLevel           string `yaml:"logLevel"`
	LogFile            string `yaml:"logFile"`
}

// Default returns the configuration used when nothing else is set.
func Default() Config {
	dataDir := defaultDataDir()
	return Config{
		ServiceURL:         defaultServiceURL,
		RequestTimeout:     defaultRequestTimeout,
		StoreBackend:       storage.BackendFile,
		StorePath:          dataDir,
		MaxParallelUploads: defaultMaxParallelUploads,
		LogLevel:           defaultLogLevel,
		LogFile:            filepath.Join(dataDir, "ragdesk.log"),
	}
}

// DefaultPath is where Load looks for a config file when none is named.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return configFileName
	}
	return filepath.Join(dir, appDirName, configFileName)
}

func defaultDataDir() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "." + appDirName
	}
	return filepath.Join(dir, appDirName)
}

// Load resolves configuration in order: defaults, YAML file, .env, then
// RAGDESK_* environment variables. An explicitly named file must exist;
// the default file is optional.
func Load(path string) (Config, error) {
	cfg := Default()

	_ = godotenv.Load(".env")

	explicit := true
	if path == "" {
		path = os.Getenv("RAGDESK_CONFIG")
	}
	if path == "" {
		path = DefaultPath()
		explicit = false
	}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config: %w", err)
		}
	case errors.Is(err, fs.ErrNotExist) && !explicit:
	default:
		return cfg, fmt.Errorf("read config: %w", err)
	}

	applyEnv(&cfg)
	if err := validateConfig(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("RAGDESK_SERVICE_URL"); v != "" {
		cfg.ServiceURL = strings.TrimSpace(v)
	}
	if v := os.Getenv("RAGDESK_REQUEST_TIMEOUT"); v != "" {
		cfg.RequestTimeout = strings.TrimSpace(v)
	}
	if v := os.Getenv("RAGDESK_STORE_BACKEND"); v != "" {
		cfg.StoreBackend = strings.TrimSpace(v)
	}
	if v := os.Getenv("RAGDESK_STORE_PATH"); v != "" {
		cfg.StorePath = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.RedisAddr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.RedisPassword = v
	}
	if v := os.Getenv("REDIS_DB"); v != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			cfg.RedisDB = n
		}
	}
	if v := os.Getenv("RAGDESK_POSTGRES_DSN"); v != "" {
		cfg.PostgresDSN = v
	}
	if v := os.Getenv("RAGDESK_MAX_PARALLEL_UPLOADS"); v != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			cfg.MaxParallelUploads = n
		}
	}
	if v := os.Getenv("RAGDESK_LOG_LEVEL"); v != "" {
		cfg.LogLevel = strings.TrimSpace(v)
	}
	if v := os.Getenv("RAGDESK_LOG_FILE"); v != "" {
		cfg.LogFile = v
	}
}

func validateConfig(cfg Config) error {
	u, err := url.Parse(cfg.ServiceURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("config: serviceURL %q must be an absolute URL", cfg.ServiceURL)
	}
	if _, err := ParseTimeout(cfg.RequestTimeout); err != nil {
		return err
	}
	if cfg.MaxParallelUploads < 1 {
		return errors.New("config: maxParallelUploads must be >= 1")
	}
	switch cfg.StoreBackend {
	case storage.BackendFile, storage.BackendSqlite:
		if strings.TrimSpace(cfg.StorePath) == "" {
			return fmt.Errorf("config: storePath is required for the %s backend", cfg.StoreBackend)
		}
	case storage.BackendRedis:
		if strings.TrimSpace(cfg.RedisAddr) == "" {
			return errors.New("config: redisAddr is required for the redis backend (set in config.yaml or REDIS_ADDR)")
		}
	case storage.BackendPostgres:
		if strings.TrimSpace(cfg.PostgresDSN) == "" {
			return errors.New("config: postgresDSN is required for the postgres backend (set in config.yaml or RAGDESK_POSTGRES_DSN)")
		}
	case storage.BackendMemory:
	default:
		return fmt.Errorf("config: unknown storeBackend %q", cfg.StoreBackend)
	}
	return nil
}

// ParseTimeout parses the request timeout duration string.
func ParseTimeout(s string) (time.Duration, error) {
	dur, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid requestTimeout duration: %w", err)
	}
	if dur <= 0 {
		return 0, errors.New("config: requestTimeout must be positive")
	}
	return dur, nil
}

// Timeout returns the validated request timeout.
func (c Config) Timeout() time.Duration {
	dur, err := ParseTimeout(c.RequestTimeout)
	if err != nil {
		dur, _ = time.ParseDuration(defaultRequestTimeout)
	}
	return dur
}

// StorageOptions maps the store settings onto storage.Options.
func (c Config) StorageOptions() storage.Options {
	return storage.Options{
		Backend:       c.StoreBackend,
		Path:          c.StorePath,
		RedisAddr:     c.RedisAddr,
		RedisPassword: c.RedisPassword,
		RedisDB:       c.RedisDB,
		PostgresDSN:   c.PostgresDSN,
	}
}
