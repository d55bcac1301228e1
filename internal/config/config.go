package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"git.sr.ht/~jakintosh/authclient/pkg/client"
	"git.sr.ht/~jakintosh/authclient/pkg/store"
	"gopkg.in/yaml.v3"
)

const DefaultBaseURL = "http://localhost:3333"

// Environment variables that override the config file.
const (
	EnvConfig      = "AUTHCLIENT_CONFIG"
	EnvBaseURL     = "AUTHCLIENT_BASE_URL"
	EnvStore       = "AUTHCLIENT_STORE"
	EnvStorePath   = "AUTHCLIENT_STORE_PATH"
	EnvRedisAddr   = "AUTHCLIENT_REDIS_ADDR"
	EnvRedisPrefix = "AUTHCLIENT_REDIS_PREFIX"
	EnvLogLevel    = "AUTHCLIENT_LOG_LEVEL"
)

// Config is the command-line client configuration.
type Config struct {
	BaseURL        string        `yaml:"base-url"`
	LogLevel       string        `yaml:"log-level"`
	Timeout        time.Duration `yaml:"timeout"`
	RefreshTimeout time.Duration `yaml:"refresh-timeout"`
	Store          StoreConfig   `yaml:"store"`
}

type StoreConfig struct {
	Kind        string `yaml:"kind"`
	Path        string `yaml:"path"`
	RedisAddr   string `yaml:"redis-addr"`
	RedisPrefix string `yaml:"redis-prefix"`
}

// Default keeps tokens in a file next to the config.
func Default(dir string) *Config {
	return &Config{
		BaseURL:        DefaultBaseURL,
		LogLevel:       client.LogLevelDefault.String(),
		RefreshTimeout: client.DefaultRefreshTimeout,
		Store: StoreConfig{
			Kind: store.KindFile,
			Path: filepath.Join(dir, "tokens.json"),
		},
	}
}

// Dir returns the directory holding the config and file-based stores.
func Dir() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user config directory: %w", err)
	}
	return filepath.Join(dir, "authclient"), nil
}

// Path returns the config file path, honoring AUTHCLIENT_CONFIG.
func Path() (string, error) {
	if path := os.Getenv(EnvConfig); path != "" {
		return path, nil
	}
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// Load reads the config at path over the defaults. A missing file yields
// the defaults.
func Load(path string) (*Config, error) {
	cfg := Default(filepath.Dir(path))

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	return cfg, nil
}

// Save writes the config to path.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// ApplyEnv overrides fields from environment variables that are set.
func (c *Config) ApplyEnv(getenv func(string) string) {
	set := func(dst *string, key string) {
		if v := getenv(key); v != "" {
			*dst = v
		}
	}
	set(&c.BaseURL, EnvBaseURL)
	set(&c.LogLevel, EnvLogLevel)
	set(&c.Store.Kind, EnvStore)
	set(&c.Store.Path, EnvStorePath)
	set(&c.Store.RedisAddr, EnvRedisAddr)
	set(&c.Store.RedisPrefix, EnvRedisPrefix)
}

// Validate checks the fields a client cannot start without.
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("base-url is required")
	}
	if _, err := client.ParseLogLevel(c.LogLevel); err != nil {
		return err
	}
	switch c.Store.Kind {
	case store.KindMemory, store.KindFile, store.KindSQLite, store.KindRedis:
	default:
		return fmt.Errorf("%w: %q", store.ErrUnknownKind, c.Store.Kind)
	}
	return nil
}

func (c *Config) StoreOptions() store.Options {
	return store.Options{
		Kind:        c.Store.Kind,
		Path:        c.Store.Path,
		RedisAddr:   c.Store.RedisAddr,
		RedisPrefix: c.Store.RedisPrefix,
	}
}
