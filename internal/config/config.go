// Package config loads terminal configuration from a YAML file with
// environment overrides. A .env file next to the binary is honored.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Duration is a time.Duration readable from YAML as "30s", "80ms" etc.
// Bare numbers count as nanoseconds.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err == nil {
		parsed, err := time.ParseDuration(s)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", s, err)
		}
		*d = Duration(parsed)
		return nil
	}
	var n int64
	if err := node.Decode(&n); err != nil {
		return fmt.Errorf("invalid duration value")
	}
	*d = Duration(n)
	return nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Config is the full terminal configuration.
type Config struct {
	API     APIConfig     `yaml:"api"`
	Storage StorageConfig `yaml:"storage"`
	Scanner ScannerConfig `yaml:"scanner"`
	Log     LogConfig     `yaml:"log"`
}

// APIConfig points at the backend inventory API.
type APIConfig struct {
	BaseURL string        `yaml:"base_url"`
	Timeout Duration `yaml:"timeout"`
}

// StorageConfig selects the durable local store.
type StorageConfig struct {
	// Backend is "sqlite" (default), "redis" or "memory".
	Backend string `yaml:"backend"`

	// SQLitePath is the database file for the sqlite backend.
	SQLitePath string `yaml:"sqlite_path"`

	Redis RedisConfig `yaml:"redis"`
}

// RedisConfig configures the optional shared backend.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Prefix   string `yaml:"prefix"`
}

// ScannerConfig tunes the barcode decoder.
type ScannerConfig struct {
	KeyTimeout Duration `yaml:"key_timeout"`
	Debounce   Duration `yaml:"debounce"`
}

// LogConfig tunes diagnostics output.
type LogConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

// Default returns the configuration used when no file exists.
func Default() Config {
	home, _ := os.UserHomeDir()
	return Config{
		API: APIConfig{
			BaseURL: "http://localhost:8080/api",
			Timeout: Duration(15 * time.Second),
		},
		Storage: StorageConfig{
			Backend:    "sqlite",
			SQLitePath: filepath.Join(home, ".okuma", "okuma.db"),
			Redis: RedisConfig{
				Addr:   "localhost:6379",
				Prefix: "okuma:",
			},
		},
		Scanner: ScannerConfig{
			KeyTimeout: Duration(100 * time.Millisecond),
			Debounce:   Duration(50 * time.Millisecond),
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads the config file at path (defaults applied for anything the
// file omits), then applies environment overrides. A missing file is not
// an error; a malformed one is.
func Load(path string) (Config, error) {
	// Optional .env for local development.
	_ = godotenv.Load()

	cfg := Default()

	if path == "" {
		path = getEnv("OKUMA_CONFIG", defaultConfigPath())
	}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	case os.IsNotExist(err):
		// defaults + env only
	default:
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}

	cfg.API.BaseURL = getEnv("OKUMA_API_URL", cfg.API.BaseURL)
	cfg.Storage.Backend = getEnv("OKUMA_STORAGE", cfg.Storage.Backend)
	cfg.Storage.SQLitePath = getEnv("OKUMA_SQLITE_PATH", cfg.Storage.SQLitePath)
	cfg.Storage.Redis.Addr = getEnv("OKUMA_REDIS_ADDR", cfg.Storage.Redis.Addr)
	cfg.Storage.Redis.Password = getEnv("OKUMA_REDIS_PASSWORD", cfg.Storage.Redis.Password)
	cfg.Storage.Redis.DB = getEnvInt("OKUMA_REDIS_DB", cfg.Storage.Redis.DB)
	cfg.Log.Level = getEnv("OKUMA_LOG_LEVEL", cfg.Log.Level)
	cfg.Log.Development = getEnv("OKUMA_ENV", "") == "development" || cfg.Log.Development

	return cfg, nil
}

func defaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "okuma.yaml"
	}
	return filepath.Join(home, ".okuma", "okuma.yaml")
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return n
}
