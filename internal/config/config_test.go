package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:8080/api", cfg.API.BaseURL)
	assert.Equal(t, "sqlite", cfg.Storage.Backend)
	assert.Equal(t, 100*time.Millisecond, cfg.Scanner.KeyTimeout.Std())
	assert.Equal(t, 50*time.Millisecond, cfg.Scanner.Debounce.Std())
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "okuma.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
api:
  base_url: https://erp.example.com/api
  timeout: 30s
storage:
  backend: redis
  redis:
    addr: cache:6379
scanner:
  key_timeout: 80ms
log:
  level: debug
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "https://erp.example.com/api", cfg.API.BaseURL)
	assert.Equal(t, 30*time.Second, cfg.API.Timeout.Std())
	assert.Equal(t, "redis", cfg.Storage.Backend)
	assert.Equal(t, "cache:6379", cfg.Storage.Redis.Addr)
	assert.Equal(t, 80*time.Millisecond, cfg.Scanner.KeyTimeout.Std())
	assert.Equal(t, 50*time.Millisecond, cfg.Scanner.Debounce.Std(), "omitted keys keep defaults")
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoadMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "okuma.yaml")
	require.NoError(t, os.WriteFile(path, []byte("api: ["), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("OKUMA_API_URL", "http://env.example.com")
	t.Setenv("OKUMA_STORAGE", "memory")
	t.Setenv("OKUMA_REDIS_DB", "3")
	t.Setenv("OKUMA_ENV", "development")

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "http://env.example.com", cfg.API.BaseURL)
	assert.Equal(t, "memory", cfg.Storage.Backend)
	assert.Equal(t, 3, cfg.Storage.Redis.DB)
	assert.True(t, cfg.Log.Development)
}

func TestEnvIntIgnoresGarbage(t *testing.T) {
	t.Setenv("OKUMA_REDIS_DB", "elma")

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 0, cfg.Storage.Redis.DB)
}
