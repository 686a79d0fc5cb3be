// internal/common/config/loader_test.go
package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "application-tracker/internal/common/errors"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadFromFile_Defaults(t *testing.T) {
	path := writeConfig(t, `
api:
  base_url: https://jobs.example.com/api/
storage:
  driver: memory
`)

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, "https://jobs.example.com/api", cfg.API.BaseURL)
	assert.Equal(t, 15000, cfg.API.Timeout)
	assert.Equal(t, "session", cfg.API.CookieName)
	assert.Equal(t, "job-applications", cfg.Storage.Key)
	assert.True(t, cfg.Sync.Enabled)
	assert.True(t, cfg.Sync.FetchOnStart)
	assert.False(t, cfg.Sync.StrictTransitions)
	assert.Equal(t, 10000, cfg.Sync.RequestTimeout)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "stderr", cfg.Logging.Output)
	assert.Equal(t, "application-tracker", cfg.Telemetry.ServiceName)
}

func TestLoadFromFile_EnvOverrides(t *testing.T) {
	path := writeConfig(t, `
api:
  base_url: https://jobs.example.com/api
  session_cookie: ${TEST_TRACKER_SESSION}
storage:
  driver: redis
  redis:
    address: localhost:6379
`)
	t.Setenv("TEST_TRACKER_SESSION", "abc123")
	t.Setenv("SYNC_STRICT_TRANSITIONS", "true")
	t.Setenv("REDIS_PASSWORD", "hunter2")

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, "abc123", cfg.API.SessionCookie)
	assert.True(t, cfg.Sync.StrictTransitions)
	assert.Equal(t, "hunter2", cfg.Storage.Redis.Password)
	assert.Equal(t, "tracker:", cfg.Storage.Redis.KeyPrefix)
}

func TestLoadFromFile_SyncDisabledNeedsNoBaseURL(t *testing.T) {
	path := writeConfig(t, `
sync:
  enabled: false
storage:
  driver: file
  file:
    dir: /tmp/tracker
`)

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.False(t, cfg.Sync.Enabled)
	assert.Equal(t, "/tmp/tracker", cfg.Storage.File.Dir)
}

func TestLoadFromFile_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr string
	}{
		{
			name:    "missing base url",
			body:    "storage:\n  driver: memory\n",
			wantErr: "api.base_url is required",
		},
		{
			name:    "unknown driver",
			body:    "sync:\n  enabled: false\nstorage:\n  driver: sqlite\n",
			wantErr: "not supported",
		},
		{
			name:    "redis without address",
			body:    "sync:\n  enabled: false\nstorage:\n  driver: redis\n",
			wantErr: "storage.redis.address is required",
		},
		{
			name:    "postgres without host",
			body:    "sync:\n  enabled: false\nstorage:\n  driver: postgres\n",
			wantErr: "storage.postgres.host is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("TRACKER_API_URL", "")
			_, err := LoadFromFile(writeConfig(t, tt.body))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
			assert.Equal(t, apperrors.ErrCodeConfigInvalid, apperrors.CodeOf(err))
		})
	}
}

func TestLoadFromFile_MissingFile(t *testing.T) {
	_, err := LoadFromFile(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestPostgresConfig_GetDSN(t *testing.T) {
	p := PostgresConfig{Host: "db", Port: 5432, User: "u", Password: "p", Database: "tracker", SSLMode: "disable"}
	assert.Equal(t, "host=db port=5432 user=u password=p dbname=tracker sslmode=disable", p.GetDSN())
}

func TestGetDuration(t *testing.T) {
	assert.Equal(t, 1500*time.Millisecond, GetDuration(1500))
}
