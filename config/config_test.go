package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_EmptyPathReturnsDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:8000", cfg.Server.Addr())
	assert.Equal(t, 2000, cfg.Dispatch.MaxMessageLength)
	assert.Equal(t, 120*time.Second, cfg.Dispatch.ExecuteTimeout.Std())
	assert.Equal(t, 1000, cfg.Sessions.MaxSessions)
	assert.Equal(t, "mock", cfg.Model.Provider)
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestLoad_FileOverlaysDefaults(t *testing.T) {
	path := writeConfigFile(t, `
server:
  port: 9000
dispatch:
  execute_timeout: 90s
sessions:
  max_sessions: 50
  idle_ttl: 30m
model:
  provider: anthropic
  name: claude-sonnet-4-20250514
logging:
  level: debug
  format: text
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, "0.0.0.0", cfg.Server.Host, "unset fields keep their defaults")
	assert.Equal(t, 90*time.Second, cfg.Dispatch.ExecuteTimeout.Std())
	assert.Equal(t, 50, cfg.Sessions.MaxSessions)
	assert.Equal(t, 30*time.Minute, cfg.Sessions.IdleTTL.Std())
	assert.Equal(t, "anthropic", cfg.Model.Provider)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoad_EnvironmentOverridesFile(t *testing.T) {
	path := writeConfigFile(t, `
model:
  api_key: file-key
`)
	t.Setenv("DATAR_MODEL_API_KEY", "env-key")
	t.Setenv("DATAR_HOST", "127.0.0.1")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "env-key", cfg.Model.APIKey)
	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
}

func TestLoad_RejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"bad port", "server:\n  port: 70000\n"},
		{"bad provider", "model:\n  provider: cohere\n"},
		{"bad duration", "dispatch:\n  execute_timeout: soon\n"},
		{"non-positive message cap", "dispatch:\n  max_message_length: 0\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfigFile(t, tt.yaml))
			assert.Error(t, err)
		})
	}
}

func TestLoad_MissingFileFails(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
