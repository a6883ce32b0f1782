package main

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

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("GAME_API_BASE_URL", "http://engine.local/api")
	t.Setenv("CSRF_TOKEN", "token-1")
	t.Setenv("PRECOMPUTE_POLL_INTERVAL", "5s")
	t.Setenv("NATS_URL", "nats://bus:4222")

	config, err := loadConfig("")
	require.NoError(t, err)

	assert.Equal(t, "http://engine.local/api", config.GameAPIBaseURL)
	assert.Equal(t, "token-1", config.CSRFToken)
	assert.Equal(t, 5*time.Second, config.PrecomputePollInterval)
	assert.Equal(t, "nats://bus:4222", config.NATS.URL)
}

func TestEnvOverridesConfigFile(t *testing.T) {
	path := writeConfigFile(t, `
game_api_base_url: http://from-file/api
precompute_poll_interval: 2s
http_timeout: 15s
nats:
  subject_prefix: county
`)
	t.Setenv("GAME_API_BASE_URL", "http://from-env/api")

	config, err := loadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "http://from-env/api", config.GameAPIBaseURL)
	assert.Equal(t, 2*time.Second, config.PrecomputePollInterval)
	assert.Equal(t, 15*time.Second, config.HTTPTimeout)
	assert.Equal(t, "county", config.NATS.SubjectPrefix)
}

func TestDefaultsApply(t *testing.T) {
	config := defaultConfig()
	assert.Equal(t, 3*time.Second, config.PrecomputePollInterval)
	assert.Equal(t, "governor", config.NATS.SubjectPrefix)
	assert.Empty(t, config.NATS.URL)
}

func TestLoadConfigRequiresBaseURL(t *testing.T) {
	path := writeConfigFile(t, "log_level: debug\n")
	t.Setenv("GAME_API_BASE_URL", "")

	_, err := loadConfig(path)
	assert.ErrorContains(t, err, "GAME_API_BASE_URL is required")
}

func TestLoadConfigRejectsBadValues(t *testing.T) {
	path := writeConfigFile(t, `
game_api_base_url: http://engine/api
log_level: loud
`)
	t.Setenv("GAME_API_BASE_URL", "")
	t.Setenv("LOG_LEVEL", "")

	_, err := loadConfig(path)
	assert.ErrorContains(t, err, "invalid log level")
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := loadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "failed to read config file")
}
