package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/robalyx/vaultstats/internal/setup/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearEnv blanks every variable LoadConfig reads so the host environment
// cannot leak into a test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"VAULTWARDEN_URL", "ADMIN_TOKEN", "VAULTSTATS_REQUEST_TIMEOUT", "CACHE_TIMEOUT",
		"VAULTSTATS_HOST", "VAULTSTATS_PORT", "VAULTSTATS_LOG_LEVEL",
	} {
		t.Setenv(key, "")
	}
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, config.FileName), []byte(content), 0o600))
	return dir
}

func TestLoadConfigDefaults(t *testing.T) {
	clearEnv(t)

	cfg, _, err := config.LoadConfig(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, "http://vaultwarden:80", cfg.Vaultwarden.URL)
	assert.Empty(t, cfg.Vaultwarden.AdminToken)
	assert.Equal(t, 300*time.Second, cfg.CacheTTL())
	assert.Equal(t, 10*time.Second, cfg.RequestTimeout())
	assert.Equal(t, 25*time.Second, cfg.WriteTimeout())
	assert.True(t, cfg.Cache.Diagnostics)
	assert.Equal(t, "0.0.0.0:5000", cfg.Addr())
	assert.Equal(t, "info", cfg.Debug.LogLevel)
}

func TestLoadConfigEnvironment(t *testing.T) {
	clearEnv(t)
	t.Setenv("VAULTWARDEN_URL", "https://vault.example.com")
	t.Setenv("ADMIN_TOKEN", "hunter2")
	t.Setenv("CACHE_TIMEOUT", "60")
	t.Setenv("VAULTSTATS_PORT", "8080")
	t.Setenv("VAULTSTATS_LOG_LEVEL", "debug")

	cfg, _, err := config.LoadConfig(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, "https://vault.example.com", cfg.Vaultwarden.URL)
	assert.Equal(t, "hunter2", cfg.Vaultwarden.AdminToken)
	assert.Equal(t, time.Minute, cfg.CacheTTL())
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "debug", cfg.Debug.LogLevel)
}

func TestLoadConfigFile(t *testing.T) {
	clearEnv(t)
	t.Setenv("CACHE_TIMEOUT", "120")

	dir := writeConfig(t, `
[vaultwarden]
url = "http://localhost:8000"
request_timeout = 2500

[cache]
timeout = 30
diagnostics = false

[debug]
enable_pprof = true
pprof_port = 7070
`)

	cfg, usedPath, err := config.LoadConfig(dir)
	require.NoError(t, err)

	assert.Equal(t, dir, usedPath)
	assert.Equal(t, "http://localhost:8000", cfg.Vaultwarden.URL)
	assert.Equal(t, 2500*time.Millisecond, cfg.RequestTimeout())
	assert.False(t, cfg.Cache.Diagnostics)
	assert.True(t, cfg.Debug.EnablePprof)
	assert.Equal(t, 7070, cfg.Debug.PprofPort)

	// Environment wins over the file
	assert.Equal(t, 2*time.Minute, cfg.CacheTTL())

	// Untouched keys keep their defaults
	assert.Equal(t, 5000, cfg.Server.Port)
}

func TestLoadConfigZeroCacheTimeout(t *testing.T) {
	clearEnv(t)
	t.Setenv("CACHE_TIMEOUT", "0")

	cfg, _, err := config.LoadConfig(t.TempDir())
	require.NoError(t, err)
	assert.Zero(t, cfg.CacheTTL())
}

func TestWriteTimeoutFollowsRequestTimeout(t *testing.T) {
	clearEnv(t)
	t.Setenv("VAULTSTATS_REQUEST_TIMEOUT", "30000")

	cfg, _, err := config.LoadConfig(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, 30*time.Second, cfg.RequestTimeout())
	assert.Equal(t, 65*time.Second, cfg.WriteTimeout())
}

func TestLoadConfigInvalid(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{name: "negative cache timeout", key: "CACHE_TIMEOUT", val: "-5"},
		{name: "non-numeric cache timeout", key: "CACHE_TIMEOUT", val: "soon"},
		{name: "bad url", key: "VAULTWARDEN_URL", val: "not a url"},
		{name: "bad log level", key: "VAULTSTATS_LOG_LEVEL", val: "verbose"},
		{name: "bad port", key: "VAULTSTATS_PORT", val: "70000"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(tt.key, tt.val)

			_, _, err := config.LoadConfig(t.TempDir())
			require.Error(t, err)
		})
	}
}

func TestLoadConfigMalformedFile(t *testing.T) {
	clearEnv(t)

	dir := writeConfig(t, "[cache\ntimeout = ")

	_, _, err := config.LoadConfig(dir)
	require.Error(t, err)
}

func TestValidateDoesNotRequireToken(t *testing.T) {
	t.Parallel()

	cfg := config.Default()
	cfg.Vaultwarden.AdminToken = ""

	require.NoError(t, cfg.Validate())
}

func TestValidateErrorOmitsToken(t *testing.T) {
	t.Parallel()

	cfg := config.Default()
	cfg.Vaultwarden.AdminToken = "super-secret-token"
	cfg.Cache.Timeout = -1

	err := cfg.Validate()
	require.ErrorIs(t, err, config.ErrInvalidConfig)
	assert.NotContains(t, err.Error(), "super-secret-token")
}
