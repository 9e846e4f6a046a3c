package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "beacon.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestDefault_Valid(t *testing.T) {
	require.NoError(t, Default().Validate())
}

func TestLoad_DefaultsOnly(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_File(t *testing.T) {
	path := writeConfig(t, `
api_key: key
secret: sec
queue_backend: file
check_server_interval: 500ms
heartbeat_interval: 2m
test_mode: simulate_server
simulation_delay: 10ms
platform: android
payable: false
device:
  id: dev-1
  screen_width: 1080
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "key", cfg.APIKey)
	assert.Equal(t, BackendFile, cfg.QueueBackend)
	assert.Equal(t, 500*time.Millisecond, cfg.CheckServerInterval)
	assert.Equal(t, 2*time.Minute, cfg.HeartbeatInterval)
	assert.Equal(t, "simulate_server", cfg.TestMode)
	assert.Equal(t, 10*time.Millisecond, cfg.SimulationDelay)
	assert.Equal(t, "android", cfg.Platform)
	assert.False(t, cfg.Payable)
	assert.Equal(t, "dev-1", cfg.Device.ID)
	assert.Equal(t, 1080, cfg.Device.ScreenWidth)
	// untouched defaults survive
	assert.Equal(t, 200*time.Millisecond, cfg.TickInterval)
	assert.True(t, cfg.Device.AdTrackingEnabled)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "api_key: from-file\n")
	t.Setenv("BEACON_API_KEY", "from-env")
	t.Setenv("BEACON_TICK_INTERVAL", "1s")
	t.Setenv("BEACON_DEVICE_ADVERTISING_ID", "gaid")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.APIKey)
	assert.Equal(t, time.Second, cfg.TickInterval)
	assert.Equal(t, "gaid", cfg.Device.AdvertisingID)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoad_BadYAML(t *testing.T) {
	_, err := Load(writeConfig(t, "api_key: [unclosed\n"))
	assert.Error(t, err)
}

func TestValidate_Rejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"backend", func(c *Config) { c.QueueBackend = "redis" }},
		{"test mode", func(c *Config) { c.TestMode = "chaos" }},
		{"platform", func(c *Config) { c.Platform = "windows" }},
		{"endpoint scheme", func(c *Config) { c.Endpoint = "ftp://example.com" }},
		{"zero tick", func(c *Config) { c.TickInterval = 0 }},
		{"negative delay", func(c *Config) { c.SimulationDelay = -time.Second }},
		{"empty data dir", func(c *Config) { c.DataDir = "" }},
		{"negative screen", func(c *Config) { c.Device.ScreenWidth = -1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestRequireCredentials(t *testing.T) {
	cfg := Default()
	assert.ErrorIs(t, cfg.RequireCredentials(), ErrMissingCredentials)

	cfg.TestMode = "simulate_offline"
	assert.NoError(t, cfg.RequireCredentials())

	cfg = Default()
	cfg.APIKey, cfg.Secret = "k", "s"
	assert.NoError(t, cfg.RequireCredentials())
}

func TestDatabasePath(t *testing.T) {
	cfg := Default()
	cfg.DataDir = "/var/lib/beacon"
	assert.Equal(t, "/var/lib/beacon/beacon.db", cfg.DatabasePath())
}
