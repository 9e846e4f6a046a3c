package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigValidate(t *testing.T) {
	path, _ := writeTestConfig(t, "simulate_server", "")

	out, err := execute(t, "--config", path, "config", "validate")
	require.NoError(t, err)
	assert.Equal(t, "config valid\n", out)
}

func TestConfigValidate_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		mode  string
		extra string
	}{
		{"unknown backend", "simulate_server", "queue_backend: redis\n"},
		{"unknown platform", "simulate_server", "platform: tv\n"},
		{"missing credentials", "none", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path, _ := writeTestConfig(t, tt.mode, tt.extra)
			out, err := execute(t, "--config", path, "config", "validate")
			require.Error(t, err)
			assert.Equal(t, ExitCommandError, GetExitCode(err))
			assert.Contains(t, out, ErrCodeConfig)
		})
	}
}

func TestConfigValidate_MissingFile(t *testing.T) {
	_, err := execute(t, "--config", "/nonexistent/beacon.yaml", "config", "validate")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestConfigShow_RedactsSecret(t *testing.T) {
	path, _ := writeTestConfig(t, "none", "api_key: key-1\nsecret: s3cret\n")

	out, err := execute(t, "--config", path, "config", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "api_key: key-1")
	assert.Contains(t, out, "REDACTED")
	assert.NotContains(t, out, "s3cret")
	assert.Contains(t, out, "test_mode: none")
}
