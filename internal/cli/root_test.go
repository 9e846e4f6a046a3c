package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "beacon", cmd.Use)
	assert.Contains(t, cmd.Long, "collector")
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	commands := [][]string{
		{"run"},
		{"track"},
		{"queue", "inspect"},
		{"queue", "clear"},
		{"sign"},
		{"config", "validate"},
		{"config", "show"},
		{"scenario"},
	}

	for _, path := range commands {
		name := path[len(path)-1]
		t.Run(name, func(t *testing.T) {
			subCmd, _, err := cmd.Find(path)
			require.NoError(t, err, "Command %v should exist", path)
			require.NotNil(t, subCmd)
			assert.Equal(t, name, subCmd.Name())
		})
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand()

	verboseFlag := cmd.PersistentFlags().Lookup("verbose")
	require.NotNil(t, verboseFlag)
	assert.Equal(t, "v", verboseFlag.Shorthand)
	assert.Equal(t, "false", verboseFlag.DefValue)

	formatFlag := cmd.PersistentFlags().Lookup("format")
	require.NotNil(t, formatFlag)
	assert.Equal(t, "text", formatFlag.DefValue)

	configFlag := cmd.PersistentFlags().Lookup("config")
	require.NotNil(t, configFlag)
	assert.Equal(t, "c", configFlag.Shorthand)
}

func TestRunCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	runCmd, _, err := cmd.Find([]string{"run"})
	require.NoError(t, err)

	assert.NotNil(t, runCmd.Flags().Lookup("for"))
	assert.NotNil(t, runCmd.Flags().Lookup("metrics-addr"))
}

func TestTrackCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	trackCmd, _, err := cmd.Find([]string{"track"})
	require.NoError(t, err)

	timeoutFlag := trackCmd.Flags().Lookup("timeout")
	require.NotNil(t, timeoutFlag)
	assert.Equal(t, "10s", timeoutFlag.DefValue)
}

func TestInvalidFormat(t *testing.T) {
	path, _ := writeTestConfig(t, "simulate_server", "")
	_, err := execute(t, "--format", "xml", "--config", path, "config", "validate")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid format")
}
