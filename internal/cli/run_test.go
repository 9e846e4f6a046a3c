package cli

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRun_For(t *testing.T) {
	path, _ := writeTestConfig(t, "simulate_server", "")

	out, err := execute(t, "--config", path, "run", "--for", "500ms")
	require.NoError(t, err)
	assert.Contains(t, out, "Delivery loop started.")

	// The platform event was delivered, nothing is left behind.
	out, err = execute(t, "--config", path, "queue", "inspect")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "0 records"), out)
}

func TestRun_ContextCancel(t *testing.T) {
	path, _ := writeTestConfig(t, "simulate_server", "")

	ctx, cancel := context.WithCancel(context.Background())
	cmd := NewRootCommand()
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)
	cmd.SetArgs([]string{"--config", path, "run"})

	done := make(chan error, 1)
	go func() { done <- cmd.ExecuteContext(ctx) }()
	cancel()

	assert.NoError(t, <-done)
}

func TestRun_MetricsAddr(t *testing.T) {
	path, _ := writeTestConfig(t, "simulate_server", "")

	_, err := execute(t, "--config", path, "run", "--for", "100ms", "--metrics-addr", "127.0.0.1:0")
	require.NoError(t, err)
}

func TestRun_MissingCredentials(t *testing.T) {
	path, _ := writeTestConfig(t, "none", "")

	_, err := execute(t, "--config", path, "run", "--for", "10ms")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestMetricsHandler(t *testing.T) {
	path, _ := writeTestConfig(t, "simulate_server", "")
	opts := &RootOptions{Format: "text", ConfigPath: path}

	a, err := openApp(opts, &cobra.Command{})
	require.NoError(t, err)
	defer a.Close()
	a.metrics.Pending(3)

	srv := httptest.NewServer(a.metricsHandler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "beacon_pending_records 3")
}

func TestMachineID(t *testing.T) {
	id, err := machineID()
	require.NoError(t, err)
	assert.NotEmpty(t, id)
}
