package cli

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// writeTestConfig writes a config using a fresh data dir and fast simulated
// transport. extra is appended verbatim.
func writeTestConfig(t *testing.T, mode, extra string) (path, dataDir string) {
	t.Helper()
	dir := t.TempDir()
	dataDir = filepath.Join(dir, "data")
	body := fmt.Sprintf(`data_dir: %s
test_mode: %s
simulation_delay: 10ms
tick_interval: 10ms
log_enabled: false
device:
  id: dev-1
  model: test-rig
%s`, dataDir, mode, extra)
	path = filepath.Join(dir, "beacon.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path, dataDir
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}
