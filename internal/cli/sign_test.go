package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/beacon/internal/transport"
)

const signBody = `[{"type":"revenue","amount":4.99,"currency":"EUR"}]`

func writeBody(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "body.json")
	require.NoError(t, os.WriteFile(path, []byte(signBody), 0o644))
	return path
}

func TestSign_File(t *testing.T) {
	path, _ := writeTestConfig(t, "simulate_server", "")

	out, err := execute(t, "--config", path, "sign", "--secret", "s3cret", writeBody(t))
	require.NoError(t, err)
	assert.Equal(t, transport.Sign("s3cret", signBody)+"\n", out)
}

func TestSign_Stdin(t *testing.T) {
	path, _ := writeTestConfig(t, "simulate_server", "secret: from-config\n")

	cmd := NewRootCommand()
	var out strings.Builder
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(strings.NewReader(signBody))
	cmd.SetArgs([]string{"--config", path, "--format", "json", "sign"})
	require.NoError(t, cmd.Execute())

	var resp struct {
		Data SignResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out.String()), &resp))
	assert.Equal(t, transport.Sign("from-config", signBody), resp.Data.Signature)
	assert.Contains(t, resp.Data.URL, resp.Data.Signature)
	assert.Nil(t, resp.Data.Valid)
}

func TestSign_Verify(t *testing.T) {
	path, _ := writeTestConfig(t, "simulate_server", "")
	body := writeBody(t)
	good := transport.Sign("s3cret", signBody)

	t.Run("match", func(t *testing.T) {
		out, err := execute(t, "--config", path, "sign", "--secret", "s3cret", "--verify", strings.ToUpper(good), body)
		require.NoError(t, err)
		assert.Equal(t, "valid: true\n", out)
	})

	t.Run("mismatch", func(t *testing.T) {
		out, err := execute(t, "--config", path, "sign", "--secret", "other", "--verify", good, body)
		require.Error(t, err)
		assert.Equal(t, ExitFailure, GetExitCode(err))
		assert.Equal(t, "valid: false\n", out)
	})
}

func TestSign_NoSecret(t *testing.T) {
	path, _ := writeTestConfig(t, "simulate_server", "")

	_, err := execute(t, "--config", path, "sign", writeBody(t))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestSign_MissingFile(t *testing.T) {
	path, _ := writeTestConfig(t, "simulate_server", "")

	out, err := execute(t, "--config", path, "sign", "--secret", "x", filepath.Join(t.TempDir(), "nope.json"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, ErrCodeInput)
}
