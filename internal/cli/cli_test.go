package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	configFile, envFile, debug = "", "", false
	benchWorkers, benchIterations = 8, 10000

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
	})
	err := rootCmd.Execute()
	return out.String(), err
}

func TestVersionCommand(t *testing.T) {
	out, err := run(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "kernelctl version "+rootCmd.Version)
}

func TestConfigCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kernel.yaml")
	require.NoError(t, os.WriteFile(path, []byte("pool:\n  max_size: 42\n"), 0o600))

	out, err := run(t, "config", "--conf", path)
	require.NoError(t, err)
	assert.Contains(t, out, "max_size: 42")
	assert.Contains(t, out, "initial_size: 5")
}

func TestConfigCommandRejectsInvalidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kernel.yaml")
	require.NoError(t, os.WriteFile(path, []byte("default_lifestyle: forever\n"), 0o600))

	_, err := run(t, "config", "--conf", path)
	assert.ErrorContains(t, err, "default_lifestyle")
}

func TestBenchCommand(t *testing.T) {
	out, err := run(t, "bench", "-w", "2", "-n", "50")
	require.NoError(t, err)
	assert.Contains(t, out, "resolutions: 100 in")
	assert.Contains(t, out, "intercepted calls: 100")
}

func TestBenchCommandValidatesFlags(t *testing.T) {
	_, err := run(t, "bench", "-w", "0")
	assert.ErrorContains(t, err, "must be positive")
}
