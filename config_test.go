package dikernel_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/centraunit/dikernel"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestDefaultConfig(t *testing.T) {
	cfg := dikernel.DefaultConfig()
	assert.Equal(t, dikernel.LifestyleSingleton, cfg.DefaultLifestyle)
	assert.Equal(t, 5, cfg.Pool.InitialSize)
	assert.Equal(t, 15, cfg.Pool.MaxSize)
	assert.Equal(t, 256, cfg.Bridge.MatchCacheSize)
	assert.False(t, cfg.AllowEmptyCollections)
	assert.Equal(t, "slog", cfg.Log.Backend)
	assert.NoError(t, cfg.Validate())
}

func TestLoadConfigWithoutSources(t *testing.T) {
	cfg, err := dikernel.LoadConfig(dikernel.ConfigPaths{})
	require.NoError(t, err)
	assert.Equal(t, dikernel.DefaultConfig(), *cfg)
}

func TestLoadConfigFromFile(t *testing.T) {
	path := writeFile(t, "kernel.yaml", `
allow_empty_collections: true
default_lifestyle: transient
pool:
  initial_size: 2
  max_size: 4
log:
  backend: zap
  level: debug
  format: json
facilities:
  startable:
    stop_on_decommission: false
`)

	cfg, err := dikernel.LoadConfig(dikernel.ConfigPaths{File: path})
	require.NoError(t, err)
	assert.True(t, cfg.AllowEmptyCollections)
	assert.Equal(t, dikernel.LifestyleTransient, cfg.DefaultLifestyle)
	assert.Equal(t, dikernel.PoolConfig{InitialSize: 2, MaxSize: 4}, cfg.Pool)
	assert.Equal(t, 256, cfg.Bridge.MatchCacheSize, "unset keys keep their defaults")
	assert.Equal(t, dikernel.LogConfig{Backend: "zap", Level: "debug", Format: "json"}, cfg.Log)
	assert.False(t, cfg.Facilities["startable"].Bool("stop_on_decommission", true))
}

func TestLoadConfigEnvironmentOverrides(t *testing.T) {
	path := writeFile(t, "kernel.yaml", "pool:\n  max_size: 4\n")
	t.Setenv("DIKERNEL_POOL_MAX_SIZE", "30")

	cfg, err := dikernel.LoadConfig(dikernel.ConfigPaths{File: path})
	require.NoError(t, err)
	assert.Equal(t, 30, cfg.Pool.MaxSize)
}

func TestLoadConfigEnvFile(t *testing.T) {
	// Registers cleanup of the variable godotenv is about to set.
	t.Setenv("DIKERNEL_DEFAULT_LIFESTYLE", "")
	require.NoError(t, os.Unsetenv("DIKERNEL_DEFAULT_LIFESTYLE"))

	env := writeFile(t, ".env", "DIKERNEL_DEFAULT_LIFESTYLE=pooled\n")
	cfg, err := dikernel.LoadConfig(dikernel.ConfigPaths{EnvFile: env})
	require.NoError(t, err)
	assert.Equal(t, dikernel.LifestylePooled, cfg.DefaultLifestyle)
}

func TestLoadConfigErrors(t *testing.T) {
	t.Run("MissingFile", func(t *testing.T) {
		_, err := dikernel.LoadConfig(dikernel.ConfigPaths{File: filepath.Join(t.TempDir(), "absent.yaml")})
		assert.ErrorContains(t, err, "does not exist")
	})

	t.Run("MissingEnvFile", func(t *testing.T) {
		_, err := dikernel.LoadConfig(dikernel.ConfigPaths{EnvFile: filepath.Join(t.TempDir(), ".env")})
		assert.ErrorContains(t, err, "env file")
	})

	t.Run("InvalidValues", func(t *testing.T) {
		cases := map[string]string{
			"lifestyle":    "default_lifestyle: forever\n",
			"negative":     "pool:\n  initial_size: -1\n",
			"initial>max":  "pool:\n  initial_size: 8\n  max_size: 4\n",
			"bridge cache": "bridge:\n  match_cache_size: 0\n",
			"log backend":  "log:\n  backend: logrus\n",
		}
		for name, content := range cases {
			t.Run(name, func(t *testing.T) {
				path := writeFile(t, "kernel.yaml", content)
				_, err := dikernel.LoadConfig(dikernel.ConfigPaths{File: path})
				assert.ErrorContains(t, err, "validation failed")
			})
		}
	})
}

func TestConfigYAML(t *testing.T) {
	cfg := dikernel.DefaultConfig()
	out, err := cfg.YAML()
	require.NoError(t, err)
	assert.Contains(t, string(out), "max_size: 15")
	assert.Contains(t, string(out), "default_lifestyle: singleton")
	assert.NotContains(t, string(out), "facilities")
}
