package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "30m", cfg.Docker.Timeout)
	assert.Equal(t, 400000, cfg.Docker.CPUQuota)
	assert.Equal(t, "30g", cfg.Docker.Memory)
	assert.Equal(t, "linux/amd64", cfg.Docker.Platform)
	assert.Equal(t, 4, cfg.Eval.NumWorkers)
	assert.NoError(t, cfg.Validate())
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().Docker, cfg.Docker)
}

func TestLoadMergesOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `docker:
  timeout: 10m
  block_network: true
eval:
  num_workers: 8
  dockerhub_username: scaleci
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 10*time.Minute, cfg.GetContainerTimeout())
	assert.True(t, cfg.Docker.BlockNetwork)
	// Untouched keys keep their defaults.
	assert.Equal(t, 400000, cfg.Docker.CPUQuota)
	assert.Equal(t, 8, cfg.Eval.NumWorkers)
	assert.Equal(t, "scaleci", cfg.Eval.DockerhubUsername)
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("docker: ["), 0644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("SWEAP_DOCKERHUB_USERNAME", "envuser")
	t.Setenv("SWEAP_NUM_WORKERS", "12")
	t.Setenv("SWEAP_DB", "/tmp/env.db")

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "envuser", cfg.Eval.DockerhubUsername)
	assert.Equal(t, 12, cfg.Eval.NumWorkers)
	assert.Equal(t, "/tmp/env.db", cfg.Store.DatabasePath)
}

func TestEnvOverrideIgnoresBadWorkerCount(t *testing.T) {
	t.Setenv("SWEAP_NUM_WORKERS", "zero")

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 4, cfg.Eval.NumWorkers)
}

func TestTimeoutFallbacks(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Docker.Timeout = "not-a-duration"
	cfg.Docker.PullTimeout = ""

	assert.Equal(t, 30*time.Minute, cfg.GetContainerTimeout())
	assert.Equal(t, 15*time.Minute, cfg.GetPullTimeout())
	assert.Error(t, cfg.Validate())
}

func TestSaveRoundTrip(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Eval.DockerhubUsername = "scaleci"

	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}
