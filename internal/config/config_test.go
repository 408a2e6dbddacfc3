package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 8000, cfg.Server.Port)
	assert.Equal(t, 2*time.Second, cfg.Watcher.PollInterval)
	assert.True(t, cfg.Watcher.Enabled)
	assert.True(t, cfg.Watcher.ProcessExisting)
	assert.Equal(t, 5, cfg.Detection.BruteForceThreshold)
	assert.Equal(t, 300*time.Second, cfg.Detection.BruteForceWindow)
	assert.Equal(t, 10, cfg.Detection.PortScanMinConnections)
	assert.Equal(t, 5, cfg.Detection.PortScanMinPorts)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)

	require.Len(t, cfg.Watcher.Sources, 3)
	assert.Equal(t, "ssh", cfg.Watcher.Sources[0].Kind)
	assert.Equal(t, "/var/log/auth.log", cfg.Watcher.Sources[0].Path)
}

func TestLoadFromFile(t *testing.T) {
	content := `
server:
  port: 9999
watcher:
  poll_interval: 500ms
  process_existing: false
  sources:
    - name: sshd
      kind: ssh
      path: /tmp/auth.log
detection:
  brute_force_threshold: 3
logging:
  level: debug
`
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9999, cfg.Server.Port)
	assert.Equal(t, 500*time.Millisecond, cfg.Watcher.PollInterval)
	assert.False(t, cfg.Watcher.ProcessExisting)
	assert.Equal(t, 3, cfg.Detection.BruteForceThreshold)
	assert.Equal(t, "debug", cfg.Logging.Level)

	require.Len(t, cfg.Watcher.Sources, 1)
	assert.Equal(t, "sshd", cfg.Watcher.Sources[0].Name)
	assert.Equal(t, "/tmp/auth.log", cfg.Watcher.Sources[0].Path)
}

func TestLoadInvalidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("{not yaml"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("LOGSENTRY_SERVER_PORT", "7070")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 7070, cfg.Server.Port)
}
