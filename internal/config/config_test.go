package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "bytehotd.yaml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfigFile(t, `
watch_roots:
  - path: /srv/app/classes
    recursive: true
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	require.Equal(t, 200, cfg.DebounceMS)
	require.False(t, cfg.AllowMethodAddition)
	require.Equal(t, 5000, cfg.RedefineTimeoutMS)
	require.Equal(t, 60000, cfg.SnapshotRetentionMS)
	require.Equal(t, 5, cfg.QuarantineErrorCount)
	require.Equal(t, 60000, cfg.QuarantineWindowMS)
	require.Equal(t, 5*time.Second, cfg.RedefineTimeout())
	require.Equal(t, "info", cfg.Log.Level)
	require.True(t, cfg.Metrics.Enabled)
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := writeConfigFile(t, `
watch_roots:
  - path: /srv/app/classes
debounce_ms: 50
allow_method_addition: true
quarantine_error_count: 3
quarantine_window_ms: 5000
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	require.Equal(t, 50, cfg.DebounceMS)
	require.True(t, cfg.AllowMethodAddition)
	require.Equal(t, 3, cfg.QuarantineErrorCount)
	require.Equal(t, 5*time.Second, cfg.QuarantineWindow())
}

func TestLoadRejectsMissingWatchRoots(t *testing.T) {
	path := writeConfigFile(t, `debounce_ms: 100`)

	_, err := Load(path)
	require.Error(t, err)
}

func TestLoadRejectsOutOfBoundsDebounce(t *testing.T) {
	path := writeConfigFile(t, `
watch_roots:
  - path: /srv/app/classes
debounce_ms: 9000
`)

	_, err := Load(path)
	require.Error(t, err)
}

func TestLoadRejectsRelativeWatchRoot(t *testing.T) {
	path := writeConfigFile(t, `
watch_roots:
  - path: relative/classes
`)

	_, err := Load(path)
	require.Error(t, err)
}

func TestLoadRejectsQuarantineWindowBelowFloor(t *testing.T) {
	path := writeConfigFile(t, `
watch_roots:
  - path: /srv/app/classes
quarantine_window_ms: 500
`)

	_, err := Load(path)
	require.Error(t, err)
}

func TestLoadToleratesMissingFile(t *testing.T) {
	dir := t.TempDir()
	_, err := Load(filepath.Join(dir, "does-not-exist.yaml"))
	require.Error(t, err) // watch_roots required, but viper itself shouldn't error on the missing file
}

func TestLoadFromEnv(t *testing.T) {
	path := writeConfigFile(t, `
watch_roots:
  - path: /srv/app/classes
`)
	t.Setenv("BYTEHOT_DEBOUNCE_MS", "10")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 10, cfg.DebounceMS)
}
