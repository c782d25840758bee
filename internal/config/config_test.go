package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
listen: ":9999"
password: hunter2
backend:
  url: "http://render-box:8188/"
data_dir: /tmp/comfy-data
run:
  poll_interval_ms: 2000
  timeout_s: 120
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9999", cfg.Listen)
	assert.Equal(t, "hunter2", cfg.Password)
	// trailing slash is trimmed
	assert.Equal(t, "http://render-box:8188", cfg.Backend.URL)
	assert.Equal(t, 2*time.Second, cfg.PollInterval())
	assert.Equal(t, 2*time.Minute, cfg.RunTimeout())
}

func TestLoadRequiresPassword(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("listen: \":9999\"\n"), 0o644))

	_, err := Load(path)
	assert.ErrorContains(t, err, "password")
}

func TestDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("password: x\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":8189", cfg.Listen)
	assert.Equal(t, "http://localhost:8188", cfg.Backend.URL)
	assert.Equal(t, 1500*time.Millisecond, cfg.PollInterval())
	assert.Equal(t, 600*time.Second, cfg.RunTimeout())
}
