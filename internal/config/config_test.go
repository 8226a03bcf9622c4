package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaultsWhenFileMissing(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadFileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: 9090
pebble:
  path: /var/lib/ledger
ledger:
  max_spend_retries: 5
log:
  level: debug
  pretty: false
`), 0o600))

	t.Setenv("SERVER_HOST", "127.0.0.1")
	t.Setenv("LEDGER_MAX_SPEND_RETRIES", "7")
	t.Setenv("LOG_PRETTY", "1")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.Equal(t, "/var/lib/ledger", cfg.Pebble.Path)
	assert.Equal(t, 7, cfg.Ledger.MaxSpendRetries)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.True(t, cfg.Log.Pretty)
}

func TestLoadRejects(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	require.NoError(t, os.WriteFile(path, []byte("server: [oops"), 0o600))
	_, err := Load(path)
	assert.Error(t, err)

	require.NoError(t, os.WriteFile(path, []byte("ledger:\n  max_spend_retries: -1\n"), 0o600))
	_, err = Load(path)
	assert.Error(t, err)
}
