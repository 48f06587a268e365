package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.hcl"))
	require.NoError(t, err)
	assert.Equal(t, "localhost:8080", cfg.Addr())
	assert.Equal(t, "okeyd.db", cfg.Store.Path)
	assert.Equal(t, 300, cfg.Leaderboard.ReconcileSeconds)
	assert.NoError(t, cfg.Validate())
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "okeyd.hcl")
	require.NoError(t, os.WriteFile(path, []byte(`
server {
  address   = "0.0.0.0"
  port      = 9000
  log_level = "debug"
}

store {
  path = "/var/lib/okeyd/okeyd.db"
}

leaderboard {
  redis_addr = "localhost:6379"
  redis_db   = 2
}
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0:9000", cfg.Addr())
	assert.Equal(t, "debug", cfg.Server.LogLevel)
	assert.Equal(t, "/var/lib/okeyd/okeyd.db", cfg.Store.Path)
	assert.Equal(t, "localhost:6379", cfg.Leaderboard.RedisAddr)
	assert.Equal(t, 2, cfg.Leaderboard.RedisDB)
	// Unset values still default.
	assert.Equal(t, 300, cfg.Leaderboard.ReconcileSeconds)
	assert.NoError(t, cfg.Validate())
}

func TestLoadRejectsBadHCL(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.hcl")
	require.NoError(t, os.WriteFile(path, []byte(`server { port = `), 0o600))
	_, err := Load(path)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.Server.Port = 70000
	assert.Error(t, cfg.Validate())

	cfg = Default()
	cfg.Store.Path = ""
	assert.Error(t, cfg.Validate())
}
