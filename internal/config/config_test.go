package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, 8090, cfg.HTTP.Port)
	assert.Equal(t, 0.10, cfg.Engine.ExplorationRate)
	assert.Equal(t, 10, cfg.Engine.RebalanceInterval)
	assert.Equal(t, 5.0, cfg.Engine.MinAllocationPct)
	assert.Equal(t, 50.0, cfg.Engine.MaxAllocationPct)
	assert.Empty(t, cfg.Database.DSN)
	assert.NoError(t, cfg.Validate())
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "stratcore.yaml")
	content := `
logging:
  level: debug
http:
  port: 9999
engine:
  exploration_rate: 0.25
  state_dir: /tmp/state
  snapshot_interval: 5s
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, 9999, cfg.HTTP.Port)
	assert.Equal(t, 0.25, cfg.Engine.ExplorationRate)
	assert.Equal(t, "/tmp/state", cfg.Engine.StateDir)
	assert.Equal(t, 5*time.Second, cfg.Engine.SnapshotInterval)
	// Untouched keys keep defaults.
	assert.Equal(t, 10, cfg.Engine.RebalanceInterval)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load("/nonexistent/stratcore.yaml")
	assert.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("STRATCORE_LOG_LEVEL", "warn")
	t.Setenv("STRATCORE_HTTP_PORT", "7070")
	t.Setenv("STRATCORE_DB_DSN", "postgres://localhost/stratcore")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "warn", cfg.Logging.Level)
	assert.Equal(t, 7070, cfg.HTTP.Port)
	assert.Equal(t, "postgres://localhost/stratcore", cfg.Database.DSN)
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"exploration rate above one", func(c *Config) { c.Engine.ExplorationRate = 1.5 }},
		{"negative exploration rate", func(c *Config) { c.Engine.ExplorationRate = -0.1 }},
		{"zero rebalance interval", func(c *Config) { c.Engine.RebalanceInterval = 0 }},
		{"inverted allocation bounds", func(c *Config) { c.Engine.MinAllocationPct = 60 }},
		{"zero change cap", func(c *Config) { c.Engine.MaxChangePerRebalance = 0 }},
		{"port out of range", func(c *Config) { c.HTTP.Port = 70000 }},
		{"empty state dir", func(c *Config) { c.Engine.StateDir = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
