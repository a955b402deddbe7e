package config

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledgerflow.yaml")

	cfg := Default()
	cfg.Store.Driver = "memory"
	cfg.Server.Addr = ":9090"
	cfg.Sweep.Interval = 5 * time.Minute
	cfg.Logging.Environment = "production"
	cfg.Logging.Level = "warn"

	require.NoError(t, Save(path, cfg))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "memory", loaded.Store.Driver)
	assert.Equal(t, ":9090", loaded.Server.Addr)
	assert.Equal(t, 5*time.Minute, loaded.Sweep.Interval)
	assert.Equal(t, "production", loaded.Logging.Environment)
	assert.Equal(t, "warn", loaded.Logging.Level)
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledgerflow.yaml")
	require.NoError(t, Save(path, &Config{Store: StoreConfig{Driver: "memory"}}))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "memory", cfg.Store.Driver)
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, time.Minute, cfg.Sweep.Interval)
	assert.Equal(t, 10*time.Second, cfg.Sweep.RuleTimeout)
	assert.Equal(t, "development", cfg.Logging.Environment)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, "mongo", cfg.Store.Driver)
	assert.Equal(t, "mongodb://localhost:27017", cfg.Store.URI)
	assert.Equal(t, "ledgerflow", cfg.Store.Database)
	assert.Equal(t, time.Minute, cfg.Sweep.Interval)
}
