package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigValidation(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{"default config should be valid", func(c *Config) {}, false},
		{"invalid grpc port", func(c *Config) { c.Server.GRPCPort = 0 }, true},
		{"http port out of range", func(c *Config) { c.Server.HTTPPort = 70000 }, true},
		{"same http and grpc port", func(c *Config) { c.Server.HTTPPort = c.Server.GRPCPort }, true},
		{"badger storage", func(c *Config) { c.Storage.Type = "badger" }, false},
		{"unknown storage type", func(c *Config) { c.Storage.Type = "sqlite" }, true},
		{"empty storage path", func(c *Config) { c.Storage.Path = "" }, true},
		{"zero seasonal period", func(c *Config) { c.Forecast.SeasonalPeriod = 0 }, true},
		{"negative default steps", func(c *Config) { c.Forecast.DefaultSteps = -1 }, true},
		{"max steps below default steps", func(c *Config) { c.Forecast.MaxSteps = c.Forecast.DefaultSteps - 1 }, true},
		{"max steps equal to default steps", func(c *Config) { c.Forecast.MaxSteps = c.Forecast.DefaultSteps }, false},
		{"zero cache size", func(c *Config) { c.Forecast.CacheSize = 0 }, true},
		{"negative cache ttl", func(c *Config) { c.Forecast.CacheTTL = -time.Second }, true},
		{"unknown log format", func(c *Config) { c.Logging.Format = "xml" }, true},
		{"unknown log level", func(c *Config) { c.Logging.Level = "trace" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestLoadDefaultsWithoutFile(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
	assert.Equal(t, "0.0.0.0:50053", cfg.GRPCAddress())
	assert.Equal(t, "0.0.0.0:8083", cfg.HTTPAddress())
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stockcast.yaml")
	content := `
server:
  grpc_port: 6000
storage:
  type: badger
  path: /tmp/stockcast
forecast:
  seasonal_period: 14
  cache_ttl: 30s
logging:
  format: json
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 6000, cfg.Server.GRPCPort)
	assert.Equal(t, 8083, cfg.Server.HTTPPort)
	assert.Equal(t, "badger", cfg.Storage.Type)
	assert.Equal(t, 14, cfg.Forecast.SeasonalPeriod)
	assert.Equal(t, 7, cfg.Forecast.DefaultSteps)
	assert.Equal(t, 365, cfg.Forecast.MaxSteps)
	assert.Equal(t, 30*time.Second, cfg.Forecast.CacheTTL)
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("STOCKCAST_SERVER_GRPC_PORT", "7001")
	t.Setenv("STOCKCAST_FORECAST_DEFAULT_STEPS", "14")
	t.Setenv("STOCKCAST_FORECAST_MAX_STEPS", "90")
	t.Setenv("STOCKCAST_LOGGING_LEVEL", "debug")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 7001, cfg.Server.GRPCPort)
	assert.Equal(t, 14, cfg.Forecast.DefaultSteps)
	assert.Equal(t, 90, cfg.Forecast.MaxSteps)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoadRejectsInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("storage:\n  type: sqlite\n"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
