package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vjranagit/gaitmetrics/pkg/analytics"
)

func TestLoadDefaultsMatchDefaultConfig(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)

	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("GAITMETRICS_SERVER_LISTEN_ADDR", ":9999")
	t.Setenv("GAITMETRICS_STORAGE_IN_MEMORY", "true")
	t.Setenv("GAITMETRICS_ANALYTICS_OUTLIER_K", "2.5")
	t.Setenv("GAITMETRICS_ANALYTICS_OUTLIER_METHOD", "population")
	t.Setenv("GAITMETRICS_CACHE_TTL", "30s")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)

	assert.Equal(t, ":9999", cfg.Server.ListenAddr)
	assert.True(t, cfg.Storage.InMemory)
	assert.Equal(t, 2.5, cfg.Analytics.OutlierK)
	assert.Equal(t, 30*time.Second, cfg.Cache.TTL)

	opts := cfg.ToRangeOptions()
	assert.Equal(t, analytics.OutlierPopulation, opts.Method)
	assert.Equal(t, 2.5, opts.K)

	storageCfg := cfg.ToStorageConfig()
	assert.True(t, storageCfg.InMemory)
	assert.Equal(t, 3, storageCfg.CompressionLevel)
}

func TestLoadFromEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("GAITMETRICS_ANALYTICS_WINDOW=25\n"), 0o644))
	t.Cleanup(func() { os.Unsetenv("GAITMETRICS_ANALYTICS_WINDOW") })

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 25, cfg.Analytics.Window)
}

func TestLoadRejectsInvalid(t *testing.T) {
	t.Setenv("GAITMETRICS_STORAGE_COMPRESSION_LEVEL", "9")

	_, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	cases := map[string]func(c *Config){
		"listen address":    func(c *Config) { c.Server.ListenAddr = "" },
		"storage path":      func(c *Config) { c.Storage.Path = "" },
		"compression level": func(c *Config) { c.Storage.CompressionLevel = 0 },
		"outlier k":         func(c *Config) { c.Analytics.OutlierK = 0 },
		"outlier method":    func(c *Config) { c.Analytics.OutlierMethod = "iqr" },
		"min samples":       func(c *Config) { c.Analytics.MinSamples = 1 },
		"min retained":      func(c *Config) { c.Analytics.MinRetained = 0 },
		"percentile order":  func(c *Config) { c.Analytics.LowPercentile, c.Analytics.HighPercentile = 90, 10 },
		"percentile bound":  func(c *Config) { c.Analytics.LowPercentile, c.Analytics.HighPercentile = 10, 101 },
		"cache capacity":    func(c *Config) { c.Cache.Capacity = -1 },
	}

	require.NoError(t, DefaultConfig().Validate())

	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := DefaultConfig()
			mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}

	inMemory := DefaultConfig()
	inMemory.Storage.Path = ""
	inMemory.Storage.InMemory = true
	assert.NoError(t, inMemory.Validate())
}
