package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/vjranagit/gaitmetrics/pkg/analytics"
	"github.com/vjranagit/gaitmetrics/pkg/storage"
)

// EnvPrefix prefixes every environment variable, e.g. GAITMETRICS_SERVER_LISTEN_ADDR
const EnvPrefix = "gaitmetrics"

// Config holds the application configuration
type Config struct {
	Server    ServerConfig    `json:"server"`
	Storage   StorageConfig   `json:"storage"`
	Analytics AnalyticsConfig `json:"analytics"`
	Cache     CacheConfig     `json:"cache"`
	Log       LogConfig       `json:"log"`
}

// ServerConfig holds server configuration
type ServerConfig struct {
	ListenAddr      string        `json:"listen_addr" split_words:"true" default:":8080"`
	Timeout         time.Duration `json:"timeout" default:"30s"`
	ShutdownTimeout time.Duration `json:"shutdown_timeout" split_words:"true" default:"30s"`
}

// StorageConfig holds storage configuration
type StorageConfig struct {
	Path             string `json:"path" default:"./data"`
	InMemory         bool   `json:"in_memory" split_words:"true"`
	CompressionLevel int    `json:"compression_level" split_words:"true" default:"3"`
	SyncWrites       bool   `json:"sync_writes" split_words:"true" default:"true"`
}

// AnalyticsConfig tunes normal range derivation
type AnalyticsConfig struct {
	// OutlierK is the z-score above which a value is dropped
	OutlierK      float64 `json:"outlier_k" split_words:"true" default:"2"`
	OutlierMethod string  `json:"outlier_method" split_words:"true" default:"jackknife"`
	MinSamples    int     `json:"min_samples" split_words:"true" default:"5"`
	MinRetained   int     `json:"min_retained" split_words:"true" default:"2"`

	// Percentile bounds are used instead of min/max when both are set
	LowPercentile  float64 `json:"low_percentile" split_words:"true"`
	HighPercentile float64 `json:"high_percentile" split_words:"true"`

	Window int `json:"window" default:"10"`
}

// CacheConfig holds dashboard cache configuration
type CacheConfig struct {
	Capacity int           `json:"capacity" default:"256"`
	TTL      time.Duration `json:"ttl" default:"5m"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string `json:"level" default:"info"`
	Pretty bool   `json:"pretty" default:"true"`

	// File enables a rotated log file when set
	File       string `json:"file"`
	MaxSizeMB  int    `json:"max_size_mb" split_words:"true" default:"100"`
	MaxBackups int    `json:"max_backups" split_words:"true" default:"3"`
	MaxAgeDays int    `json:"max_age_days" split_words:"true" default:"28"`
}

// DefaultConfig returns default configuration
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			ListenAddr:      ":8080",
			Timeout:         30 * time.Second,
			ShutdownTimeout: 30 * time.Second,
		},
		Storage: StorageConfig{
			Path:             "./data",
			CompressionLevel: 3,
			SyncWrites:       true,
		},
		Analytics: AnalyticsConfig{
			OutlierK:      2,
			OutlierMethod: string(analytics.OutlierJackknife),
			MinSamples:    5,
			MinRetained:   2,
			Window:        10,
		},
		Cache: CacheConfig{
			Capacity: 256,
			TTL:      5 * time.Minute,
		},
		Log: LogConfig{
			Level:      "info",
			Pretty:     true,
			MaxSizeMB:  100,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
	}
}

// Load reads an optional .env file and then the environment
func Load(envFiles ...string) (*Config, error) {
	if err := godotenv.Load(envFiles...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load env file: %w", err)
	}

	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ToStorageConfig converts to storage.Config
func (c *Config) ToStorageConfig() *storage.Config {
	return &storage.Config{
		Path:             c.Storage.Path,
		InMemory:         c.Storage.InMemory,
		CompressionLevel: c.Storage.CompressionLevel,
		SyncWrites:       c.Storage.SyncWrites,
	}
}

// ToRangeOptions converts to analytics.RangeOptions
func (c *Config) ToRangeOptions() analytics.RangeOptions {
	return analytics.RangeOptions{
		K:              c.Analytics.OutlierK,
		MinSamples:     c.Analytics.MinSamples,
		MinRetained:    c.Analytics.MinRetained,
		Method:         analytics.OutlierMethod(c.Analytics.OutlierMethod),
		LowPercentile:  c.Analytics.LowPercentile,
		HighPercentile: c.Analytics.HighPercentile,
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.ListenAddr == "" {
		return fmt.Errorf("server listen address is required")
	}

	if c.Storage.Path == "" && !c.Storage.InMemory {
		return fmt.Errorf("storage path is required")
	}

	if c.Storage.CompressionLevel < 1 || c.Storage.CompressionLevel > 4 {
		return fmt.Errorf("compression level must be between 1 and 4")
	}

	if c.Analytics.OutlierK <= 0 {
		return fmt.Errorf("outlier k must be positive")
	}

	switch analytics.OutlierMethod(c.Analytics.OutlierMethod) {
	case analytics.OutlierJackknife, analytics.OutlierPopulation:
	default:
		return fmt.Errorf("unknown outlier method %q", c.Analytics.OutlierMethod)
	}

	if c.Analytics.MinSamples < 2 {
		return fmt.Errorf("min samples must be at least 2")
	}

	if c.Analytics.MinRetained < 1 {
		return fmt.Errorf("min retained must be at least 1")
	}

	if c.Analytics.LowPercentile != 0 || c.Analytics.HighPercentile != 0 {
		if c.Analytics.LowPercentile <= 0 || c.Analytics.HighPercentile > 100 ||
			c.Analytics.LowPercentile >= c.Analytics.HighPercentile {
			return fmt.Errorf("percentile band must satisfy 0 < low < high <= 100")
		}
	}

	if c.Cache.Capacity < 0 {
		return fmt.Errorf("cache capacity must not be negative")
	}

	return nil
}
