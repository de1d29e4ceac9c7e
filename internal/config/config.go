package config

import (
	"fmt"
	"strings"
	"time"
)

// Config represents the complete service configuration
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Forecast ForecastConfig `mapstructure:"forecast"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// ServerConfig holds listener settings
type ServerConfig struct {
	Host     string `mapstructure:"host"`
	GRPCPort int    `mapstructure:"grpc_port"`
	HTTPPort int    `mapstructure:"http_port"` // /metrics and grpc-web
}

// StorageConfig selects and locates the sales database
type StorageConfig struct {
	Path string `mapstructure:"path"`
	Type string `mapstructure:"type"` // bolt or badger
}

// ForecastConfig tunes the engine and the forecast cache
type ForecastConfig struct {
	SeasonalPeriod int           `mapstructure:"seasonal_period"`
	DefaultSteps   int           `mapstructure:"default_steps"`
	MaxSteps       int           `mapstructure:"max_steps"` // caps steps and holdout per request
	CacheSize      int           `mapstructure:"cache_size"`
	CacheTTL       time.Duration `mapstructure:"cache_ttl"`
}

// LoggingConfig configures the logrus logger
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// DefaultConfig returns default configuration
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:     "0.0.0.0",
			GRPCPort: 50053,
			HTTPPort: 8083,
		},
		Storage: StorageConfig{
			Path: "./data/stockcast.db",
			Type: "bolt",
		},
		Forecast: ForecastConfig{
			SeasonalPeriod: 7,
			DefaultSteps:   7,
			MaxSteps:       365,
			CacheSize:      512,
			CacheTTL:       10 * time.Minute,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if err := c.Server.Validate(); err != nil {
		return fmt.Errorf("server config: %w", err)
	}
	if err := c.Storage.Validate(); err != nil {
		return fmt.Errorf("storage config: %w", err)
	}
	if err := c.Forecast.Validate(); err != nil {
		return fmt.Errorf("forecast config: %w", err)
	}
	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}
	return nil
}

// Validate validates server configuration
func (c *ServerConfig) Validate() error {
	if c.GRPCPort <= 0 || c.GRPCPort > 65535 {
		return fmt.Errorf("invalid grpc_port: %d", c.GRPCPort)
	}
	if c.HTTPPort <= 0 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid http_port: %d", c.HTTPPort)
	}
	if c.GRPCPort == c.HTTPPort {
		return fmt.Errorf("grpc_port and http_port must differ")
	}
	return nil
}

// Validate validates storage configuration
func (c *StorageConfig) Validate() error {
	if c.Path == "" {
		return fmt.Errorf("path is required")
	}
	switch strings.ToLower(c.Type) {
	case "", "bolt", "badger":
		return nil
	default:
		return fmt.Errorf("unknown storage type %q (want bolt or badger)", c.Type)
	}
}

// Validate validates forecast configuration
func (c *ForecastConfig) Validate() error {
	if c.SeasonalPeriod <= 0 {
		return fmt.Errorf("seasonal_period must be positive, got %d", c.SeasonalPeriod)
	}
	if c.DefaultSteps <= 0 {
		return fmt.Errorf("default_steps must be positive, got %d", c.DefaultSteps)
	}
	if c.MaxSteps < c.DefaultSteps {
		return fmt.Errorf("max_steps must be at least default_steps (%d), got %d", c.DefaultSteps, c.MaxSteps)
	}
	if c.CacheSize <= 0 {
		return fmt.Errorf("cache_size must be positive, got %d", c.CacheSize)
	}
	if c.CacheTTL < 0 {
		return fmt.Errorf("cache_ttl cannot be negative")
	}
	return nil
}

// Validate validates logging configuration
func (c *LoggingConfig) Validate() error {
	switch strings.ToLower(c.Format) {
	case "json", "text":
	default:
		return fmt.Errorf("unknown log format %q", c.Format)
	}
	switch strings.ToLower(c.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("unknown log level %q", c.Level)
	}
	return nil
}

// GRPCAddress returns the gRPC listen address
func (c *Config) GRPCAddress() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.GRPCPort)
}

// HTTPAddress returns the HTTP listen address
func (c *Config) HTTPAddress() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.HTTPPort)
}
