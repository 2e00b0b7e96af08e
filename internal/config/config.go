// internal/config/config.go - Configuration management
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/valpere/dem_to_vrt/internal/sourcepool"
)

// Config represents the complete application configuration
type Config struct {
	Source  SourceConfig  `mapstructure:"source"`
	Cache   CacheConfig   `mapstructure:"cache"`
	Network NetworkConfig `mapstructure:"network"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// SourceConfig selects the elevation source and request shaping
type SourceConfig struct {
	Resolution   int     `mapstructure:"resolution"`
	PixelMax     int     `mapstructure:"pixel_max"`
	BufferPixels float64 `mapstructure:"buffer_pixels"`
}

// CacheConfig contains tile cache configuration
type CacheConfig struct {
	Directory string `mapstructure:"directory"`
}

// NetworkConfig contains network-related configuration
type NetworkConfig struct {
	MaxConnsPerHost int           `mapstructure:"max_conns_per_host"`
	Timeout         time.Duration `mapstructure:"timeout"`
	RetryAttempts   int           `mapstructure:"retry_attempts"`
	RetryBackoff    time.Duration `mapstructure:"retry_backoff"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Verbose bool `mapstructure:"verbose"`
}

// Load loads configuration from flags, environment and config file
func Load() (*Config, error) {
	setDefaults()

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := Validate(&config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &config, nil
}

// setDefaults configures default values for all configuration options
func setDefaults() {
	viper.SetDefault("source.resolution", 10)
	viper.SetDefault("source.pixel_max", 10_000_000)
	viper.SetDefault("source.buffer_pixels", 0.0)

	viper.SetDefault("cache.directory", "./dem")

	viper.SetDefault("network.max_conns_per_host", 10)
	viper.SetDefault("network.timeout", 10*time.Minute)
	viper.SetDefault("network.retry_attempts", 5)
	viper.SetDefault("network.retry_backoff", 500*time.Millisecond)

	viper.SetDefault("logging.verbose", false)
}

// Validate validates the configuration structure and values
func Validate(config *Config) error {
	if _, err := sourcepool.ParseResolution(config.Source.Resolution); err != nil {
		return fmt.Errorf("source configuration invalid: %w", err)
	}
	if config.Source.PixelMax < 0 {
		return fmt.Errorf("source configuration invalid: pixel_max must be non-negative")
	}
	if config.Source.BufferPixels < 0 {
		return fmt.Errorf("source configuration invalid: buffer_pixels must be non-negative")
	}
	if config.Cache.Directory == "" {
		return fmt.Errorf("cache configuration invalid: directory is required")
	}
	if config.Network.MaxConnsPerHost <= 0 {
		return fmt.Errorf("network configuration invalid: max_conns_per_host must be positive")
	}
	if config.Network.Timeout <= 0 {
		return fmt.Errorf("network configuration invalid: timeout must be positive")
	}
	if config.Network.RetryAttempts < 0 {
		return fmt.Errorf("network configuration invalid: retry_attempts must be non-negative")
	}
	return nil
}
