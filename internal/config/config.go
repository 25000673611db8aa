// Package config provides configuration management for the tracking engine.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Tracking TrackingConfig `mapstructure:"tracking"`
	Store    StoreConfig    `mapstructure:"store"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// TrackingConfig holds position tracking configuration.
type TrackingConfig struct {
	// DisplayDigits is the number of fractional digits used when rounding
	// quantities and money for display. Internal math is full precision.
	DisplayDigits int32 `mapstructure:"display_digits"`
	// ReturnOfCapitalDefault controls whether special dividends reduce cost
	// basis when the action itself does not say.
	ReturnOfCapitalDefault bool `mapstructure:"return_of_capital_default"`
	// ReconcileTolerance is the maximum acceptable quantity drift against
	// the broker-reported position, in shares.
	ReconcileTolerance string `mapstructure:"reconcile_tolerance"`
}

// StoreConfig holds persistence configuration.
type StoreConfig struct {
	DBPath       string `mapstructure:"db_path"`
	SnapshotPath string `mapstructure:"snapshot_path"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level   string `mapstructure:"level"`
	Console bool   `mapstructure:"console"`
	File    bool   `mapstructure:"file"`
}

// DefaultConfigDir returns the default configuration directory.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".alpaca-tracker"
	}
	return filepath.Join(home, ".config", "alpaca-tracker")
}

// Default returns the default configuration.
func Default() *Config {
	dir := DefaultConfigDir()
	return &Config{
		Tracking: TrackingConfig{
			DisplayDigits:          6,
			ReturnOfCapitalDefault: false,
			ReconcileTolerance:     "0.000001",
		},
		Store: StoreConfig{
			DBPath:       filepath.Join(dir, "tracker.db"),
			SnapshotPath: filepath.Join(dir, "snapshot.json"),
		},
		Logging: LoggingConfig{
			Level:   "info",
			Console: true,
			File:    true,
		},
	}
}

// Load reads configuration from the given directory, falling back to
// defaults when no config file exists.
func Load(configDir string) (*Config, error) {
	if configDir == "" {
		configDir = DefaultConfigDir()
	}

	cfg := Default()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(configDir)

	v.SetDefault("tracking.display_digits", cfg.Tracking.DisplayDigits)
	v.SetDefault("tracking.return_of_capital_default", cfg.Tracking.ReturnOfCapitalDefault)
	v.SetDefault("tracking.reconcile_tolerance", cfg.Tracking.ReconcileTolerance)
	v.SetDefault("store.db_path", cfg.Store.DBPath)
	v.SetDefault("store.snapshot_path", cfg.Store.SnapshotPath)
	v.SetDefault("logging.level", cfg.Logging.Level)
	v.SetDefault("logging.console", cfg.Logging.Console)
	v.SetDefault("logging.file", cfg.Logging.File)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	if c.Tracking.DisplayDigits < 0 || c.Tracking.DisplayDigits > 18 {
		return fmt.Errorf("tracking.display_digits must be between 0 and 18, got %d", c.Tracking.DisplayDigits)
	}
	if c.Store.DBPath == "" {
		return fmt.Errorf("store.db_path must not be empty")
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be one of debug, info, warn, error")
	}
	return nil
}
