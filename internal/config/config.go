// Package config loads CLI and store configuration from an optional YAML
// file and AIVOSEQ_* environment variables.
//
// Precedence, lowest to highest: built-in defaults, the YAML file named
// by AIVOSEQ_CONFIG_PATH, then individual environment overrides.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the aivoseq CLI.
type Config struct {
	Store    StoreConfig    `yaml:"store"`
	Postgres PostgresConfig `yaml:"postgres"`
	Redis    RedisConfig    `yaml:"redis"`
	Log      LogConfig      `yaml:"log"`
}

// StoreConfig configures the embedded SQLite store.
type StoreConfig struct {
	// Path is the SQLite database file.
	Path string `yaml:"path"`
}

// PostgresConfig configures the platform PostgreSQL store.
type PostgresConfig struct {
	// URL selects PostgreSQL as the run-state backend when set; empty
	// selects the embedded SQLite store.
	URL string `yaml:"url"`
}

// RedisConfig configures the cross-node registration lock.
type RedisConfig struct {
	// URL enables the registration lock when set; empty disables it,
	// which is fine for single-node use.
	URL string `yaml:"url"`

	// LockTTL bounds how long a crashed holder can block a registration.
	LockTTL Duration `yaml:"lockTtl"`
}

// LogConfig configures logging.
type LogConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `yaml:"level"`
}

// SlogLevel maps the configured level onto slog.
func (c LogConfig) SlogLevel() (slog.Level, error) {
	switch c.Level {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return 0, fmt.Errorf("unknown log level %q", c.Level)
}

// Duration is a time.Duration that unmarshals from YAML strings like
// "30s" or "2m".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the duration as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Load reads configuration from the optional YAML file and environment
// variables over built-in defaults.
func Load() (Config, error) {
	cfg := Config{
		Store: StoreConfig{Path: "aivoseq.db"},
		Redis: RedisConfig{LockTTL: Duration(30 * time.Second)},
		Log:   LogConfig{Level: "info"},
	}

	if path := os.Getenv("AIVOSEQ_CONFIG_PATH"); path != "" {
		if err := loadFromFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}

	if path := os.Getenv("AIVOSEQ_STORE_PATH"); path != "" {
		cfg.Store.Path = path
	}
	if url := os.Getenv("AIVOSEQ_POSTGRES_URL"); url != "" {
		cfg.Postgres.URL = url
	}
	if url := os.Getenv("AIVOSEQ_REDIS_URL"); url != "" {
		cfg.Redis.URL = url
	}
	if ttl := os.Getenv("AIVOSEQ_LOCK_TTL"); ttl != "" {
		parsed, err := time.ParseDuration(ttl)
		if err != nil {
			return Config{}, fmt.Errorf("invalid AIVOSEQ_LOCK_TTL: %w", err)
		}
		cfg.Redis.LockTTL = Duration(parsed)
	}
	if level := os.Getenv("AIVOSEQ_LOG_LEVEL"); level != "" {
		cfg.Log.Level = level
	}

	if _, err := cfg.Log.SlogLevel(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func loadFromFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	return nil
}
