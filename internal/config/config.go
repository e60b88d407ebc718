// Package config provides application configuration with multi-source priority.
//
// Configuration sources (highest to lowest priority):
//  1. Environment variables (ELEPHANT_* — runtime override)
//  2. Config file (~/.elephant/config.yaml)
//  3. Default values
//
// Main configuration categories:
//   - Storage: PostgreSQL connection (see storage.go)
//   - Retrieval: cache sizing/TTL, ranking defaults, personality tables
//   - Server: HTTP listen address, rate limiting
//
// Sensitive data (the database password) is never logged. Validation uses
// sentinel errors so callers can check with errors.Is().
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

var (
	// ErrInvalidPostgresHost indicates the PostgreSQL host is invalid.
	ErrInvalidPostgresHost = errors.New("invalid PostgreSQL host")

	// ErrInvalidPostgresPort indicates the PostgreSQL port is out of range.
	ErrInvalidPostgresPort = errors.New("invalid PostgreSQL port")

	// ErrInvalidPostgresDBName indicates the PostgreSQL database name is invalid.
	ErrInvalidPostgresDBName = errors.New("invalid PostgreSQL database name")

	// ErrInvalidPostgresSSLMode indicates the PostgreSQL SSL mode is invalid.
	ErrInvalidPostgresSSLMode = errors.New("invalid PostgreSQL SSL mode")

	// ErrInvalidCacheSize indicates a cache size is out of range.
	ErrInvalidCacheSize = errors.New("invalid cache size")

	// ErrInvalidCacheTTL indicates the search cache TTL is out of range.
	ErrInvalidCacheTTL = errors.New("invalid cache TTL")

	// ErrInvalidPersonality indicates a personality table is malformed.
	ErrInvalidPersonality = errors.New("invalid personality configuration")

	// ErrInvalidListenAddr indicates the HTTP listen address is invalid.
	ErrInvalidListenAddr = errors.New("invalid listen address")
)

// Defaults for the retrieval core.
const (
	// DefaultSearchCacheTTL is how long ranked search results stay cached.
	DefaultSearchCacheTTL = time.Hour

	// DefaultSearchCacheSize bounds the knowledge search cache (entries).
	DefaultSearchCacheSize = 512

	// DefaultHistoryCacheSize bounds the conversation history cache (entries).
	DefaultHistoryCacheSize = 1024

	// DefaultPersonality is used when a caller passes an empty personality id.
	DefaultPersonality = "syntaxprime"
)

// Personality defines a table-driven scoring strategy for knowledge ranking.
// All multipliers default to 1.0 when zero. See knowledge.Registry for how
// the table is evaluated.
type Personality struct {
	// ContentTypeWeights maps entry content_type to a multiplier.
	ContentTypeWeights map[string]float64 `mapstructure:"content_type_weights" json:"content_type_weights"`

	// ShortWordLimit/ShortWeight boost (or penalize) entries below the limit.
	ShortWordLimit int     `mapstructure:"short_word_limit" json:"short_word_limit"`
	ShortWeight    float64 `mapstructure:"short_weight" json:"short_weight"`

	// LongWordLimit/LongWeight apply to entries above the limit.
	LongWordLimit int     `mapstructure:"long_word_limit" json:"long_word_limit"`
	LongWeight    float64 `mapstructure:"long_weight" json:"long_weight"`
}

// Config stores application configuration.
type Config struct {
	// Logging
	LogLevel string `mapstructure:"log_level" json:"log_level"` // debug, info, warn, error
	LogJSON  bool   `mapstructure:"log_json" json:"log_json"`

	// HTTP server
	ListenAddr string `mapstructure:"listen_addr" json:"listen_addr"`
	TrustProxy bool   `mapstructure:"trust_proxy" json:"trust_proxy"`
	RateBurst  int    `mapstructure:"rate_burst" json:"rate_burst"`

	// PostgreSQL connection (see storage.go for DSN/URL builders)
	PostgresHost     string `mapstructure:"postgres_host" json:"postgres_host"`
	PostgresPort     int    `mapstructure:"postgres_port" json:"postgres_port"`
	PostgresUser     string `mapstructure:"postgres_user" json:"postgres_user"`
	PostgresPassword string `mapstructure:"postgres_password" json:"-"`
	PostgresDBName   string `mapstructure:"postgres_dbname" json:"postgres_dbname"`
	PostgresSSLMode  string `mapstructure:"postgres_sslmode" json:"postgres_sslmode"`

	// Retrieval core tuning
	SearchCacheTTL   time.Duration `mapstructure:"search_cache_ttl" json:"search_cache_ttl"`
	SearchCacheSize  int           `mapstructure:"search_cache_size" json:"search_cache_size"`
	HistoryCacheSize int           `mapstructure:"history_cache_size" json:"history_cache_size"`

	// Personalities defines additional scoring strategies by id. Built-in
	// strategies are always registered; entries here extend or override them.
	Personalities map[string]Personality `mapstructure:"personalities" json:"personalities"`
}

// Load reads configuration from defaults, the config file, and environment.
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetEnvPrefix("ELEPHANT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Config file is optional: missing file is fine, malformed file is not.
	if dir, err := configDir(); err == nil {
		v.AddConfigPath(dir)
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("reading config file: %w", err)
			}
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	// DATABASE_URL overrides the individual postgres_* settings.
	if err := cfg.parseDatabaseURL(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// setDefaults registers default values for all settings.
func setDefaults(v *viper.Viper) {
	v.SetDefault("log_level", "info")
	v.SetDefault("log_json", false)

	v.SetDefault("listen_addr", "127.0.0.1:8787")
	v.SetDefault("trust_proxy", false)
	v.SetDefault("rate_burst", 60)

	v.SetDefault("postgres_host", "localhost")
	v.SetDefault("postgres_port", 5432)
	v.SetDefault("postgres_user", "elephant")
	v.SetDefault("postgres_password", "")
	v.SetDefault("postgres_dbname", "elephant")
	v.SetDefault("postgres_sslmode", "disable")

	v.SetDefault("search_cache_ttl", DefaultSearchCacheTTL)
	v.SetDefault("search_cache_size", DefaultSearchCacheSize)
	v.SetDefault("history_cache_size", DefaultHistoryCacheSize)
}

// Validate checks configuration values and returns a sentinel error on the
// first violation.
func (c *Config) Validate() error {
	if c.PostgresHost == "" {
		return ErrInvalidPostgresHost
	}
	if c.PostgresPort < 1 || c.PostgresPort > 65535 {
		return fmt.Errorf("%w: %d", ErrInvalidPostgresPort, c.PostgresPort)
	}
	if c.PostgresDBName == "" {
		return ErrInvalidPostgresDBName
	}
	switch c.PostgresSSLMode {
	case "disable", "allow", "prefer", "require", "verify-ca", "verify-full":
	default:
		return fmt.Errorf("%w: %q", ErrInvalidPostgresSSLMode, c.PostgresSSLMode)
	}
	if c.ListenAddr == "" {
		return ErrInvalidListenAddr
	}
	if c.SearchCacheSize < 1 || c.HistoryCacheSize < 1 {
		return fmt.Errorf("%w: search=%d history=%d",
			ErrInvalidCacheSize, c.SearchCacheSize, c.HistoryCacheSize)
	}
	if c.SearchCacheTTL < time.Second {
		return fmt.Errorf("%w: %s", ErrInvalidCacheTTL, c.SearchCacheTTL)
	}
	for id, p := range c.Personalities {
		if err := validatePersonality(id, p); err != nil {
			return err
		}
	}
	return nil
}

// validatePersonality rejects tables with non-positive multipliers or
// inverted word limits.
func validatePersonality(id string, p Personality) error {
	if id == "" {
		return fmt.Errorf("%w: empty personality id", ErrInvalidPersonality)
	}
	for ct, w := range p.ContentTypeWeights {
		if w <= 0 {
			return fmt.Errorf("%w: %s content_type %q weight %v",
				ErrInvalidPersonality, id, ct, w)
		}
	}
	if p.ShortWeight < 0 || p.LongWeight < 0 {
		return fmt.Errorf("%w: %s negative word weight", ErrInvalidPersonality, id)
	}
	if p.ShortWordLimit > 0 && p.LongWordLimit > 0 && p.ShortWordLimit >= p.LongWordLimit {
		return fmt.Errorf("%w: %s short_word_limit %d >= long_word_limit %d",
			ErrInvalidPersonality, id, p.ShortWordLimit, p.LongWordLimit)
	}
	return nil
}

// SlogLevel maps the configured log level string to a slog.Level.
// Unknown values fall back to info.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// configDir returns ~/.elephant, creating it if needed.
func configDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolving home directory: %w", err)
	}
	dir := filepath.Join(home, ".elephant")
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", fmt.Errorf("creating config directory: %w", err)
	}
	return dir, nil
}
