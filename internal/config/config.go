// Package config loads tabtime's YAML configuration and applies TABTIME_*
// environment overrides on top of it.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/JamesPrial/tabtime/internal/pathutil"
)

// Storage backend names accepted in StorageConfig.Backend.
const (
	BackendJSON     = "json"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
)

// Domain attribution modes accepted in StatsConfig.Split.
const (
	SplitProportional = "proportional"
	SplitLatest       = "latest"
)

// ConfigFileName is the file name looked up inside the config directory.
const ConfigFileName = "config.yaml"

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("invalid configuration")

// Config holds all tabtime configuration.
type Config struct {
	Storage   StorageConfig   `yaml:"storage"`
	Retention RetentionConfig `yaml:"retention"`
	Tracking  TrackingConfig  `yaml:"tracking"`
	Timer     TimerConfig     `yaml:"timer"`
	Stats     StatsConfig     `yaml:"stats"`
	Logging   LoggingConfig   `yaml:"logging"`
}

type StorageConfig struct {
	Backend     string `yaml:"backend"`
	Dir         string `yaml:"dir"`
	JSONFile    string `yaml:"json_file"`
	SQLiteFile  string `yaml:"sqlite_file"`
	PostgresURL string `yaml:"postgres_url"`
	// QuotaBytes caps the size of a single stored value. Zero means unlimited.
	QuotaBytes int64 `yaml:"quota_bytes"`
	// SoftLimitBytes is the serialized Session Log size that triggers a prune before saving.
	SoftLimitBytes int64 `yaml:"soft_limit_bytes"`
}

type RetentionConfig struct {
	Days           int `yaml:"days"`
	AggressiveDays int `yaml:"aggressive_days"`
}

type TrackingConfig struct {
	ExcludedPrefixes []string `yaml:"excluded_prefixes"`
	// Timezone is an IANA name used for day keys. Empty means the local zone.
	Timezone string `yaml:"timezone"`
}

type TimerConfig struct {
	CheckpointSeconds int `yaml:"checkpoint_seconds"`
	StaleAfterHours   int `yaml:"stale_after_hours"`
}

type StatsConfig struct {
	MaxInferredMinutes     int    `yaml:"max_inferred_minutes"`
	DisabledDefaultSeconds int    `yaml:"disabled_default_seconds"`
	Split                  string `yaml:"split"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads a YAML config file at path and merges it with defaults.
// Returns an error if the file cannot be read or contains invalid YAML.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return cfg, nil
}

// LoadOrDefault loads the config at path, or returns defaults if the file
// does not exist.
func LoadOrDefault(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return DefaultConfig(), nil
	}
	return Load(path)
}

// Location returns the config file path: $TABTIME_CONFIG if set, otherwise
// <user config dir>/tabtime/config.yaml.
func Location() (string, error) {
	if p := trimmedEnv(EnvConfig); p != "" {
		return pathutil.ExpandHome(p)
	}
	dir, err := pathutil.ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, ConfigFileName), nil
}

// Resolve loads the config from Location, applies environment overrides,
// fills in the data directory and validates the result.
func Resolve() (*Config, error) {
	path, err := Location()
	if err != nil {
		return nil, err
	}
	cfg, err := LoadOrDefault(path)
	if err != nil {
		return nil, err
	}
	cfg.ApplyEnv()
	if err := cfg.ResolveDirs(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ResolveDirs expands ~ in the storage directory and defaults it to the
// XDG data directory.
func (c *Config) ResolveDirs() error {
	if c.Storage.Dir == "" {
		dir, err := pathutil.DataDir()
		if err != nil {
			return err
		}
		c.Storage.Dir = dir
		return nil
	}
	dir, err := pathutil.ExpandHome(c.Storage.Dir)
	if err != nil {
		return err
	}
	c.Storage.Dir = dir
	return nil
}

// Validate reports the first invalid setting, wrapped in ErrInvalid.
func (c *Config) Validate() error {
	switch c.Storage.Backend {
	case BackendJSON, BackendSQLite, BackendPostgres, BackendMemory:
	default:
		return fmt.Errorf("%w: unknown storage backend %q", ErrInvalid, c.Storage.Backend)
	}
	if c.Storage.Backend == BackendPostgres && c.Storage.PostgresURL == "" {
		return fmt.Errorf("%w: storage.postgres_url is required for the postgres backend", ErrInvalid)
	}
	if c.Storage.QuotaBytes < 0 || c.Storage.SoftLimitBytes < 0 {
		return fmt.Errorf("%w: storage limits must not be negative", ErrInvalid)
	}
	if c.Retention.Days <= 0 {
		return fmt.Errorf("%w: retention.days must be positive", ErrInvalid)
	}
	if c.Retention.AggressiveDays <= 0 || c.Retention.AggressiveDays > c.Retention.Days {
		return fmt.Errorf("%w: retention.aggressive_days must be in 1..%d", ErrInvalid, c.Retention.Days)
	}
	if c.Timer.CheckpointSeconds <= 0 {
		return fmt.Errorf("%w: timer.checkpoint_seconds must be positive", ErrInvalid)
	}
	if c.Timer.StaleAfterHours <= 0 {
		return fmt.Errorf("%w: timer.stale_after_hours must be positive", ErrInvalid)
	}
	if c.Stats.MaxInferredMinutes <= 0 || c.Stats.DisabledDefaultSeconds <= 0 {
		return fmt.Errorf("%w: stats durations must be positive", ErrInvalid)
	}
	switch c.Stats.Split {
	case SplitProportional, SplitLatest:
	default:
		return fmt.Errorf("%w: unknown stats.split %q", ErrInvalid, c.Stats.Split)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("%w: unknown logging.level %q", ErrInvalid, c.Logging.Level)
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("%w: unknown logging.format %q", ErrInvalid, c.Logging.Format)
	}
	if _, err := c.Tracking.LoadLocation(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return nil
}

// LoadLocation returns the configured time zone, or time.Local when unset.
func (t TrackingConfig) LoadLocation() (*time.Location, error) {
	if t.Timezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(t.Timezone)
	if err != nil {
		return nil, fmt.Errorf("failed to load timezone %q: %w", t.Timezone, err)
	}
	return loc, nil
}

// CheckpointInterval returns the timer checkpoint period.
func (t TimerConfig) CheckpointInterval() time.Duration {
	return time.Duration(t.CheckpointSeconds) * time.Second
}

// StaleAfter returns the running-timer staleness ceiling.
func (t TimerConfig) StaleAfter() time.Duration {
	return time.Duration(t.StaleAfterHours) * time.Hour
}

// MaxInferred returns the ceiling for inferred interval lengths.
func (s StatsConfig) MaxInferred() time.Duration {
	return time.Duration(s.MaxInferredMinutes) * time.Minute
}

// DisabledDefault returns the interval length assumed for the newest entry
// while tracking is disabled.
func (s StatsConfig) DisabledDefault() time.Duration {
	return time.Duration(s.DisabledDefaultSeconds) * time.Second
}
