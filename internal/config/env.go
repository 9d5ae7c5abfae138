package config

import (
	"os"
	"strings"
)

// Environment variables that override the config file.
const (
	EnvConfig         = "TABTIME_CONFIG"
	EnvStorageBackend = "TABTIME_STORAGE_BACKEND"
	EnvDataDir        = "TABTIME_DATA_DIR"
	EnvJSONPath       = "TABTIME_JSON_PATH"
	EnvSQLitePath     = "TABTIME_SQLITE_PATH"
	EnvPostgresURL    = "TABTIME_POSTGRES_URL"
	EnvLogLevel       = "TABTIME_LOG_LEVEL"
)

// ApplyEnv overrides settings from TABTIME_* environment variables.
//
// Values are trimmed; the backend and log level are also lower-cased.
// Unset or blank variables leave the current value alone.
func (c *Config) ApplyEnv() {
	if v := strings.ToLower(trimmedEnv(EnvStorageBackend)); v != "" {
		c.Storage.Backend = v
	}
	if v := trimmedEnv(EnvDataDir); v != "" {
		c.Storage.Dir = v
	}
	if v := trimmedEnv(EnvJSONPath); v != "" {
		c.Storage.JSONFile = v
	}
	if v := trimmedEnv(EnvSQLitePath); v != "" {
		c.Storage.SQLiteFile = v
	}
	if v := trimmedEnv(EnvPostgresURL); v != "" {
		c.Storage.PostgresURL = v
	}
	if v := strings.ToLower(trimmedEnv(EnvLogLevel)); v != "" {
		c.Logging.Level = v
	}
}

func trimmedEnv(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}
