package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/JamesPrial/tabtime/internal/config"
	"github.com/JamesPrial/tabtime/internal/pathutil"
)

// GetStorageBackend returns the store described by cfg.
//
// Backends:
//   - "json" (default): a single JSON document at <dir>/<json_file>
//   - "sqlite": a database at <dir>/<sqlite_file>
//   - "postgres": the database at postgres_url
//   - "memory": a process-local map
//
// File paths must stay inside cfg.Dir. When cfg.QuotaBytes is positive the
// backend is wrapped in a LimitStore.
func GetStorageBackend(cfg config.StorageConfig) (Store, error) {
	backendType := strings.ToLower(strings.TrimSpace(cfg.Backend))
	if backendType == "" {
		backendType = config.BackendJSON
	}

	var (
		store Store
		err   error
	)

	switch backendType {
	case config.BackendJSON:
		var path string
		path, err = resolveFile(cfg.Dir, cfg.JSONFile, "tabtime.json")
		if err != nil {
			return nil, fmt.Errorf("failed to determine JSON store path: %w", err)
		}
		store = NewJSONBackend(path)

	case config.BackendSQLite:
		var path string
		path, err = resolveFile(cfg.Dir, cfg.SQLiteFile, "tabtime.db")
		if err != nil {
			return nil, fmt.Errorf("failed to determine SQLite database path: %w", err)
		}
		store, err = NewSQLiteBackend(path)
		if err != nil {
			return nil, err
		}

	case config.BackendPostgres:
		connString := strings.TrimSpace(cfg.PostgresURL)
		if connString == "" {
			return nil, fmt.Errorf("postgres backend requires a connection string")
		}
		store, err = NewPostgresBackend(connString)
		if err != nil {
			return nil, err
		}

	case config.BackendMemory:
		store = NewMemoryBackend()

	default:
		return nil, fmt.Errorf("unknown storage backend: %q. Expected 'json', 'sqlite', 'postgres' or 'memory'", backendType)
	}

	if cfg.QuotaBytes > 0 {
		store = NewLimitStore(store, cfg.QuotaBytes)
	}
	return store, nil
}

// resolveFile returns the store file path inside dir.
//
// An empty name selects fallback. The result must not escape dir.
func resolveFile(dir, name, fallback string) (string, error) {
	if strings.TrimSpace(dir) == "" {
		return "", fmt.Errorf("storage directory is not set")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create storage directory: %w", err)
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return filepath.Join(dir, fallback), nil
	}
	safePath, err := pathutil.StoreFile(dir, name)
	if err != nil {
		return "", fmt.Errorf("invalid store path %q: %w", name, err)
	}
	return safePath, nil
}
