// Package storage provides the persistent key-value store used by tabtime.
//
// The store is deliberately passive: it has no transactions and no notion of
// ownership. Components that write a key are the authority for the shape of
// its value. All backends must implement the Store interface.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// Well-known keys written by the tabtime components.
const (
	// KeyTabLogs holds the Session Log: {dayKey: [LogEntry...]}.
	KeyTabLogs = "tabLogs"

	// KeyDailyStats holds the derived per-day, per-domain statistics cache.
	KeyDailyStats = "dailyStats"

	// KeyTimerState holds the singleton timer record.
	KeyTimerState = "timerState"

	// KeyTrackerEnabled holds the tracking-enabled flag.
	KeyTrackerEnabled = "isTabTrackerEnabled"

	// KeySchemaVersion records the last applied schema migration.
	KeySchemaVersion = "schemaVersion"
)

// ErrNotFound is returned by Get when a key has never been written or was removed.
var ErrNotFound = errors.New("key not found")

// ErrQuotaExceeded is returned by Set when the value does not fit the store's quota.
var ErrQuotaExceeded = errors.New("storage quota exceeded")

// Store defines the contract for a persistent key-value store.
//
// Values are opaque JSON documents. Implementations must make each Set
// atomic per key so a reader never observes a partially written value.
type Store interface {
	// Get returns the raw value stored under key.
	//
	// Returns ErrNotFound if the key does not exist.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set replaces the value stored under key.
	Set(ctx context.Context, key string, value []byte) error

	// Remove deletes key. Removing a missing key is not an error.
	Remove(ctx context.Context, key string) error

	// Close releases any resources held by the backend.
	Close() error
}

// GetJSON reads key and unmarshals it into v.
//
// Returns (false, nil) if the key does not exist, leaving v untouched.
func GetJSON(ctx context.Context, s Store, key string, v any) (bool, error) {
	data, err := s.Get(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return true, fmt.Errorf("failed to decode %q: %w", key, err)
	}
	return true, nil
}

// SetJSON marshals v and stores it under key.
func SetJSON(ctx context.Context, s Store, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode %q: %w", key, err)
	}
	return s.Set(ctx, key, data)
}
