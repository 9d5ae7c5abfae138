package tablog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/JamesPrial/tabtime/internal/storage"
)

// legacyRealTimeStatsKey is a cache key written by old releases and never read.
const legacyRealTimeStatsKey = "realTimeStats"

// migration represents a single schema migration of the persisted state.
type migration struct {
	Version int
	Name    string
	Apply   func(ctx context.Context, r *MigrationRunner) error
}

// MigrationRunner applies pending migrations to a Store and records the last
// applied version under storage.KeySchemaVersion.
type MigrationRunner struct {
	store      storage.Store
	loc        *time.Location
	logger     *slog.Logger
	migrations []migration
}

// NewMigrationRunner creates a MigrationRunner with all registered migrations.
func NewMigrationRunner(store storage.Store, loc *time.Location, logger *slog.Logger) *MigrationRunner {
	if loc == nil {
		loc = time.Local
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &MigrationRunner{
		store:  store,
		loc:    loc,
		logger: logger,
		migrations: []migration{
			{Version: 1, Name: "day_buckets", Apply: migrateV001},
			{Version: 2, Name: "millisecond_entries", Apply: migrateV002},
			{Version: 3, Name: "drop_realtime_stats", Apply: migrateV003},
		},
	}
}

// LatestVersion returns the highest registered migration version.
func (r *MigrationRunner) LatestVersion() int {
	return r.migrations[len(r.migrations)-1].Version
}

// Version returns the recorded schema version, 0 if none.
func (r *MigrationRunner) Version(ctx context.Context) (int, error) {
	var v int
	if _, err := storage.GetJSON(ctx, r.store, storage.KeySchemaVersion, &v); err != nil {
		return 0, fmt.Errorf("failed to read schema version: %w", err)
	}
	return v, nil
}

// Run applies every migration newer than the recorded version, in order,
// recording each one as it completes. It returns the number applied.
func (r *MigrationRunner) Run(ctx context.Context) (int, error) {
	current, err := r.Version(ctx)
	if err != nil {
		return 0, err
	}

	applied := 0
	for _, m := range r.migrations {
		if m.Version <= current {
			continue
		}
		if err := m.Apply(ctx, r); err != nil {
			return applied, fmt.Errorf("failed to apply migration %d (%s): %w", m.Version, m.Name, err)
		}
		if err := storage.SetJSON(ctx, r.store, storage.KeySchemaVersion, m.Version); err != nil {
			return applied, fmt.Errorf("failed to record migration %d: %w", m.Version, err)
		}
		r.logger.Info("applied migration", "version", m.Version, "name", m.Name)
		applied++
	}
	return applied, nil
}

// migrateV001 converts an array-shaped tabLogs value into day buckets.
func migrateV001(ctx context.Context, r *MigrationRunner) error {
	raw, err := r.store.Get(ctx, storage.KeyTabLogs)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil
		}
		return err
	}
	if !strings.HasPrefix(strings.TrimSpace(string(raw)), "[") {
		return nil
	}

	var entries []map[string]any
	if err := json.Unmarshal(raw, &entries); err != nil {
		return fmt.Errorf("failed to decode legacy tabLogs array: %w", err)
	}

	buckets := make(map[string][]map[string]any)
	dropped := 0
	for _, e := range entries {
		start, ok := legacyStart(e)
		if !ok {
			dropped++
			continue
		}
		key := DayKey(start, r.loc)
		buckets[key] = append(buckets[key], e)
	}

	r.logger.Info("bucketed legacy tabLogs array",
		"entries", len(entries), "days", len(buckets), "dropped", dropped)
	return storage.SetJSON(ctx, r.store, storage.KeyTabLogs, buckets)
}

// migrateV002 rewrites entries still using ISO timestamp fields into the
// millisecond schema and fills in missing ids, titles and domains.
func migrateV002(ctx context.Context, r *MigrationRunner) error {
	var buckets map[string][]map[string]any
	found, err := storage.GetJSON(ctx, r.store, storage.KeyTabLogs, &buckets)
	if err != nil {
		return err
	}
	if !found {
		return nil
	}

	out := make(Log, len(buckets))
	dropped := 0
	for key, entries := range buckets {
		for _, raw := range entries {
			e, ok := convertLegacy(raw)
			if !ok {
				dropped++
				continue
			}
			out[key] = append(out[key], e)
		}
	}

	if dropped > 0 {
		r.logger.Warn("dropped entries without a start time", "count", dropped)
	}
	return storage.SetJSON(ctx, r.store, storage.KeyTabLogs, out)
}

// migrateV003 removes the obsolete realTimeStats cache.
func migrateV003(ctx context.Context, r *MigrationRunner) error {
	return r.store.Remove(ctx, legacyRealTimeStatsKey)
}

// convertLegacy maps one decoded entry, old or new shape, onto LogEntry.
func convertLegacy(raw map[string]any) (LogEntry, bool) {
	start, ok := legacyStart(raw)
	if !ok {
		return LogEntry{}, false
	}

	e := LogEntry{
		TimestampStart: start,
		TabID:          int(number(raw["tabId"])),
		URL:            str(raw["url"]),
		Domain:         str(raw["domain"]),
		Title:          str(raw["title"]),
		ID:             str(raw["id"]),
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if strings.TrimSpace(e.Title) == "" {
		e.Title = UntitledPlaceholder
	}
	if e.Domain == "" {
		e.Domain = ExtractDomain(e.URL)
	}

	if end, ok := timeValue(raw["endTime"]); ok && end >= start {
		e.EndTime = &end
	}

	if d, ok := raw["actualDurationMs"].(float64); ok && d >= 0 {
		ms := int64(d)
		e.ActualDurationMs = &ms
	} else if d, ok := raw["actualTime"].(float64); ok && d > 0 {
		ms := int64(d)
		e.ActualDurationMs = &ms
	}

	return e, true
}

// legacyStart returns the entry's start in epoch ms from timestampStart,
// startTime or timestamp, in that order.
func legacyStart(raw map[string]any) (int64, bool) {
	for _, field := range []string{"timestampStart", "startTime", "timestamp"} {
		if ms, ok := timeValue(raw[field]); ok {
			return ms, true
		}
	}
	return 0, false
}

// timeValue accepts epoch milliseconds or an RFC 3339 string.
func timeValue(v any) (int64, bool) {
	switch t := v.(type) {
	case float64:
		if t > 0 {
			return int64(t), true
		}
	case string:
		if ts, err := time.Parse(time.RFC3339Nano, t); err == nil {
			return ts.UnixMilli(), true
		}
	}
	return 0, false
}

func number(v any) float64 {
	f, _ := v.(float64)
	return f
}

func str(v any) string {
	s, _ := v.(string)
	return s
}
