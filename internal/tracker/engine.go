// Package tracker implements session accounting: it turns browser tab events
// into Session Log entries, closing each visit with a bounded duration.
package tracker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/JamesPrial/tabtime/internal/clock"
	"github.com/JamesPrial/tabtime/internal/config"
	"github.com/JamesPrial/tabtime/internal/storage"
	"github.com/JamesPrial/tabtime/internal/tablog"
)

// Options tunes the Engine.
type Options struct {
	Location                *time.Location
	ExcludedPrefixes        []string
	RetentionDays           int
	AggressiveRetentionDays int
	// SoftLimitBytes triggers a prune to RetentionDays before a save once the
	// serialized log grows past it. Zero disables the check.
	SoftLimitBytes int64
	// MaxSessionDuration clamps the duration recorded when closing a session.
	MaxSessionDuration time.Duration
}

// DefaultOptions returns the stock retention and clamping policy.
func DefaultOptions() Options {
	return Options{
		Location:                time.Local,
		ExcludedPrefixes:        config.DefaultExcludedPrefixes,
		RetentionDays:           90,
		AggressiveRetentionDays: 30,
		SoftLimitBytes:          5 * 1024 * 1024,
		MaxSessionDuration:      24 * time.Hour,
	}
}

// OptionsFromConfig maps the loaded configuration onto engine Options.
func OptionsFromConfig(cfg *config.Config, loc *time.Location) Options {
	opts := DefaultOptions()
	opts.Location = loc
	opts.ExcludedPrefixes = cfg.Tracking.ExcludedPrefixes
	opts.RetentionDays = cfg.Retention.Days
	opts.AggressiveRetentionDays = cfg.Retention.AggressiveDays
	opts.SoftLimitBytes = cfg.Storage.SoftLimitBytes
	return opts
}

// Engine owns the Session Log. All mutations are serialized through a
// single-writer queue.
type Engine struct {
	store  storage.Store
	clock  clock.Clock
	logger *slog.Logger
	opts   Options
	queue  *Queue
}

// NewEngine creates an Engine over store. Call Close to stop its queue.
func NewEngine(store storage.Store, clk clock.Clock, logger *slog.Logger, opts Options) *Engine {
	if clk == nil {
		clk = clock.Real{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.MaxSessionDuration <= 0 {
		opts.MaxSessionDuration = 24 * time.Hour
	}
	return &Engine{
		store:  store,
		clock:  clk,
		logger: logger,
		opts:   opts,
		queue:  NewQueue(),
	}
}

// Close stops the engine's queue.
func (e *Engine) Close() {
	e.queue.Close()
}

// Location returns the time zone used for day keys.
func (e *Engine) Location() *time.Location {
	return e.opts.Location
}

// Enabled reports the tracking-enabled flag. A missing flag means enabled;
// an unreadable one means disabled.
func (e *Engine) Enabled(ctx context.Context) bool {
	var enabled bool
	found, err := storage.GetJSON(ctx, e.store, storage.KeyTrackerEnabled, &enabled)
	if err != nil {
		e.logger.Warn("failed to read tracker flag, treating as disabled", "err", err)
		return false
	}
	if !found {
		return true
	}
	return enabled
}

// SetEnabled persists the tracking-enabled flag.
func (e *Engine) SetEnabled(ctx context.Context, enabled bool) error {
	return storage.SetJSON(ctx, e.store, storage.KeyTrackerEnabled, enabled)
}

// OpenSession appends an entry for tab starting at start.
//
// Excluded URLs and duplicate visits are skipped. Failures are logged.
func (e *Engine) OpenSession(ctx context.Context, tab Tab, start time.Time) {
	if tablog.IsExcluded(tab.URL, e.opts.ExcludedPrefixes) {
		e.logger.Debug("skipping excluded url", "tabId", tab.ID, "url", tab.URL)
		return
	}
	if !e.Enabled(ctx) {
		return
	}

	entry := tablog.NewEntry(tab.ID, tab.URL, tab.Title, clock.Millis(start))
	err := e.queue.Do(ctx, func(ctx context.Context) error {
		l, err := e.load(ctx)
		if err != nil {
			return err
		}
		dayKey, added := l.Append(entry, e.opts.Location)
		if !added {
			e.logger.Warn("duplicate session suppressed", "tabId", tab.ID, "url", tab.URL, "dayKey", dayKey)
			return nil
		}
		if err := e.save(ctx, l); err != nil {
			return err
		}
		e.logger.Info("session opened", "tabId", tab.ID, "domain", entry.Domain, "dayKey", dayKey)
		return nil
	})
	if err != nil {
		e.logger.Error("failed to open session", "tabId", tab.ID, "err", err)
	}
}

// CloseSession closes the most recent open entry for tabID.
//
// The duration is measured from start, or from the entry's own start when
// start is zero, and clamped to [0, MaxSessionDuration]. It reports whether
// an open entry was found. Disabled tracking makes this a no-op.
func (e *Engine) CloseSession(ctx context.Context, tabID int, start time.Time) bool {
	if !e.Enabled(ctx) {
		return false
	}

	found := false
	err := e.queue.Do(ctx, func(ctx context.Context) error {
		l, err := e.load(ctx)
		if err != nil {
			return err
		}
		dayKey, idx, ok := l.FindOpen(tabID)
		if !ok {
			return nil
		}
		found = true

		now := e.clock.Now()
		from := time.UnixMilli(l[dayKey][idx].TimestampStart)
		if !start.IsZero() {
			from = start
		}
		elapsed := clampDuration(now.Sub(from), e.opts.MaxSessionDuration)
		l[dayKey][idx].Close(clock.Millis(now), elapsed.Milliseconds())

		if err := e.save(ctx, l); err != nil {
			return err
		}
		e.logger.Info("session closed", "tabId", tabID, "dayKey", dayKey, "durationMs", elapsed.Milliseconds())
		return nil
	})
	if err != nil {
		e.logger.Error("failed to close session", "tabId", tabID, "err", err)
	}
	if !found && err == nil {
		e.logger.Debug("no open session to close", "tabId", tabID)
	}
	return found
}

// PruneOlderThan removes day buckets older than days before now and returns
// how many were removed.
func (e *Engine) PruneOlderThan(ctx context.Context, days int) (int, error) {
	if days <= 0 {
		return 0, fmt.Errorf("retention days must be positive, got %d", days)
	}
	removed := 0
	err := e.queue.Do(ctx, func(ctx context.Context) error {
		l, err := e.load(ctx)
		if err != nil {
			return err
		}
		cutoff := e.clock.Now().AddDate(0, 0, -days)
		e.pruneDailyStats(ctx, cutoff)
		keys := l.PruneBefore(cutoff, e.opts.Location)
		removed = len(keys)
		if removed == 0 {
			return nil
		}
		if err := e.save(ctx, l); err != nil {
			return err
		}
		e.logger.Info("pruned day buckets", "days", days, "removed", keys)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to prune session log: %w", err)
	}
	return removed, nil
}

// pruneDailyStats drops cached daily statistics for days before cutoff.
// Failures are logged; the cache is rebuilt from the log on refresh.
func (e *Engine) pruneDailyStats(ctx context.Context, cutoff time.Time) {
	var cache map[string]json.RawMessage
	found, err := storage.GetJSON(ctx, e.store, storage.KeyDailyStats, &cache)
	if err != nil {
		e.logger.Warn("failed to read daily stats for pruning", "err", err)
		return
	}
	if !found || len(cache) == 0 {
		return
	}
	limit := tablog.DayKey(clock.Millis(cutoff), e.opts.Location)
	var removed []string
	for k := range cache {
		if _, err := tablog.ParseDayKey(k, e.opts.Location); err != nil {
			continue
		}
		if k < limit {
			delete(cache, k)
			removed = append(removed, k)
		}
	}
	if len(removed) == 0 {
		return
	}
	if err := storage.SetJSON(ctx, e.store, storage.KeyDailyStats, cache); err != nil {
		e.logger.Warn("failed to save pruned daily stats", "err", err)
		return
	}
	e.logger.Info("pruned daily stats", "removed", len(removed))
}

// CompleteAllOpen closes every open entry with a fixed estimate and returns
// the number closed.
func (e *Engine) CompleteAllOpen(ctx context.Context, estimate time.Duration) (int, error) {
	closed := 0
	err := e.queue.Do(ctx, func(ctx context.Context) error {
		l, err := e.load(ctx)
		if err != nil {
			return err
		}
		for key, entries := range l {
			for i := range entries {
				if !entries[i].Open() {
					continue
				}
				end := entries[i].TimestampStart + estimate.Milliseconds()
				if l[key][i].Close(end, estimate.Milliseconds()) {
					closed++
				}
			}
		}
		if closed == 0 {
			return nil
		}
		return e.save(ctx, l)
	})
	if err != nil {
		return 0, fmt.Errorf("failed to complete open sessions: %w", err)
	}
	e.logger.Info("completed open sessions", "count", closed, "estimateMs", estimate.Milliseconds())
	return closed, nil
}

// Log returns a snapshot of the Session Log.
func (e *Engine) Log(ctx context.Context) (tablog.Log, error) {
	var l tablog.Log
	err := e.queue.Do(ctx, func(ctx context.Context) error {
		var err error
		l, err = e.load(ctx)
		return err
	})
	return l, err
}

// load reads the Session Log. A missing or undecodable value yields an
// empty log; a storage failure is returned.
func (e *Engine) load(ctx context.Context) (tablog.Log, error) {
	raw, err := e.store.Get(ctx, storage.KeyTabLogs)
	if errors.Is(err, storage.ErrNotFound) {
		return tablog.Log{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session log: %w", err)
	}

	var l tablog.Log
	if err := json.Unmarshal(raw, &l); err != nil || l == nil {
		e.logger.Warn("session log unreadable, starting empty", "err", err)
		return tablog.Log{}, nil
	}
	return l, nil
}

// save writes the Session Log. Past the soft limit it first prunes to the
// retention horizon. A failed write is retried once after an aggressive prune.
func (e *Engine) save(ctx context.Context, l tablog.Log) error {
	now := e.clock.Now()

	if e.opts.SoftLimitBytes > 0 {
		if size, err := l.Size(); err == nil && int64(size) > e.opts.SoftLimitBytes {
			removed := l.PruneBefore(now.AddDate(0, 0, -e.opts.RetentionDays), e.opts.Location)
			e.logger.Warn("session log over soft limit, pruned",
				"sizeBytes", size, "limitBytes", e.opts.SoftLimitBytes, "removed", len(removed))
		}
	}

	err := storage.SetJSON(ctx, e.store, storage.KeyTabLogs, l)
	if err == nil {
		return nil
	}

	days := e.opts.AggressiveRetentionDays
	if days <= 0 {
		return fmt.Errorf("failed to save session log: %w", err)
	}
	removed := l.PruneBefore(now.AddDate(0, 0, -days), e.opts.Location)
	e.logger.Warn("save failed, retrying after prune",
		"err", err, "quota", errors.Is(err, storage.ErrQuotaExceeded), "days", days, "removed", len(removed))

	if retryErr := storage.SetJSON(ctx, e.store, storage.KeyTabLogs, l); retryErr != nil {
		return fmt.Errorf("failed to save session log after prune: %w", retryErr)
	}
	return nil
}

func clampDuration(d, limit time.Duration) time.Duration {
	if d < 0 {
		return 0
	}
	if d > limit {
		return limit
	}
	return d
}
