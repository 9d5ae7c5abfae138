// Package app wires the store, session accounting, timer and aggregation
// together and dispatches host messages to them.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/JamesPrial/tabtime/internal/clock"
	"github.com/JamesPrial/tabtime/internal/config"
	"github.com/JamesPrial/tabtime/internal/hook"
	"github.com/JamesPrial/tabtime/internal/stats"
	"github.com/JamesPrial/tabtime/internal/storage"
	"github.com/JamesPrial/tabtime/internal/tablog"
	"github.com/JamesPrial/tabtime/internal/timer"
	"github.com/JamesPrial/tabtime/internal/tracker"
)

// DebugCompleteEstimate is the duration given to every open entry by
// DEBUG_COMPLETE_ALL_LOGS.
const DebugCompleteEstimate = 30 * time.Second

const (
	debugRecentDays  = 7
	debugLastEntries = 3
)

// App owns one process's worth of tabtime components.
type App struct {
	cfg    *config.Config
	store  storage.Store
	clock  clock.Clock
	logger *slog.Logger
	loc    *time.Location

	browser    *tracker.Snapshot
	engine     *tracker.Engine
	tracker    *tracker.Tracker
	timer      *timer.Timer
	aggregator *stats.Aggregator
	migrations *tablog.MigrationRunner
}

// Open builds the configured store and an App over it.
func Open(cfg *config.Config, logger *slog.Logger) (*App, error) {
	store, err := storage.GetStorageBackend(cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	a, err := New(cfg, store, clock.Real{}, logger)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	return a, nil
}

// New builds an App over store. The App takes ownership of store.
func New(cfg *config.Config, store storage.Store, clk clock.Clock, logger *slog.Logger) (*App, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if clk == nil {
		clk = clock.Real{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	loc, err := cfg.Tracking.LoadLocation()
	if err != nil {
		return nil, err
	}

	browser := tracker.NewSnapshot()
	engine := tracker.NewEngine(store, clk, logger.With("component", "engine"), tracker.OptionsFromConfig(cfg, loc))
	return &App{
		cfg:        cfg,
		store:      store,
		clock:      clk,
		logger:     logger,
		loc:        loc,
		browser:    browser,
		engine:     engine,
		tracker:    tracker.NewTracker(engine, browser, clk, logger.With("component", "tracker")),
		timer:      timer.New(store, clk, logger.With("component", "timer"), timer.OptionsFromConfig(cfg.Timer)),
		aggregator: stats.NewAggregator(store, clk, logger.With("component", "stats"), stats.OptionsFromConfig(cfg.Stats, loc)),
		migrations: tablog.NewMigrationRunner(store, loc, logger.With("component", "migrations")),
	}, nil
}

// Close stops background work and releases the store.
func (a *App) Close() error {
	a.timer.Close()
	a.engine.Close()
	if err := a.store.Close(); err != nil {
		return fmt.Errorf("failed to close store: %w", err)
	}
	return nil
}

func (a *App) Location() *time.Location { return a.loc }
func (a *App) Browser() *tracker.Snapshot { return a.browser }
func (a *App) Engine() *tracker.Engine { return a.engine }
func (a *App) Tracker() *tracker.Tracker { return a.tracker }
func (a *App) Timer() *timer.Timer { return a.timer }
func (a *App) Aggregator() *stats.Aggregator { return a.aggregator }
func (a *App) Migrations() *tablog.MigrationRunner { return a.migrations }

// Install runs the install/update lifecycle hook. A fresh install resets
// the tracking flag, the Session Log and the timer; any other reason only
// fills in keys that are missing. Both then migrate, prune and recover.
func (a *App) Install(ctx context.Context, reason string) error {
	a.logger.Info("install hook", "reason", reason)

	defaults := []struct {
		key   string
		value any
	}{
		{storage.KeyTrackerEnabled, true},
		{storage.KeyTabLogs, tablog.Log{}},
		{storage.KeyTimerState, timer.State{Status: timer.Paused}},
	}
	for _, d := range defaults {
		if reason != hook.ReasonInstall {
			_, err := a.store.Get(ctx, d.key)
			if err == nil {
				continue
			}
			if !errors.Is(err, storage.ErrNotFound) {
				return fmt.Errorf("failed to read %s: %w", d.key, err)
			}
		}
		if err := storage.SetJSON(ctx, a.store, d.key, d.value); err != nil {
			return fmt.Errorf("failed to initialise %s: %w", d.key, err)
		}
	}

	if err := a.Migrate(ctx); err != nil {
		return err
	}
	if _, err := a.engine.PruneOlderThan(ctx, a.cfg.Retention.Days); err != nil {
		a.logger.Warn("prune on install failed", "err", err)
	}
	a.Startup(ctx)
	return nil
}

// Migrate applies pending schema migrations.
func (a *App) Migrate(ctx context.Context) error {
	if _, err := a.migrations.Run(ctx); err != nil {
		return fmt.Errorf("failed to migrate store: %w", err)
	}
	return nil
}

// Startup reloads the timer and re-derives the current tab from the
// browser. It is used for process start and activation; nothing kept in
// memory is trusted.
func (a *App) Startup(ctx context.Context) {
	a.timer.Recover(ctx)
	a.tracker.Recover(ctx)
}

// Shutdown closes the current session before the process exits.
func (a *App) Shutdown(ctx context.Context) {
	a.tracker.Shutdown(ctx)
}

// Report computes a usage report.
func (a *App) Report(ctx context.Context, q stats.Query) (stats.Report, error) {
	return a.aggregator.Report(ctx, q)
}

// Prune removes day buckets older than days; zero means the configured
// retention.
func (a *App) Prune(ctx context.Context, days int) (int, error) {
	if days == 0 {
		days = a.cfg.Retention.Days
	}
	return a.engine.PruneOlderThan(ctx, days)
}

// SetTracking persists the tracking flag and follows the focused tab when
// enabling.
func (a *App) SetTracking(ctx context.Context, enabled bool) error {
	return a.tracker.SetEnabled(ctx, enabled)
}

// TrackingEnabled reports the tracking flag.
func (a *App) TrackingEnabled(ctx context.Context) bool {
	return a.engine.Enabled(ctx)
}

// Debug summarises the Session Log and the tracked tab.
func (a *App) Debug(ctx context.Context) (hook.DebugInfo, error) {
	l, err := a.engine.Log(ctx)
	if err != nil {
		return hook.DebugInfo{}, err
	}
	keys := l.Keys()
	today := tablog.DayKey(clock.NowMillis(a.clock), a.loc)
	info := hook.DebugInfo{
		Days:            len(l),
		Entries:         l.Len(),
		Open:            l.OpenCount(),
		TodayKey:        today,
		TodayEntries:    len(l[today]),
		RecentDays:      keys[max(len(keys)-debugRecentDays, 0):],
		TrackingEnabled: a.engine.Enabled(ctx),
		LastEntries:     []tablog.LogEntry{},
	}
	if len(keys) > 0 {
		last := l[keys[len(keys)-1]]
		info.LastEntries = last[max(len(last)-debugLastEntries, 0):]
	}
	if cur, ok := a.tracker.Current(); ok {
		info.CurrentTab = &cur
	}
	return info, nil
}

// ForceLogCurrentTab opens a session for the focused tab as if it had just
// been activated. The tracked-tab state is not changed. It reports false
// when no tab is active.
func (a *App) ForceLogCurrentTab(ctx context.Context) (tracker.Tab, bool, error) {
	tab, ok, err := a.browser.FocusedTab(ctx)
	if err != nil || !ok {
		return tracker.Tab{}, false, err
	}
	a.engine.OpenSession(ctx, tab, a.clock.Now())
	a.logger.Info("forced session for focused tab", "tabId", tab.ID, "url", tab.URL)
	return tab, true, nil
}

// CompleteAll closes every open entry with DebugCompleteEstimate.
func (a *App) CompleteAll(ctx context.Context) (int, error) {
	return a.engine.CompleteAllOpen(ctx, DebugCompleteEstimate)
}
