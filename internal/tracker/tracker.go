package tracker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/JamesPrial/tabtime/internal/clock"
	"github.com/JamesPrial/tabtime/internal/tablog"
)

// Current is the tab being tracked and when its session started.
type Current struct {
	TabID int       `json:"tabId"`
	Start time.Time `json:"start"`
}

// Tracker maps browser events onto Engine operations.
//
// It owns the process-local "current tab" state, which never survives a
// restart: Recover re-derives it from the browser.
type Tracker struct {
	mu      sync.Mutex
	engine  *Engine
	browser Browser
	clock   clock.Clock
	logger  *slog.Logger
	current *Current
}

// NewTracker returns a Tracker with no current tab.
func NewTracker(engine *Engine, browser Browser, clk clock.Clock, logger *slog.Logger) *Tracker {
	if clk == nil {
		clk = clock.Real{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Tracker{
		engine:  engine,
		browser: browser,
		clock:   clk,
		logger:  logger,
	}
}

// Current returns the tracked tab, if any.
func (t *Tracker) Current() (Current, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.current == nil {
		return Current{}, false
	}
	return *t.current, true
}

// TabActivated closes the current session and opens one for tab.
func (t *Tracker) TabActivated(ctx context.Context, tab Tab) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.engine.Enabled(ctx) {
		return
	}
	t.closeCurrentLocked(ctx)

	now := t.clock.Now()
	t.current = &Current{TabID: tab.ID, Start: now}
	t.engine.OpenSession(ctx, tab, now)
}

// TabUpdated handles a URL change. Navigation in the tracked tab rolls its
// session over; navigation in a background tab only closes its open entry.
func (t *Tracker) TabUpdated(ctx context.Context, tab Tab) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.engine.Enabled(ctx) {
		return
	}

	if t.current != nil && t.current.TabID == tab.ID {
		t.engine.CloseSession(ctx, tab.ID, t.current.Start)
		now := t.clock.Now()
		t.current.Start = now
		t.engine.OpenSession(ctx, tab, now)
		return
	}

	t.engine.CloseSession(ctx, tab.ID, time.Time{})
}

// TabRemoved closes the removed tab's open entry and clears it if tracked.
func (t *Tracker) TabRemoved(ctx context.Context, tabID int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.engine.Enabled(ctx) {
		return
	}

	if t.current != nil && t.current.TabID == tabID {
		t.engine.CloseSession(ctx, tabID, t.current.Start)
		t.current = nil
		return
	}

	t.engine.CloseSession(ctx, tabID, time.Time{})
}

// WindowFocusChanged closes the current session and, unless focus left the
// browser, starts tracking the newly focused window's active tab.
func (t *Tracker) WindowFocusChanged(ctx context.Context, windowID int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.engine.Enabled(ctx) {
		return
	}
	t.closeCurrentLocked(ctx)

	if windowID == WindowNone {
		t.logger.Debug("browser lost focus")
		return
	}

	tab, ok, err := t.browser.ActiveTab(ctx, windowID)
	if err != nil {
		t.logger.Error("failed to query active tab", "windowId", windowID, "err", err)
		return
	}
	if !ok {
		t.logger.Debug("focused window has no active tab", "windowId", windowID)
		return
	}
	t.startLocked(ctx, tab)
}

// Recover discards in-memory state and re-derives the current tab from the
// focused window. Used on process start and activation.
func (t *Tracker) Recover(ctx context.Context) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.current = nil
	if !t.engine.Enabled(ctx) {
		t.logger.Debug("tracking disabled, nothing to recover")
		return
	}
	t.followFocusedLocked(ctx)
}

// SetEnabled persists the tracking flag. Enabling closes any session still
// being tracked and starts one for the focused tab; disabling drops the
// current-tab state without closing it.
func (t *Tracker) SetEnabled(ctx context.Context, enabled bool) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.engine.SetEnabled(ctx, enabled); err != nil {
		return err
	}
	t.logger.Info("tracking toggled", "enabled", enabled)

	if !enabled {
		t.current = nil
		return nil
	}
	t.closeCurrentLocked(ctx)
	t.followFocusedLocked(ctx)
	return nil
}

// Shutdown closes the current session before the process exits.
func (t *Tracker) Shutdown(ctx context.Context) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.engine.Enabled(ctx) {
		return
	}
	t.closeCurrentLocked(ctx)
}

func (t *Tracker) followFocusedLocked(ctx context.Context) {
	tab, ok, err := t.browser.FocusedTab(ctx)
	if err != nil {
		t.logger.Error("failed to query focused tab", "err", err)
		return
	}
	if !ok {
		t.logger.Debug("no active tab found")
		return
	}
	t.startLocked(ctx, tab)
}

// startLocked tracks tab from now if its URL is trackable.
func (t *Tracker) startLocked(ctx context.Context, tab Tab) {
	if tablog.IsExcluded(tab.URL, t.engine.opts.ExcludedPrefixes) {
		t.logger.Debug("active tab is not trackable", "tabId", tab.ID, "url", tab.URL)
		return
	}
	now := t.clock.Now()
	t.current = &Current{TabID: tab.ID, Start: now}
	t.engine.OpenSession(ctx, tab, now)
}

func (t *Tracker) closeCurrentLocked(ctx context.Context) {
	if t.current == nil {
		return
	}
	t.engine.CloseSession(ctx, t.current.TabID, t.current.Start)
	t.current = nil
}
