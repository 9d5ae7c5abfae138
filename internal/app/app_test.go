package app_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JamesPrial/tabtime/internal/app"
	"github.com/JamesPrial/tabtime/internal/clock"
	"github.com/JamesPrial/tabtime/internal/config"
	"github.com/JamesPrial/tabtime/internal/hook"
	"github.com/JamesPrial/tabtime/internal/logging"
	"github.com/JamesPrial/tabtime/internal/storage"
	"github.com/JamesPrial/tabtime/internal/tablog"
	"github.com/JamesPrial/tabtime/internal/timer"
	"github.com/JamesPrial/tabtime/internal/tracker"
)

var base = time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

func testConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.Storage.Backend = config.BackendMemory
	cfg.Tracking.Timezone = "UTC"
	return cfg
}

func newApp(t *testing.T, store storage.Store, clk clock.Clock) *app.App {
	t.Helper()
	a, err := app.New(testConfig(), store, clk, logging.Discard())
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })
	return a
}

func handle(t *testing.T, a *app.App, line string) hook.Response {
	t.Helper()
	msg, err := hook.ReadMessage([]byte(line))
	require.NoError(t, err)
	return a.Handle(context.Background(), msg)
}

func focusedWindow(tabID int, url string) []tracker.Window {
	return []tracker.Window{{
		ID:      1,
		Focused: true,
		Tabs:    []tracker.Tab{{ID: tabID, WindowID: 1, URL: url, Active: true}},
	}}
}

// ---------------------------------------------------------------------------
// Lifecycle
// ---------------------------------------------------------------------------

func TestInstallInitialisesStore(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryBackend()
	a := newApp(t, store, clock.NewFake(base))
	a.Browser().Update(focusedWindow(3, "https://a.test/"))

	require.NoError(t, a.Install(ctx, hook.ReasonInstall))

	var enabled bool
	found, err := storage.GetJSON(ctx, store, storage.KeyTrackerEnabled, &enabled)
	require.NoError(t, err)
	assert.True(t, found)
	assert.True(t, enabled)

	version, err := a.Migrations().Version(ctx)
	require.NoError(t, err)
	assert.Equal(t, a.Migrations().LatestVersion(), version)

	assert.Equal(t, timer.Paused, a.Timer().State(ctx).Status)

	cur, ok := a.Tracker().Current()
	require.True(t, ok)
	assert.Equal(t, 3, cur.TabID)
}

func TestInstallFreshResetsExistingData(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryBackend()
	require.NoError(t, storage.SetJSON(ctx, store, storage.KeyTrackerEnabled, false))
	require.NoError(t, storage.SetJSON(ctx, store, storage.KeyTimerState, timer.State{Status: timer.Paused, AccumulatedMs: 5000}))
	a := newApp(t, store, clock.NewFake(base))

	require.NoError(t, a.Install(ctx, hook.ReasonInstall))

	assert.True(t, a.TrackingEnabled(ctx))
	assert.Zero(t, a.Timer().State(ctx).AccumulatedMs)
}

func TestInstallUpdateKeepsExistingData(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryBackend()
	require.NoError(t, storage.SetJSON(ctx, store, storage.KeyTrackerEnabled, false))
	require.NoError(t, storage.SetJSON(ctx, store, storage.KeyTimerState, timer.State{Status: timer.Paused, AccumulatedMs: 5000, Label: "kept"}))
	legacy := `[{"timestamp":"2024-05-01T09:00:00Z","tabId":1,"url":"https://a.test/","title":"A","actualTime":60000}]`
	require.NoError(t, store.Set(ctx, storage.KeyTabLogs, []byte(legacy)))
	a := newApp(t, store, clock.NewFake(base))

	require.NoError(t, a.Install(ctx, hook.ReasonUpdate))

	assert.False(t, a.TrackingEnabled(ctx))
	snap := a.Timer().State(ctx)
	assert.Equal(t, int64(5000), snap.AccumulatedMs)
	assert.Equal(t, "kept", snap.Label)

	l, err := a.Engine().Log(ctx)
	require.NoError(t, err)
	require.Contains(t, l, "2024-05-01")
	e := l["2024-05-01"][0]
	assert.Equal(t, time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC).UnixMilli(), e.TimestampStart)
	require.NotNil(t, e.ActualDurationMs)
	assert.Equal(t, int64(60000), *e.ActualDurationMs)
}

func TestInstallPrunesOldBuckets(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryBackend()
	l := make(tablog.Log)
	l.Append(tablog.NewEntry(1, "https://old.test/", "", base.AddDate(0, 0, -120).UnixMilli()), time.UTC)
	l.Append(tablog.NewEntry(1, "https://new.test/", "", base.AddDate(0, 0, -10).UnixMilli()), time.UTC)
	require.NoError(t, storage.SetJSON(ctx, store, storage.KeyTabLogs, l))
	a := newApp(t, store, clock.NewFake(base))

	require.NoError(t, a.Install(ctx, hook.ReasonUpdate))

	got, err := a.Engine().Log(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, got.Len())
}

func TestRestartRecoversRunningTimerWithoutDowntime(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryBackend()
	clk := clock.NewFake(base)

	first, err := app.New(testConfig(), store, clk, logging.Discard())
	require.NoError(t, err)
	require.NoError(t, first.Install(ctx, hook.ReasonInstall))
	resp := handle(t, first, `{"type":"command","action":"TIMER_START","label":"focus"}`)
	require.True(t, resp.Success)
	clk.Advance(time.Minute)
	resp = handle(t, first, `{"type":"command","action":"TIMER_PAUSE"}`)
	require.True(t, resp.Success)
	resp = handle(t, first, `{"type":"command","action":"TIMER_START","label":"focus"}`)
	require.True(t, resp.Success)
	first.Timer().Close()
	first.Engine().Close()

	clk.Advance(2 * time.Hour)
	second := newApp(t, store, clk)
	resp = handle(t, second, `{"type":"startup"}`)
	require.True(t, resp.Success)

	resp = handle(t, second, `{"type":"command","action":"TIMER_GET"}`)
	require.True(t, resp.Success)
	require.NotNil(t, resp.State)
	assert.Equal(t, timer.Running, resp.State.Status)
	assert.Equal(t, int64(60_000), resp.State.CurrentElapsedMs)
}

// ---------------------------------------------------------------------------
// Events
// ---------------------------------------------------------------------------

func TestEventsProduceSessions(t *testing.T) {
	ctx := context.Background()
	clk := clock.NewFake(base)
	a := newApp(t, storage.NewMemoryBackend(), clk)
	require.NoError(t, a.Install(ctx, hook.ReasonInstall))

	require.True(t, handle(t, a, `{"type":"tabActivated","tab":{"id":5,"windowId":1,"url":"https://a.test/","title":"A","active":true}}`).Success)
	clk.Advance(10 * time.Second)
	require.True(t, handle(t, a, `{"type":"tabUpdated","tab":{"id":5,"windowId":1,"url":"https://b.test/","title":"B","active":true}}`).Success)

	resp := handle(t, a, `{"type":"command","action":"DEBUG_GET_TABLOGS"}`)
	require.True(t, resp.Success)
	require.NotNil(t, resp.Debug)
	assert.Equal(t, 2, resp.Debug.Entries)
	assert.Equal(t, 1, resp.Debug.Open)
	require.NotNil(t, resp.Debug.CurrentTab)
	assert.Equal(t, 5, resp.Debug.CurrentTab.TabID)

	clk.Advance(20 * time.Second)
	resp = handle(t, a, `{"type":"command","action":"GET_STATS","from":"2024-05-01T10:00:00Z","to":"2024-05-01T10:00:30Z"}`)
	require.True(t, resp.Success, resp.Error)
	require.NotNil(t, resp.Report)
	assert.Equal(t, int64(30_000), resp.Report.TotalMs)
	require.Len(t, resp.Report.Domains, 2)
	assert.Equal(t, "b.test", resp.Report.Domains[0].Domain)
}

func TestWindowFocusLostClosesSession(t *testing.T) {
	ctx := context.Background()
	clk := clock.NewFake(base)
	a := newApp(t, storage.NewMemoryBackend(), clk)
	require.NoError(t, a.Install(ctx, hook.ReasonInstall))

	handle(t, a, `{"type":"tabActivated","tab":{"id":5,"windowId":1,"url":"https://a.test/","active":true}}`)
	clk.Advance(5 * time.Second)
	resp := handle(t, a, `{"type":"windowFocusChanged","windowId":-1}`)
	require.True(t, resp.Success)

	_, ok := a.Tracker().Current()
	assert.False(t, ok)
	resp = handle(t, a, `{"type":"command","action":"DEBUG_GET_TABLOGS"}`)
	assert.Zero(t, resp.Debug.Open)
}

func TestWindowsSnapshotRefreshedFromMessages(t *testing.T) {
	ctx := context.Background()
	a := newApp(t, storage.NewMemoryBackend(), clock.NewFake(base))
	require.NoError(t, a.Install(ctx, hook.ReasonInstall))

	resp := handle(t, a, `{"type":"activate","windows":[{"id":2,"focused":true,"tabs":[{"id":8,"windowId":2,"url":"https://c.test/","active":true}]}]}`)
	require.True(t, resp.Success)

	cur, ok := a.Tracker().Current()
	require.True(t, ok)
	assert.Equal(t, 8, cur.TabID)
}

// ---------------------------------------------------------------------------
// Commands
// ---------------------------------------------------------------------------

func TestTimerCommands(t *testing.T) {
	ctx := context.Background()
	clk := clock.NewFake(base)
	a := newApp(t, storage.NewMemoryBackend(), clk)
	require.NoError(t, a.Install(ctx, hook.ReasonInstall))

	resp := handle(t, a, `{"id":"1","type":"command","action":"TIMER_START","label":"deep work"}`)
	assert.True(t, resp.Success)
	assert.Equal(t, "1", resp.ID)
	assert.Equal(t, timer.Running, resp.State.Status)

	resp = handle(t, a, `{"type":"command","action":"TIMER_START","label":"again"}`)
	assert.False(t, resp.Success)
	assert.Equal(t, "deep work", resp.State.Label)

	clk.Advance(45 * time.Second)
	resp = handle(t, a, `{"type":"command","action":"TIMER_PAUSE"}`)
	assert.True(t, resp.Success)
	assert.Equal(t, int64(45_000), resp.State.AccumulatedMs)

	resp = handle(t, a, `{"type":"command","action":"TIMER_PAUSE"}`)
	assert.False(t, resp.Success)

	resp = handle(t, a, `{"type":"command","action":"TIMER_RESET"}`)
	assert.True(t, resp.Success)
	assert.Zero(t, resp.State.CurrentElapsedMs)
}

func TestUpdateTabTrackerCommand(t *testing.T) {
	ctx := context.Background()
	a := newApp(t, storage.NewMemoryBackend(), clock.NewFake(base))
	require.NoError(t, a.Install(ctx, hook.ReasonInstall))

	resp := handle(t, a, `{"type":"command","action":"updateTabTracker","enabled":false}`)
	require.True(t, resp.Success)
	require.NotNil(t, resp.Enabled)
	assert.False(t, *resp.Enabled)
	assert.False(t, a.TrackingEnabled(ctx))

	resp = handle(t, a, `{"type":"command","action":"updateTabTracker","enabled":true,"windows":[{"id":1,"focused":true,"tabs":[{"id":4,"url":"https://d.test/","active":true}]}]}`)
	require.True(t, resp.Success)
	cur, ok := a.Tracker().Current()
	require.True(t, ok)
	assert.Equal(t, 4, cur.TabID)
}

func TestPruneAndCompleteCommands(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryBackend()
	l := make(tablog.Log)
	l.Append(tablog.NewEntry(1, "https://old.test/", "", base.AddDate(0, 0, -40).UnixMilli()), time.UTC)
	l.Append(tablog.NewEntry(2, "https://new.test/", "", base.Add(-time.Hour).UnixMilli()), time.UTC)
	require.NoError(t, storage.SetJSON(ctx, store, storage.KeyTabLogs, l))
	a := newApp(t, store, clock.NewFake(base))

	resp := handle(t, a, `{"type":"command","action":"DEBUG_COMPLETE_ALL_LOGS"}`)
	require.True(t, resp.Success)
	require.NotNil(t, resp.Completed)
	assert.Equal(t, 2, *resp.Completed)

	resp = handle(t, a, `{"type":"command","action":"PRUNE","days":30}`)
	require.True(t, resp.Success)
	require.NotNil(t, resp.Pruned)
	assert.Equal(t, 1, *resp.Pruned)

	got, err := a.Engine().Log(ctx)
	require.NoError(t, err)
	entries := got.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, int64(30_000), *entries[0].ActualDurationMs)
}

func TestForceLogCurrentTabCommand(t *testing.T) {
	ctx := context.Background()
	clk := clock.NewFake(base)
	a := newApp(t, storage.NewMemoryBackend(), clk)

	resp := handle(t, a, `{"type":"command","action":"DEBUG_FORCE_LOG_CURRENT_TAB","id":"f1"}`)
	assert.False(t, resp.Success)
	assert.Empty(t, resp.Error)
	assert.Equal(t, "f1", resp.ID)
	assert.NotEmpty(t, resp.Message)

	a.Browser().Update(focusedWindow(9, "https://forced.test/page"))
	resp = handle(t, a, `{"type":"command","action":"DEBUG_FORCE_LOG_CURRENT_TAB"}`)
	require.True(t, resp.Success)
	require.NotNil(t, resp.Logged)
	assert.Equal(t, 9, resp.Logged.ID)

	l, err := a.Engine().Log(ctx)
	require.NoError(t, err)
	entries := l.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, "forced.test", entries[0].Domain)
	assert.Equal(t, base.UnixMilli(), entries[0].TimestampStart)
	assert.True(t, entries[0].Open())

	_, tracked := a.Tracker().Current()
	assert.False(t, tracked)
}

func TestDebugReportsTodayAndRecentDays(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryBackend()
	l := make(tablog.Log)
	for d := 9; d >= 1; d-- {
		l.Append(tablog.NewEntry(1, "https://old.test/", "", base.AddDate(0, 0, -d).UnixMilli()), time.UTC)
	}
	for i := 0; i < 4; i++ {
		l.Append(tablog.NewEntry(2, "https://today.test/", "", base.Add(time.Duration(i)*time.Minute).UnixMilli()), time.UTC)
	}
	require.NoError(t, storage.SetJSON(ctx, store, storage.KeyTabLogs, l))
	a := newApp(t, store, clock.NewFake(base))

	resp := handle(t, a, `{"type":"command","action":"DEBUG_GET_TABLOGS"}`)

	require.True(t, resp.Success)
	info := resp.Debug
	require.NotNil(t, info)
	assert.Equal(t, 10, info.Days)
	assert.Equal(t, "2024-05-01", info.TodayKey)
	assert.Equal(t, 4, info.TodayEntries)
	assert.Equal(t, []string{
		"2024-04-25", "2024-04-26", "2024-04-27", "2024-04-28",
		"2024-04-29", "2024-04-30", "2024-05-01",
	}, info.RecentDays)
	assert.True(t, info.TrackingEnabled)
	require.Len(t, info.LastEntries, 3)
	assert.Equal(t, base.Add(3*time.Minute).UnixMilli(), info.LastEntries[2].TimestampStart)
}

func TestDebugOnEmptyLog(t *testing.T) {
	a := newApp(t, storage.NewMemoryBackend(), clock.NewFake(base))

	resp := handle(t, a, `{"type":"command","action":"DEBUG_GET_TABLOGS"}`)

	require.True(t, resp.Success)
	require.NotNil(t, resp.Debug)
	assert.Empty(t, resp.Debug.RecentDays)
	assert.Empty(t, resp.Debug.LastEntries)
	assert.Equal(t, "2024-05-01", resp.Debug.TodayKey)
}

func TestGetStatsRejectsBadQuery(t *testing.T) {
	a := newApp(t, storage.NewMemoryBackend(), clock.NewFake(base))

	resp := handle(t, a, `{"type":"command","action":"GET_STATS","group":"month"}`)
	assert.False(t, resp.Success)
	assert.NotEmpty(t, resp.Error)

	resp = handle(t, a, `{"type":"command","action":"GET_STATS","from":"last tuesday"}`)
	assert.False(t, resp.Success)
}

func TestTimerSaveFailureIsReported(t *testing.T) {
	a := newApp(t, readOnlyStore{storage.NewMemoryBackend()}, clock.NewFake(base))

	resp := handle(t, a, `{"type":"command","action":"TIMER_START"}`)

	assert.True(t, resp.Success)
	assert.Contains(t, resp.Error, "failed to save timer state")
}

type readOnlyStore struct {
	storage.Store
}

func (readOnlyStore) Set(context.Context, string, []byte) error {
	return storage.ErrQuotaExceeded
}
