package main

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"

	"github.com/JamesPrial/tabtime/internal/stats"
	"github.com/JamesPrial/tabtime/internal/storage"
	"github.com/JamesPrial/tabtime/internal/tablog"
)

var base = time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

// setupEnv points the CLI at an empty JSON store in a temp dir.
func setupEnv(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("TABTIME_CONFIG", filepath.Join(dir, "missing.yaml"))
	t.Setenv("TABTIME_DATA_DIR", dir)
	t.Setenv("TABTIME_STORAGE_BACKEND", "json")
	t.Setenv("TABTIME_JSON_PATH", "")
	t.Setenv("TABTIME_SQLITE_PATH", "")
	t.Setenv("TABTIME_POSTGRES_URL", "")
	t.Setenv("TABTIME_LOG_LEVEL", "error")
	return dir
}

// executeCommand runs a cobra command with the given args and captures combined output.
func executeCommand(root *cobra.Command, args ...string) (output string, err error) {
	statsFrom, statsTo, statsGroup, statsSplit, statsJSON = "", "", "", "", false
	pruneDays = 0

	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetArgs(args)
	_, err = root.ExecuteC()
	_ = closeApp()
	return buf.String(), err
}

// seedLog writes two back-to-back closed sessions starting at base.
func seedLog(t *testing.T, dir string) {
	t.Helper()
	ctx := context.Background()
	store := storage.NewJSONBackend(filepath.Join(dir, "tabtime.json"))
	defer store.Close()

	a := tablog.NewEntry(1, "https://a.test/", "A", base.UnixMilli())
	a.Close(base.Add(20*time.Second).UnixMilli(), 20_000)
	b := tablog.NewEntry(2, "https://b.test/", "B", base.Add(20*time.Second).UnixMilli())
	b.Close(base.Add(time.Minute).UnixMilli(), 40_000)

	l := make(tablog.Log)
	l.Append(a, time.UTC)
	l.Append(b, time.UTC)
	if err := storage.SetJSON(ctx, store, storage.KeyTabLogs, l); err != nil {
		t.Fatalf("failed to seed log: %v", err)
	}
}

func ms(t time.Time) string {
	return strconv.FormatInt(t.UnixMilli(), 10)
}

// ---------------------------------------------------------------------------
// stats
// ---------------------------------------------------------------------------

func TestStatsJSON(t *testing.T) {
	dir := setupEnv(t)
	seedLog(t, dir)

	out, err := executeCommand(rootCmd, "stats", "--from", ms(base), "--to", ms(base.Add(time.Hour)), "--json")
	if err != nil {
		t.Fatalf("stats: %v\n%s", err, out)
	}

	var rep stats.Report
	if err := json.Unmarshal([]byte(out), &rep); err != nil {
		t.Fatalf("failed to decode report: %v\n%s", err, out)
	}
	if rep.TotalMs != 60_000 {
		t.Errorf("totalMs = %d, want 60000", rep.TotalMs)
	}
	if rep.Sessions != 2 {
		t.Errorf("sessions = %d, want 2", rep.Sessions)
	}
	if len(rep.Domains) != 2 || rep.Domains[0].Domain != "b.test" {
		t.Errorf("domains = %+v, want b.test first", rep.Domains)
	}
}

func TestStatsTable(t *testing.T) {
	dir := setupEnv(t)
	seedLog(t, dir)

	out, err := executeCommand(rootCmd, "stats", "--from", ms(base), "--to", ms(base.Add(time.Hour)), "--group", "hour")
	if err != nil {
		t.Fatalf("stats: %v\n%s", err, out)
	}
	for _, want := range []string{"SITE", "a.test", "b.test", "40s", "66.7%", "Total 1m0s across 2 session(s)", "BUCKET"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestStatsEmptyWindow(t *testing.T) {
	setupEnv(t)

	out, err := executeCommand(rootCmd, "stats", "--from", ms(base), "--to", ms(base.Add(time.Hour)))
	if err != nil {
		t.Fatalf("stats: %v\n%s", err, out)
	}
	if !strings.Contains(out, "No tracked time") {
		t.Errorf("output = %q, want the empty-window message", out)
	}
}

func TestStatsRejectsBadFlags(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{name: "bad group", args: []string{"stats", "--group", "month"}},
		{name: "bad split", args: []string{"stats", "--split", "first"}},
		{name: "bad from", args: []string{"stats", "--from", "yesterday"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setupEnv(t)
			if _, err := executeCommand(rootCmd, tt.args...); err == nil {
				t.Error("expected an error, got nil")
			}
		})
	}
}

// ---------------------------------------------------------------------------
// tracker, prune, migrate
// ---------------------------------------------------------------------------

func TestTrackerToggle(t *testing.T) {
	setupEnv(t)

	out, err := executeCommand(rootCmd, "tracker", "status")
	if err != nil {
		t.Fatalf("tracker status: %v", err)
	}
	if !strings.Contains(out, "Tracking: enabled") {
		t.Errorf("default status = %q, want enabled", out)
	}

	if _, err := executeCommand(rootCmd, "tracker", "disable"); err != nil {
		t.Fatalf("tracker disable: %v", err)
	}
	out, err = executeCommand(rootCmd, "tracker", "status")
	if err != nil {
		t.Fatalf("tracker status: %v", err)
	}
	if !strings.Contains(out, "Tracking: disabled") {
		t.Errorf("status after disable = %q", out)
	}

	if _, err := executeCommand(rootCmd, "tracker", "enable"); err != nil {
		t.Fatalf("tracker enable: %v", err)
	}
	out, _ = executeCommand(rootCmd, "tracker", "status")
	if !strings.Contains(out, "Tracking: enabled") {
		t.Errorf("status after enable = %q", out)
	}
}

func TestPrune(t *testing.T) {
	dir := setupEnv(t)
	seedLog(t, dir)

	out, err := executeCommand(rootCmd, "prune", "--days", "30")
	if err != nil {
		t.Fatalf("prune: %v", err)
	}
	if !strings.Contains(out, "Pruned 1 day(s)") {
		t.Errorf("output = %q, want one pruned day", out)
	}

	if _, err := executeCommand(rootCmd, "prune", "--days", "-1"); err == nil {
		t.Error("expected an error for negative days")
	}
}

func TestMigrate(t *testing.T) {
	setupEnv(t)

	out, err := executeCommand(rootCmd, "migrate")
	if err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if !strings.Contains(out, "Applied 3 migration(s); schema version 3") {
		t.Errorf("first run = %q", out)
	}

	out, err = executeCommand(rootCmd, "migrate")
	if err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if !strings.Contains(out, "Applied 0 migration(s); schema version 3") {
		t.Errorf("second run = %q", out)
	}
}

func TestStartupFailure(t *testing.T) {
	setupEnv(t)
	t.Setenv("TABTIME_STORAGE_BACKEND", "redis")

	if _, err := executeCommand(rootCmd, "tracker", "status"); err == nil {
		t.Error("expected an error for an unknown backend")
	}
}
