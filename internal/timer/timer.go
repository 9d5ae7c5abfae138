// Package timer implements the manual work stopwatch. Its state is persisted
// after every transition and checkpointed while running, and it recovers from
// a restart without crediting the time the process was down.
//
// Several processes may drive the same stored timer. Each Timer remembers the
// record it last read or wrote; before every transition and checkpoint it
// re-reads the store and adopts a record some other writer saved in between.
package timer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/JamesPrial/tabtime/internal/clock"
	"github.com/JamesPrial/tabtime/internal/config"
	"github.com/JamesPrial/tabtime/internal/storage"
)

// Status is the timer's state.
type Status string

const (
	Paused  Status = "paused"
	Running Status = "running"
)

// State is the persisted timer record. StartedAt is set iff Status is Running.
type State struct {
	Status        Status `json:"status"`
	StartedAt     *int64 `json:"startedAt"`
	AccumulatedMs int64  `json:"accumulatedMs"`
	Label         string `json:"label"`
	LastSaveTime  *int64 `json:"lastSaveTime"`
}

// Snapshot is State plus the live elapsed time.
type Snapshot struct {
	State
	CurrentElapsedMs int64 `json:"currentElapsedMs"`
}

// Options tunes checkpointing and staleness.
type Options struct {
	CheckpointInterval time.Duration
	StaleAfter         time.Duration
	// NewTicker creates a ticker channel and its stop function.
	// If nil, time.NewTicker is used.
	NewTicker func(d time.Duration) (tick <-chan time.Time, stop func())
}

// DefaultOptions returns a 30s checkpoint and a 7 day staleness ceiling.
func DefaultOptions() Options {
	return Options{
		CheckpointInterval: 30 * time.Second,
		StaleAfter:         7 * 24 * time.Hour,
	}
}

// OptionsFromConfig maps the timer configuration onto Options.
func OptionsFromConfig(cfg config.TimerConfig) Options {
	opts := DefaultOptions()
	if d := cfg.CheckpointInterval(); d > 0 {
		opts.CheckpointInterval = d
	}
	if d := cfg.StaleAfter(); d > 0 {
		opts.StaleAfter = d
	}
	return opts
}

// Timer is the stopwatch state machine. It is safe for concurrent use.
type Timer struct {
	mu     sync.Mutex
	store  storage.Store
	clock  clock.Clock
	logger *slog.Logger
	opts   Options
	state  State
	// seen is the record this Timer last loaded or saved, nil before either.
	seen *State

	// gen identifies the live checkpoint loop; a tick from an older loop
	// is ignored.
	gen  uint64
	stop chan struct{}
	wg   sync.WaitGroup
}

// New returns a paused Timer. Call Recover to load the persisted state.
func New(store storage.Store, clk clock.Clock, logger *slog.Logger, opts Options) *Timer {
	if clk == nil {
		clk = clock.Real{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	def := DefaultOptions()
	if opts.CheckpointInterval <= 0 {
		opts.CheckpointInterval = def.CheckpointInterval
	}
	if opts.StaleAfter <= 0 {
		opts.StaleAfter = def.StaleAfter
	}
	if opts.NewTicker == nil {
		opts.NewTicker = defaultNewTicker
	}
	return &Timer{
		store:  store,
		clock:  clk,
		logger: logger,
		opts:   opts,
		state:  State{Status: Paused},
	}
}

// Start moves a paused timer to running with label. It returns false and
// changes nothing if the timer is already running. The returned error
// reports a failed save; the transition itself still happened.
func (t *Timer) Start(ctx context.Context, label string) (Snapshot, bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.syncLocked(ctx)
	now := clock.NowMillis(t.clock)
	if t.state.Status == Running {
		return t.snapshotLocked(now), false, nil
	}
	t.state.Status = Running
	t.state.StartedAt = &now
	t.state.Label = label
	err := t.persistLocked(ctx)
	t.startCheckpointLocked()

	t.logger.Info("timer started", "label", label, "accumulatedMs", t.state.AccumulatedMs)
	return t.snapshotLocked(now), true, err
}

// Pause banks the current run and stops checkpointing. It returns false if
// the timer is not running.
func (t *Timer) Pause(ctx context.Context) (Snapshot, bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.syncLocked(ctx)
	now := clock.NowMillis(t.clock)
	if t.state.Status != Running {
		return t.snapshotLocked(now), false, nil
	}
	t.stopCheckpointLocked()
	t.state.AccumulatedMs += t.runningLocked(now)
	t.state.Status = Paused
	t.state.StartedAt = nil
	err := t.persistLocked(ctx)

	t.logger.Info("timer paused", "accumulatedMs", t.state.AccumulatedMs)
	return t.snapshotLocked(now), true, err
}

// Reset returns the timer to a zeroed paused state from either state.
func (t *Timer) Reset(ctx context.Context) (Snapshot, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	err := t.resetLocked(ctx)
	t.logger.Info("timer reset")
	return t.snapshotLocked(clock.NowMillis(t.clock)), err
}

// State returns the current snapshot. A timer that has been running for
// longer than the staleness ceiling is reset first.
func (t *Timer) State(ctx context.Context) Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.syncLocked(ctx)
	now := clock.NowMillis(t.clock)
	if t.staleLocked(now) {
		t.logger.Warn("running timer is stale, resetting",
			"startedAt", *t.state.StartedAt, "staleAfter", t.opts.StaleAfter)
		if err := t.resetLocked(ctx); err != nil {
			t.logger.Error("failed to save reset timer", "err", err)
		}
	}
	return t.snapshotLocked(now)
}

// Recover reloads the persisted state after a restart.
//
// A missing record becomes a fresh paused timer. A record with the wrong
// shape, or a running record older than the staleness ceiling, is reset.
// A running record resumes counting from now: its banked time is kept but
// the time the process was down is not credited.
func (t *Timer) Recover(ctx context.Context) Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.stopCheckpointLocked()
	now := clock.NowMillis(t.clock)

	raw, err := t.store.Get(ctx, storage.KeyTimerState)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		t.state = State{Status: Paused}
		if err := t.persistLocked(ctx); err != nil {
			t.logger.Error("failed to save initial timer state", "err", err)
		}
		return t.snapshotLocked(now)
	case err != nil:
		t.logger.Error("failed to load timer state, starting paused", "err", err)
		t.state = State{Status: Paused}
		return t.snapshotLocked(now)
	}

	st, err := Decode(raw)
	if err != nil {
		t.logger.Warn("persisted timer state is invalid, resetting", "err", err)
		if err := t.resetLocked(ctx); err != nil {
			t.logger.Error("failed to save reset timer", "err", err)
		}
		return t.snapshotLocked(now)
	}
	t.state = st
	t.seen = cloneState(st)

	if t.state.Status == Running {
		if t.staleLocked(now) {
			t.logger.Warn("recovered timer is stale, resetting", "startedAt", *t.state.StartedAt)
			if err := t.resetLocked(ctx); err != nil {
				t.logger.Error("failed to save reset timer", "err", err)
			}
			return t.snapshotLocked(now)
		}
		t.state.StartedAt = &now
		if err := t.persistLocked(ctx); err != nil {
			t.logger.Error("failed to save recovered timer", "err", err)
		}
		t.startCheckpointLocked()
		t.logger.Info("running timer recovered", "accumulatedMs", t.state.AccumulatedMs)
	}
	return t.snapshotLocked(now)
}

// Attach loads the persisted state as it stands, for a process that shares
// the store with a live owner. Unlike Recover it never re-stamps a running
// record, so the owner's current run keeps counting.
func (t *Timer) Attach(ctx context.Context) Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.syncLocked(ctx)
	return t.snapshotLocked(clock.NowMillis(t.clock))
}

// Close stops the checkpoint loop and waits for it to exit.
func (t *Timer) Close() {
	t.mu.Lock()
	t.stopCheckpointLocked()
	t.mu.Unlock()
	t.wg.Wait()
}

// Decode validates a persisted record. Status must be a known string,
// accumulatedMs a non-negative number and startedAt a number or null. A
// running record without startedAt is accepted and re-stamped on recovery.
func Decode(raw []byte) (State, error) {
	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		return State{}, fmt.Errorf("failed to decode timer state: %w", err)
	}
	if fields == nil {
		return State{}, fmt.Errorf("timer state is null")
	}

	var st State
	switch s, _ := fields["status"].(string); Status(s) {
	case Paused, Running:
		st.Status = Status(s)
	default:
		return State{}, fmt.Errorf("unknown timer status %v", fields["status"])
	}

	acc, ok := fields["accumulatedMs"].(float64)
	if !ok || acc < 0 || !fitsMillis(acc) {
		return State{}, fmt.Errorf("invalid accumulatedMs %v", fields["accumulatedMs"])
	}
	st.AccumulatedMs = int64(acc)

	switch v := fields["startedAt"].(type) {
	case nil:
	case float64:
		if !fitsMillis(v) {
			return State{}, fmt.Errorf("invalid startedAt %v", v)
		}
		if st.Status == Running {
			started := int64(v)
			st.StartedAt = &started
		}
	default:
		return State{}, fmt.Errorf("invalid startedAt %v", v)
	}

	if label, ok := fields["label"].(string); ok {
		st.Label = label
	}
	if saved, ok := fields["lastSaveTime"].(float64); ok && fitsMillis(saved) {
		ms := int64(saved)
		st.LastSaveTime = &ms
	}
	return st, nil
}

// fitsMillis reports whether v converts to int64 without overflow.
func fitsMillis(v float64) bool {
	return v >= math.MinInt64 && v < math.MaxInt64
}

// syncLocked adopts the stored record when another writer replaced the one
// this Timer last saw. A missing or unreadable record leaves t.state alone.
func (t *Timer) syncLocked(ctx context.Context) {
	raw, err := t.store.Get(ctx, storage.KeyTimerState)
	if errors.Is(err, storage.ErrNotFound) {
		return
	}
	if err != nil {
		t.logger.Warn("failed to re-read timer state", "err", err)
		return
	}
	st, err := Decode(raw)
	if err != nil {
		t.logger.Warn("stored timer state is invalid, keeping local state", "err", err)
		return
	}
	if t.seen != nil && sameState(*t.seen, st) {
		return
	}

	t.state = st
	t.seen = cloneState(st)
	if st.Status == Running {
		if t.state.StartedAt == nil {
			now := clock.NowMillis(t.clock)
			t.state.StartedAt = &now
		}
		if t.stop == nil {
			t.startCheckpointLocked()
		}
	} else {
		t.stopCheckpointLocked()
	}
	t.logger.Info("adopted timer state saved elsewhere",
		"status", st.Status, "accumulatedMs", st.AccumulatedMs)
}

func sameState(a, b State) bool {
	return a.Status == b.Status &&
		a.AccumulatedMs == b.AccumulatedMs &&
		a.Label == b.Label &&
		sameMillis(a.StartedAt, b.StartedAt) &&
		sameMillis(a.LastSaveTime, b.LastSaveTime)
}

func sameMillis(a, b *int64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func cloneState(st State) *State {
	c := st
	if st.StartedAt != nil {
		v := *st.StartedAt
		c.StartedAt = &v
	}
	if st.LastSaveTime != nil {
		v := *st.LastSaveTime
		c.LastSaveTime = &v
	}
	return &c
}

func (t *Timer) resetLocked(ctx context.Context) error {
	t.stopCheckpointLocked()
	t.state = State{Status: Paused}
	return t.persistLocked(ctx)
}

func (t *Timer) staleLocked(now int64) bool {
	return t.state.Status == Running &&
		t.state.StartedAt != nil &&
		now-*t.state.StartedAt > t.opts.StaleAfter.Milliseconds()
}

// runningLocked returns the length of the current run, never negative.
func (t *Timer) runningLocked(now int64) int64 {
	if t.state.Status != Running || t.state.StartedAt == nil {
		return 0
	}
	return max(now-*t.state.StartedAt, 0)
}

func (t *Timer) snapshotLocked(now int64) Snapshot {
	return Snapshot{
		State:            t.state,
		CurrentElapsedMs: t.state.AccumulatedMs + t.runningLocked(now),
	}
}

func (t *Timer) persistLocked(ctx context.Context) error {
	now := clock.NowMillis(t.clock)
	t.state.LastSaveTime = &now
	if err := storage.SetJSON(ctx, t.store, storage.KeyTimerState, t.state); err != nil {
		return fmt.Errorf("failed to save timer state: %w", err)
	}
	t.seen = cloneState(t.state)
	return nil
}

// startCheckpointLocked replaces any running checkpoint loop with a new one.
func (t *Timer) startCheckpointLocked() {
	t.stopCheckpointLocked()
	t.gen++
	gen := t.gen
	stop := make(chan struct{})
	t.stop = stop
	tick, stopTicker := t.opts.NewTicker(t.opts.CheckpointInterval)

	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		defer stopTicker()
		for {
			select {
			case <-stop:
				return
			case <-tick:
				t.checkpoint(gen)
			}
		}
	}()
}

// stopCheckpointLocked cancels the checkpoint loop. It does not wait for the
// goroutine, which may itself be waiting on t.mu.
func (t *Timer) stopCheckpointLocked() {
	if t.stop == nil {
		return
	}
	close(t.stop)
	t.stop = nil
	t.gen++
}

func (t *Timer) checkpoint(gen uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if gen != t.gen || t.state.Status != Running {
		return
	}
	ctx := context.Background()
	t.syncLocked(ctx)
	if gen != t.gen || t.state.Status != Running {
		return
	}
	if err := t.persistLocked(ctx); err != nil {
		t.logger.Warn("timer checkpoint failed", "err", err)
		return
	}
	t.logger.Debug("timer checkpoint saved", "accumulatedMs", t.state.AccumulatedMs)
}

// defaultNewTicker wraps time.NewTicker to match the NewTicker signature.
func defaultNewTicker(d time.Duration) (<-chan time.Time, func()) {
	tk := time.NewTicker(d)
	return tk.C, tk.Stop
}
