package stats

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/JamesPrial/tabtime/internal/clock"
	"github.com/JamesPrial/tabtime/internal/config"
	"github.com/JamesPrial/tabtime/internal/storage"
	"github.com/JamesPrial/tabtime/internal/tablog"
)

// Options tunes the Aggregator's inference policy.
type Options struct {
	Location        *time.Location
	MaxInferred     time.Duration
	DisabledDefault time.Duration
	Split           Split
}

// OptionsFromConfig maps the stats configuration onto Options.
func OptionsFromConfig(cfg config.StatsConfig, loc *time.Location) Options {
	split, err := ParseSplit(cfg.Split)
	if err != nil {
		split = SplitProportional
	}
	return Options{
		Location:        loc,
		MaxInferred:     cfg.MaxInferred(),
		DisabledDefault: cfg.DisabledDefault(),
		Split:           split,
	}
}

// Aggregator answers usage queries over the persisted Session Log.
type Aggregator struct {
	store  storage.Store
	clock  clock.Clock
	logger *slog.Logger
	opts   Options
}

// NewAggregator creates an Aggregator reading from store.
func NewAggregator(store storage.Store, clk clock.Clock, logger *slog.Logger, opts Options) *Aggregator {
	if clk == nil {
		clk = clock.Real{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.MaxInferred <= 0 {
		opts.MaxInferred = 3 * time.Hour
	}
	if opts.DisabledDefault <= 0 {
		opts.DisabledDefault = 30 * time.Second
	}
	if opts.Split == "" {
		opts.Split = SplitProportional
	}
	return &Aggregator{store: store, clock: clk, logger: logger, opts: opts}
}

// Query selects a reporting window. A zero To means now; a zero From means
// the start of To's day.
type Query struct {
	From  time.Time
	To    time.Time
	Group Granularity
	Split Split
}

// Report is the usage inside one reporting window.
type Report struct {
	From     time.Time     `json:"from"`
	To       time.Time     `json:"to"`
	TotalMs  int64         `json:"totalMs"`
	Sessions int           `json:"sessions"`
	Domains  []DomainUsage `json:"domains"`
	Groups   []Bucket      `json:"groups,omitempty"`
}

// Report computes usage for q. An empty or degenerate window produces an
// empty report, not an error.
func (a *Aggregator) Report(ctx context.Context, q Query) (Report, error) {
	now := a.clock.Now()
	if q.To.IsZero() {
		q.To = now
	}
	if q.From.IsZero() {
		y, m, d := q.To.In(a.opts.Location).Date()
		q.From = time.Date(y, m, d, 0, 0, 0, 0, a.opts.Location)
	}
	if q.Split == "" {
		q.Split = a.opts.Split
	}

	rep := Report{From: q.From, To: q.To, Domains: []DomainUsage{}}
	f, t := q.From.UnixMilli(), q.To.UnixMilli()
	if t <= f {
		return rep, nil
	}

	l, err := a.loadLog(ctx)
	if err != nil {
		return rep, err
	}
	p := a.policy(ctx, now)
	entries := l.Entries()

	ivs := Intervals(entries, p)
	for _, iv := range ivs {
		if iv.Start >= f && iv.Start < t {
			rep.Sessions++
		}
	}
	clipped := ClipAll(ivs, f, t)
	rep.TotalMs = Total(Union(clipped))
	rep.Domains = RankDomains(SplitByDomain(clipped, q.Split), rep.TotalMs)
	if q.Group != "" {
		rep.Groups = Group(entries, q.From, q.To, q.Group, a.opts.Location, p, q.Split)
	}
	return rep, nil
}

// RefreshDailyStats rebuilds the dailyStats cache from the Session Log and
// persists it.
func (a *Aggregator) RefreshDailyStats(ctx context.Context) (DailyStats, error) {
	l, err := a.loadLog(ctx)
	if err != nil {
		return nil, err
	}
	daily := BuildDailyStats(l, a.opts.Location, a.policy(ctx, a.clock.Now()), a.opts.Split)
	if err := storage.SetJSON(ctx, a.store, storage.KeyDailyStats, daily); err != nil {
		return nil, fmt.Errorf("failed to save daily stats: %w", err)
	}
	a.logger.Debug("daily stats refreshed", "days", len(daily))
	return daily, nil
}

func (a *Aggregator) loadLog(ctx context.Context) (tablog.Log, error) {
	l := make(tablog.Log)
	found, err := storage.GetJSON(ctx, a.store, storage.KeyTabLogs, &l)
	if err != nil {
		if found {
			a.logger.Warn("session log unreadable, reporting as empty", "err", err)
			return make(tablog.Log), nil
		}
		return nil, fmt.Errorf("failed to load session log: %w", err)
	}
	if l == nil {
		l = make(tablog.Log)
	}
	return l, nil
}

// policy reads the tracking flag with the tracker's defaults: absent means
// enabled, unreadable means disabled.
func (a *Aggregator) policy(ctx context.Context, now time.Time) Policy {
	enabled := true
	if _, err := storage.GetJSON(ctx, a.store, storage.KeyTrackerEnabled, &enabled); err != nil {
		a.logger.Warn("tracking flag unreadable, assuming disabled", "err", err)
		enabled = false
	}
	return Policy{
		Now:             now,
		TrackingEnabled: enabled,
		MaxInferred:     a.opts.MaxInferred,
		DisabledDefault: a.opts.DisabledDefault,
	}
}
