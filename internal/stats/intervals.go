// Package stats derives usage statistics from the Session Log.
//
// Every entry is turned into a concrete [start, end) interval, clipped to the
// reporting window, and merged into a disjoint union before anything is
// summed, so overlapping or inferred ranges are never counted twice.
package stats

import (
	"sort"
	"time"

	"github.com/JamesPrial/tabtime/internal/tablog"
)

// Policy controls how the end of an open entry is inferred.
type Policy struct {
	// Now is the evaluation time.
	Now time.Time
	// TrackingEnabled selects the fallback for the most recent open entry:
	// "until now" when enabled, DisabledDefault when not.
	TrackingEnabled bool
	// MaxInferred is the exclusive ceiling on an inferred gap.
	MaxInferred time.Duration
	// DisabledDefault is the duration assumed when tracking is off.
	DisabledDefault time.Duration
}

// DefaultPolicy returns the 3h / 30s inference policy evaluated at now.
func DefaultPolicy(now time.Time, enabled bool) Policy {
	return Policy{
		Now:             now,
		TrackingEnabled: enabled,
		MaxInferred:     3 * time.Hour,
		DisabledDefault: 30 * time.Second,
	}
}

// Interval is a half-open range of epoch milliseconds attributed to a visit.
type Interval struct {
	Start  int64
	End    int64
	TabID  int
	Domain string
}

// Duration returns End-Start, or zero for an empty interval.
func (iv Interval) Duration() int64 {
	if iv.End <= iv.Start {
		return 0
	}
	return iv.End - iv.Start
}

// Dedupe drops entries repeating an earlier (timestampStart, tabId, url)
// visit and returns the rest ordered by start time.
func Dedupe(entries []tablog.LogEntry) []tablog.LogEntry {
	seen := make(map[string]struct{}, len(entries))
	out := make([]tablog.LogEntry, 0, len(entries))
	for _, e := range entries {
		k := e.DedupeKey()
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, e)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].TimestampStart < out[j].TimestampStart
	})
	return out
}

// Intervals resolves one interval per de-duplicated entry, in start order.
//
// A closed entry ends at its EndTime, or start+ActualDurationMs when only the
// duration is known. An open entry ends at the next start of the same tab,
// then at the next start of any tab, as long as that gap is positive and
// below MaxInferred. Failing both, it ends at min(start+MaxInferred, Now)
// while tracking is enabled, or start+DisabledDefault otherwise.
func Intervals(entries []tablog.LogEntry, p Policy) []Interval {
	sorted := Dedupe(entries)
	out := make([]Interval, 0, len(sorted))
	for i, e := range sorted {
		out = append(out, Interval{
			Start:  e.TimestampStart,
			End:    resolveEnd(sorted, i, p),
			TabID:  e.TabID,
			Domain: domainOf(e),
		})
	}
	return out
}

func resolveEnd(sorted []tablog.LogEntry, i int, p Policy) int64 {
	e := sorted[i]
	s := e.TimestampStart

	if e.EndTime != nil {
		return max(*e.EndTime, s)
	}
	if e.ActualDurationMs != nil {
		return s + max(*e.ActualDurationMs, 0)
	}

	ceiling := p.MaxInferred.Milliseconds()
	plausible := func(next int64) bool {
		gap := next - s
		return gap > 0 && gap < ceiling
	}

	if next, ok := nextStart(sorted, i, true); ok && plausible(next) {
		return next
	}
	if next, ok := nextStart(sorted, i, false); ok && plausible(next) {
		return next
	}

	if p.TrackingEnabled {
		end := min(s+ceiling, p.Now.UnixMilli())
		return max(end, s)
	}
	return s + p.DisabledDefault.Milliseconds()
}

// nextStart finds the first start after sorted[i]'s, optionally restricted
// to the same tab.
func nextStart(sorted []tablog.LogEntry, i int, sameTab bool) (int64, bool) {
	s := sorted[i].TimestampStart
	for j := i + 1; j < len(sorted); j++ {
		if sorted[j].TimestampStart <= s {
			continue
		}
		if sameTab && sorted[j].TabID != sorted[i].TabID {
			continue
		}
		return sorted[j].TimestampStart, true
	}
	return 0, false
}

func domainOf(e tablog.LogEntry) string {
	if e.Domain == "" {
		return tablog.UnknownDomain
	}
	return e.Domain
}

// Clip restricts iv to [from, to). It reports false when nothing remains.
func Clip(iv Interval, from, to int64) (Interval, bool) {
	iv.Start = max(iv.Start, from)
	iv.End = min(iv.End, to)
	return iv, iv.End > iv.Start
}

// ClipAll clips every interval to [from, to), dropping empty results.
func ClipAll(ivs []Interval, from, to int64) []Interval {
	out := make([]Interval, 0, len(ivs))
	for _, iv := range ivs {
		if c, ok := Clip(iv, from, to); ok {
			out = append(out, c)
		}
	}
	return out
}
