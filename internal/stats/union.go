package stats

import (
	"sort"
	"time"

	"github.com/JamesPrial/tabtime/internal/tablog"
)

// Span is one range of a disjoint union.
type Span struct {
	Start int64
	End   int64
}

// Union merges overlapping and adjacent intervals into disjoint spans
// ordered by start.
func Union(ivs []Interval) []Span {
	if len(ivs) == 0 {
		return nil
	}
	sorted := make([]Interval, len(ivs))
	copy(sorted, ivs)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Start < sorted[j].Start })

	spans := []Span{{Start: sorted[0].Start, End: sorted[0].End}}
	for _, iv := range sorted[1:] {
		cur := &spans[len(spans)-1]
		if iv.Start <= cur.End {
			cur.End = max(cur.End, iv.End)
			continue
		}
		spans = append(spans, Span{Start: iv.Start, End: iv.End})
	}
	return spans
}

// Total sums the span durations.
func Total(spans []Span) int64 {
	var total int64
	for _, s := range spans {
		total += s.End - s.Start
	}
	return total
}

// UnionTime returns the de-duplicated time covered by entries inside
// [from, to). A degenerate window yields zero.
func UnionTime(entries []tablog.LogEntry, from, to time.Time, p Policy) time.Duration {
	f, t := from.UnixMilli(), to.UnixMilli()
	if t <= f {
		return 0
	}
	ms := Total(Union(ClipAll(Intervals(entries, p), f, t)))
	return time.Duration(ms) * time.Millisecond
}
