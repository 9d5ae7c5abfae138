package stats

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/JamesPrial/tabtime/internal/tablog"
)

// Granularity is the calendar unit used to bucket entries.
type Granularity string

const (
	ByDay  Granularity = "day"
	ByHour Granularity = "hour"
	ByWeek Granularity = "week"
)

// ParseGranularity parses a grouping name. An empty name means no grouping.
func ParseGranularity(name string) (Granularity, error) {
	switch g := Granularity(strings.ToLower(strings.TrimSpace(name))); g {
	case "":
		return "", nil
	case ByDay, ByHour, ByWeek:
		return g, nil
	default:
		return "", fmt.Errorf("unknown grouping: %q", name)
	}
}

// Bucket is the usage attributed to one calendar unit.
type Bucket struct {
	Key      string           `json:"key"`
	Start    time.Time        `json:"start"`
	End      time.Time        `json:"end"`
	TotalMs  int64            `json:"totalMs"`
	Sessions int              `json:"sessions"`
	Sites    map[string]int64 `json:"sites"`
}

// bucketSpan returns the local calendar unit containing t.
func bucketSpan(t time.Time, g Granularity, loc *time.Location) (string, time.Time, time.Time) {
	t = t.In(loc)
	y, m, d := t.Date()
	switch g {
	case ByHour:
		start := time.Date(y, m, d, t.Hour(), 0, 0, 0, loc)
		return start.Format("2006-01-02T15"), start, start.Add(time.Hour)
	case ByWeek:
		start := time.Date(y, m, d-int(t.Weekday()), 0, 0, 0, 0, loc)
		return start.Format("2006-01-02"), start, start.AddDate(0, 0, 7)
	default:
		start := time.Date(y, m, d, 0, 0, 0, 0, loc)
		return start.Format("2006-01-02"), start, start.AddDate(0, 0, 1)
	}
}

// Group buckets entries started inside [from, to) by the local calendar unit
// of their start. Each bucket is measured with the interval union restricted
// to the bucket's own span intersected with the window, so no time is
// attributed to two buckets. Buckets are returned in chronological order.
func Group(entries []tablog.LogEntry, from, to time.Time, g Granularity, loc *time.Location, p Policy, mode Split) []Bucket {
	f, t := from.UnixMilli(), to.UnixMilli()
	if t <= f {
		return nil
	}
	if loc == nil {
		loc = time.Local
	}

	// Inference looks at neighbours across the whole log, not just the bucket.
	ivs := Intervals(entries, p)

	type group struct {
		bucket Bucket
		ivs    []Interval
	}
	groups := make(map[string]*group)
	for _, iv := range ivs {
		if iv.Start < f || iv.Start >= t {
			continue
		}
		key, start, end := bucketSpan(time.UnixMilli(iv.Start), g, loc)
		gr, ok := groups[key]
		if !ok {
			gr = &group{bucket: Bucket{Key: key, Start: start, End: end}}
			groups[key] = gr
		}
		gr.bucket.Sessions++
		gr.ivs = append(gr.ivs, iv)
	}

	out := make([]Bucket, 0, len(groups))
	for _, gr := range groups {
		lo := max(gr.bucket.Start.UnixMilli(), f)
		hi := min(gr.bucket.End.UnixMilli(), t)
		clipped := ClipAll(gr.ivs, lo, hi)
		gr.bucket.TotalMs = Total(Union(clipped))
		gr.bucket.Sites = SplitByDomain(clipped, mode)
		out = append(out, gr.bucket)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out
}
