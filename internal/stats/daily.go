package stats

import (
	"time"

	"github.com/JamesPrial/tabtime/internal/tablog"
)

// DomainDay summarises one domain's visits on one day.
type DomainDay struct {
	Count       int   `json:"count"`
	FirstVisit  int64 `json:"firstVisit"`
	LastVisit   int64 `json:"lastVisit"`
	TotalTimeMs int64 `json:"totalTimeMs"`
}

// DailyStats maps day key to domain to that day's summary. It is a cache
// that can always be rebuilt from the Session Log.
type DailyStats map[string]map[string]DomainDay

// BuildDailyStats rebuilds the per-day, per-domain summary from l. Visit
// counts and first/last visits come from entry starts; time comes from the
// day's interval union split by domain.
func BuildDailyStats(l tablog.Log, loc *time.Location, p Policy, mode Split) DailyStats {
	if loc == nil {
		loc = time.Local
	}
	out := make(DailyStats)
	entries := Dedupe(l.Entries())

	for _, e := range entries {
		key := tablog.DayKey(e.TimestampStart, loc)
		day, ok := out[key]
		if !ok {
			day = make(map[string]DomainDay)
			out[key] = day
		}
		d := domainOf(e)
		s := day[d]
		if s.Count == 0 || e.TimestampStart < s.FirstVisit {
			s.FirstVisit = e.TimestampStart
		}
		if e.TimestampStart > s.LastVisit {
			s.LastVisit = e.TimestampStart
		}
		s.Count++
		day[d] = s
	}

	if len(entries) == 0 {
		return out
	}
	from := time.UnixMilli(entries[0].TimestampStart)
	to := time.UnixMilli(entries[len(entries)-1].TimestampStart).AddDate(0, 0, 2)
	for _, b := range Group(entries, from, to, ByDay, loc, p, mode) {
		day, ok := out[b.Key]
		if !ok {
			continue
		}
		for d, ms := range b.Sites {
			s := day[d]
			s.TotalTimeMs = ms
			day[d] = s
		}
	}
	return out
}
