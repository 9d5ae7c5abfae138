package tablog

import (
	"encoding/json"
	"sort"
	"time"
)

// Log maps day keys to the entries started on that day, in insertion order.
type Log map[string][]LogEntry

// Keys returns the valid day keys in chronological order.
func (l Log) Keys() []string {
	keys := make([]string, 0, len(l))
	for k := range l {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Len returns the total number of entries.
func (l Log) Len() int {
	n := 0
	for _, entries := range l {
		n += len(entries)
	}
	return n
}

// OpenCount returns the number of entries still open.
func (l Log) OpenCount() int {
	n := 0
	for _, entries := range l {
		for _, e := range entries {
			if e.Open() {
				n++
			}
		}
	}
	return n
}

// Append adds e to the bucket of its start day unless an entry for the same
// visit already exists there. It reports whether e was added.
func (l Log) Append(e LogEntry, loc *time.Location) (string, bool) {
	key := DayKey(e.TimestampStart, loc)
	for _, existing := range l[key] {
		if existing.SameVisit(e) {
			return key, false
		}
	}
	l[key] = append(l[key], e)
	return key, true
}

// FindOpen locates the most recent open entry for tabID, scanning the newest
// bucket first and each bucket from its end.
func (l Log) FindOpen(tabID int) (string, int, bool) {
	keys := l.Keys()
	for i := len(keys) - 1; i >= 0; i-- {
		entries := l[keys[i]]
		for j := len(entries) - 1; j >= 0; j-- {
			if entries[j].TabID == tabID && entries[j].ActualDurationMs == nil {
				return keys[i], j, true
			}
		}
	}
	return "", 0, false
}

// Entries returns every entry ordered by start time. Entries with equal
// start times keep their bucket order.
func (l Log) Entries() []LogEntry {
	out := make([]LogEntry, 0, l.Len())
	for _, k := range l.Keys() {
		out = append(out, l[k]...)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].TimestampStart < out[j].TimestampStart
	})
	return out
}

// PruneBefore removes every bucket whose day precedes the day containing
// cutoff. Keys that are not valid dates are left alone. It returns the
// removed keys.
func (l Log) PruneBefore(cutoff time.Time, loc *time.Location) []string {
	limit := DayKey(cutoff.UnixMilli(), loc)
	var removed []string
	for _, k := range l.Keys() {
		if _, err := ParseDayKey(k, loc); err != nil {
			continue
		}
		if k < limit {
			delete(l, k)
			removed = append(removed, k)
		}
	}
	return removed
}

// Size returns the length of the log's JSON encoding.
func (l Log) Size() (int, error) {
	data, err := json.Marshal(l)
	if err != nil {
		return 0, err
	}
	return len(data), nil
}
