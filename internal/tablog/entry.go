// Package tablog defines the Session Log: per-visit log entries grouped into
// local calendar day buckets, plus the schema migrations that bring older
// persisted shapes up to date.
package tablog

import (
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// UntitledPlaceholder replaces an empty page title.
const UntitledPlaceholder = "(untitled)"

// UnknownDomain is recorded when a URL has no parseable host.
const UnknownDomain = "unknown"

// LogEntry is one observed visit of a tab to a URL.
//
// An entry is open while both EndTime and ActualDurationMs are nil. Once
// set, neither value is ever lowered.
type LogEntry struct {
	ID               string `json:"id,omitempty"`
	TimestampStart   int64  `json:"timestampStart"`
	TabID            int    `json:"tabId"`
	URL              string `json:"url"`
	Domain           string `json:"domain"`
	Title            string `json:"title"`
	EndTime          *int64 `json:"endTime,omitempty"`
	ActualDurationMs *int64 `json:"actualDurationMs,omitempty"`
}

// NewEntry builds an open entry for a tab visit starting at start (epoch ms).
func NewEntry(tabID int, rawURL, title string, start int64) LogEntry {
	if strings.TrimSpace(title) == "" {
		title = UntitledPlaceholder
	}
	return LogEntry{
		ID:             uuid.NewString(),
		TimestampStart: start,
		TabID:          tabID,
		URL:            rawURL,
		Domain:         ExtractDomain(rawURL),
		Title:          title,
	}
}

// Open reports whether the entry has not been closed yet.
func (e LogEntry) Open() bool {
	return e.EndTime == nil && e.ActualDurationMs == nil
}

// SameVisit reports whether e and o describe the same (tab, url, start) visit.
func (e LogEntry) SameVisit(o LogEntry) bool {
	return e.TabID == o.TabID && e.URL == o.URL && e.TimestampStart == o.TimestampStart
}

// DedupeKey identifies the visit for read-time de-duplication.
func (e LogEntry) DedupeKey() string {
	return strconv.FormatInt(e.TimestampStart, 10) + "|" + strconv.Itoa(e.TabID) + "|" + e.URL
}

// Close records the end of the visit. It does nothing and returns false if
// the entry already carries a duration.
func (e *LogEntry) Close(end, durationMs int64) bool {
	if e.ActualDurationMs != nil {
		return false
	}
	if e.EndTime != nil && *e.EndTime > end {
		end = *e.EndTime
	}
	e.EndTime = &end
	e.ActualDurationMs = &durationMs
	return true
}

// ExtractDomain returns the URL's host without a leading "www.".
func ExtractDomain(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return UnknownDomain
	}
	return strings.TrimPrefix(u.Hostname(), "www.")
}

// IsExcluded reports whether rawURL is empty or starts with any of prefixes.
func IsExcluded(rawURL string, prefixes []string) bool {
	if strings.TrimSpace(rawURL) == "" {
		return true
	}
	for _, p := range prefixes {
		if p != "" && strings.HasPrefix(rawURL, p) {
			return true
		}
	}
	return false
}

// DayKey returns the YYYY-MM-DD key of the calendar day containing ms in loc.
func DayKey(ms int64, loc *time.Location) string {
	if loc == nil {
		loc = time.Local
	}
	return time.UnixMilli(ms).In(loc).Format(dayKeyLayout)
}

// ParseDayKey returns local midnight of the day named by key.
func ParseDayKey(key string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	return time.ParseInLocation(dayKeyLayout, key, loc)
}

const dayKeyLayout = "2006-01-02"
