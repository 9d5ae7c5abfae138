package hook

import (
	"github.com/JamesPrial/tabtime/internal/stats"
	"github.com/JamesPrial/tabtime/internal/tablog"
	"github.com/JamesPrial/tabtime/internal/timer"
	"github.com/JamesPrial/tabtime/internal/tracker"
)

// DebugInfo summarises the Session Log for DEBUG_GET_TABLOGS.
type DebugInfo struct {
	Days            int               `json:"days"`
	Entries         int               `json:"entries"`
	Open            int               `json:"open"`
	TodayKey        string            `json:"todayKey"`
	TodayEntries    int               `json:"todayEntries"`
	RecentDays      []string          `json:"recentDays"`
	TrackingEnabled bool              `json:"trackingEnabled"`
	LastEntries     []tablog.LogEntry `json:"lastEntries"`
	CurrentTab      *tracker.Current  `json:"currentTab,omitempty"`
}

// Response is written for every inbound message.
type Response struct {
	ID        string          `json:"id,omitempty"`
	Success   bool            `json:"success"`
	State     *timer.Snapshot `json:"state,omitempty"`
	Report    *stats.Report   `json:"report,omitempty"`
	Enabled   *bool           `json:"enabled,omitempty"`
	Pruned    *int            `json:"pruned,omitempty"`
	Completed *int            `json:"completed,omitempty"`
	Debug     *DebugInfo      `json:"debug,omitempty"`
	Logged    *tracker.Tab    `json:"logged,omitempty"`
	Message   string          `json:"message,omitempty"`
	Error     string          `json:"error,omitempty"`
}

// OK returns a successful response for msg.
func OK(msg *Message) Response {
	return Response{ID: idOf(msg), Success: true}
}

// Fail returns a failed response carrying err's message.
func Fail(msg *Message, err error) Response {
	r := Response{ID: idOf(msg)}
	if err != nil {
		r.Error = err.Error()
	}
	return r
}

func idOf(msg *Message) string {
	if msg == nil {
		return ""
	}
	return msg.ID
}
