// Package hook handles the messages exchanged with the browser-side bridge.
//
// The event host reads one JSON message per line from stdin. Each message is
// either a browser lifecycle event or a command, and gets exactly one JSON
// response line on stdout.
package hook

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/JamesPrial/tabtime/internal/tracker"
)

// Message types.
const (
	TypeTabActivated       = "tabActivated"
	TypeTabUpdated         = "tabUpdated"
	TypeTabRemoved         = "tabRemoved"
	TypeWindowFocusChanged = "windowFocusChanged"
	TypeInstalled          = "installed"
	TypeStartup            = "startup"
	TypeActivate           = "activate"
	TypeCommand            = "command"
)

// Command actions carried by TypeCommand messages.
const (
	ActionTimerStart              = "TIMER_START"
	ActionTimerPause              = "TIMER_PAUSE"
	ActionTimerReset              = "TIMER_RESET"
	ActionTimerGet                = "TIMER_GET"
	ActionUpdateTabTracker        = "updateTabTracker"
	ActionGetStats                = "GET_STATS"
	ActionPrune                   = "PRUNE"
	ActionDebugGetTabLogs         = "DEBUG_GET_TABLOGS"
	ActionDebugCompleteAllLogs    = "DEBUG_COMPLETE_ALL_LOGS"
	ActionDebugForceLogCurrentTab = "DEBUG_FORCE_LOG_CURRENT_TAB"
)

// Install reasons carried by TypeInstalled messages.
const (
	ReasonInstall = "install"
	ReasonUpdate  = "update"
)

// ErrInvalidMessage is wrapped by every decoding and validation failure.
var ErrInvalidMessage = errors.New("invalid message")

// Message is one inbound line. Which fields matter depends on Type and,
// for commands, on Action.
type Message struct {
	// ID is echoed back in the response so the bridge can match replies.
	ID       string       `json:"id,omitempty"`
	Type     string       `json:"type"`
	Tab      *tracker.Tab `json:"tab,omitempty"`
	TabID    *int         `json:"tabId,omitempty"`
	WindowID *int         `json:"windowId,omitempty"`
	URL      string       `json:"url,omitempty"`
	Reason   string       `json:"reason,omitempty"`
	Action   string       `json:"action,omitempty"`
	Label    string       `json:"label,omitempty"`
	Enabled  *bool        `json:"enabled,omitempty"`
	From     string       `json:"from,omitempty"`
	To       string       `json:"to,omitempty"`
	Group    string       `json:"group,omitempty"`
	Split    string       `json:"split,omitempty"`
	Days     int          `json:"days,omitempty"`

	// Windows, when present, replaces the host's view of the browser.
	Windows []tracker.Window `json:"windows,omitempty"`
}

// ReadMessage decodes and validates a single message line.
func ReadMessage(line []byte) (*Message, error) {
	var msg Message
	if err := json.Unmarshal(line, &msg); err != nil {
		return nil, fmt.Errorf("%w: failed to decode: %v", ErrInvalidMessage, err)
	}
	if err := msg.Validate(); err != nil {
		return &msg, err
	}
	return &msg, nil
}

// Validate checks that the fields required by the message's type are set.
func (m *Message) Validate() error {
	switch m.Type {
	case TypeTabActivated:
		if m.Tab == nil {
			return invalid("%s requires tab", m.Type)
		}
	case TypeTabUpdated:
		if m.Tab == nil && m.TabID == nil {
			return invalid("%s requires tab or tabId", m.Type)
		}
	case TypeTabRemoved:
		if m.TabID == nil && m.Tab == nil {
			return invalid("%s requires tabId", m.Type)
		}
	case TypeWindowFocusChanged:
		if m.WindowID == nil {
			return invalid("%s requires windowId", m.Type)
		}
	case TypeInstalled, TypeStartup, TypeActivate:
	case TypeCommand:
		return m.validateCommand()
	case "":
		return invalid("missing type")
	default:
		return invalid("unknown type %q", m.Type)
	}
	return nil
}

func (m *Message) validateCommand() error {
	switch m.Action {
	case ActionTimerStart, ActionTimerPause, ActionTimerReset, ActionTimerGet,
		ActionGetStats, ActionDebugGetTabLogs, ActionDebugCompleteAllLogs,
		ActionDebugForceLogCurrentTab:
	case ActionUpdateTabTracker:
		if m.Enabled == nil {
			return invalid("%s requires enabled", m.Action)
		}
	case ActionPrune:
		if m.Days < 0 {
			return invalid("%s days must not be negative", m.Action)
		}
	case "":
		return invalid("command requires action")
	default:
		return invalid("unknown action %q", m.Action)
	}
	return nil
}

// EventTab returns the tab an event refers to, filling the tab from the
// flat tabId and url fields when no tab object was sent.
func (m *Message) EventTab() tracker.Tab {
	var tab tracker.Tab
	if m.Tab != nil {
		tab = *m.Tab
	}
	if m.TabID != nil && m.Tab == nil {
		tab.ID = *m.TabID
	}
	if m.URL != "" {
		tab.URL = m.URL
	}
	return tab
}

// ParseTime accepts RFC 3339 timestamps, YYYY-MM-DD dates (local midnight
// in loc) and epoch milliseconds. An empty string yields the zero time.
func ParseTime(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	if loc == nil {
		loc = time.Local
	}
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.UnixMilli(ms).In(loc), nil
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, nil
	}
	if t, err := time.ParseInLocation("2006-01-02", s, loc); err == nil {
		return t, nil
	}
	return time.Time{}, invalid("unrecognised time %q", s)
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidMessage, fmt.Sprintf(format, args...))
}
