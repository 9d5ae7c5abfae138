package tracker

import (
	"context"
	"sort"
	"sync"
)

// WindowNone is the window id reported when no browser window has focus.
const WindowNone = -1

// Tab describes a browser tab as seen in an event.
type Tab struct {
	ID       int    `json:"id"`
	WindowID int    `json:"windowId"`
	URL      string `json:"url"`
	Title    string `json:"title"`
	Active   bool   `json:"active"`
}

// Window describes a browser window and its tabs.
type Window struct {
	ID      int   `json:"id"`
	Focused bool  `json:"focused"`
	Tabs    []Tab `json:"tabs"`
}

// Browser answers the tab queries the tracker needs to re-derive state.
type Browser interface {
	// FocusedTab returns the active tab of the focused window, falling back
	// to the most recently created window when none has focus.
	FocusedTab(ctx context.Context) (Tab, bool, error)

	// ActiveTab returns the active tab of the given window.
	ActiveTab(ctx context.Context, windowID int) (Tab, bool, error)
}

// Snapshot is a Browser backed by the last window list pushed by the host.
type Snapshot struct {
	mu      sync.RWMutex
	windows []Window
}

// NewSnapshot returns an empty Snapshot.
func NewSnapshot() *Snapshot {
	return &Snapshot{}
}

// Update replaces the known windows.
func (s *Snapshot) Update(windows []Window) {
	cp := make([]Window, len(windows))
	copy(cp, windows)

	s.mu.Lock()
	s.windows = cp
	s.mu.Unlock()
}

// FocusedTab implements Browser.
func (s *Snapshot) FocusedTab(_ context.Context) (Tab, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, w := range s.windows {
		if w.Focused {
			tab, ok := activeIn(w)
			return tab, ok, nil
		}
	}
	if len(s.windows) == 0 {
		return Tab{}, false, nil
	}

	// Highest id is the most recently created window.
	ws := make([]Window, len(s.windows))
	copy(ws, s.windows)
	sort.Slice(ws, func(i, j int) bool { return ws[i].ID > ws[j].ID })
	tab, ok := activeIn(ws[0])
	return tab, ok, nil
}

// ActiveTab implements Browser.
func (s *Snapshot) ActiveTab(_ context.Context, windowID int) (Tab, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, w := range s.windows {
		if w.ID == windowID {
			tab, ok := activeIn(w)
			return tab, ok, nil
		}
	}
	return Tab{}, false, nil
}

func activeIn(w Window) (Tab, bool) {
	for _, t := range w.Tabs {
		if t.Active {
			if t.WindowID == 0 {
				t.WindowID = w.ID
			}
			return t, true
		}
	}
	return Tab{}, false
}
