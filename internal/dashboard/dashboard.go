// Package dashboard keeps the live set of connected tabs per session and a
// short history of idle events, and serves them as JSON.
package dashboard

import (
	"encoding/json"
	"net/http"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"idlegate/internal/constants"
	"idlegate/internal/types"
)

// Tab is a connected tab as seen by the registry.
type Tab interface {
	Info() types.TabInfo
	// SignOut ends the tab because its session is gone.
	SignOut(reason string)
}

type Event struct {
	Timestamp time.Time `json:"timestamp"`
	Type      string    `json:"type"`
	SessionID string    `json:"session_id"`
	TabID     string    `json:"tab_id,omitempty"`
	Details   string    `json:"details,omitempty"`
}

type Dashboard struct {
	mu        sync.RWMutex
	sessions  map[string]map[string]Tab
	events    []Event
	maxEvents int

	connected     int64
	forcedLogouts int64
	started       time.Time
}

func New() *Dashboard {
	return &Dashboard{
		sessions:  make(map[string]map[string]Tab),
		maxEvents: constants.MaxRecentEvents,
		started:   time.Now(),
	}
}

func (d *Dashboard) Add(sessionID, tabID string, t Tab) {
	d.mu.Lock()
	tabs := d.sessions[sessionID]
	if tabs == nil {
		tabs = make(map[string]Tab)
		d.sessions[sessionID] = tabs
	}
	tabs[tabID] = t
	d.mu.Unlock()

	atomic.AddInt64(&d.connected, 1)
	d.AddEvent(Event{Type: "tab_connected", SessionID: sessionID, TabID: tabID})
}

func (d *Dashboard) Remove(sessionID, tabID string) {
	d.mu.Lock()
	tabs := d.sessions[sessionID]
	_, ok := tabs[tabID]
	delete(tabs, tabID)
	if len(tabs) == 0 {
		delete(d.sessions, sessionID)
	}
	d.mu.Unlock()

	if ok {
		atomic.AddInt64(&d.connected, -1)
		d.AddEvent(Event{Type: "tab_disconnected", SessionID: sessionID, TabID: tabID})
	}
}

// Tabs returns the session's tabs ordered by connection time.
func (d *Dashboard) Tabs(sessionID string) []types.TabInfo {
	d.mu.RLock()
	handles := make([]Tab, 0, len(d.sessions[sessionID]))
	for _, t := range d.sessions[sessionID] {
		handles = append(handles, t)
	}
	d.mu.RUnlock()

	infos := make([]types.TabInfo, 0, len(handles))
	for _, t := range handles {
		infos = append(infos, t.Info())
	}
	sort.Slice(infos, func(i, j int) bool {
		if infos[i].ConnectedAt.Equal(infos[j].ConnectedAt) {
			return infos[i].ID < infos[j].ID
		}
		return infos[i].ConnectedAt.Before(infos[j].ConnectedAt)
	})
	return infos
}

// SignOutSession ends every tab of the session and returns how many there
// were.
func (d *Dashboard) SignOutSession(sessionID, reason string) int {
	d.mu.RLock()
	handles := make([]Tab, 0, len(d.sessions[sessionID]))
	for _, t := range d.sessions[sessionID] {
		handles = append(handles, t)
	}
	d.mu.RUnlock()

	for _, t := range handles {
		t.SignOut(reason)
	}
	return len(handles)
}

func (d *Dashboard) RecordForcedLogout(sessionID, tabID, reason string) {
	atomic.AddInt64(&d.forcedLogouts, 1)
	d.AddEvent(Event{Type: "forced_logout", SessionID: sessionID, TabID: tabID, Details: reason})
}

func (d *Dashboard) AddEvent(ev Event) {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}
	d.mu.Lock()
	d.events = append(d.events, ev)
	if len(d.events) > d.maxEvents {
		d.events = d.events[len(d.events)-d.maxEvents:]
	}
	d.mu.Unlock()
}

func (d *Dashboard) Events() []Event {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]Event, len(d.events))
	copy(out, d.events)
	return out
}

func (d *Dashboard) Connected() int {
	return int(atomic.LoadInt64(&d.connected))
}

func (d *Dashboard) HandleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, constants.MsgMethodNotAllowed, http.StatusMethodNotAllowed)
		return
	}

	d.mu.RLock()
	sessions := len(d.sessions)
	d.mu.RUnlock()

	stats := map[string]interface{}{
		"tabs_connected": atomic.LoadInt64(&d.connected),
		"sessions":       sessions,
		"forced_logouts": atomic.LoadInt64(&d.forcedLogouts),
		"uptime":         time.Since(d.started).Round(time.Second).String(),
		"version":        constants.Version,
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(stats)
}
