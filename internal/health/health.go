// Package health tracks loop liveness through heartbeats. Each background
// loop beats after every successful tick; the monitor compares the last beat
// against a staleness threshold and reports per-loop status. It never
// restarts anything; restart policy is an operational decision.
package health

import (
	"sync"
	"sync/atomic"
	"time"
)

// Heartbeat records the time of the owning loop's last successful tick.
// Safe for concurrent use.
type Heartbeat struct {
	last atomic.Int64 // unix nanoseconds, 0 until the first beat
}

func (h *Heartbeat) Beat() {
	h.last.Store(time.Now().UnixNano())
}

func (h *Heartbeat) Last() time.Time {
	n := h.last.Load()
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n).UTC()
}

type LoopStatus struct {
	Name     string    `json:"name"`
	Healthy  bool      `json:"healthy"`
	LastBeat time.Time `json:"lastBeat"`
}

type entry struct {
	name       string
	hb         *Heartbeat
	staleAfter time.Duration
}

type Monitor struct {
	mu      sync.Mutex
	entries []entry
	now     func() time.Time
}

func NewMonitor() *Monitor {
	return &Monitor{now: time.Now}
}

// Register adds a loop's heartbeat. staleAfter is typically the loop's tick
// interval times a small multiplier.
func (m *Monitor) Register(name string, hb *Heartbeat, staleAfter time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, entry{name: name, hb: hb, staleAfter: staleAfter})
}

// Check returns the status of every registered loop. A loop that has never
// beaten is reported unhealthy.
func (m *Monitor) Check() []LoopStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	statuses := make([]LoopStatus, 0, len(m.entries))
	for _, e := range m.entries {
		last := e.hb.Last()
		statuses = append(statuses, LoopStatus{
			Name:     e.name,
			Healthy:  !last.IsZero() && now.Sub(last) <= e.staleAfter,
			LastBeat: last,
		})
	}
	return statuses
}

// Healthy reports whether all registered loops are making progress.
func (m *Monitor) Healthy() bool {
	for _, s := range m.Check() {
		if !s.Healthy {
			return false
		}
	}
	return true
}
