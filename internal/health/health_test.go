package health

import (
	"testing"
	"time"
)

func beatAt(hb *Heartbeat, at time.Time) {
	hb.last.Store(at.UnixNano())
}

func TestHeartbeatLast(t *testing.T) {
	hb := &Heartbeat{}
	if !hb.Last().IsZero() {
		t.Fatalf("expected zero before first beat")
	}
	hb.Beat()
	if hb.Last().IsZero() {
		t.Fatalf("expected non-zero after beat")
	}
}

func TestMonitorReportsPerLoop(t *testing.T) {
	now := time.Date(2024, 3, 10, 10, 0, 0, 0, time.UTC)
	m := NewMonitor()
	m.now = func() time.Time { return now }

	fresh := &Heartbeat{}
	beatAt(fresh, now.Add(-5*time.Second))
	stale := &Heartbeat{}
	beatAt(stale, now.Add(-2*time.Minute))

	m.Register("monitoring", fresh, 30*time.Second)
	m.Register("alert-lifecycle", stale, 30*time.Second)

	statuses := m.Check()
	if len(statuses) != 2 {
		t.Fatalf("expected 2 statuses")
	}
	byName := map[string]LoopStatus{}
	for _, s := range statuses {
		byName[s.Name] = s
	}
	if !byName["monitoring"].Healthy {
		t.Fatalf("fresh loop reported unhealthy")
	}
	if byName["alert-lifecycle"].Healthy {
		t.Fatalf("stale loop reported healthy")
	}
	if m.Healthy() {
		t.Fatalf("monitor healthy while one loop is stale")
	}
}

func TestMonitorNeverBeaten(t *testing.T) {
	m := NewMonitor()
	m.Register("monitoring", &Heartbeat{}, time.Minute)
	if m.Healthy() {
		t.Fatalf("a loop that never ticked is not healthy")
	}
}
