package scheduler

import (
	"context"
	"testing"
	"time"
)

type fakeLoop struct {
	name     string
	stopped  bool
	drainErr error
}

func (l *fakeLoop) Name() string { return l.name }
func (l *fakeLoop) Stop()        { l.stopped = true }
func (l *fakeLoop) Drain(ctx context.Context) error {
	return l.drainErr
}

func TestShutdownStopsLoopsAndReleasesLocks(t *testing.T) {
	locks := NewLockTable(4, time.Hour, testLogger())
	locks.TryAcquire("stuck-1")
	locks.TryAcquire("stuck-2")
	monitoring := &fakeLoop{name: "monitoring"}
	lifecycle := &fakeLoop{name: "alert-lifecycle"}

	coordinator := NewShutdownCoordinator(locks, time.Second, testLogger(), monitoring, lifecycle)
	coordinator.Shutdown(context.Background())

	if !monitoring.stopped || !lifecycle.stopped {
		t.Fatalf("expected all loops stopped")
	}
	if locks.ActiveCount() != 0 {
		t.Fatalf("expected stale locks force-released, %d remain", locks.ActiveCount())
	}
}

func TestShutdownToleratesDrainTimeout(t *testing.T) {
	locks := NewLockTable(4, time.Hour, testLogger())
	locks.TryAcquire("stuck")
	slow := &fakeLoop{name: "monitoring", drainErr: context.DeadlineExceeded}

	coordinator := NewShutdownCoordinator(locks, 10*time.Millisecond, testLogger(), slow)
	coordinator.Shutdown(context.Background())

	if locks.ActiveCount() != 0 {
		t.Fatalf("locks must be reclaimed even when a loop fails to drain")
	}
}

func TestMonitoringLoopImplementsLoop(t *testing.T) {
	var _ Loop = &MonitoringLoop{}
}
