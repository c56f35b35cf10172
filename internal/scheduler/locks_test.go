package scheduler

import (
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestTryAcquireMutualExclusion(t *testing.T) {
	locks := NewLockTable(64, time.Hour, testLogger())
	var successes atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, ok := locks.TryAcquire("ind-1"); ok {
				successes.Add(1)
			}
		}()
	}
	wg.Wait()
	if successes.Load() != 1 {
		t.Fatalf("expected exactly one acquisition, got %d", successes.Load())
	}
}

func TestReleaseAllowsReacquire(t *testing.T) {
	locks := NewLockTable(4, time.Hour, testLogger())
	tok, ok := locks.TryAcquire("ind-1")
	if !ok {
		t.Fatalf("expected acquisition")
	}
	if _, ok := locks.TryAcquire("ind-1"); ok {
		t.Fatalf("expected contention while held")
	}
	locks.Release(tok)
	if locks.Held("ind-1") {
		t.Fatalf("expected lock released")
	}
	if _, ok := locks.TryAcquire("ind-1"); !ok {
		t.Fatalf("expected reacquire after release")
	}
}

func TestGlobalSemaphoreBound(t *testing.T) {
	locks := NewLockTable(2, time.Hour, testLogger())
	if _, ok := locks.TryAcquire("a"); !ok {
		t.Fatalf("expected first slot")
	}
	if _, ok := locks.TryAcquire("b"); !ok {
		t.Fatalf("expected second slot")
	}
	for _, id := range []string{"c", "d", "e"} {
		if _, ok := locks.TryAcquire(id); ok {
			t.Fatalf("expected %s to be rejected at the parallelism bound", id)
		}
	}
	if locks.ActiveCount() != 2 {
		t.Fatalf("expected 2 active, got %d", locks.ActiveCount())
	}
}

func TestStaleLockReclaimed(t *testing.T) {
	locks := NewLockTable(4, 10*time.Minute, testLogger())
	clock := time.Date(2024, 3, 10, 10, 0, 0, 0, time.UTC)
	locks.now = func() time.Time { return clock }

	staleTok, ok := locks.TryAcquire("ind-1")
	if !ok {
		t.Fatalf("expected acquisition")
	}
	clock = clock.Add(5 * time.Minute)
	if _, ok := locks.TryAcquire("ind-1"); ok {
		t.Fatalf("fresh lock must not be reclaimed")
	}
	clock = clock.Add(10 * time.Minute)
	newTok, ok := locks.TryAcquire("ind-1")
	if !ok {
		t.Fatalf("expected stale lock to be reclaimed")
	}
	if newTok.Context == staleTok.Context {
		t.Fatalf("expected a fresh execution context")
	}
	// The abandoned holder must not be able to release the new owner.
	locks.Release(staleTok)
	if !locks.Held("ind-1") {
		t.Fatalf("stale token release must be a no-op")
	}
	locks.Release(newTok)
	if locks.Held("ind-1") {
		t.Fatalf("expected release by current owner")
	}
	// The reclaim transferred the semaphore slot; all 4 must be free again.
	for _, id := range []string{"a", "b", "c", "d"} {
		if _, ok := locks.TryAcquire(id); !ok {
			t.Fatalf("expected slot for %s after reclaim and release", id)
		}
	}
}

func TestForceReleaseAll(t *testing.T) {
	locks := NewLockTable(4, time.Hour, testLogger())
	locks.TryAcquire("a")
	locks.TryAcquire("b")
	released := locks.ForceReleaseAll()
	if len(released) != 2 {
		t.Fatalf("expected 2 released, got %d", len(released))
	}
	if locks.ActiveCount() != 0 {
		t.Fatalf("expected empty table")
	}
	if _, ok := locks.TryAcquire("a"); !ok {
		t.Fatalf("expected reacquire after force release")
	}
}
