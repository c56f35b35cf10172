package scheduler

import (
	"errors"
	"testing"
	"time"
)

func mustNextRun(t *testing.T, freq int, ref time.Time) time.Time {
	t.Helper()
	next, err := NextRun(freq, ref)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return next
}

func TestNextRunDivisorFrequencies(t *testing.T) {
	ref := time.Date(2024, 3, 10, 10, 7, 0, 0, time.UTC)
	cases := []struct {
		freq int
		want time.Time
	}{
		{1, time.Date(2024, 3, 10, 10, 8, 0, 0, time.UTC)},
		{5, time.Date(2024, 3, 10, 10, 10, 0, 0, time.UTC)},
		{15, time.Date(2024, 3, 10, 10, 15, 0, 0, time.UTC)},
		{30, time.Date(2024, 3, 10, 10, 30, 0, 0, time.UTC)},
	}
	for _, tc := range cases {
		got := mustNextRun(t, tc.freq, ref)
		if !got.Equal(tc.want) {
			t.Fatalf("freq %d: got %v, want %v", tc.freq, got, tc.want)
		}
	}
}

func TestNextRunAlignedWithinHour(t *testing.T) {
	for _, freq := range []int{1, 2, 3, 5, 6, 10, 12, 15, 20, 30} {
		ref := time.Date(2024, 3, 10, 10, 7, 33, 0, time.UTC)
		next := mustNextRun(t, freq, ref)
		if !next.After(ref) {
			t.Fatalf("freq %d: next %v not after reference", freq, next)
		}
		if next.Minute()%freq != 0 || next.Second() != 0 {
			t.Fatalf("freq %d: next %v not aligned", freq, next)
		}
	}
}

func TestNextRunStrictlyAfterBoundary(t *testing.T) {
	ref := time.Date(2024, 3, 10, 10, 15, 0, 0, time.UTC)
	next := mustNextRun(t, 15, ref)
	want := time.Date(2024, 3, 10, 10, 30, 0, 0, time.UTC)
	if !next.Equal(want) {
		t.Fatalf("got %v, want %v", next, want)
	}
}

func TestNextRunWrapsToNextHour(t *testing.T) {
	ref := time.Date(2024, 3, 10, 10, 50, 0, 0, time.UTC)
	next := mustNextRun(t, 15, ref)
	want := time.Date(2024, 3, 10, 11, 0, 0, 0, time.UTC)
	if !next.Equal(want) {
		t.Fatalf("got %v, want %v", next, want)
	}
}

func TestNextRunHourly(t *testing.T) {
	ref := time.Date(2024, 3, 10, 10, 7, 0, 0, time.UTC)
	next := mustNextRun(t, 60, ref)
	want := time.Date(2024, 3, 10, 11, 0, 0, 0, time.UTC)
	if !next.Equal(want) {
		t.Fatalf("got %v, want %v", next, want)
	}
}

func TestNextRunMultiHour(t *testing.T) {
	ref := time.Date(2024, 3, 10, 13, 30, 0, 0, time.UTC)
	next := mustNextRun(t, 360, ref)
	want := time.Date(2024, 3, 10, 18, 0, 0, 0, time.UTC)
	if !next.Equal(want) {
		t.Fatalf("got %v, want %v", next, want)
	}
}

func TestNextRunMultiHourWrapsToMidnight(t *testing.T) {
	ref := time.Date(2024, 3, 10, 22, 15, 0, 0, time.UTC)
	next := mustNextRun(t, 300, ref) // 5h steps: 00,05,10,15,20, then midnight
	want := time.Date(2024, 3, 11, 0, 0, 0, 0, time.UTC)
	if !next.Equal(want) {
		t.Fatalf("got %v, want %v", next, want)
	}
}

func TestNextRunDaily(t *testing.T) {
	for _, ref := range []time.Time{
		time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 3, 10, 0, 0, 1, 0, time.UTC),
		time.Date(2024, 3, 10, 23, 59, 59, 0, time.UTC),
	} {
		next := mustNextRun(t, 1440, ref)
		want := time.Date(2024, 3, 11, 0, 0, 0, 0, time.UTC)
		if !next.Equal(want) {
			t.Fatalf("ref %v: got %v, want %v", ref, next, want)
		}
	}
}

func TestNextRunNonDivisorFrequency(t *testing.T) {
	ref := time.Date(2024, 3, 10, 10, 7, 0, 0, time.UTC)
	next := mustNextRun(t, 90, ref)
	if !next.After(ref) {
		t.Fatalf("next %v not after reference", next)
	}
	if (next.Unix()/60)%90 != 0 {
		t.Fatalf("next %v not aligned to 90-minute epoch multiples", next)
	}
	if next.Sub(ref) > 90*time.Minute {
		t.Fatalf("next %v more than one interval away", next)
	}
}

func TestNextRunInvalidFrequency(t *testing.T) {
	for _, freq := range []int{0, -5} {
		_, err := NextRun(freq, time.Now())
		if !errors.Is(err, ErrInvalidFrequency) {
			t.Fatalf("freq %d: expected ErrInvalidFrequency, got %v", freq, err)
		}
	}
}

func TestIsDueAfterRun(t *testing.T) {
	lastRun := time.Date(2024, 3, 10, 10, 15, 0, 0, time.UTC)
	due, err := IsDue(15, lastRun, lastRun.Add(time.Second))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if due {
		t.Fatalf("expected not due immediately after run")
	}
	due, err = IsDue(15, lastRun, time.Date(2024, 3, 10, 10, 30, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !due {
		t.Fatalf("expected due at next boundary")
	}
}

func TestIsDueNeverRun(t *testing.T) {
	due, err := IsDue(15, time.Time{}, time.Now())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !due {
		t.Fatalf("expected indicator that never ran to be due")
	}
}
