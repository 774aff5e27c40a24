package rollover

import (
	"context"
	"testing"
	"time"
)

func TestNextMidnight(t *testing.T) {
	loc := time.UTC
	now := time.Date(2025, 3, 14, 15, 9, 26, 0, loc)

	next := NextMidnight(now, loc)

	want := time.Date(2025, 3, 15, 0, 0, 0, 0, loc)
	if !next.Equal(want) {
		t.Errorf("NextMidnight = %s, want %s", next, want)
	}
}

func TestNextMidnight_JustBeforeMidnight(t *testing.T) {
	loc := time.UTC
	now := time.Date(2025, 3, 14, 23, 59, 59, 999999999, loc)

	next := NextMidnight(now, loc)

	want := time.Date(2025, 3, 15, 0, 0, 0, 0, loc)
	if !next.Equal(want) {
		t.Errorf("NextMidnight = %s, want %s", next, want)
	}
}

func TestNextMidnight_AtMidnightIsStrictlyAfter(t *testing.T) {
	loc := time.UTC
	now := time.Date(2025, 3, 15, 0, 0, 0, 0, loc)

	next := NextMidnight(now, loc)

	want := time.Date(2025, 3, 16, 0, 0, 0, 0, loc)
	if !next.Equal(want) {
		t.Errorf("NextMidnight = %s, want %s", next, want)
	}
}

func TestRun_StopsOnCancel(t *testing.T) {
	s := NewScheduler(time.UTC)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx, func() {})
		close(done)
	}()

	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop on context cancellation")
	}
}

func TestRun_FiresAtBoundary(t *testing.T) {
	s := NewScheduler(time.UTC)
	// Pin the clock just before midnight so the first boundary is near.
	fake := time.Date(2025, 3, 14, 23, 59, 59, 950000000, time.UTC)
	s.nowFn = func() time.Time { return fake }

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	fired := make(chan struct{}, 1)
	go s.Run(ctx, func() {
		select {
		case fired <- struct{}{}:
		default:
		}
		cancel()
	})

	select {
	case <-fired:
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not fire at the midnight boundary")
	}
}
