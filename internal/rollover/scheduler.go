// Package rollover runs the daily balance baseline snapshot at local
// midnight, feeding the day-over-day change calculation.
package rollover

import (
	"context"
	"log/slog"
	"time"
)

// Scheduler invokes a task once per day at midnight in the configured
// location. An external scheduler can also trigger the same task through
// the rollover HTTP hook; the two are idempotent with respect to each
// other (the latest snapshot wins).
type Scheduler struct {
	loc   *time.Location
	nowFn func() time.Time
}

// NewScheduler creates a scheduler aligned to midnight in loc.
// Nil loc defaults to time.Local.
func NewScheduler(loc *time.Location) *Scheduler {
	if loc == nil {
		loc = time.Local
	}
	return &Scheduler{loc: loc, nowFn: time.Now}
}

// Run blocks, invoking task at each midnight boundary until ctx is
// cancelled. Must be called in a goroutine.
func (s *Scheduler) Run(ctx context.Context, task func()) {
	for {
		next := NextMidnight(s.nowFn(), s.loc)
		slog.Info("rollover scheduled", "at", next.Format(time.RFC3339))

		if !s.waitUntil(ctx, next) {
			slog.Info("rollover scheduler stopped")
			return
		}
		task()
	}
}

func (s *Scheduler) waitUntil(ctx context.Context, target time.Time) bool {
	wait := target.Sub(s.nowFn())
	if wait <= 0 {
		wait = time.Second // clock moved backwards; retry shortly
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// NextMidnight returns the first midnight in loc strictly after now.
func NextMidnight(now time.Time, loc *time.Location) time.Time {
	now = now.In(loc)
	y, m, d := now.Date()
	return time.Date(y, m, d+1, 0, 0, 0, 0, loc)
}
