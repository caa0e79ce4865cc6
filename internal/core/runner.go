package core

import (
	"context"
	"log/slog"
	"time"
)

// runPeriodic runs fn at a fixed period using absolute deadlines from a
// common time base, not relative delays from "now", so execution
// periods do not drift under jitter or scheduling delay. offset
// staggers tasks against each other on the shared base.
//
// When a tick is missed entirely the runner skips forward to the next
// future deadline rather than bursting to catch up.
func runPeriodic(ctx context.Context, name string, base time.Time, period, offset time.Duration, fn func()) {
	next := base.Add(offset)
	for !next.After(time.Now()) {
		next = next.Add(period)
	}

	timer := time.NewTimer(time.Until(next))
	defer timer.Stop()

	slog.Debug("core: task started", "task", name, "period", period)

	for {
		select {
		case <-ctx.Done():
			slog.Debug("core: task stopped", "task", name)
			return
		case <-timer.C:
			fn()
			next = next.Add(period)
			for !next.After(time.Now()) {
				next = next.Add(period)
			}
			timer.Reset(time.Until(next))
		}
	}
}
