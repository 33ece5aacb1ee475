package booru

import (
	"context"
	"time"
)

// limiter spaces request starts at least interval apart. lastIssue is the
// start of the previous request, not its completion.
type limiter struct {
	interval  time.Duration
	clock     Clock
	lastIssue time.Time
}

func newLimiter(interval time.Duration, clock Clock) *limiter {
	return &limiter{
		interval:  interval,
		clock:     clock,
		lastIssue: time.Unix(0, 0),
	}
}

// wait blocks until the next request may start and marks it as issued.
func (l *limiter) wait(ctx context.Context) error {
	if l.interval > 0 {
		if wait := l.interval - l.clock.Now().Sub(l.lastIssue); wait > 0 {
			if err := l.clock.Sleep(ctx, wait); err != nil {
				return err
			}
		}
	}
	l.lastIssue = l.clock.Now()
	return nil
}
