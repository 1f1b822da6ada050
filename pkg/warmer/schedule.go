package warmer

import (
	"context"
	"strconv"
	"strings"
	"time"

	"routecore/pkg/logger"
)

// RunSchedule runs Run once per day at cfg.RunAt (local "HH:MM", default
// 05:00) until ctx is cancelled. Grounded on the teacher's ticker-driven
// background worker shape, adapted from a fixed interval to a
// next-wall-clock-occurrence timer since the warmer runs once a day at a
// specific time rather than on a repeating period.
func (w *CacheWarmer) RunSchedule(ctx context.Context) {
	for {
		next := nextOccurrence(w.clock.Now(), w.cfg.RunAt)
		timer := time.NewTimer(time.Until(next))

		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			if err := w.Run(ctx); err != nil {
				logger.Log.Warn("cache warmer run failed", "error", err)
			}
		}
	}
}

// nextOccurrence returns the next time strictly after now that matches the
// "HH:MM" wall-clock time runAt, in now's location. An unparsable runAt
// falls back to 05:00.
func nextOccurrence(now time.Time, runAt string) time.Time {
	hour, minute := 5, 0
	if parts := strings.SplitN(runAt, ":", 2); len(parts) == 2 {
		if h, err := strconv.Atoi(parts[0]); err == nil {
			hour = h
		}
		if m, err := strconv.Atoi(parts[1]); err == nil {
			minute = m
		}
	}

	candidate := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, now.Location())
	if !candidate.After(now) {
		candidate = candidate.AddDate(0, 0, 1)
	}
	return candidate
}
