package schedule

import (
	"fmt"
	"time"
)

// Interval converts a fractional hour count from config into a duration.
func Interval(hours float64) time.Duration {
	if hours <= 0 {
		return 0
	}
	return time.Duration(hours * float64(time.Hour))
}

// ParseDuration parses a config duration such as "1h" or "15m". An empty
// string yields def.
func ParseDuration(s string, def time.Duration) (time.Duration, error) {
	if s == "" {
		return def, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q: %w", s, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("invalid duration %q: must not be negative", s)
	}
	return d, nil
}

// NextRun returns when the run following one started at last is due. Ticks
// missed while a run overran are skipped rather than queued.
func NextRun(last time.Time, interval time.Duration, now time.Time) time.Time {
	if interval <= 0 {
		return now
	}
	next := last.Add(interval)
	for !next.After(now) {
		next = next.Add(interval)
	}
	return next
}
