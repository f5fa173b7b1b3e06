// Package timeutil provides time-window utilities for the graph-analytics
// service. It handles dashboard period parsing ("1h", "24h", "7d"), trailing
// window calculations, and duration formatting for metrics history queries.
// No external dependencies - uses only standard library.
package timeutil

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ErrInvalidPeriod is returned when a period string cannot be parsed.
var ErrInvalidPeriod = errors.New("timeutil: invalid period")

// Well-known dashboard periods.
const (
	PeriodHour = time.Hour
	PeriodDay  = 24 * time.Hour
	PeriodWeek = 7 * 24 * time.Hour
)

// MaxPeriod is the largest period accepted from dashboard queries.
// History retention is bounded, so anything above a week is rejected.
const MaxPeriod = PeriodWeek

// ParsePeriod parses a dashboard period string into a duration.
// Supported forms: "30m", "1h", "24h", "7d" and plain Go durations.
// The "d" suffix is not valid Go duration syntax but is the form
// dashboards send, so it is handled explicitly.
func ParsePeriod(s string) (time.Duration, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	if s == "" {
		return 0, fmt.Errorf("%w: empty string", ErrInvalidPeriod)
	}

	var d time.Duration

	if strings.HasSuffix(s, "d") {
		days, err := strconv.Atoi(strings.TrimSuffix(s, "d"))
		if err != nil {
			return 0, fmt.Errorf("%w: %q", ErrInvalidPeriod, s)
		}
		d = time.Duration(days) * PeriodDay
	} else {
		var err error
		d, err = time.ParseDuration(s)
		if err != nil {
			return 0, fmt.Errorf("%w: %q", ErrInvalidPeriod, s)
		}
	}

	if d <= 0 {
		return 0, fmt.Errorf("%w: must be positive, got %q", ErrInvalidPeriod, s)
	}
	if d > MaxPeriod {
		return 0, fmt.Errorf("%w: %q exceeds maximum of %s", ErrInvalidPeriod, s, FormatPeriod(MaxPeriod))
	}

	return d, nil
}

// FormatPeriod formats a duration back into the compact dashboard form.
func FormatPeriod(d time.Duration) string {
	if d >= PeriodDay && d%PeriodDay == 0 {
		return fmt.Sprintf("%dd", int(d/PeriodDay))
	}
	if d >= time.Hour && d%time.Hour == 0 {
		return fmt.Sprintf("%dh", int(d/time.Hour))
	}
	return d.String()
}

// WindowStart returns the start of a trailing window ending at the given time.
func WindowStart(end time.Time, period time.Duration) time.Time {
	return end.Add(-period)
}

// InWindow reports whether t falls inside the trailing window [end-period, end].
func InWindow(t, end time.Time, period time.Duration) bool {
	start := WindowStart(end, period)
	return !t.Before(start) && !t.After(end)
}

// TruncateToMinute truncates a time to minute precision, in UTC.
// Snapshot timestamps are stored this way so history buckets line up.
func TruncateToMinute(t time.Time) time.Time {
	return t.UTC().Truncate(time.Minute)
}

// DurationMs converts a duration to fractional milliseconds for JSON payloads.
func DurationMs(d time.Duration) float64 {
	return float64(d.Nanoseconds()) / 1e6
}
