package timeparse

import (
	"errors"
	"strings"
	"time"
)

var ErrInvalidFormat = errors.New("invalid time format")

// Layouts accepted for zoneless timestamps. They are parsed as UTC.
var localLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// IsClockTime reports whether raw is a bare HH:MM clock time with no date
// or zone component.
func IsClockTime(raw string) bool {
	raw = strings.TrimSpace(raw)
	if len(raw) > 5 {
		return false
	}
	_, err := time.Parse("15:04", raw)
	return err == nil
}

// Normalize converts raw into an absolute timestamp.
//
//   - A full RFC3339 timestamp passes through unchanged.
//   - A zoneless timestamp (seconds optional) is parsed as UTC.
//   - A bare HH:MM clock time is combined with ref: ref's calendar date,
//     the given hour and minute, zero seconds and nanos, ref's location.
//
// Anything else fails with ErrInvalidFormat. Callers must supply a
// non-zero ref for bare clock times.
func Normalize(raw string, ref time.Time) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, ErrInvalidFormat
	}

	if IsClockTime(raw) {
		if ref.IsZero() {
			return time.Time{}, ErrInvalidFormat
		}
		clock, err := time.Parse("15:04", raw)
		if err != nil {
			return time.Time{}, ErrInvalidFormat
		}
		return time.Date(ref.Year(), ref.Month(), ref.Day(),
			clock.Hour(), clock.Minute(), 0, 0, ref.Location()), nil
	}

	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}

	candidate := raw
	// "YYYY-MM-DDTHH:MM" and "YYYY-MM-DD HH:MM" get default seconds.
	if len(candidate) == len("2006-01-02T15:04") {
		candidate += ":00"
	}
	for _, layout := range localLayouts {
		if t, err := time.ParseInLocation(layout, candidate, time.UTC); err == nil {
			return t, nil
		}
	}

	return time.Time{}, ErrInvalidFormat
}
