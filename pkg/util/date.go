package util

import (
	"strconv"
	"time"
)

// DateLayout is the calendar-date format used in reports and query strings.
const DateLayout = "2006-01-02"

// ParseTime accepts YYYY-MM-DD, RFC3339, RFC3339Nano and unix seconds.
// Dates are taken as UTC midnight.
func ParseTime(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	if t, err := time.Parse(DateLayout, s); err == nil {
		return t, true
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, true
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, true
	}
	if ts, err := strconv.ParseInt(s, 10, 64); err == nil && ts > 0 {
		return time.Unix(ts, 0).UTC(), true
	}
	return time.Time{}, false
}

// ParseTimeDefault parses time or returns default if empty/invalid.
func ParseTimeDefault(s string, def time.Time) time.Time {
	if t, ok := ParseTime(s); ok {
		return t
	}
	return def
}

// ResolveRange turns optional from/to strings into a concrete window. A missing
// "to" is now, a missing "from" is years before "to".
func ResolveRange(from, to string, years int, now time.Time) (time.Time, time.Time, bool) {
	end := now.UTC()
	if to != "" {
		t, ok := ParseTime(to)
		if !ok {
			return time.Time{}, time.Time{}, false
		}
		end = t
	}
	start := end.AddDate(-years, 0, 0)
	if from != "" {
		t, ok := ParseTime(from)
		if !ok {
			return time.Time{}, time.Time{}, false
		}
		start = t
	}
	if !start.Before(end) {
		return time.Time{}, time.Time{}, false
	}
	return start, end, true
}

// TruncateDay drops the clock part in UTC.
func TruncateDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
