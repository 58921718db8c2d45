package ir

import (
	"fmt"
	"strings"
	"time"
)

// DateLayout is the storage layout for date-only values.
const DateLayout = "2006-01-02"

// DayOf truncates t to midnight UTC.
func DayOf(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

// AddDays returns the UTC day that is days after the day of t.
func AddDays(t time.Time, days int) time.Time {
	return DayOf(t).AddDate(0, 0, days)
}

// Reached reports whether the calendar day of now is on or after target's day.
func Reached(now, target time.Time) bool {
	return !DayOf(now).Before(DayOf(target))
}

// FormatStamp renders t the way it is stored and hashed.
func FormatStamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

// ParseDate accepts a date-only value or an RFC 3339 timestamp.
// Custom date attributes are free-form text, so malformed values are
// reported as errors and treated by callers as "no date".
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty date")
	}
	if t, err := time.Parse(DateLayout, s); err == nil {
		return t.UTC(), nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	return time.Time{}, fmt.Errorf("malformed date %q", s)
}
