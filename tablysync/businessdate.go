package tablysync

import (
	"errors"
	"strings"
	"time"
)

var errBadBusinessDate = errors.New("unrecognized business date")

// ParseBusinessDate resolves Tably's business-date representations to a UTC
// calendar date at midnight. The provider is inconsistent across endpoints:
// "20240115", "2024-01-15" and full timestamps all occur, and all three denote
// the same day. Any time-of-day component is discarded.
func ParseBusinessDate(raw string) (time.Time, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return time.Time{}, errBadBusinessDate
	}

	// Timestamps: keep the date part only.
	if i := strings.IndexAny(s, "T "); i > 0 {
		s = s[:i]
	}

	var digits strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	if digits.Len() != 8 {
		return time.Time{}, errBadBusinessDate
	}

	d, err := time.ParseInLocation("20060102", digits.String(), time.UTC)
	if err != nil {
		return time.Time{}, errBadBusinessDate
	}
	return d, nil
}

// DateWithinRange reports whether d falls inside [start, end] comparing
// calendar dates only. Boundary timestamps are truncated to their date, so a
// window built from timestamps behaves identically to one built from dates.
// The upstream API over-returns orders adjacent to a requested window; every
// caller must gate orders through this before aggregation.
func DateWithinRange(d, start, end time.Time) bool {
	day := truncateToDate(d)
	lo := truncateToDate(start)
	hi := truncateToDate(end)
	return !day.Before(lo) && !day.After(hi)
}

func truncateToDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
