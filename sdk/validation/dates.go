package validation

import (
	"fmt"
	"strings"
	"time"
)

// DayLayout is the canonical calendar-day format used for habit dates and
// the last-sync marker.
const DayLayout = time.DateOnly

// dayFormats are tried in order. Month-first layouts precede day-first ones,
// so an ambiguous "03/04/2026" is read as March 4th.
var dayFormats = []string{
	time.DateOnly,        // 2006-01-02
	"Mon Jan 02 2006",    // Date.toDateString style
	"Mon Jan 2 2006",     // same, unpadded day
	"Monday, January 2, 2006",
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05", // ISO without zone
	"01/02/2006",          // MM/DD/YYYY
	"01/02/06",            // MM/DD/YY
	"01-02-2006",          // MM-DD-YYYY
	"2006/01/02",          // YYYY/MM/DD
	"02/01/2006",          // DD/MM/YYYY
	"02-01-2006",          // DD-MM-YYYY
}

// ParseFlexibleDate tries to parse a date string using multiple common formats.
func ParseFlexibleDate(dateStr string) (time.Time, error) {
	s := strings.TrimSpace(dateStr)
	if s == "" {
		return time.Time{}, fmt.Errorf("unable to parse date: empty")
	}
	for _, format := range dayFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unable to parse date: %s", dateStr)
}

// NormalizeDay converts any accepted date representation to DayLayout.
// Timestamps keep the calendar day they were written in; no zone conversion
// is applied.
func NormalizeDay(dateStr string) (string, error) {
	t, err := ParseFlexibleDate(dateStr)
	if err != nil {
		return "", err
	}
	return t.Format(DayLayout), nil
}

// DayOf returns the calendar day of t in t's own location.
func DayOf(t time.Time) string {
	return t.Format(DayLayout)
}

// ParseWeekday accepts full or three-letter English weekday names in any case.
func ParseWeekday(name string) (time.Weekday, bool) {
	n := strings.ToLower(strings.TrimSpace(name))
	if len(n) < 3 {
		return 0, false
	}
	for d := time.Sunday; d <= time.Saturday; d++ {
		full := strings.ToLower(d.String())
		if n == full || n == full[:3] {
			return d, true
		}
	}
	return 0, false
}
