package parse

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var clockRe = regexp.MustCompile(`^(\d{1,2}):(\d{2})$`)

// DateLayout is the civil-date wire format used across the API.
const DateLayout = "2006-01-02"

// Clock parses a local clock string ("9:00", "09:30") and returns the
// zero-padded "HH:MM" form. "24:00" is accepted as an exclusive end-of-day
// bound. Anything else out of range is rejected.
func Clock(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	m := clockRe.FindStringSubmatch(s)
	if m == nil {
		return "", fmt.Errorf("invalid clock time %q, expected HH:MM", raw)
	}

	hour, _ := strconv.Atoi(m[1])
	minute, _ := strconv.Atoi(m[2])

	if hour == 24 && minute == 0 {
		return "24:00", nil
	}
	if hour > 23 || minute > 59 {
		return "", fmt.Errorf("clock time %q out of range", raw)
	}
	return fmt.Sprintf("%02d:%02d", hour, minute), nil
}

// Window parses and validates a [start,end) clock window, requiring a
// non-empty interval.
func Window(rawStart, rawEnd string) (start, end string, err error) {
	start, err = Clock(rawStart)
	if err != nil {
		return "", "", err
	}
	end, err = Clock(rawEnd)
	if err != nil {
		return "", "", err
	}
	if start >= end {
		return "", "", fmt.Errorf("end time %q must be after start time %q", rawEnd, rawStart)
	}
	return start, end, nil
}

// Minutes converts a normalized "HH:MM" clock string to minutes since
// midnight. The input must come from Clock.
func Minutes(clock string) int {
	hour, _ := strconv.Atoi(clock[:2])
	minute, _ := strconv.Atoi(clock[3:])
	return hour*60 + minute
}

// FormatMinutes renders minutes since midnight back into "HH:MM".
func FormatMinutes(minutes int) string {
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}

// Date parses a "YYYY-MM-DD" civil date into a midnight-UTC time.Time.
func Date(raw string) (time.Time, error) {
	d, err := time.Parse(DateLayout, strings.TrimSpace(raw))
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, expected YYYY-MM-DD", raw)
	}
	return d, nil
}

// DateOnly truncates a timestamp to its midnight-UTC civil date, the canonical
// form reservations are keyed by.
func DateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
