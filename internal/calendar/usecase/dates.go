package usecase

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var absoluteFormats = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	"January 2, 2006 15:04",
	"January 2, 2006",
	"Jan 2, 2006 15:04",
	"Jan 2, 2006",
}

var (
	tomorrowPattern = regexp.MustCompile(`(?i)\btomorrow\b`)
	nextWeekPattern = regexp.MustCompile(`(?i)\bnext week\b`)
	todayPattern    = regexp.MustCompile(`(?i)\btoday\b`)
	clockPattern    = regexp.MustCompile(`(?i)\b(\d{1,2})(?::(\d{2}))?\s*(am|pm)?\b`)
)

// defaultEventHour is used when a relative date carries no clock time.
const defaultEventHour = 9

// resolveTime parses an intent timestamp. Absolute forms are tried first;
// relative expressions are resolved against the message's received time so
// the result is a pure function of (value, anchor).
func resolveTime(value string, anchor time.Time, loc *time.Location) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, fmt.Errorf("empty timestamp")
	}

	for _, format := range absoluteFormats {
		if t, err := time.ParseInLocation(format, value, loc); err == nil {
			return t.UTC(), nil
		}
	}

	anchor = anchor.In(loc)
	var day time.Time
	switch {
	case tomorrowPattern.MatchString(value):
		day = anchor.AddDate(0, 0, 1)
	case nextWeekPattern.MatchString(value):
		day = anchor.AddDate(0, 0, 7)
	case todayPattern.MatchString(value):
		day = anchor
	default:
		return time.Time{}, fmt.Errorf("unparseable timestamp %q", value)
	}

	hour, minute := defaultEventHour, 0
	if m := clockPattern.FindStringSubmatch(value); m != nil {
		if h, err := strconv.Atoi(m[1]); err == nil && h <= 23 {
			hour = h
		}
		if m[2] != "" {
			if mm, err := strconv.Atoi(m[2]); err == nil && mm <= 59 {
				minute = mm
			}
		}
		if strings.EqualFold(m[3], "pm") && hour < 12 {
			hour += 12
		}
		if strings.EqualFold(m[3], "am") && hour == 12 {
			hour = 0
		}
	}

	resolved := time.Date(day.Year(), day.Month(), day.Day(), hour, minute, 0, 0, loc)
	return resolved.UTC(), nil
}
