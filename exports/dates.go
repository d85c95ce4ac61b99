package exports

import (
	"strings"
	"time"
)

var dateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	time.DateOnly,
	"2006/01/02",
	"02.01.2006",
}

// parseDay resolves value to its calendar day in loc.
func parseDay(value string, loc *time.Location) (time.Time, error) {
	value = strings.TrimSpace(value)
	var lastErr error
	for _, layout := range dateLayouts {
		parsed, err := time.ParseInLocation(layout, value, loc)
		if err == nil {
			parsed = parsed.In(loc)
			return time.Date(parsed.Year(), parsed.Month(), parsed.Day(), 0, 0, 0, 0, loc), nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}

func beginningOfDay(day time.Time) time.Time {
	return day
}

func endOfDay(day time.Time) time.Time {
	return day.AddDate(0, 0, 1).Add(-time.Nanosecond)
}
