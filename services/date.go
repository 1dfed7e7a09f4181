package services

import (
	"fmt"
	"math"
	"time"
)

// DateLayout is the only accepted date format (HTML5 date inputs)
const DateLayout = "2006-01-02"

// ParseDate parses a date string in YYYY-MM-DD format as a UTC calendar date
func ParseDate(dateStr string) (time.Time, error) {
	parsedTime, err := time.Parse(DateLayout, dateStr)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date format: expected YYYY-MM-DD")
	}

	return parsedTime, nil
}

// AddCalendarYears adds years keeping the calendar day. A 29 February that
// does not exist in the target year becomes 28 February rather than rolling
// over into March.
func AddCalendarYears(t time.Time, years int) time.Time {
	y, m, d := t.Date()
	target := y + years
	if last := daysIn(m, target); d > last {
		d = last
	}
	return time.Date(target, m, d, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

func daysIn(m time.Month, year int) int {
	return time.Date(year, m+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// CeilDays converts a duration to whole days, rounding up
func CeilDays(d time.Duration) int {
	return int(math.Ceil(d.Hours() / 24))
}
