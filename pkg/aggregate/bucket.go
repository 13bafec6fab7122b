package aggregate

import (
	"fmt"
	"strings"
	"time"
)

// Granularity is the calendar span of one bucket.
type Granularity int

const (
	Day Granularity = iota
	Week
	Month
	Year
)

func (g Granularity) String() string {
	switch g {
	case Day:
		return "day"
	case Week:
		return "week"
	case Month:
		return "month"
	case Year:
		return "year"
	default:
		return fmt.Sprintf("Granularity(%d)", int(g))
	}
}

// ParseGranularity accepts day (or date), week, month and year.
func ParseGranularity(s string) (Granularity, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "day", "date":
		return Day, nil
	case "week":
		return Week, nil
	case "month":
		return Month, nil
	case "year":
		return Year, nil
	default:
		return Day, fmt.Errorf("%w: %q (want day, week, month or year)", ErrUnknownGranularity, s)
	}
}

// ParseWeekday accepts full or three-letter English weekday names.
func ParseWeekday(s string) (time.Weekday, error) {
	s = strings.ToLower(strings.TrimSpace(s))

	for d := time.Sunday; d <= time.Saturday; d++ {
		name := strings.ToLower(d.String())
		if s == name || s == name[:3] {
			return d, nil
		}
	}

	return time.Monday, fmt.Errorf("%w: %q", ErrUnknownWeekday, s)
}

// BucketKey returns the key of the bucket containing t. Week buckets are
// named after the most recent weekStart on or before t.
func BucketKey(t time.Time, g Granularity, weekStart time.Weekday) string {
	switch g {
	case Week:
		offset := (int(t.Weekday()) - int(weekStart) + 7) % 7

		return t.AddDate(0, 0, -offset).Format(time.DateOnly)
	case Month:
		return t.Format("2006-01")
	case Year:
		return t.Format("2006")
	default:
		return t.Format(time.DateOnly)
	}
}
