package classify

import (
	"time"

	"github.com/geeooff/iis-log-rotator/internal/stream"
)

// resolveWeek maps a week-of-month index back to a calendar day by scanning
// the month forward and returning the first day whose stream.WeekOfMonth
// equals week.
//
// This is an approximation: a week-long file is represented by a single day,
// the first day of that week falling inside the month.
func resolveWeek(year int, month time.Month, week int, loc *time.Location) (time.Time, bool) {
	for day := 1; day <= daysIn(year, month); day++ {
		d := time.Date(year, month, day, 0, 0, 0, 0, loc)
		if stream.WeekOfMonth(d) == week {
			return d, true
		}
	}
	return time.Time{}, false
}
