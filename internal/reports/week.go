package reports

import (
	"time"

	pkgerrors "github.com/jmucavele/pdv-backend/pkg/errors"
)

// weekRange returns the [Monday 00:00, next Monday 00:00) window of an ISO
// week in the given location.
func weekRange(year, week int, loc *time.Location) (time.Time, time.Time, error) {
	if week < 1 || week > 53 {
		return time.Time{}, time.Time{}, pkgerrors.New(pkgerrors.CodeValidation, "iso week must be between 1 and 53")
	}

	// January 4th is always inside ISO week 1.
	jan4 := time.Date(year, time.January, 4, 0, 0, 0, 0, loc)
	weekday := int(jan4.Weekday())
	if weekday == 0 {
		weekday = 7
	}
	firstMonday := jan4.AddDate(0, 0, 1-weekday)

	start := firstMonday.AddDate(0, 0, (week-1)*7)
	if y, w := start.ISOWeek(); y != year || w != week {
		return time.Time{}, time.Time{}, pkgerrors.New(pkgerrors.CodeValidation, "year has no such iso week")
	}
	return start, start.AddDate(0, 0, 7), nil
}
