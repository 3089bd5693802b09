package models

import (
	"fmt"
	"time"
)

// dateLayout is the calendar-date wire format used by every upstream API.
const dateLayout = "2006-01-02"

// DateRange is an inclusive calendar-date range. How the boundary dates are
// interpreted (naive calendar dates vs. the account's configured timezone)
// is declared per source by its descriptor.
type DateRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// NewDateRange validates and builds a range. Start must not be after End.
func NewDateRange(start, end time.Time) (DateRange, error) {
	start = start.Truncate(24 * time.Hour)
	end = end.Truncate(24 * time.Hour)
	if start.After(end) {
		return DateRange{}, fmt.Errorf("invalid date range: start %s after end %s",
			start.Format(dateLayout), end.Format(dateLayout))
	}
	return DateRange{Start: start, End: end}, nil
}

// ParseDateRange parses "YYYY-MM-DD" boundary strings.
func ParseDateRange(start, end string) (DateRange, error) {
	s, err := time.Parse(dateLayout, start)
	if err != nil {
		return DateRange{}, fmt.Errorf("invalid start date %q: %w", start, err)
	}
	e, err := time.Parse(dateLayout, end)
	if err != nil {
		return DateRange{}, fmt.Errorf("invalid end date %q: %w", end, err)
	}
	return NewDateRange(s, e)
}

// StartString returns the start date in YYYY-MM-DD form.
func (r DateRange) StartString() string { return r.Start.Format(dateLayout) }

// EndString returns the end date in YYYY-MM-DD form.
func (r DateRange) EndString() string { return r.End.Format(dateLayout) }

// Days returns the inclusive number of calendar days covered.
func (r DateRange) Days() int {
	return int(r.End.Sub(r.Start).Hours()/24) + 1
}
