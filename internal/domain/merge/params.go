package merge

import (
	"strconv"
	"strings"
	"time"
)

// Params are the window bounds and lag of a single merge. Build them with
// ParseParams or NewParams so the invariants hold.
type Params struct {
	StartDate time.Time
	EndDate   time.Time
	Lag       int
}

// Days returns the number of calendar days in the inclusive window.
func (p Params) Days() int {
	return dayOffset(p.StartDate, p.EndDate) + 1
}

// Contains reports whether t lies inside the inclusive window.
func (p Params) Contains(t time.Time) bool {
	return !t.Before(p.StartDate) && !t.After(p.EndDate)
}

// ParseParams validates the textual request parameters. The lag is coerced
// to its absolute value.
func ParseParams(startDate, endDate, n string) (Params, error) {
	start, err := ParseDate(startDate)
	if err != nil {
		return Params{}, invalid("start_date", 0, ErrStartDate, "%q does not match M/D/YY", startDate)
	}
	end, err := ParseDate(endDate)
	if err != nil {
		return Params{}, invalid("end_date", 0, ErrEndDate, "%q does not match M/D/YY", endDate)
	}
	lag, err := strconv.Atoi(strings.TrimSpace(n))
	if err != nil {
		return Params{}, invalid("n", 0, ErrLag, "%q is not an integer", n)
	}
	return NewParams(start, end, lag)
}

// NewParams builds Params from already typed values.
func NewParams(start, end time.Time, lag int) (Params, error) {
	if start.After(end) {
		return Params{}, invalid("window", 0, ErrWindow, "start_date must be earlier than end_date")
	}
	if lag < 0 {
		lag = -lag
	}
	return Params{StartDate: start, EndDate: end, Lag: lag}, nil
}
