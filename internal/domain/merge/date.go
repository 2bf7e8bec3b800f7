package merge

import (
	"strings"
	"time"
)

// DateLayout is the M/D/YY format used for both inputs and output. Parsing
// also accepts zero-padded month and day.
const DateLayout = "1/2/06"

const day = 24 * time.Hour

// ParseDate parses s with DateLayout.
func ParseDate(s string) (time.Time, error) {
	return time.Parse(DateLayout, strings.TrimSpace(s))
}

// FormatDate renders t as M/D/YY without zero padding.
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

// dayOffset returns the whole number of days from start to t.
func dayOffset(start, t time.Time) int {
	return int(t.Sub(start) / day)
}
