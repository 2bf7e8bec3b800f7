package probe

import (
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/okian/csvmerge/internal/domain/merge"
)

// expectedLines computes the merged series for c with a dense per-company
// array, independently of the service's queue-based merge.
func expectedLines(c Case) ([]string, error) {
	start, err := merge.ParseDate(c.StartDate)
	if err != nil {
		return nil, err
	}
	end, err := merge.ParseDate(c.EndDate)
	if err != nil {
		return nil, err
	}
	days := int(end.Sub(start)/(24*time.Hour)) + 1

	names := make(map[string]string, len(c.Companies))
	for _, row := range c.Companies {
		names[row[0]] = row[1]
	}
	values := make(map[string][]int64, len(names))
	for id := range names {
		values[id] = make([]int64, days)
	}
	for _, row := range c.Daily {
		series, ok := values[row[0]]
		if !ok {
			continue
		}
		date, err := merge.ParseDate(row[1])
		if err != nil {
			return nil, err
		}
		off := int(date.Sub(start) / (24 * time.Hour))
		if off < 0 || off >= days {
			continue
		}
		v, err := strconv.ParseInt(row[2], 10, 64)
		if err != nil {
			return nil, err
		}
		series[off] = v
	}

	ids := make([]string, 0, len(names))
	for id := range names {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	lines := make([]string, 0, len(ids)*days)
	for _, id := range ids {
		series := values[id]
		for d := 0; d < days; d++ {
			lag := ""
			if d >= c.Lag {
				lag = strconv.FormatInt(series[d]-series[d-c.Lag], 10)
			}
			lines = append(lines, strings.Join([]string{
				names[id],
				merge.FormatDate(start.AddDate(0, 0, d)),
				strconv.FormatInt(series[d], 10),
				lag,
			}, ","))
		}
	}
	return lines, nil
}
