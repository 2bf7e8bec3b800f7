// Package merge joins a sparse per-entity daily series with an entity
// directory into a dense, lag-differenced series per entity.
//
// The output holds exactly one row per directory entity per calendar day in
// the inclusive window. Days without an observation get a zero value. Rows
// are grouped by entity id (ascending, byte order) and ordered by date
// within a group.
package merge

import (
	"context"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"
)

// Row is one output record.
type Row struct {
	EntityID string
	Name     string
	Date     string
	Value    int64
	Lag      *int64 // nil while fewer than Lag days precede this row
}

// Fields renders the row as [name, date, value, lag]; a nil lag becomes "".
func (r Row) Fields() []string {
	lag := ""
	if r.Lag != nil {
		lag = strconv.FormatInt(*r.Lag, 10)
	}
	return []string{r.Name, r.Date, strconv.FormatInt(r.Value, 10), lag}
}

// Stats summarizes what happened to the inputs.
type Stats struct {
	Entities      int `json:"entities"`
	Days          int `json:"days"`
	Rows          int `json:"rows"`
	Observations  int `json:"observations"`
	OutOfWindow   int `json:"out_of_window"`
	UnknownEntity int `json:"unknown_entity"`
	Duplicates    int `json:"duplicates"`
}

// Result is the merged series plus input statistics.
type Result struct {
	Rows  []Row
	Stats Stats
}

// Merger holds merge configuration. It keeps no per-merge state, so one
// Merger may serve concurrent calls.
type Merger struct {
	policy        DuplicatePolicy
	strict        bool
	parallelism   int
	maxWindowDays int
}

// New creates a Merger with configuration options.
func New(opts ...Option) *Merger {
	m := &Merger{
		policy:        KeepFirst,
		parallelism:   defaultParallelism(),
		maxWindowDays: defaultMaxWindowDays,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Merge validates daily ([entity id, date, value]) and directory
// ([entity id, name, ...]) rows against params and returns the merged series.
// Validation is complete before any output is produced; on failure the error
// matches ErrInvalidInput and no rows are returned.
func (m *Merger) Merge(ctx context.Context, daily, directory [][]string, params Params) (Result, error) {
	days := params.Days()
	if m.maxWindowDays > 0 && days > m.maxWindowDays {
		return Result{}, invalid("window", 0, ErrWindow, "window spans %d days, limit is %d", days, m.maxWindowDays)
	}

	names, err := parseDirectory(directory)
	if err != nil {
		return Result{}, err
	}
	queues, stats, err := m.partition(daily, names, params)
	if err != nil {
		return Result{}, err
	}

	ids := make([]string, 0, len(names))
	for id := range names {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	frames := make([][]Row, len(ids))
	dups := make([]int, len(ids))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.parallelism)
	for i, id := range ids {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			frames[i], dups[i] = fill(id, names[id], queues[id], params, m.policy)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Result{}, err
	}

	rows := make([]Row, 0, len(ids)*days)
	for i, frame := range frames {
		rows = append(rows, frame...)
		stats.Duplicates += dups[i]
	}
	stats.Entities = len(ids)
	stats.Days = days
	stats.Rows = len(rows)
	return Result{Rows: rows, Stats: stats}, nil
}

// parseDirectory maps entity id to display name; later rows win.
func parseDirectory(rows [][]string) (map[string]string, error) {
	names := make(map[string]string, len(rows))
	for i, rec := range rows {
		if len(rec) < 2 {
			return nil, invalid("companies", i+1, ErrDirectoryRow, "expected at least 2 fields, got %d", len(rec))
		}
		names[rec[0]] = rec[1]
	}
	return names, nil
}

// partition validates every daily row and queues the in-window rows of known
// entities by day offset.
func (m *Merger) partition(daily [][]string, names map[string]string, p Params) (map[string]*pendingQueue, Stats, error) {
	var stats Stats
	queues := make(map[string]*pendingQueue, len(names))
	for i, rec := range daily {
		row := i + 1
		if len(rec) != 3 {
			return nil, Stats{}, invalid("daily", row, ErrDailyRow, "expected 3 fields, got %d", len(rec))
		}
		id := rec[0]
		date, err := ParseDate(rec[1])
		if err != nil {
			return nil, Stats{}, invalid("daily", row, ErrDailyRow, "%q does not match M/D/YY", rec[1])
		}
		value, err := strconv.ParseInt(strings.TrimSpace(rec[2]), 10, 64)
		if err != nil {
			return nil, Stats{}, invalid("daily", row, ErrDailyRow, "%q is not an integer", rec[2])
		}

		if !p.Contains(date) {
			stats.OutOfWindow++
			continue
		}
		if _, ok := names[id]; !ok {
			if m.strict {
				return nil, Stats{}, invalid("daily", row, ErrUnknownEntity, "%q is not listed in companies", id)
			}
			stats.UnknownEntity++
			continue
		}

		q := queues[id]
		if q == nil {
			q = &pendingQueue{}
			queues[id] = q
		}
		q.push(dayOffset(p.StartDate, date), i, observation{date: strings.TrimSpace(rec[1]), value: value})
		stats.Observations++
	}
	return queues, stats, nil
}

// fill walks the window once for one entity. q may be nil when the entity
// has no observations. It returns the rows and the number of dropped
// duplicate observations.
func fill(id, name string, q *pendingQueue, p Params, policy DuplicatePolicy) ([]Row, int) {
	days := p.Days()
	rows := make([]Row, 0, days)
	dups := 0
	for d := 0; d < days; d++ {
		row := Row{EntityID: id, Name: name, Date: FormatDate(p.StartDate.AddDate(0, 0, d))}
		if q != nil && q.peek() == d {
			obs := q.popDay(d)
			dups += len(obs) - 1
			o := policy.combine(obs)
			row.Date, row.Value = o.date, o.value
		}
		if d >= p.Lag {
			var lag int64
			if p.Lag > 0 {
				lag = row.Value - rows[d-p.Lag].Value
			}
			row.Lag = &lag
		}
		rows = append(rows, row)
	}
	return rows, dups
}
