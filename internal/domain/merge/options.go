package merge

import (
	"fmt"
	"runtime"
	"strings"
)

// DuplicatePolicy decides what happens when one entity has several daily
// rows for the same date.
type DuplicatePolicy string

// Supported duplicate policies.
const (
	KeepFirst DuplicatePolicy = "first"
	KeepLast  DuplicatePolicy = "last"
	Sum       DuplicatePolicy = "sum"
)

// ParseDuplicatePolicy accepts first, last or sum (case-insensitive). The
// empty string selects KeepFirst.
func ParseDuplicatePolicy(s string) (DuplicatePolicy, error) {
	switch p := DuplicatePolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case "":
		return KeepFirst, nil
	case KeepFirst, KeepLast, Sum:
		return p, nil
	default:
		return "", fmt.Errorf("unknown duplicate policy %q", s)
	}
}

// combine folds same-day observations (given in input order) into one.
func (p DuplicatePolicy) combine(obs []observation) observation {
	switch p {
	case KeepLast:
		return obs[len(obs)-1]
	case Sum:
		out := obs[0]
		for _, o := range obs[1:] {
			out.value += o.value
		}
		return out
	default:
		return obs[0]
	}
}

// Default merger configuration.
const (
	defaultMaxWindowDays = 3660
)

// Option applies a configuration option to the Merger.
type Option func(*Merger)

// WithDuplicatePolicy sets how same-day rows of one entity are combined.
func WithDuplicatePolicy(p DuplicatePolicy) Option {
	return func(m *Merger) {
		if p != "" {
			m.policy = p
		}
	}
}

// WithStrictEntities makes daily rows for entities missing from the
// directory a validation failure instead of being ignored.
func WithStrictEntities(strict bool) Option {
	return func(m *Merger) {
		m.strict = strict
	}
}

// WithParallelism bounds how many entities are filled concurrently.
func WithParallelism(n int) Option {
	return func(m *Merger) {
		if n > 0 {
			m.parallelism = n
		}
	}
}

// WithMaxWindowDays caps the window length. Zero or negative disables the cap.
func WithMaxWindowDays(days int) Option {
	return func(m *Merger) {
		m.maxWindowDays = days
	}
}

func defaultParallelism() int {
	return runtime.NumCPU()
}
