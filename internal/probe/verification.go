package probe

import (
	"fmt"
	"slices"
	"strings"

	"github.com/okian/csvmerge/internal/domain/model"
)

// verifyBody compares a merged CSV body with the lines computed for tc.
func verifyBody(tc Case, body string) (int, error) {
	want, err := expectedLines(tc)
	if err != nil {
		return 0, fmt.Errorf("case %s: %w", tc.ID, err)
	}
	var got []string
	if body != "" {
		got = strings.Split(body, "\n")
	}
	if strings.HasSuffix(body, "\n") {
		return 0, fmt.Errorf("%w: case %s: trailing newline", ErrMismatch, tc.ID)
	}
	if len(got) != len(want) {
		return 0, fmt.Errorf("%w: case %s: got %d rows, want %d", ErrMismatch, tc.ID, len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			return 0, fmt.Errorf("%w: case %s row %d: got %q, want %q", ErrMismatch, tc.ID, i, got[i], want[i])
		}
	}
	return len(want), nil
}

// verifyRecord checks that a stored record reflects the request that made it.
func verifyRecord(tc Case, id int64, rows int, rec model.Record) error {
	switch {
	case rec.ID != id:
		return fmt.Errorf("%w: record id %d, want %d", ErrMismatch, rec.ID, id)
	case rec.StartDate != tc.StartDate || rec.EndDate != tc.EndDate:
		return fmt.Errorf("%w: record %d window %s..%s, want %s..%s",
			ErrMismatch, id, rec.StartDate, rec.EndDate, tc.StartDate, tc.EndDate)
	case rec.Lag != tc.Lag:
		return fmt.Errorf("%w: record %d lag %d, want %d", ErrMismatch, id, rec.Lag, tc.Lag)
	case rec.RowCount != rows:
		return fmt.Errorf("%w: record %d row_count %d, want %d", ErrMismatch, id, rec.RowCount, rows)
	case !tableEqual(rec.Daily, tc.Daily) || !tableEqual(rec.Companies, tc.Companies):
		return fmt.Errorf("%w: record %d inputs differ from submission", ErrMismatch, id)
	}
	return nil
}

func tableEqual(a, b [][]string) bool {
	return slices.EqualFunc(a, b, slices.Equal[[]string])
}
