package merge

import (
	"errors"
	"fmt"
)

// ErrInvalidInput is the single failure kind reported by the merger. Every
// *InputError matches it via errors.Is.
var ErrInvalidInput = errors.New("invalid input")

// Field-level kinds. Callers that need to know which input was rejected can
// errors.Is against these.
var (
	ErrStartDate     = errors.New("invalid start_date")
	ErrEndDate       = errors.New("invalid end_date")
	ErrWindow        = errors.New("invalid date window")
	ErrLag           = errors.New("invalid n")
	ErrDirectoryRow  = errors.New("malformed companies row")
	ErrDailyRow      = errors.New("malformed daily row")
	ErrUnknownEntity = errors.New("unknown entity")
)

// InputError describes the input field (and row, for tabular inputs) that
// failed validation.
type InputError struct {
	Field  string // start_date, end_date, window, n, companies, daily
	Row    int    // 1-based row number; 0 when not tied to a row
	Err    error  // one of the field-level kinds above
	Detail string
}

func (e *InputError) Error() string {
	msg := e.Err.Error()
	if e.Row > 0 {
		msg = fmt.Sprintf("%s at row %d", msg, e.Row)
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return "please verify input data: " + msg
}

func (e *InputError) Unwrap() error { return e.Err }

// Is reports every InputError as ErrInvalidInput.
func (e *InputError) Is(target error) bool { return target == ErrInvalidInput }

func invalid(field string, row int, kind error, format string, args ...any) *InputError {
	return &InputError{Field: field, Row: row, Err: kind, Detail: fmt.Sprintf(format, args...)}
}
