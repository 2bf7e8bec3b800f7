package api

import (
	"errors"
	"fmt"
)

// Sentinel kinds for API errors.
var (
	ErrBadRequest    = errors.New("bad request")
	ErrMissingFile   = errors.New("missing upload")
	ErrTooLarge      = errors.New("upload too large")
	ErrInvalidRecord = errors.New("invalid record id")
)

// opError ties an error to the operation that produced it and, optionally,
// a sentinel kind callers can match with errors.Is.
type opError struct {
	op   string
	kind error
	err  error
}

func (e *opError) Error() string {
	return e.op + ": " + e.message()
}

// message is the error text without the operation name.
func (e *opError) message() string {
	switch {
	case e.kind != nil && e.err != nil:
		return fmt.Sprintf("%v: %v", e.kind, e.err)
	case e.kind != nil:
		return e.kind.Error()
	default:
		return e.err.Error()
	}
}

// publicMessage strips operation names from err for client responses.
func publicMessage(err error) string {
	var oe *opError
	if errors.As(err, &oe) {
		return oe.message()
	}
	return err.Error()
}

func (e *opError) Unwrap() []error {
	var errs []error
	if e.kind != nil {
		errs = append(errs, e.kind)
	}
	if e.err != nil {
		errs = append(errs, e.err)
	}
	return errs
}

// Wrap annotates err with op. It returns nil when err is nil.
func Wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	return &opError{op: op, err: err}
}

// NewKind returns an error of kind raised by op.
func NewKind(op string, kind error) error {
	return &opError{op: op, kind: kind}
}

// WrapKind annotates err with op and kind.
func WrapKind(op string, kind, err error) error {
	return &opError{op: op, kind: kind, err: err}
}
