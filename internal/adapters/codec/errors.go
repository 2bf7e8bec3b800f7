package codec

import "errors"

// Sentinel kinds for codec errors.
var (
	ErrDecode        = errors.New("cannot decode table")
	ErrEncode        = errors.New("cannot encode table")
	ErrUnknownFormat = errors.New("unknown output format")
)
