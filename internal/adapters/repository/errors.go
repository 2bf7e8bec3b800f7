package repository

import "errors"

// Sentinel kinds for record store errors.
var (
	ErrNotFound       = errors.New("record not found")
	ErrUnknownBackend = errors.New("unknown store backend")
	ErrStore          = errors.New("record store failure")
)
