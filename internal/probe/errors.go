package probe

import "errors"

// Sentinel kinds for probe errors.
var (
	ErrUnhealthy    = errors.New("service unhealthy")
	ErrStatus       = errors.New("unexpected response status")
	ErrMismatch     = errors.New("merged output mismatch")
	ErrVerification = errors.New("probe verification failed")
)
