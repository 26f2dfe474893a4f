package cache

import "errors"

var (
	// ErrCacheUnavailable is matched by every UnavailableError.
	ErrCacheUnavailable = errors.New("cache: backend unavailable")

	// ErrMissingRecord is the NotFound signal a fetch returns for a single row
	// read with no match. With missing record storage enabled it is cached too.
	ErrMissingRecord = errors.New("cache: record not found")

	// ErrInvalidResultType is returned when a cached payload cannot be decoded
	// into the requested type.
	ErrInvalidResultType = errors.New("cache: invalid result type")
)

// UnavailableError wraps a provider failure. Read paths treat it as a miss and
// write paths as a no-op; it is never surfaced to repository callers.
type UnavailableError struct {
	Op  string
	Err error
}

// Error implements the error interface.
func (e *UnavailableError) Error() string {
	return "cache: " + e.Op + ": " + e.Err.Error()
}

// Unwrap returns the provider error.
func (e *UnavailableError) Unwrap() error {
	return e.Err
}

// Is reports whether target is ErrCacheUnavailable.
func (e *UnavailableError) Is(target error) bool {
	return target == ErrCacheUnavailable
}
