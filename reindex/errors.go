package reindex

import "errors"

var (
	// ErrInvalidMaxAttempts indicates RetryWithBackoff was called with a
	// non-positive attempt count.
	ErrInvalidMaxAttempts = errors.New("max attempts must be greater than zero")

	// ErrNoSnapshot indicates there is no persisted snapshot to reindex.
	ErrNoSnapshot = errors.New("no snapshot found")
)
