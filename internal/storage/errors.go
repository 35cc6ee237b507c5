package storage

import "errors"

// Error kinds returned by Store. Test with errors.Is; the returned errors wrap
// the kind together with the offending key or the underlying cause.
var (
	// ErrNotFound is returned by Rename when the source key does not exist.
	ErrNotFound = errors.New("entry not found")
	// ErrConflict is returned by Rename when the destination key is taken.
	ErrConflict = errors.New("key already exists")
	// ErrIO is returned when the backing file cannot be read, parsed or written.
	ErrIO = errors.New("storage failure")

	errKeyRequired = errors.New("key is required")
)
