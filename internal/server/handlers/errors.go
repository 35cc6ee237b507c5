// Maps storage errors to API errors.

package handlers

import (
	"errors"

	"github.com/maruel/entrystore/internal/server/dto"
	"github.com/maruel/entrystore/internal/storage"
)

const (
	msgReadFailed = "Error reading entries"
	msgSaveFailed = "Error saving entry"
)

// storageError converts an error returned by the store into an API error.
// message describes the failed operation for I/O failures.
func storageError(err error, message string) error {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return dto.NotFound("Entry")
	case errors.Is(err, storage.ErrConflict):
		return dto.Conflict("Key already exists")
	case errors.Is(err, storage.ErrIO):
		return dto.StorageError(message, err)
	default:
		return dto.InternalWithError("Server error", err)
	}
}
