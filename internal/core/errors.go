package core

import (
	"errors"
	"fmt"
)

var (
	// ErrDataUnavailable reports that the record store could not be reached
	// or a query failed. Callers decide whether to retry.
	ErrDataUnavailable = errors.New("data unavailable")

	// ErrNotFound reports that a looked-up record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrReadOnly reports a write against a store that only serves reads.
	ErrReadOnly = errors.New("store is read-only")
)

// Unavailable wraps a store failure so that errors.Is(err, ErrDataUnavailable) holds
// while keeping the underlying cause inspectable.
func Unavailable(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", op, ErrDataUnavailable, err)
}
