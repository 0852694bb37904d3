package errors

import "errors"

var (
	ErrNotFound = errors.New("parking lot not found")

	ErrInvalidID = errors.New("invalid parking lot ID format")

	// ErrStaleCapacity is returned when the guarded availability update finds
	// the lot but the requested spot count no longer fits its capacity.
	ErrStaleCapacity = errors.New("available spots exceed current capacity")
)
