package repository

import "errors"

var (
	// ErrNotFound indicates the requested record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrConflict indicates a uniqueness or constraint violation.
	ErrConflict = errors.New("conflict")

	// ErrInvalidInput indicates malformed input data.
	ErrInvalidInput = errors.New("invalid input")

	// ErrTokenConsumed indicates the one-shot token was already spent.
	// Returned by ConsumeToken when the conditional update matched no row.
	ErrTokenConsumed = errors.New("token already consumed")
)

// IsNotFound reports whether err is ErrNotFound.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsConflict reports whether err is ErrConflict.
func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict)
}
