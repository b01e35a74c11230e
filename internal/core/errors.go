package core

import "errors"

// Failure taxonomy shared by every component. Services wrap these sentinels
// with fmt.Errorf("...: %w", ...) and callers classify with errors.Is; the
// HTTP adapter maps each sentinel to a status code.
var (
	// ErrNotFound means a ticket, line, table or operator does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidState means a mutation targeted a ticket that is no longer
	// Open, or a line whose owning ticket is closed.
	ErrInvalidState = errors.New("invalid state")

	// ErrValidation covers malformed input: non-positive quantity or price,
	// a cash portion above the amount due, a missing reason text, or an
	// unknown stored enum value.
	ErrValidation = errors.New("validation failed")

	// ErrInsufficientAmount means tendered cash is below the amount due.
	ErrInsufficientAmount = errors.New("insufficient amount")

	// ErrConflict means an attempt to close a ticket that is already paid.
	ErrConflict = errors.New("conflict")

	// ErrAuthorizationDenied means the manager credential check failed.
	ErrAuthorizationDenied = errors.New("authorization denied")
)

// IsNotFound reports whether err wraps ErrNotFound
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
