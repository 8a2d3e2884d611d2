package ledger

import (
	"errors"
	"fmt"
)

var (
	// ErrUserNotFound is returned when the acting or target user does not exist.
	ErrUserNotFound = errors.New("user not found")
	// ErrHouseNotFound is returned when a house addressed by id does not exist.
	ErrHouseNotFound = errors.New("house not found")
	// ErrProtectedUser is returned when deleting an administrator.
	ErrProtectedUser = errors.New("administrators cannot be deleted")
)

// ValidationError reports user-correctable input.  No writes were made.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// BrokenReferenceError reports that a user's house no longer exists.  It
// is a data-integrity problem rather than a user mistake.  No writes were
// made.
type BrokenReferenceError struct {
	UserID uint64
	House  string
}

func (e *BrokenReferenceError) Error() string {
	return fmt.Sprintf("user %d references house %q which no longer exists", e.UserID, e.House)
}

// PersistenceError wraps a storage failure.  The transaction was rolled
// back; the call may be repeated by the user but is never retried
// automatically because a retry creates a new log entry.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }
