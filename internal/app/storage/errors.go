package storage

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound indicates that a referenced entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrConflict indicates a uniqueness violation, e.g. a duplicate email.
	ErrConflict = errors.New("conflict")

	// ErrMissingReference indicates that a foreign key points at an entity
	// that does not exist at save time.
	ErrMissingReference = errors.New("missing reference")

	// ErrClosed indicates use of a session or engine after Close.
	ErrClosed = errors.New("storage closed")
)

// PersistenceError reports a backend failure while reading or committing.
type PersistenceError struct {
	Backend string
	Op      string
	Err     error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s storage: %s: %v", e.Backend, e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// Persistence wraps err as a *PersistenceError unless it is nil or already
// one of the typed storage errors.
func Persistence(backend, op string, err error) error {
	if err == nil {
		return nil
	}
	var pe *PersistenceError
	if errors.As(err, &pe) {
		return err
	}
	if errors.Is(err, ErrConflict) || errors.Is(err, ErrMissingReference) || errors.Is(err, ErrClosed) {
		return err
	}
	return &PersistenceError{Backend: backend, Op: op, Err: err}
}
