package quiz

import (
	"errors"
	"fmt"
	"strconv"
)

// ErrNotFound marks a missing attempt, test or question. Callers wrap it
// with context and match with errors.Is.
var ErrNotFound = errors.New("not found")

// ValidationError is malformed input, detected before any transaction opens.
type ValidationError struct {
	Field string
	Msg   string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "invalid input: " + e.Msg
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Msg)
}

// PersistenceError is a storage failure. When it comes out of a
// transactional write the transaction has already been rolled back.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string { return e.Op + ": " + e.Err.Error() }
func (e *PersistenceError) Unwrap() error { return e.Err }

func persistErr(op string, err error) error {
	return &PersistenceError{Op: op, Err: err}
}

func itoa(i int) string { return strconv.Itoa(i) }
