package store

import "errors"

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("not found")

// DataAccessError reports a failure of the underlying database for a named
// store operation.
type DataAccessError struct {
	Op  string
	Err error
}

func (e *DataAccessError) Error() string {
	return "store: " + e.Op + ": " + e.Err.Error()
}

func (e *DataAccessError) Unwrap() error {
	return e.Err
}

func dataAccessError(op string, err error) error {
	return &DataAccessError{Op: op, Err: err}
}
