// Package sentinel holds the facts stores report about persisted workflows.
// Services translate them into domain errors; they never reach callers.
package sentinel

import "errors"

var (
	// ErrNotFound: no row or key for the subject.
	ErrNotFound = errors.New("not found")
	// ErrConflict: the write contradicts what is stored; aborts the transaction.
	ErrConflict = errors.New("conflict")
)
