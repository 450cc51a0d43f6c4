package state

import (
	"errors"
	"fmt"
)

var (
	// ErrEntityNotFound is recoverable: the caller logs and drops the event.
	ErrEntityNotFound = errors.New("entity not found")

	// ErrStoreFailure is fatal for the event being processed.
	ErrStoreFailure = errors.New("store failure")
)

// StoreError wraps a failed load or save. errors.Is(err, ErrStoreFailure) holds.
type StoreError struct {
	Op   string // "load", "save" or "commit"
	Kind string
	ID   string
	Err  error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s %s %s: %v", e.Op, e.Kind, e.ID, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

func (e *StoreError) Is(target error) bool {
	return target == ErrStoreFailure
}
