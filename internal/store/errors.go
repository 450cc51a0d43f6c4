// Package store holds what the entity store backends share.
package store

import "errors"

var (
	// ErrInvalidInput is returned for nil records and empty ids.
	ErrInvalidInput = errors.New("invalid input")
)

// Record is implemented by every entity pointer type in internal/state.
type Record[T any] interface {
	*T
	EntityID() string
	Clone() *T
}
