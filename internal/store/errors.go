package store

import (
	"errors"
	"fmt"
)

// Common store errors used across all store implementations.
var (
	// ErrNotFound is returned when a requested entity does not exist in
	// the store. Entity-specific variants below wrap it so callers can
	// match either the generic or the specific error.
	ErrNotFound = errors.New("entity not found")

	// ErrQueueEmpty is returned by Dequeue when no task ids are waiting.
	// It is an expected condition, not a failure.
	ErrQueueEmpty = errors.New("task queue is empty")

	// ErrTaskRequestNotFound indicates the requested task request does not
	// exist, usually because its task already reached a terminal state and
	// the request was cleaned up.
	ErrTaskRequestNotFound = fmt.Errorf("%w: task request", ErrNotFound)

	// ErrTaskResultNotFound indicates the requested task result does not
	// exist in the store.
	ErrTaskResultNotFound = fmt.Errorf("%w: task result", ErrNotFound)
)

// IsNotFoundError checks if the error is any kind of "not found" error.
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound)
}
