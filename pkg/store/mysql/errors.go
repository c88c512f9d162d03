package mysql

import "errors"

var (
	// ErrTaskNotFound no task exists with the given ID.
	ErrTaskNotFound = errors.New("task not found")

	// ErrInvalidTransition the requested status change is not an edge of the
	// task state machine, or the stored status no longer matches the caller's
	// expected source status.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrPersistenceFailure a write reported success but read-back
	// verification saw a different value.
	ErrPersistenceFailure = errors.New("persistence verification failed")
)
