package app

import "errors"

// ErrNotFound and related errors describe validation and runtime failures.
var (
	ErrNotFound           = errors.New("not found")
	ErrNoOp               = errors.New("no-op drag")
	ErrTaskMismatch       = errors.New("task does not match drag source")
	ErrPersistenceFailure = errors.New("persistence failure")
	ErrDuplicateUpdate    = errors.New("duplicate task in reorder batch")
)
