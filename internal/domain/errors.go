// Package domain defines the queue document model, port interfaces, and
// errors for the run queue orchestration engine.
package domain

import "fmt"

// NotFoundError indicates the queue document does not exist. It is fatal to
// the caller; the engine never auto-creates a queue.
type NotFoundError struct {
	Message string
}

func (e *NotFoundError) Error() string { return e.Message }

// ConflictError indicates a conditional write lost to a concurrent writer.
// It is expected and recoverable: callers reload and retry with a bound.
type ConflictError struct {
	Message string
}

func (e *ConflictError) Error() string { return e.Message }

// ValidationError indicates invalid input or a malformed document.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// StorageUnavailableError indicates a transport or backend failure in the
// blob store, distinct from a precondition conflict.
type StorageUnavailableError struct {
	Message string
	Err     error
}

func (e *StorageUnavailableError) Error() string { return e.Message }

func (e *StorageUnavailableError) Unwrap() error { return e.Err }

// LaunchError classifies a failed launch against the execution backend.
// Retryable failures feed back into PENDING with attempt accounting;
// non-retryable failures move the entry to FAILED.
type LaunchError struct {
	Retryable bool
	Message   string
}

func (e *LaunchError) Error() string { return e.Message }

// ErrNotFound creates a NotFoundError with a formatted message.
func ErrNotFound(format string, args ...interface{}) *NotFoundError {
	return &NotFoundError{Message: fmt.Sprintf(format, args...)}
}

// ErrConflict creates a ConflictError with a formatted message.
func ErrConflict(format string, args ...interface{}) *ConflictError {
	return &ConflictError{Message: fmt.Sprintf(format, args...)}
}

// ErrValidation creates a ValidationError with a formatted message.
func ErrValidation(format string, args ...interface{}) *ValidationError {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// ErrStorageUnavailable creates a StorageUnavailableError wrapping err.
func ErrStorageUnavailable(err error, format string, args ...interface{}) *StorageUnavailableError {
	return &StorageUnavailableError{Message: fmt.Sprintf(format, args...), Err: err}
}

// ErrLaunch creates a LaunchError with the given classification.
func ErrLaunch(retryable bool, format string, args ...interface{}) *LaunchError {
	return &LaunchError{Retryable: retryable, Message: fmt.Sprintf(format, args...)}
}
