package prioritization

import (
	"errors"
	"fmt"
)

// Common service errors
var (
	// ErrNotDowngrade is returned when a downgrade choice names an important priority.
	ErrNotDowngrade = errors.New("downgrade target must be medium or low")

	// ErrNotImportant is returned when a keep or demote choice names a non-important priority.
	ErrNotImportant = errors.New("priority is not in the important tier")

	// ErrNilDependency is returned by NewService when a required collaborator is nil.
	ErrNilDependency = errors.New("nil dependency")
)

// ServiceError is a custom error type for prioritization failures with operation context.
type ServiceError struct {
	// Operation is the operation that failed (e.g., "select", "delete")
	Operation string
	// Message is a human-readable description of the error
	Message string
	// Err is the underlying error that caused the failure
	Err error
}

// Error implements the error interface for ServiceError.
func (e *ServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s operation failed: %s: %v", e.Operation, e.Message, e.Err)
	}
	return fmt.Sprintf("%s operation failed: %s", e.Operation, e.Message)
}

// Unwrap returns the wrapped error to support errors.Is/errors.As.
func (e *ServiceError) Unwrap() error {
	return e.Err
}

func newServiceError(op, message string, err error) *ServiceError {
	return &ServiceError{Operation: op, Message: message, Err: err}
}
