package optimization

import (
	"errors"
	"fmt"
)

// Error classes returned by the optimizers. Match them with errors.Is.
var (
	// ErrNoTermination means no stopping rule can ever fire: neither a
	// function nor a location tolerance is set and iterations are unbounded.
	ErrNoTermination = errors.New("no termination criterion can ever be satisfied")
	// ErrInvalidSimplex means the initial simplex cannot be iterated on.
	ErrInvalidSimplex = errors.New("invalid initial simplex")
	// ErrObjective wraps any failure returned by the caller's objective.
	ErrObjective = errors.New("objective evaluation failed")
	// ErrBatchSize means the objective returned a value count that does not
	// match the number of points it was given.
	ErrBatchSize = errors.New("objective returned wrong number of values")
)

// Error represents an optimization error with context
// that can be wrapped with additional information.
type Error struct {
	// Message describes the error that occurred.
	Message string
	// Op is the operation that caused the error.
	Op string
	// Component is the component where the error occurred.
	Component string
	// Kind is one of the Err* classes above, if any.
	Kind error
	// Err is the underlying error that triggered this one, if any.
	Err error
}

// Error returns the string representation of the error.
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	var prefix string
	if e.Component != "" && e.Op != "" {
		prefix = fmt.Sprintf("%s: %s", e.Component, e.Op)
	} else if e.Component != "" {
		prefix = e.Component
	} else if e.Op != "" {
		prefix = e.Op
	}

	msg := e.Message
	if msg == "" && e.Kind != nil {
		msg = e.Kind.Error()
	}

	if e.Err != nil {
		if prefix != "" {
			return fmt.Sprintf("%s: %s: %v", prefix, msg, e.Err)
		}
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}

	if prefix != "" {
		return fmt.Sprintf("%s: %s", prefix, msg)
	}
	return msg
}

// Unwrap returns the underlying error, if any.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is reports whether target is the class of this error.
func (e *Error) Is(target error) bool {
	return e != nil && e.Kind != nil && e.Kind == target
}

// WithOperation adds operation context to the error.
func (e *Error) WithOperation(op string) *Error {
	e.Op = op
	return e
}

// WithComponent adds component context to the error.
func (e *Error) WithComponent(component string) *Error {
	e.Component = component
	return e
}

// NewError creates a new optimization error of the given class.
func NewError(kind error, message string) *Error {
	return &Error{
		Message: message,
		Kind:    kind,
	}
}

// NewErrorf creates a new unclassified optimization error with a
// formatted message.
func NewErrorf(format string, args ...interface{}) *Error {
	return &Error{
		Message: fmt.Sprintf(format, args...),
	}
}

// WrapError wraps err as an error of the given class.
// If err is nil, WrapError returns nil.
func WrapError(err error, kind error) *Error {
	if err == nil {
		return nil
	}
	return &Error{
		Kind: kind,
		Err:  err,
	}
}

// WrapErrorf wraps an existing error with additional formatted context.
// If err is nil, WrapErrorf returns nil.
func WrapErrorf(err error, format string, args ...interface{}) *Error {
	if err == nil {
		return nil
	}
	return &Error{
		Message: fmt.Sprintf(format, args...),
		Err:     err,
	}
}

// IsOptimizationError checks if an error is of type Error.
// If the error is an optimization error, it returns the error and true.
// Otherwise, it returns nil and false.
func IsOptimizationError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}
