package engine

import (
	"errors"
	"fmt"

	"github.com/reactive-systems/rtlola-streamir/internal/ir"
	"github.com/reactive-systems/rtlola-streamir/internal/memory"
)

// RuntimeError represents an error detected while building or driving a
// monitor.
//
// Runtime errors include:
//   - Configuration: the IR is malformed or inconsistent
//   - Instance not found: an instance-scoped access without a live buffer
//   - Out of bounds: a read beyond the retained history
//   - Type error: an expression applied to values it does not accept
//   - Time regression / finished: the monitor was driven out of contract
//
// All of them are fatal. A monitor that returned one is poisoned and
// returns the same error from every later call.
type RuntimeError struct {
	// Code identifies the error category.
	Code RuntimeErrorCode

	// Message is a human-readable description.
	Message string

	// Stream names the affected stream, if any.
	Stream string

	// Params identifies the affected instance, if any.
	Params ir.Parameters

	// Details contains additional context.
	Details map[string]string

	cause error
}

// RuntimeErrorCode categorizes runtime errors.
type RuntimeErrorCode string

const (
	// ErrCodeConfiguration indicates malformed or inconsistent IR at build time.
	ErrCodeConfiguration RuntimeErrorCode = "CONFIGURATION_ERROR"

	// ErrCodeInstanceNotFound indicates an access to an instance that is not alive.
	ErrCodeInstanceNotFound RuntimeErrorCode = "INSTANCE_NOT_FOUND"

	// ErrCodeOutOfBounds indicates a read beyond the retained history depth.
	ErrCodeOutOfBounds RuntimeErrorCode = "OUT_OF_BOUNDS_ACCESS"

	// ErrCodeType indicates an expression was applied to unsupported values.
	ErrCodeType RuntimeErrorCode = "TYPE_ERROR"

	// ErrCodeTimeRegression indicates an event older than the monitor's time.
	ErrCodeTimeRegression RuntimeErrorCode = "TIME_REGRESSION"

	// ErrCodeFinished indicates use of a monitor after Finish.
	ErrCodeFinished RuntimeErrorCode = "MONITOR_FINISHED"
)

// Error implements the error interface.
func (e *RuntimeError) Error() string {
	switch {
	case e.Stream != "" && e.Params != nil:
		return fmt.Sprintf("%s: %s (stream=%s, instance=(%s))", e.Code, e.Message, e.Stream, e.Params)
	case e.Stream != "":
		return fmt.Sprintf("%s: %s (stream=%s)", e.Code, e.Message, e.Stream)
	default:
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
}

// Unwrap returns the underlying memory error, if any.
func (e *RuntimeError) Unwrap() error { return e.cause }

func hasCode(err error, code RuntimeErrorCode) bool {
	var re *RuntimeError
	if errors.As(err, &re) {
		return re.Code == code
	}
	return false
}

// IsConfigurationError returns true if the error is a build-time IR error.
// Uses errors.As to handle wrapped errors.
func IsConfigurationError(err error) bool { return hasCode(err, ErrCodeConfiguration) }

// IsInstanceNotFound returns true if the error is an instance lookup failure.
// Matches both RuntimeError with ErrCodeInstanceNotFound and the memory-level error.
func IsInstanceNotFound(err error) bool {
	if hasCode(err, ErrCodeInstanceNotFound) {
		return true
	}
	var nf *memory.InstanceNotFoundError
	return errors.As(err, &nf)
}

// IsOutOfBounds returns true if the error is an out-of-bounds history read.
// Matches both RuntimeError with ErrCodeOutOfBounds and the memory-level error.
func IsOutOfBounds(err error) bool {
	if hasCode(err, ErrCodeOutOfBounds) {
		return true
	}
	var oob *memory.OutOfBoundsError
	return errors.As(err, &oob)
}

// IsTypeError returns true if the error is an expression type error.
func IsTypeError(err error) bool { return hasCode(err, ErrCodeType) }

// NewConfigurationError creates a RuntimeError for invalid IR.
func NewConfigurationError(message string, details map[string]string) *RuntimeError {
	return &RuntimeError{Code: ErrCodeConfiguration, Message: message, Details: details}
}

// NewTypeError creates a RuntimeError for an ill-typed operation.
func NewTypeError(format string, args ...any) *RuntimeError {
	return &RuntimeError{Code: ErrCodeType, Message: fmt.Sprintf(format, args...)}
}

// wrapMemoryError converts a memory-level failure into a RuntimeError
// naming the stream. Other errors are returned unchanged.
func wrapMemoryError(err error, stream string) error {
	var nf *memory.InstanceNotFoundError
	if errors.As(err, &nf) {
		return &RuntimeError{
			Code:    ErrCodeInstanceNotFound,
			Message: "no live instance",
			Stream:  stream,
			Params:  nf.Params,
			cause:   err,
		}
	}
	var oob *memory.OutOfBoundsError
	if errors.As(err, &oob) {
		return &RuntimeError{
			Code:    ErrCodeOutOfBounds,
			Message: fmt.Sprintf("offset %d beyond retained history of %d", oob.Offset, oob.Capacity),
			Stream:  stream,
			Details: map[string]string{
				"accessed_offset": fmt.Sprintf("%d", oob.Offset),
				"buffer_size":     fmt.Sprintf("%d", oob.Capacity),
			},
			cause: err,
		}
	}
	return err
}
