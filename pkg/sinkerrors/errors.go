// Package sinkerrors provides structured error handling for sheetsink with
// rich context, stack traces, and error categorization.
//
// Every failure the target can hit maps to exactly one ErrorType, and the
// type decides its disposition: only rate-limit errors are recoverable (the
// sink manager absorbs them by growing its batch threshold); everything else
// aborts the run before the checkpoint is emitted.
//
// # Basic Usage
//
//	// Create a new error
//	err := sinkerrors.New(sinkerrors.ErrorTypeSchemaNotFound, "no schema registered for stream")
//
//	// Add context
//	err = err.WithDetail("stream", "users")
//
//	// Wrap existing errors
//	if err := store.AppendRows(ctx, table, rows); err != nil {
//	    return sinkerrors.Wrap(err, sinkerrors.ErrorTypeStore, "bulk append failed").
//	        WithDetail("table", table.Name())
//	}
//
// # Thread Safety
//
// Error instances are not thread-safe for modification. Create new
// instances or use WithDetail before sharing across goroutines.
package sinkerrors

import (
	"errors"
	"fmt"
	"runtime"
)

// ErrorType represents the category of error, used to decide whether a
// failure is recoverable and how it surfaces at the top level.
type ErrorType string

const (
	// ErrorTypeInternal represents internal system errors
	ErrorTypeInternal ErrorType = "internal"
	// ErrorTypeDecode represents malformed input lines that fail JSON decoding
	ErrorTypeDecode ErrorType = "decode"
	// ErrorTypeMessage represents decoded lines matching no recognized message shape
	ErrorTypeMessage ErrorType = "message_not_recognized"
	// ErrorTypeSchemaNotFound represents a record arriving before its stream's schema
	ErrorTypeSchemaNotFound ErrorType = "schema_not_found"
	// ErrorTypeValidation represents records that violate their registered schema
	ErrorTypeValidation ErrorType = "validation"
	// ErrorTypeRateLimit represents a rate-limited rejection from the tabular store
	ErrorTypeRateLimit ErrorType = "rate_limit"
	// ErrorTypeOverflow represents a sink whose limit grew past its ceiling
	ErrorTypeOverflow ErrorType = "overflow"
	// ErrorTypeStore represents any other tabular store failure
	ErrorTypeStore ErrorType = "store"
	// ErrorTypeConfig represents configuration errors
	ErrorTypeConfig ErrorType = "config"
	// ErrorTypeAuthentication represents credential and authorization errors
	ErrorTypeAuthentication ErrorType = "authentication"
)

// Error represents a structured error with context.
//
// Fields:
//   - Type: Categorizes the error for handling strategies
//   - Message: Human-readable error description
//   - Cause: The underlying error that caused this error
//   - Details: Key-value pairs providing additional context
//   - Stack: Call stack at the point of error creation
type Error struct {
	Type    ErrorType
	Message string
	Cause   error
	Details map[string]interface{}
	Stack   []StackFrame
}

// StackFrame represents a single frame in the call stack, capturing
// the function name, file path, and line number for debugging.
type StackFrame struct {
	Function string // Fully qualified function name
	File     string // Source file path
	Line     int    // Line number in source file
}

// Error implements the error interface, returning a formatted error message
// that includes the error type, message, and cause (if present).
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying error, enabling compatibility with errors.Is
// and errors.As for error chain inspection.
func (e *Error) Unwrap() error {
	return e.Cause
}

// WithDetail adds a key-value detail to the error, providing additional context
// for debugging and monitoring. This method can be chained for adding multiple details.
func (e *Error) WithDetail(key string, value interface{}) *Error {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// New creates a new error with the given type and message, automatically
// capturing the call stack at the point of creation.
func New(errType ErrorType, message string) *Error {
	return &Error{
		Type:    errType,
		Message: message,
		Stack:   captureStack(2),
	}
}

// Wrap wraps an existing error with additional context, preserving the original
// error as the cause. If the error is already a structured Error, its stack
// trace is preserved. Returns nil if the input error is nil.
func Wrap(err error, errType ErrorType, message string) *Error {
	if err == nil {
		return nil
	}

	// If already our error type, preserve the stack
	var existingErr *Error
	if errors.As(err, &existingErr) {
		return &Error{
			Type:    errType,
			Message: message,
			Cause:   err,
			Stack:   existingErr.Stack,
		}
	}

	return &Error{
		Type:    errType,
		Message: message,
		Cause:   err,
		Stack:   captureStack(2),
	}
}

// IsRetryable returns true if the error is recoverable by the caller.
// Only rate-limit rejections from the store qualify; the sink manager
// responds to them by raising its batch threshold instead of retrying.
func IsRetryable(err error) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Type == ErrorTypeRateLimit
}

// IsType checks if the error is of the given type, useful for error handling
// strategies and conditional logic based on error categories.
func IsType(err error, errType ErrorType) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Type == errType
}

// captureStack captures the current call stack up to maxFrames deep,
// skipping the specified number of frames from the top.
func captureStack(skip int) []StackFrame {
	const maxFrames = 32
	frames := make([]StackFrame, 0, maxFrames)

	for i := skip; i < maxFrames+skip; i++ {
		pc, file, line, ok := runtime.Caller(i)
		if !ok {
			break
		}

		fn := runtime.FuncForPC(pc)
		if fn == nil {
			continue
		}

		frames = append(frames, StackFrame{
			Function: fn.Name(),
			File:     file,
			Line:     line,
		})
	}

	return frames
}
