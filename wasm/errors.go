package wasm

import (
	"errors"
	"fmt"
)

// All the errors are returned by the engine during the execution of Wasm functions, wrapped in an *Error of
// ErrorKindTrap or ErrorKindStack. Use errors.Is to match them.
var (
	// ErrRuntimeCallStackOverflow indicates that there are too many nested function calls or operands.
	ErrRuntimeCallStackOverflow = errors.New("callstack overflow")
	// ErrRuntimeInvalidConversionToInteger indicates the Wasm function tries to
	// convert NaN floating point value to integers during trunc variant instructions.
	ErrRuntimeInvalidConversionToInteger = errors.New("invalid conversion to integer")
	// ErrRuntimeIntegerOverflow indicates that an integer arithmetic resulted in
	// overflow value. For example, when the program tried to truncate a float value
	// which doesn't fit in the range of target integer.
	ErrRuntimeIntegerOverflow = errors.New("integer overflow")
	// ErrRuntimeIntegerDivideByZero indicates that an integer div or rem instructions
	// was executed with 0 as the divisor.
	ErrRuntimeIntegerDivideByZero = errors.New("integer divide by zero")
	// ErrRuntimeUnreachable means "unreachable" instruction was executed by the program.
	ErrRuntimeUnreachable = errors.New("unreachable")
	// ErrRuntimeOutOfBoundsMemoryAccess indicates that the program tried to access the
	// region beyond the linear memory.
	ErrRuntimeOutOfBoundsMemoryAccess = errors.New("out of bounds memory access")
	// ErrRuntimeInvalidTableAccess means either offset to the table was out of bounds of table, or
	// the target element in the table was uninitialized during call_indirect instruction.
	ErrRuntimeInvalidTableAccess = errors.New("invalid table access")
	// ErrRuntimeIndirectCallTypeMismatch indicates that the type check failed during call_indirect.
	ErrRuntimeIndirectCallTypeMismatch = errors.New("indirect call type mismatch")
)

// ErrorKind classifies an *Error.
type ErrorKind byte

const (
	// ErrorKindProgram is registry-level misuse, such as an unknown module name.
	ErrorKindProgram ErrorKind = iota
	// ErrorKindValidation is a module rejected by a structural check.
	ErrorKindValidation
	// ErrorKindInstantiation is a failed import resolution or a violated declared limit.
	ErrorKindInstantiation
	ErrorKindFunction
	ErrorKindTable
	ErrorKindMemory
	ErrorKindVariable
	ErrorKindGlobal
	ErrorKindLocal
	// ErrorKindStack is operand or call stack exhaustion.
	ErrorKindStack
	// ErrorKindValue is a runtime value whose type differs from what an operation expects.
	ErrorKindValue
	// ErrorKindInterpreter is an engine invariant violation. Seeing it with a valid module means an engine defect.
	ErrorKindInterpreter
	// ErrorKindNative is a host function marshalling failure.
	ErrorKindNative
	// ErrorKindTrap is a WebAssembly runtime fault. Its Cause is one of the ErrRuntime errors.
	ErrorKindTrap
	// ErrorKindUser is an error returned by a host function. Its Cause is that error.
	ErrorKindUser
)

var errorKindNames = [...]string{
	ErrorKindProgram:       "Program",
	ErrorKindValidation:    "Validation",
	ErrorKindInstantiation: "Instantiation",
	ErrorKindFunction:      "Function",
	ErrorKindTable:         "Table",
	ErrorKindMemory:        "Memory",
	ErrorKindVariable:      "Variable",
	ErrorKindGlobal:        "Global",
	ErrorKindLocal:         "Local",
	ErrorKindStack:         "Stack",
	ErrorKindValue:         "Value",
	ErrorKindInterpreter:   "Interpreter",
	ErrorKindNative:        "Native",
	ErrorKindTrap:          "Trap",
	ErrorKindUser:          "User",
}

// String implements fmt.Stringer.
func (k ErrorKind) String() string {
	if int(k) < len(errorKindNames) {
		return errorKindNames[k]
	}
	return fmt.Sprintf("ErrorKind(%d)", k)
}

// Error is returned by every fallible operation in this package.
type Error struct {
	Kind    ErrorKind
	Message string
	// Cause is the wrapped error, if any. For ErrorKindUser it is the error returned by the host function.
	Cause error
}

// Error implements error, formatting like "Trap: unreachable".
func (e *Error) Error() string {
	switch {
	case e.Message == "" && e.Cause != nil:
		return e.Kind.String() + ": " + e.Cause.Error()
	case e.Cause != nil:
		return e.Kind.String() + ": " + e.Message + ": " + e.Cause.Error()
	}
	return e.Kind.String() + ": " + e.Message
}

// Unwrap allows errors.Is and errors.As to see Cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

func newError(kind ErrorKind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func wrapError(kind ErrorKind, cause error, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Cause: cause}
}

func newTrap(cause error) *Error {
	return &Error{Kind: ErrorKindTrap, Cause: cause}
}

// IsKind returns true if err is, or wraps, an *Error of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// AsUserError returns the error a host function failed with, if err carries a user error of type T.
//
// For example, a host function returning &MyError{} can be recovered by the embedder with
// AsUserError[*MyError](err).
func AsUserError[T error](err error) (T, bool) {
	var zero T
	var e *Error
	if !errors.As(err, &e) || e.Kind != ErrorKindUser {
		return zero, false
	}
	var target T
	if errors.As(e.Cause, &target) {
		return target, true
	}
	return zero, false
}

// asError converts an arbitrary error returned across the host boundary into an *Error.
// An *Error, such as one from a nested invocation, passes through unchanged. Anything else becomes a User error,
// including an *Error wrapped by the host, so the host's message is kept.
func asError(err error) *Error {
	if e, ok := err.(*Error); ok {
		return e
	}
	return &Error{Kind: ErrorKindUser, Cause: err}
}
