package errz

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
)

// ErrorKind represents the category of an error.
type ErrorKind int

const (
	// ErrMalformed indicates a truncated or structurally invalid unit.
	ErrMalformed ErrorKind = iota
	// ErrPool indicates an out-of-range constant pool index.
	ErrPool
	// ErrStack indicates a bounded stack violation or an exhausted nesting limit.
	ErrStack
	// ErrScript indicates an uncaught value thrown by script code.
	ErrScript
	// ErrTimeout indicates the execution budget was exceeded.
	ErrTimeout
	// ErrType indicates an operation on a value of an incompatible type.
	ErrType
	// ErrRuntime indicates a general engine error.
	ErrRuntime
)

// String returns the string representation of the error kind.
func (k ErrorKind) String() string {
	switch k {
	case ErrMalformed:
		return "malformed input"
	case ErrPool:
		return "pool error"
	case ErrStack:
		return "stack fault"
	case ErrScript:
		return "uncaught exception"
	case ErrTimeout:
		return "execution limit exceeded"
	case ErrType:
		return "type error"
	case ErrRuntime:
		return "runtime error"
	default:
		return "error"
	}
}

// Sentinel causes, usable with errors.Is.
var (
	ErrTruncatedInput   = errors.New("truncated input")
	ErrBudgetExceeded   = errors.New("execution budget exceeded")
	ErrStackFault       = errors.New("stack index out of range")
	ErrPoolIndex        = errors.New("pool index out of range")
	ErrDuplicateBody    = errors.New("duplicate method body")
	ErrBadSuperclass    = errors.New("invalid superclass")
	ErrCallDepth        = errors.New("call depth exceeded")
	ErrUnknownOpcode    = errors.New("unknown opcode")
	ErrUnknownTrait     = errors.New("unknown trait kind")
	ErrDuplicateClass   = errors.New("duplicate class")
	ErrInvalidMultiname = errors.New("invalid multiname")
)

// StructuredError is the error type returned across the engine boundary. It
// carries a kind, the bytecode location of the failure and, when the failure
// happened inside the interpreters, the script call stack.
type StructuredError struct {
	Message  string
	Kind     ErrorKind
	Location SourceLocation
	Stack    []StackFrame
	Cause    error
	// Value holds the thrown script value for ErrScript and ErrType errors
	// that escaped every handler.
	Value any
}

// Error implements the error interface.
func (e *StructuredError) Error() string {
	if e.Location.IsZero() {
		return fmt.Sprintf("%s: %s", e.Kind.String(), e.Message)
	}
	return fmt.Sprintf("%s: %s (%s)", e.Kind.String(), e.Message, e.Location)
}

// Unwrap returns the underlying cause of the error.
func (e *StructuredError) Unwrap() error {
	return e.Cause
}

// IsFatal reports whether the error invalidates the whole unit rather than
// just the current call.
func (e *StructuredError) IsFatal() bool {
	switch e.Kind {
	case ErrMalformed, ErrPool:
		return true
	default:
		return false
	}
}

// FriendlyErrorMessage returns a multi-line message including the location
// and script stack trace.
func (e *StructuredError) FriendlyErrorMessage() string {
	var msg bytes.Buffer
	msg.WriteString(e.Error())
	msg.WriteString("\n")
	if len(e.Stack) > 0 {
		msg.WriteString("\n")
		msg.WriteString(FormatStackTrace(e.Stack))
	}
	return msg.String()
}

// NewStructuredError creates a new StructuredError with the given parameters.
func NewStructuredError(kind ErrorKind, message string, loc SourceLocation, stack []StackFrame) *StructuredError {
	return &StructuredError{
		Message:  message,
		Kind:     kind,
		Location: loc,
		Stack:    stack,
	}
}

// NewStructuredErrorf creates a new StructuredError with a formatted message.
func NewStructuredErrorf(kind ErrorKind, loc SourceLocation, stack []StackFrame, format string, args ...any) *StructuredError {
	return &StructuredError{
		Message:  fmt.Sprintf(format, args...),
		Kind:     kind,
		Location: loc,
		Stack:    stack,
	}
}

// WithCause wraps the error with a cause.
func (e *StructuredError) WithCause(cause error) *StructuredError {
	e.Cause = cause
	return e
}

// Newf creates a location-less error of the given kind wrapping cause.
func Newf(kind ErrorKind, cause error, format string, args ...any) *StructuredError {
	return &StructuredError{
		Message: fmt.Sprintf(format, args...),
		Kind:    kind,
		Cause:   cause,
	}
}

// Malformed creates an ErrMalformed error.
func Malformed(cause error, format string, args ...any) *StructuredError {
	return Newf(ErrMalformed, cause, format, args...)
}

// Truncated reports a read of want bytes at offset past the readable end.
func Truncated(offset, want, end int) *StructuredError {
	return Newf(ErrMalformed, ErrTruncatedInput,
		"read of %d byte(s) at offset %d exceeds end %d", want, offset, end)
}

// StackFault creates an ErrStack error.
func StackFault(format string, args ...any) *StructuredError {
	return Newf(ErrStack, ErrStackFault, format, args...)
}

// PoolFault reports an out-of-range index into the named pool.
func PoolFault(pool string, index, size int) *StructuredError {
	return Newf(ErrPool, ErrPoolIndex, "%s pool index %d out of range (size %d)", pool, index, size)
}

// Timeout creates an ErrTimeout error.
func Timeout(format string, args ...any) *StructuredError {
	return Newf(ErrTimeout, ErrBudgetExceeded, format, args...)
}

// KindOf returns the kind of err if it is (or wraps) a StructuredError.
func KindOf(err error) (ErrorKind, bool) {
	var se *StructuredError
	if errors.As(err, &se) {
		return se.Kind, true
	}
	return 0, false
}

// SourceLocation identifies a position in bytecode.
type SourceLocation struct {
	Function string // method or function name
	Offset   int    // byte offset of the faulting instruction
	File     string // from debug info, when present
	Line     int    // from debug info, when present
}

// IsZero returns true if the location is unset.
func (l SourceLocation) IsZero() bool {
	return l.Function == "" && l.Offset == 0 && l.File == "" && l.Line == 0
}

func (l SourceLocation) String() string {
	var parts []string
	if l.Function != "" {
		parts = append(parts, l.Function)
	}
	parts = append(parts, fmt.Sprintf("@%d", l.Offset))
	if l.Line > 0 {
		if l.File != "" {
			parts = append(parts, fmt.Sprintf("%s:%d", l.File, l.Line))
		} else {
			parts = append(parts, fmt.Sprintf("line %d", l.Line))
		}
	}
	return strings.Join(parts, " ")
}

// StackFrame is one entry of a script call stack.
type StackFrame struct {
	Function string
	Location SourceLocation
}

// FormatStackTrace renders frames innermost first.
func FormatStackTrace(frames []StackFrame) string {
	var b strings.Builder
	b.WriteString("Stack trace:\n")
	for _, f := range frames {
		name := f.Function
		if name == "" {
			name = "<anonymous>"
		}
		fmt.Fprintf(&b, "  at %s (%s)\n", name, f.Location)
	}
	return b.String()
}
