package object

import (
	"errors"
	"fmt"
)

var errorClasses = map[string]bool{
	"Error":          true,
	"TypeError":      true,
	"ReferenceError": true,
	"ArgumentError":  true,
	"RangeError":     true,
	"VerifyError":    true,
}

// IsErrorClass reports whether class names a built-in error class.
func IsErrorClass(class string) bool {
	return errorClasses[class]
}

// NewError returns an error object of the given class.
func NewError(class, format string, args ...any) *Dynamic {
	e := NewDynamic(class, nil)
	e.DefineHidden("", "name", String(class))
	e.DefineHidden("", "message", String(fmt.Sprintf(format, args...)))
	return e
}

// ErrorClass returns the class of v if it is an error object.
func ErrorClass(v Value) (string, bool) {
	if d, ok := v.(*Dynamic); ok && IsErrorClass(d.class) {
		return d.class, true
	}
	return "", false
}

// Exception carries a value thrown by script code through Go error returns.
// It is the interpreters' internal control-transfer value for script-level
// exceptions and is never used for engine faults.
type Exception struct {
	Value Value
}

// Throw wraps v as an exception.
func Throw(v Value) *Exception {
	if v == nil {
		v = Undefined
	}
	return &Exception{Value: v}
}

// Throwf throws a new error object of the given class.
func Throwf(class, format string, args ...any) *Exception {
	return &Exception{Value: NewError(class, format, args...)}
}

// TypeErrorf throws a new TypeError.
func TypeErrorf(format string, args ...any) *Exception {
	return Throwf("TypeError", format, args...)
}

func (e *Exception) Error() string {
	return "uncaught exception: " + ToString(e.Value)
}

// AsException returns the exception carried by err, if any.
func AsException(err error) (*Exception, bool) {
	var exc *Exception
	if errors.As(err, &exc) {
		return exc, true
	}
	return nil, false
}
