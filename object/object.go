// Package object provides the value model shared by both interpreters and
// the contract through which the engine talks to host-provided objects.
//
// Primitive values are plain Go value types (Bool, Number, Int, Uint,
// String) plus the Undefined and Null singletons. Anything else the engine
// touches is an Object: either a host object implementing the contract below
// or one of the in-core objects (*Dynamic, *Builtin) used for script-created
// objects, arrays, activations and errors.
//
// For example:
//
//	switch v := v.(type) {
//	case object.String:
//		// use string(v)
//	case object.Object:
//		// v.GetProperty("", "length")
//	}
package object

import "context"

// Type of a value as a string.
type Type string

// Type constants
const (
	UNDEFINED Type = "undefined"
	NULL      Type = "null"
	BOOLEAN   Type = "boolean"
	NUMBER    Type = "number"
	INT       Type = "int"
	UINT      Type = "uint"
	STRING    Type = "string"
	OBJECT    Type = "object"
	FUNCTION  Type = "function"
	NAMESPACE Type = "namespace"
	ACCESSOR  Type = "accessor"
)

// Value is implemented by every value the interpreters manipulate.
type Value interface {
	// Type of the value.
	Type() Type

	// Inspect returns a debugging representation of the value.
	Inspect() string
}

// Object is the host property contract. The ns argument is the namespace
// qualifier of the property; the empty string is the public namespace.
type Object interface {
	Value

	// GetProperty returns the property value, consulting any prototype chain.
	GetProperty(ns, name string) (Value, bool)

	// SetProperty assigns the property.
	SetProperty(ns, name string, value Value) error

	// DeleteProperty removes an own property, reporting whether it was
	// removed.
	DeleteProperty(ns, name string) bool
}

// Callable is implemented by script-defined and host-native functions alike.
// A script-level throw is reported as an *Exception error.
type Callable interface {
	Value
	Call(ctx context.Context, this Value, args []Value) (Value, error)
}

// Constructor is implemented by values usable with the construct operations.
type Constructor interface {
	Value
	Construct(ctx context.Context, args []Value) (Value, error)
}

// Enumerable is implemented by objects that support for-in style
// enumeration of their public properties.
type Enumerable interface {
	Keys() []string
}

// Slotted is implemented by objects with trait-declared numbered slots.
type Slotted interface {
	Slot(id int) (Value, error)
	SetSlot(id int, value Value) error
}

// Prototyped is implemented by objects with a prototype link.
type Prototyped interface {
	Prototype() Object
}

// Marker is the host collector's reachability callback. The engine calls
// MarkReachable for every object it still references when asked to.
type Marker interface {
	MarkReachable(obj Object)
}

// Tracer is implemented by in-core objects that reference other objects.
type Tracer interface {
	Trace(m Marker)
}

// Mark reports v to m if it is an object.
func Mark(m Marker, v Value) {
	if o, ok := v.(Object); ok && o != nil {
		m.MarkReachable(o)
	}
}

// MarkAll reports every object in values to m.
func MarkAll(m Marker, values []Value) {
	for _, v := range values {
		Mark(m, v)
	}
}

// Reach reports every object reachable from roots to m exactly once,
// following the references of in-core objects that implement Tracer.
func Reach(m Marker, roots []Value) {
	seen := map[Object]bool{}
	work := append([]Value(nil), roots...)
	c := &collector{work: &work}
	for len(work) > 0 {
		v := work[len(work)-1]
		work = work[:len(work)-1]
		obj, ok := v.(Object)
		if !ok || obj == nil || seen[obj] {
			continue
		}
		seen[obj] = true
		m.MarkReachable(obj)
		if t, ok := obj.(Tracer); ok {
			t.Trace(c)
		}
	}
}

type collector struct {
	work *[]Value
}

func (c *collector) MarkReachable(obj Object) {
	*c.work = append(*c.work, obj)
}
