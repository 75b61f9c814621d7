package object

import (
	"math"
	"strconv"

	"github.com/deepnoodle-ai/avm/names"
)

type undefinedType struct{}

func (undefinedType) Type() Type      { return UNDEFINED }
func (undefinedType) Inspect() string { return "undefined" }

type nullType struct{}

func (nullType) Type() Type      { return NULL }
func (nullType) Inspect() string { return "null" }

var (
	Undefined Value = undefinedType{}
	Null      Value = nullType{}
)

// Bool is a boolean value.
type Bool bool

const (
	True  = Bool(true)
	False = Bool(false)
)

func (b Bool) Type() Type { return BOOLEAN }

func (b Bool) Inspect() string {
	if b {
		return "true"
	}
	return "false"
}

// Number is a double-precision value.
type Number float64

// NaN is the not-a-number value.
var NaN = Number(math.NaN())

func (n Number) Type() Type      { return NUMBER }
func (n Number) Inspect() string { return FormatNumber(float64(n)) }

// Int is a signed 32-bit value.
type Int int32

func (i Int) Type() Type      { return INT }
func (i Int) Inspect() string { return strconv.FormatInt(int64(i), 10) }

// Uint is an unsigned 32-bit value.
type Uint uint32

func (u Uint) Type() Type      { return UINT }
func (u Uint) Inspect() string { return strconv.FormatUint(uint64(u), 10) }

// String is a string value.
type String string

func (s String) Type() Type      { return STRING }
func (s String) Inspect() string { return strconv.Quote(string(s)) }

// Namespace wraps a namespace as a first-class value.
type Namespace struct {
	NS *names.Namespace
}

// NewNamespace returns a namespace value.
func NewNamespace(ns *names.Namespace) *Namespace {
	return &Namespace{NS: ns}
}

func (n *Namespace) Type() Type      { return NAMESPACE }
func (n *Namespace) Inspect() string { return n.NS.String() }

// Accessor is stored as a property value to route reads and writes through
// getter and setter functions.
type Accessor struct {
	Getter Callable
	Setter Callable
}

func (a *Accessor) Type() Type      { return ACCESSOR }
func (a *Accessor) Inspect() string { return "[accessor]" }

// IsNullish reports whether v is undefined or null.
func IsNullish(v Value) bool {
	return v == nil || v == Undefined || v == Null
}

// IsNumeric reports whether v is a Number, Int or Uint.
func IsNumeric(v Value) bool {
	switch v.(type) {
	case Number, Int, Uint:
		return true
	}
	return false
}
