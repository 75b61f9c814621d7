package object

import (
	"context"
	"fmt"
)

// BuiltinFunction is the signature of host-native functions.
type BuiltinFunction func(ctx context.Context, this Value, args []Value) (Value, error)

// Builtin is a host-native function. It carries its own property bag so
// scripts can attach members to it like any other function object.
type Builtin struct {
	*Dynamic
	name string
	fn   BuiltinFunction
}

// NewBuiltin wraps fn as a callable object.
func NewBuiltin(name string, fn BuiltinFunction) *Builtin {
	b := &Builtin{Dynamic: NewDynamic("Function", nil), name: name, fn: fn}
	b.DefineHidden("", "name", String(name))
	return b
}

func (b *Builtin) Type() Type { return FUNCTION }

func (b *Builtin) Inspect() string {
	return fmt.Sprintf("builtin(%s)", b.name)
}

func (b *Builtin) ToPrimitive() Value {
	return String("[type Function]")
}

// Name returns the function name.
func (b *Builtin) Name() string {
	return b.name
}

func (b *Builtin) Call(ctx context.Context, this Value, args []Value) (Value, error) {
	v, err := b.fn(ctx, this, args)
	if err != nil {
		return nil, err
	}
	if v == nil {
		v = Undefined
	}
	return v, nil
}

// Arg returns args[i] or undefined.
func Arg(args []Value, i int) Value {
	if i < len(args) {
		return args[i]
	}
	return Undefined
}
