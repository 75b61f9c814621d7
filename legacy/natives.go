package legacy

import (
	"context"
	"math"

	"github.com/deepnoodle-ai/avm/object"
)

// nativeClass is a built-in function that can also be used with new.
type nativeClass struct {
	*object.Builtin
	construct func(ctx context.Context, args []object.Value) (object.Value, error)
}

func (c *nativeClass) Construct(ctx context.Context, args []object.Value) (object.Value, error) {
	return c.construct(ctx, args)
}

func (in *Interpreter) newNativeClass(name string, proto *object.Dynamic, call object.BuiltinFunction,
	construct func(ctx context.Context, args []object.Value) (object.Value, error)) *nativeClass {
	if construct == nil {
		construct = func(ctx context.Context, args []object.Value) (object.Value, error) {
			return call(ctx, nil, args)
		}
	}
	c := &nativeClass{Builtin: object.NewBuiltin(name, call), construct: construct}
	c.SetPrototype(in.functionProto)
	c.DefineHidden("", "prototype", proto)
	proto.DefineHidden("", "constructor", c)
	return c
}

// installNatives creates the global object and the few built-in
// constructors the action set relies on.
func (in *Interpreter) installNatives() {
	in.objectProto = object.NewDynamic("Object", nil)
	in.functionProto = object.NewDynamic("Object", in.objectProto)
	in.arrayProto = object.NewDynamic("Object", in.objectProto)
	errorProto := object.NewDynamic("Object", in.objectProto)
	errorProto.DefineHidden("", "name", object.String("Error"))
	errorProto.DefineHidden("", "message", object.String("Error"))

	newObject := func(ctx context.Context, args []object.Value) (object.Value, error) {
		if o, ok := object.Arg(args, 0).(object.Object); ok && !object.IsNullish(o) {
			return o, nil
		}
		return object.NewDynamic("Object", in.objectProto), nil
	}
	newArray := func(ctx context.Context, args []object.Value) (object.Value, error) {
		if len(args) == 1 && object.IsNumeric(args[0]) {
			n := object.ToNumber(args[0])
			arr := in.newArray(nil)
			if n >= 0 && n == math.Trunc(n) && n <= math.MaxUint32 {
				arr.SetProperty("", "length", object.NumberValue(n))
			}
			return arr, nil
		}
		return in.newArray(append([]object.Value(nil), args...)), nil
	}
	newError := func(ctx context.Context, args []object.Value) (object.Value, error) {
		msg := ""
		if len(args) > 0 && !object.IsNullish(args[0]) {
			msg = object.ToString(args[0])
		}
		e := object.NewError("Error", "%s", msg)
		e.SetPrototype(errorProto)
		return e, nil
	}

	in.global = object.NewDynamic("global", in.objectProto)
	natives := []*nativeClass{
		in.newNativeClass("Object", in.objectProto,
			func(ctx context.Context, this object.Value, args []object.Value) (object.Value, error) {
				return newObject(ctx, args)
			}, newObject),
		in.newNativeClass("Function", in.functionProto,
			func(ctx context.Context, this object.Value, args []object.Value) (object.Value, error) {
				return object.Undefined, nil
			}, nil),
		in.newNativeClass("Array", in.arrayProto,
			func(ctx context.Context, this object.Value, args []object.Value) (object.Value, error) {
				return newArray(ctx, args)
			}, newArray),
		in.newNativeClass("Error", errorProto,
			func(ctx context.Context, this object.Value, args []object.Value) (object.Value, error) {
				return newError(ctx, args)
			}, newError),
		in.newNativeClass("String", object.NewDynamic("Object", in.objectProto),
			func(ctx context.Context, this object.Value, args []object.Value) (object.Value, error) {
				if len(args) == 0 {
					return object.String(""), nil
				}
				return object.String(object.ToString(args[0])), nil
			}, nil),
		in.newNativeClass("Number", object.NewDynamic("Object", in.objectProto),
			func(ctx context.Context, this object.Value, args []object.Value) (object.Value, error) {
				if len(args) == 0 {
					return object.Int(0), nil
				}
				return object.NumberValue(object.ToNumber(args[0])), nil
			}, nil),
		in.newNativeClass("Boolean", object.NewDynamic("Object", in.objectProto),
			func(ctx context.Context, this object.Value, args []object.Value) (object.Value, error) {
				return object.Bool(object.ToBoolean(object.Arg(args, 0))), nil
			}, nil),
	}
	for _, c := range natives {
		in.global.DefineHidden("", c.Name(), c)
	}
	in.global.DefineHidden("", "NaN", object.NaN)
	in.global.DefineHidden("", "Infinity", object.Number(math.Inf(1)))
}

func (in *Interpreter) newArray(values []object.Value) *object.Dynamic {
	arr := object.NewArray(values)
	arr.SetPrototype(in.arrayProto)
	return arr
}
