package vm

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/deepnoodle-ai/avm/object"
)

// NativeClass is a class provided by the VM itself, such as Object, Array
// or the error classes. Script classes may extend it.
type NativeClass struct {
	*object.Dynamic
	vm        *VirtualMachine
	name      string
	prototype *object.Dynamic
}

func (c *NativeClass) Type() object.Type { return object.OBJECT }

func (c *NativeClass) Inspect() string {
	return fmt.Sprintf("class(%s)", c.name)
}

func (c *NativeClass) ToPrimitive() object.Value {
	return object.String("[class " + c.name + "]")
}

// Name returns the class name.
func (c *NativeClass) Name() string {
	return c.name
}

// Call converts its argument for the primitive classes and otherwise
// behaves like Construct.
func (c *NativeClass) Call(ctx context.Context, this object.Value, args []object.Value) (object.Value, error) {
	v := object.Arg(args, 0)
	switch c.name {
	case "String":
		if len(args) == 0 {
			return object.String(""), nil
		}
		return object.String(object.ToString(v)), nil
	case "Number":
		if len(args) == 0 {
			return object.Int(0), nil
		}
		return object.NumberValue(object.ToNumber(v)), nil
	case "int":
		return object.Int(object.ToInt32(v)), nil
	case "uint":
		return object.Uint(object.ToUint32(v)), nil
	case "Boolean":
		return object.Bool(object.ToBoolean(v)), nil
	}
	return c.Construct(ctx, args)
}

func (c *NativeClass) Construct(ctx context.Context, args []object.Value) (object.Value, error) {
	switch c.name {
	case "Array":
		if len(args) == 1 && object.IsNumeric(args[0]) {
			n := object.ToNumber(args[0])
			if n < 0 || n != math.Trunc(n) || n > math.MaxUint32 {
				return nil, object.Throwf("RangeError", "array index is not a positive integer (%s)", object.ToString(args[0]))
			}
			arr := c.vm.newArray(nil)
			if err := arr.SetProperty("", "length", object.NumberValue(n)); err != nil {
				return nil, err
			}
			return arr, nil
		}
		return c.vm.newArray(append([]object.Value(nil), args...)), nil
	case "String", "Number", "int", "uint", "Boolean":
		return c.Call(ctx, nil, args)
	}
	if object.IsErrorClass(c.name) {
		e := object.NewError(c.name, "%s", messageArg(args))
		e.SetPrototype(c.prototype)
		return e, nil
	}
	return object.NewDynamic("Object", c.prototype), nil
}

// initInstance runs the native part of construction for an instance of a
// script class extending c.
func (c *NativeClass) initInstance(obj object.Value, args []object.Value) {
	if !object.IsErrorClass(c.name) {
		return
	}
	if d, ok := obj.(*object.Dynamic); ok {
		d.DefineHidden("", "message", object.String(messageArg(args)))
		d.DefineHidden("", "name", object.String(d.Class()))
	}
}

func messageArg(args []object.Value) string {
	if len(args) == 0 || object.IsNullish(args[0]) {
		return ""
	}
	return object.ToString(args[0])
}

// isInstance implements istype for the native classes, including the
// primitive ones.
func (c *NativeClass) isInstance(v object.Value) bool {
	switch c.name {
	case "Object":
		return !object.IsNullish(v)
	case "Number":
		return object.IsNumeric(v)
	case "int":
		if !object.IsNumeric(v) {
			return false
		}
		n := object.ToNumber(v)
		return n == float64(int32(n))
	case "uint":
		if !object.IsNumeric(v) {
			return false
		}
		n := object.ToNumber(v)
		return n >= 0 && n == float64(uint32(n))
	case "String":
		_, ok := v.(object.String)
		return ok
	case "Boolean":
		_, ok := v.(object.Bool)
		return ok
	case "Namespace":
		_, ok := v.(*object.Namespace)
		return ok
	case "Function":
		_, ok := v.(object.Callable)
		return ok
	case "Class":
		switch v.(type) {
		case *Class, *NativeClass:
			return true
		}
		return false
	}
	if class, ok := object.ErrorClass(v); ok {
		if c.name == "Error" || c.name == class {
			return true
		}
	}
	return instanceOf(v, c.prototype)
}

func (c *NativeClass) Trace(m object.Marker) {
	c.Dynamic.Trace(m)
	m.MarkReachable(c.prototype)
}

// nativeClasses lists the built-in classes; error classes follow the
// class they extend.
var nativeClasses = []struct {
	name string
	base string
}{
	{"Object", ""},
	{"Function", "Object"},
	{"Class", "Object"},
	{"Array", "Object"},
	{"String", "Object"},
	{"Number", "Object"},
	{"int", "Object"},
	{"uint", "Object"},
	{"Boolean", "Object"},
	{"Namespace", "Object"},
	{"Error", "Object"},
	{"TypeError", "Error"},
	{"ReferenceError", "Error"},
	{"ArgumentError", "Error"},
	{"RangeError", "Error"},
	{"VerifyError", "Error"},
}

// installNatives creates the global object and the built-in classes and
// functions.
func (vm *VirtualMachine) installNatives() {
	vm.objectProto = object.NewDynamic("Object", nil)
	vm.natives = map[string]*NativeClass{}
	for _, nc := range nativeClasses {
		var proto *object.Dynamic
		switch nc.name {
		case "Object":
			proto = vm.objectProto
		default:
			proto = object.NewDynamic("Object", vm.natives[nc.base].prototype)
		}
		c := &NativeClass{
			Dynamic:   object.NewDynamic("Class", vm.objectProto),
			vm:        vm,
			name:      nc.name,
			prototype: proto,
		}
		c.DefineHidden("", "prototype", proto)
		proto.DefineHidden("", "constructor", c)
		if object.IsErrorClass(nc.name) {
			proto.DefineHidden("", "name", object.String(nc.name))
			proto.DefineHidden("", "message", object.String(""))
		}
		vm.natives[nc.name] = c
	}
	vm.functionProto = vm.natives["Function"].prototype
	vm.arrayProto = vm.natives["Array"].prototype

	vm.global = object.NewDynamic("global", vm.objectProto)
	for _, nc := range nativeClasses {
		vm.global.DefineHidden("", nc.name, vm.natives[nc.name])
	}
	vm.global.DefineHidden("", "NaN", object.NaN)
	vm.global.DefineHidden("", "Infinity", object.Number(math.Inf(1)))
	vm.global.DefineHidden("", "undefined", object.Undefined)
	vm.global.DefineHidden("", "trace", object.NewBuiltin("trace", vm.trace))
}

// trace logs its arguments at info level.
func (vm *VirtualMachine) trace(ctx context.Context, this object.Value, args []object.Value) (object.Value, error) {
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = object.ToString(a)
	}
	vm.logger.Info().Str("source", "trace").Msg(strings.Join(parts, " "))
	return object.Undefined, nil
}
