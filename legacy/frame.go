package legacy

import (
	"context"
	"fmt"

	"github.com/deepnoodle-ai/avm/object"
	"github.com/deepnoodle-ai/avm/op"
)

// Param is a declared function parameter. A non-zero register receives the
// argument directly; otherwise it is bound to a local variable.
type Param struct {
	Register uint8
	Name     string
}

// Function is a script function created by DefineFunction or
// DefineFunction2. It captures the constant pool and scope chain in effect
// where it was defined.
type Function struct {
	*object.Dynamic
	in        *Interpreter
	name      string
	params    []Param
	registers int
	flags     uint16
	extended  bool
	code      []byte
	pool      []string
	scope     []object.Object
}

func (fn *Function) Type() object.Type { return object.FUNCTION }

func (fn *Function) Inspect() string {
	if fn.name == "" {
		return "function"
	}
	return fmt.Sprintf("function(%s)", fn.name)
}

func (fn *Function) ToPrimitive() object.Value {
	return object.String("[type Function]")
}

// Name returns the declared name, empty for anonymous functions.
func (fn *Function) Name() string {
	return fn.name
}

// Params returns the declared parameters.
func (fn *Function) Params() []Param {
	return fn.params
}

// Call runs the function. Called from outside a running interpreter it
// behaves like Interpreter.Invoke.
func (fn *Function) Call(ctx context.Context, this object.Value, args []object.Value) (object.Value, error) {
	if fn.in.active == 0 {
		return fn.in.Invoke(ctx, fn, this, args...)
	}
	return fn.in.call(ctx, fn, this, args)
}

// Construct creates an object whose prototype is the function's prototype
// property and runs the function on it.
func (fn *Function) Construct(ctx context.Context, args []object.Value) (object.Value, error) {
	var proto object.Object
	if p, ok := fn.GetProperty("", "prototype"); ok {
		proto, _ = p.(object.Object)
	}
	obj := object.NewDynamic("Object", proto)
	obj.DefineHidden("", "__constructor__", fn)
	if _, err := fn.Call(ctx, obj, args); err != nil {
		return nil, err
	}
	return obj, nil
}

func (fn *Function) Trace(m object.Marker) {
	fn.Dynamic.Trace(m)
	for _, o := range fn.scope {
		m.MarkReachable(o)
	}
}

func (fn *Function) label() string {
	if fn.name == "" {
		return "<anonymous>"
	}
	return fn.name
}

// CallFrame holds the registers and local variables of one function
// invocation. It lives until the invocation returns or unwinds.
type CallFrame struct {
	Function  *Function
	This      object.Value
	Args      []object.Value
	Locals    *object.Dynamic
	Registers []object.Value
}

func newCallFrame(fn *Function, this object.Value, args []object.Value) *CallFrame {
	regs := make([]object.Value, fn.registers)
	for i := range regs {
		regs[i] = object.Undefined
	}
	return &CallFrame{
		Function:  fn,
		This:      this,
		Args:      args,
		Locals:    object.NewDynamic("Activation", nil),
		Registers: regs,
	}
}

// bind sets up the frame the way the function's definition asks: named
// parameters, this and arguments for the plain form; preloaded registers
// then explicit parameters for the extended form.
func (in *Interpreter) bind(f *CallFrame, caller object.Value) {
	fn := f.Function
	var super object.Value
	if in.version > 5 {
		super = superOf(f.This)
	}
	if !fn.extended {
		for i, p := range fn.params {
			f.Locals.SetProperty("", p.Name, object.Arg(f.Args, i))
		}
		f.Locals.SetProperty("", "this", f.This)
		if super != nil {
			f.Locals.SetProperty("", "super", super)
		}
		f.Locals.SetProperty("", "arguments", in.arguments(f, caller))
		return
	}

	flags := fn.flags
	reg := 1
	preload := func(v object.Value) {
		if reg < len(f.Registers) {
			f.Registers[reg] = v
		} else {
			in.logger.Warn().Str("function", fn.label()).Int("register", reg).Msg("preload register out of range")
		}
		reg++
	}
	if flags&op.PreloadThis != 0 && flags&op.SuppressThis == 0 {
		preload(f.This)
	}
	if flags&op.SuppressThis == 0 {
		f.Locals.SetProperty("", "this", f.This)
	}
	var args object.Value
	if flags&op.PreloadArguments != 0 || flags&op.SuppressArguments == 0 {
		args = in.arguments(f, caller)
	}
	if flags&op.PreloadArguments != 0 {
		preload(args)
	}
	if flags&op.SuppressArguments == 0 {
		f.Locals.SetProperty("", "arguments", args)
	}
	if flags&op.PreloadSuper != 0 {
		if super == nil {
			preload(object.Undefined)
		} else {
			preload(super)
		}
	}
	if flags&op.SuppressSuper == 0 && super != nil {
		f.Locals.SetProperty("", "super", super)
	}
	if flags&op.PreloadRoot != 0 {
		preload(in.global)
	}
	if flags&op.PreloadParent != 0 {
		preload(in.lookup(fn.scope, nil, "_parent"))
	}
	if flags&op.PreloadGlobal != 0 {
		preload(in.global)
	}

	// Explicit parameters override the preloaded values.
	for i, p := range fn.params {
		if p.Register == 0 {
			f.Locals.SetProperty("", p.Name, object.Arg(f.Args, i))
			continue
		}
		if i >= len(f.Args) {
			continue
		}
		if int(p.Register) < len(f.Registers) {
			f.Registers[p.Register] = f.Args[i]
		} else {
			in.logger.Warn().Str("function", fn.label()).Uint8("register", p.Register).Msg("parameter register out of range")
		}
	}
}

// arguments builds the arguments array of a call.
func (in *Interpreter) arguments(f *CallFrame, caller object.Value) object.Value {
	arr := object.NewArray(append([]object.Value(nil), f.Args...))
	arr.DefineHidden("", "callee", f.Function)
	if caller == nil {
		caller = object.Null
	}
	arr.DefineHidden("", "caller", caller)
	return arr
}

// superOf returns the constructor the prototype of this was derived from
// with Extends, if any.
func superOf(this object.Value) object.Value {
	p, ok := this.(object.Prototyped)
	if !ok {
		return nil
	}
	proto := p.Prototype()
	if proto == nil {
		return nil
	}
	if c, ok := proto.GetProperty("", "__constructor__"); ok && !object.IsNullish(c) {
		return c
	}
	return nil
}
