package vm

import (
	"context"
	"fmt"

	"github.com/deepnoodle-ai/avm/abc"
	"github.com/deepnoodle-ai/avm/names"
	"github.com/deepnoodle-ai/avm/object"
)

// Function is a script function: a method closed over the scope chain that
// was live when it was created.
type Function struct {
	*object.Dynamic
	vm     *VirtualMachine
	method *abc.Method
	scope  []object.Value
	home   *Class
}

func (vm *VirtualMachine) newFunction(method *abc.Method, scope []object.Value, home *Class) *Function {
	fn := &Function{
		Dynamic: object.NewDynamic("Function", vm.functionProto),
		vm:      vm,
		method:  method,
		scope:   scope,
		home:    home,
	}
	fn.DefineHidden("", "length", object.Int(method.ParamCount()))
	return fn
}

func (f *Function) Type() object.Type { return object.FUNCTION }

func (f *Function) Inspect() string {
	return fmt.Sprintf("function(%s)", f.method)
}

func (f *Function) ToPrimitive() object.Value {
	return object.String("function Function() {}")
}

// Method returns the function's method signature.
func (f *Function) Method() *abc.Method {
	return f.method
}

// Call runs the function. Called from Go outside any run, it behaves like
// VirtualMachine.Invoke; from a host function during a run it re-enters the
// running VM.
func (f *Function) Call(ctx context.Context, this object.Value, args []object.Value) (object.Value, error) {
	if f.vm.active == 0 {
		return f.vm.Invoke(ctx, f, this, args...)
	}
	return f.vm.invoke(ctx, f, this, args)
}

// Construct creates an object whose prototype is the function's prototype
// property and runs the function on it.
func (f *Function) Construct(ctx context.Context, args []object.Value) (object.Value, error) {
	obj := object.NewDynamic("Object", f.instanceProto())
	if _, err := f.Call(ctx, obj, args); err != nil {
		return nil, err
	}
	return obj, nil
}

func (f *Function) instanceProto() object.Object {
	if p, ok := f.GetProperty("", "prototype"); ok {
		if proto, ok := p.(object.Object); ok {
			return proto
		}
	}
	return f.vm.objectProto
}

func (f *Function) Trace(m object.Marker) {
	f.Dynamic.Trace(m)
	object.MarkAll(m, f.scope)
	if f.home != nil {
		m.MarkReachable(f.home)
	}
}

// Class is a class object created by newclass.
type Class struct {
	*object.Dynamic
	vm        *VirtualMachine
	def       *abc.Class
	base      object.Value
	super     *Class
	prototype *object.Dynamic
	ctor      *Function
	scope     []object.Value
	dispatch  map[int]*Function
}

func (c *Class) Type() object.Type { return object.OBJECT }

func (c *Class) Inspect() string {
	return fmt.Sprintf("class(%s)", c.def.QualifiedName())
}

func (c *Class) ToPrimitive() object.Value {
	return object.String("[class " + c.def.Name.Name + "]")
}

// Def returns the class definition.
func (c *Class) Def() *abc.Class {
	return c.def
}

// InstancePrototype returns the prototype shared by the class's instances.
func (c *Class) InstancePrototype() *object.Dynamic {
	return c.prototype
}

// Construct creates an instance and runs the constructor on it.
func (c *Class) Construct(ctx context.Context, args []object.Value) (object.Value, error) {
	obj := c.newInstance()
	if _, err := c.ctor.Call(ctx, obj, args); err != nil {
		return nil, err
	}
	return obj, nil
}

// newInstance returns an object with the slots declared by the class and
// its ancestors, base class first.
func (c *Class) newInstance() *object.Dynamic {
	obj := object.NewDynamic(c.def.Name.Name, c.prototype)
	var chain []*Class
	for k := c; k != nil; k = k.super {
		chain = append(chain, k)
	}
	for i := len(chain) - 1; i >= 0; i-- {
		c.vm.installSlots(obj, chain[i].def.InstanceTraits, chain[i].scope)
	}
	if c.def.IsSealed() {
		obj.Seal()
	}
	return obj
}

// method finds a method by dispatch id, searching base classes.
func (c *Class) method(dispID int) (*Function, bool) {
	for k := c; k != nil; k = k.super {
		if fn, ok := k.dispatch[dispID]; ok {
			return fn, true
		}
	}
	return nil, false
}

// superPrototype returns the prototype holding the base class's members.
func (c *Class) superPrototype() object.Object {
	switch b := c.base.(type) {
	case *Class:
		return b.prototype
	case *NativeClass:
		return b.prototype
	}
	return c.vm.objectProto
}

func (c *Class) Trace(m object.Marker) {
	c.Dynamic.Trace(m)
	m.MarkReachable(c.prototype)
	m.MarkReachable(c.ctor)
	object.Mark(m, c.base)
	object.MarkAll(m, c.scope)
	for _, fn := range c.dispatch {
		m.MarkReachable(fn)
	}
}

// newClass builds the class object for def extending base. Static members
// live on the class object, instance methods and accessors on the
// prototype.
func (vm *VirtualMachine) newClass(def *abc.Class, base object.Value, scope []object.Value) (*Class, error) {
	var baseProto object.Object = vm.objectProto
	var super *Class
	switch b := base.(type) {
	case *Class:
		baseProto, super = b.prototype, b
	case *NativeClass:
		baseProto = b.prototype
	default:
		if !object.IsNullish(base) {
			return nil, object.TypeErrorf("%s cannot be used as a base class", object.TypeOf(base))
		}
	}
	cls := &Class{
		Dynamic:   object.NewDynamic("Class", vm.objectProto),
		vm:        vm,
		def:       def,
		base:      base,
		super:     super,
		prototype: object.NewDynamic("Object", baseProto),
		scope:     scope,
		dispatch:  map[int]*Function{},
	}
	inner := append(append([]object.Value(nil), scope...), cls)
	cls.DefineHidden("", "prototype", cls.prototype)
	cls.prototype.DefineHidden("", "constructor", cls)
	vm.installSlots(cls.Dynamic, def.StaticTraits, inner)
	vm.installMembers(cls.Dynamic, def.StaticTraits, inner, cls)
	for _, fn := range vm.installMembers(cls.prototype, def.InstanceTraits, inner, cls) {
		cls.dispatch[fn.dispID] = fn.fn
	}
	cls.ctor = vm.newFunction(def.Constructor, inner, cls)
	vm.classes[def] = cls
	vm.protos[cls.prototype] = cls
	vm.logger.Trace().Str("class", def.QualifiedName()).Msg("class created")
	return cls, nil
}

type dispatched struct {
	dispID int
	fn     *Function
}

// installSlots defines the slot, const, class and function traits on
// target.
func (vm *VirtualMachine) installSlots(target *object.Dynamic, traits []*abc.Trait, scope []object.Value) {
	for _, t := range traits {
		ns := t.Name.NS.Qualifier()
		switch t.Kind {
		case abc.TraitSlot, abc.TraitConst:
			v := vm.slotDefault(t)
			target.DefineSlot(t.SlotID, ns, t.Name.Name, v, t.Kind == abc.TraitConst)
		case abc.TraitClass:
			var v object.Value = object.Null
			if c, ok := vm.classes[t.Class]; ok {
				v = c
			}
			target.DefineSlot(t.SlotID, ns, t.Name.Name, v, false)
		case abc.TraitFunction:
			target.DefineSlot(t.SlotID, ns, t.Name.Name, vm.newFunction(t.Method, scope, nil), false)
		}
	}
}

// installMembers defines the method, getter and setter traits on target
// and returns the methods that carry a dispatch id.
func (vm *VirtualMachine) installMembers(target *object.Dynamic, traits []*abc.Trait, scope []object.Value, home *Class) []dispatched {
	var out []dispatched
	for _, t := range traits {
		ns := t.Name.NS.Qualifier()
		switch t.Kind {
		case abc.TraitMethod:
			fn := vm.newFunction(t.Method, scope, home)
			target.DefineHidden(ns, t.Name.Name, fn)
			if t.DispID > 0 {
				out = append(out, dispatched{t.DispID, fn})
			}
		case abc.TraitGetter, abc.TraitSetter:
			acc, ok := target.GetOwn(ns, t.Name.Name)
			a, isAcc := acc.(*object.Accessor)
			if !ok || !isAcc {
				a = &object.Accessor{}
			}
			fn := vm.newFunction(t.Method, scope, home)
			if t.Kind == abc.TraitGetter {
				a.Getter = fn
			} else {
				a.Setter = fn
			}
			target.DefineHidden(ns, t.Name.Name, a)
		}
	}
	return out
}

// slotDefault is the initial value of a slot: its declared constant, or
// the default of its declared type.
func (vm *VirtualMachine) slotDefault(t *abc.Trait) object.Value {
	if t.Value != nil {
		return vm.constantValue(*t.Value)
	}
	if t.TypeName == nil {
		return object.Undefined
	}
	switch t.TypeName.Name {
	case "", "*":
		return object.Undefined
	case "int":
		return object.Int(0)
	case "uint":
		return object.Uint(0)
	case "Number":
		return object.NaN
	case "Boolean":
		return object.False
	}
	return object.Null
}

func (vm *VirtualMachine) constantValue(c abc.Constant) object.Value {
	switch v := c.Value.(type) {
	case int32:
		return object.Int(v)
	case uint32:
		return object.Uint(v)
	case float64:
		return object.Number(v)
	case string:
		return object.String(v)
	case bool:
		return object.Bool(v)
	case *names.Namespace:
		return object.NewNamespace(v)
	}
	if c.Kind == abc.ConstNull {
		return object.Null
	}
	return object.Undefined
}

// newActivation returns the object holding a body's declared locals.
func (vm *VirtualMachine) newActivation(body *abc.Body, scope []object.Value) *object.Dynamic {
	act := object.NewDynamic("activation", nil)
	vm.installSlots(act, body.Traits, scope)
	return act
}

// newCatch returns the scope object binding the variable of an exception
// handler in slot 1.
func (vm *VirtualMachine) newCatch(e abc.Exception) *object.Dynamic {
	scope := object.NewDynamic("catch", nil)
	if e.VarName != nil {
		scope.DefineSlot(1, e.VarName.NS.Qualifier(), e.VarName.Name, object.Undefined, false)
	}
	return scope
}

func (vm *VirtualMachine) newArray(values []object.Value) *object.Dynamic {
	arr := object.NewArray(values)
	arr.SetPrototype(vm.arrayProto)
	return arr
}

// call invokes fn with its result delivered to the caller's stack according
// to ret. Script functions continue in the dispatch loop; anything else is
// called directly.
func (vm *VirtualMachine) call(ctx context.Context, fn object.Value, this object.Value, args []object.Value, ret returnKind) error {
	switch fn := fn.(type) {
	case *Function:
		return vm.pushCall(fn, this, args, ret, nil)
	case object.Callable:
		v, err := fn.Call(ctx, this, args)
		if err != nil {
			return err
		}
		if ret == retPush {
			vm.push(v)
		}
		return nil
	}
	return object.TypeErrorf("%s is not a function", describe(fn))
}

// callSync invokes fn and waits for its result, running script functions
// in a nested dispatch loop.
func (vm *VirtualMachine) callSync(ctx context.Context, fn object.Value, this object.Value, args []object.Value) (object.Value, error) {
	switch fn := fn.(type) {
	case *Function:
		return vm.invoke(ctx, fn, this, args)
	case object.Callable:
		return fn.Call(ctx, this, args)
	}
	return nil, object.TypeErrorf("%s is not a function", describe(fn))
}

// construct creates an object with ctor and pushes it once the
// constructor has run.
func (vm *VirtualMachine) construct(ctx context.Context, ctor object.Value, args []object.Value) error {
	switch c := ctor.(type) {
	case *Class:
		obj := c.newInstance()
		return vm.pushCall(c.ctor, obj, args, retResult, obj)
	case *Function:
		obj := object.NewDynamic("Object", c.instanceProto())
		return vm.pushCall(c, obj, args, retResult, obj)
	case object.Constructor:
		v, err := c.Construct(ctx, args)
		if err != nil {
			return err
		}
		vm.push(v)
		return nil
	}
	return object.TypeErrorf("%s is not a constructor", describe(ctor))
}

func describe(v object.Value) string {
	if v == nil {
		return "undefined"
	}
	if _, ok := v.(object.Object); ok {
		return object.ToString(v)
	}
	return v.Inspect()
}
