package vm

import (
	"context"

	"github.com/deepnoodle-ai/avm/names"
	"github.com/deepnoodle-ai/avm/object"
)

// qname is a multiname ready for resolution. Names completed from the
// stack are fresh values and bypass the resolver cache.
type qname struct {
	*names.MultiName
	dynamic bool
}

// multiname reads the pool entry at index and completes its runtime parts
// from the operand stack. The name is on top of the namespace, so it is
// popped first.
func (vm *VirtualMachine) multiname(index int) (qname, error) {
	mn, err := vm.block.Multiname(index)
	if err != nil {
		return qname{}, err
	}
	if !mn.IsRuntime() {
		return qname{MultiName: mn}, nil
	}
	var name string
	var ns *names.Namespace
	if mn.Kind.IsRuntimeName() {
		name = object.ToString(vm.pop())
	}
	if mn.Kind.IsRuntimeNamespace() {
		v := vm.pop()
		nsv, ok := v.(*object.Namespace)
		if !ok {
			return qname{}, object.TypeErrorf("%s is not a namespace", object.ToString(v))
		}
		ns = nsv.NS
	}
	return qname{MultiName: mn.Complete(ns, name), dynamic: true}, nil
}

// staticName reads a pool multiname that must not have runtime parts.
func (vm *VirtualMachine) staticName(index int) (qname, error) {
	mn, err := vm.block.Multiname(index)
	if err != nil {
		return qname{}, err
	}
	if mn.IsRuntime() {
		return qname{}, object.Throwf("VerifyError", "multiname %s cannot be used here", mn)
	}
	return qname{MultiName: mn}, nil
}

func (vm *VirtualMachine) candidates(n qname) ([]names.Binding, error) {
	if n.dynamic {
		return names.Bindings(n.MultiName)
	}
	return vm.resolver.Candidates(n.MultiName)
}

// find returns the first candidate binding of n that obj has, and its
// value.
func (vm *VirtualMachine) find(obj object.Object, n qname) (names.Binding, object.Value, bool, error) {
	bindings, err := vm.candidates(n)
	if err != nil {
		return names.Binding{}, nil, false, err
	}
	for _, b := range bindings {
		if v, ok := obj.GetProperty(b.NS.Qualifier(), b.Name); ok {
			return b, v, true, nil
		}
	}
	return names.Binding{}, nil, false, nil
}

// lookupGlobal resolves a static multiname against the global object.
func (vm *VirtualMachine) lookupGlobal(mn *names.MultiName) (object.Value, bool) {
	if mn.IsRuntime() {
		return nil, false
	}
	_, v, ok, err := vm.find(vm.global, qname{MultiName: mn})
	if err != nil || !ok {
		return nil, false
	}
	return v, true
}

// findProperty searches the scope chain of f from the innermost scope out,
// then the global object. A strict search throws ReferenceError when
// nothing has the name; otherwise it yields the global object.
func (vm *VirtualMachine) findProperty(f *frame, n qname, strict bool) (object.Value, error) {
	for i := vm.scope.TotalSize() - 1; i >= f.scopeBase; i-- {
		s, err := vm.scope.At(i)
		if err != nil {
			return nil, err
		}
		obj, ok := s.(object.Object)
		if !ok {
			continue
		}
		_, _, found, err := vm.find(obj, n)
		if err != nil {
			return nil, err
		}
		if found {
			return obj, nil
		}
	}
	_, _, found, err := vm.find(vm.global, n)
	if err != nil {
		return nil, err
	}
	if !found && strict {
		return nil, object.Throwf("ReferenceError", "variable %s is not defined", n.MultiName)
	}
	return vm.global, nil
}

// objectOf returns the object whose properties a value exposes. Primitives
// are boxed with their class prototype.
func (vm *VirtualMachine) objectOf(v object.Value) (object.Object, error) {
	switch v := v.(type) {
	case object.Object:
		return v, nil
	case object.String:
		box := object.NewDynamic("String", vm.natives["String"].prototype)
		box.DefineHidden("", "length", object.Int(len([]rune(string(v)))))
		return box, nil
	case object.Number, object.Int, object.Uint:
		return object.NewDynamic("Number", vm.natives["Number"].prototype), nil
	case object.Bool:
		return object.NewDynamic("Boolean", vm.natives["Boolean"].prototype), nil
	case *object.Namespace:
		box := object.NewDynamic("Namespace", vm.natives["Namespace"].prototype)
		box.DefineHidden("", "uri", object.String(v.NS.URI))
		return box, nil
	}
	return nil, object.TypeErrorf("cannot access a property or method of a %s value", object.TypeOf(v))
}

// valueOf reads n from holder. An accessor runs its getter synchronously
// with this as the receiver.
func (vm *VirtualMachine) valueOf(ctx context.Context, holder object.Object, this object.Value, n qname) (object.Value, bool, error) {
	_, v, ok, err := vm.find(holder, n)
	if err != nil || !ok {
		return object.Undefined, false, err
	}
	if acc, isAcc := v.(*object.Accessor); isAcc {
		if acc.Getter == nil {
			return nil, false, object.Throwf("ReferenceError", "property %s is write-only", n.Name)
		}
		v, err := vm.callSync(ctx, acc.Getter, this, nil)
		return v, true, err
	}
	return v, true, nil
}

// getProperty pushes the value of n on target. A script getter is entered
// as a call whose result lands on the stack.
func (vm *VirtualMachine) getProperty(ctx context.Context, target object.Value, n qname) error {
	obj, err := vm.objectOf(target)
	if err != nil {
		return err
	}
	_, v, ok, err := vm.find(obj, n)
	if err != nil {
		return err
	}
	if !ok {
		vm.push(object.Undefined)
		return nil
	}
	if acc, isAcc := v.(*object.Accessor); isAcc {
		if acc.Getter == nil {
			return object.Throwf("ReferenceError", "property %s is write-only", n.Name)
		}
		return vm.call(ctx, acc.Getter, target, nil, retPush)
	}
	vm.push(v)
	return nil
}

// setProperty assigns n on target. An existing binding is updated in
// place; a new property goes to the public candidate if there is one.
func (vm *VirtualMachine) setProperty(ctx context.Context, target object.Value, n qname, value object.Value, init bool) error {
	obj, ok := target.(object.Object)
	if !ok {
		if object.IsNullish(target) {
			return object.TypeErrorf("cannot set property %s of %s", n.Name, object.TypeOf(target))
		}
		// Writes to primitives are discarded.
		return nil
	}
	b, v, found, err := vm.find(obj, n)
	if err != nil {
		return err
	}
	if found {
		if acc, isAcc := v.(*object.Accessor); isAcc {
			if acc.Setter == nil {
				return object.Throwf("ReferenceError", "property %s is read-only", n.Name)
			}
			return vm.call(ctx, acc.Setter, target, []object.Value{value}, retDiscard)
		}
	} else {
		bindings, err := vm.candidates(n)
		if err != nil {
			return err
		}
		if len(bindings) == 0 {
			return object.TypeErrorf("cannot set property %s", n.MultiName)
		}
		b = bindings[0]
		for _, c := range bindings {
			if c.NS.Qualifier() == "" {
				b = c
				break
			}
		}
	}
	if init {
		if in, ok := obj.(initializer); ok {
			return in.InitProperty(b.NS.Qualifier(), b.Name, value)
		}
	}
	return obj.SetProperty(b.NS.Qualifier(), b.Name, value)
}

// initializer is implemented by objects whose constants can be written
// once by initproperty.
type initializer interface {
	InitProperty(ns, name string, value object.Value) error
}

// deleteProperty removes n from target.
func (vm *VirtualMachine) deleteProperty(target object.Value, n qname) (bool, error) {
	obj, ok := target.(object.Object)
	if !ok {
		return true, nil
	}
	b, _, found, err := vm.find(obj, n)
	if err != nil || !found {
		return true, err
	}
	return obj.DeleteProperty(b.NS.Qualifier(), b.Name), nil
}
