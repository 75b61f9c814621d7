package vm

import (
	"errors"

	"github.com/deepnoodle-ai/avm/errz"
	"github.com/deepnoodle-ai/avm/names"
	"github.com/deepnoodle-ai/avm/object"
)

// handleError routes an error raised while executing the current frame.
// Script exceptions are matched against the exception table of the current
// body; when nothing matches, one saved state is popped and the search
// repeats in the caller at its call site. Reaching the state pushed by the
// enclosing Go call ends the search and the exception is returned. Any other
// error unwinds straight to that state.
func (vm *VirtualMachine) handleError(err error) error {
	exc, ok := vm.asException(err)
	if !ok {
		err = vm.annotate(err)
		vm.logger.Debug().Err(err).Msg("fault")
		vm.unwind()
		return err
	}
	if vm.thrown == nil || vm.thrown.exc != exc {
		vm.thrown = &throwSite{exc: exc, location: vm.location(), stack: vm.captureStack()}
	}
	for {
		f := vm.cur
		target, found, err := vm.findHandler(f, exc.Value)
		if err != nil {
			err = vm.annotate(err)
			vm.unwind()
			return err
		}
		if found {
			vm.stack.Drop(vm.stack.Size())
			vm.scope.Drop(vm.scope.Size())
			if err := vm.stack.Push(exc.Value); err != nil {
				vm.unwind()
				return vm.annotate(err)
			}
			f.ip = target
			return nil
		}
		s, err := vm.popState()
		if err != nil {
			vm.unwind()
			return err
		}
		if s.ret == retBoundary {
			return exc
		}
	}
}

// asException returns the script exception carried by err. Type errors
// raised by host objects become catchable TypeErrors, and script errors
// that already crossed an Invoke boundary are thrown again as their value.
func (vm *VirtualMachine) asException(err error) (*object.Exception, bool) {
	if exc, ok := object.AsException(err); ok {
		return exc, true
	}
	var se *errz.StructuredError
	if !errors.As(err, &se) {
		return nil, false
	}
	switch {
	case se.Value != nil && (se.Kind == errz.ErrScript || se.Kind == errz.ErrType):
		if v, ok := se.Value.(object.Value); ok {
			return object.Throw(v), true
		}
	case se.Kind == errz.ErrType:
		return object.TypeErrorf("%s", se.Message), true
	}
	return nil, false
}

// unwind pops saved states up to and including the one pushed by the
// enclosing Go call.
func (vm *VirtualMachine) unwind() {
	for len(vm.states) > 0 {
		s, _ := vm.popState()
		if s.ret == retBoundary {
			return
		}
	}
}

// annotate attaches the current location and call stack to err.
func (vm *VirtualMachine) annotate(err error) error {
	var se *errz.StructuredError
	if !errors.As(err, &se) {
		return errz.NewStructuredErrorf(errz.ErrRuntime, vm.location(), vm.captureStack(), "%v", err).WithCause(err)
	}
	if se.Location.IsZero() {
		se.Location = vm.location()
		se.Stack = vm.captureStack()
	}
	return err
}

// convert turns an exception escaping to the host into a StructuredError.
func (vm *VirtualMachine) convert(err error) error {
	exc, ok := object.AsException(err)
	if !ok {
		return err
	}
	kind := errz.ErrScript
	if class, ok := object.ErrorClass(exc.Value); ok && class == "TypeError" {
		kind = errz.ErrType
	}
	se := &errz.StructuredError{
		Message: object.ToString(exc.Value),
		Kind:    kind,
		Cause:   exc,
		Value:   exc.Value,
	}
	if t := vm.thrown; t != nil && t.exc == exc {
		se.Location = t.location
		se.Stack = t.stack
	}
	return se
}

func (vm *VirtualMachine) location() errz.SourceLocation {
	if vm.cur == nil {
		return errz.SourceLocation{}
	}
	return vm.cur.location()
}

// captureStack returns the live frames, innermost first.
func (vm *VirtualMachine) captureStack() []errz.StackFrame {
	var frames []errz.StackFrame
	add := func(f *frame) {
		if f != nil {
			frames = append(frames, errz.StackFrame{Function: f.name(), Location: f.location()})
		}
	}
	add(vm.cur)
	for i := len(vm.states) - 1; i >= 0; i-- {
		add(vm.states[i].caller)
	}
	return frames
}

// findHandler returns the instruction index of the first handler of f whose
// range covers the executing instruction and whose type matches value.
func (vm *VirtualMachine) findHandler(f *frame, value object.Value) (int, bool, error) {
	for i, e := range f.method.Body.Exceptions {
		if f.start < e.From || f.start >= e.To || !vm.catches(e.Type, value) {
			continue
		}
		target := f.code.IndexOf(e.Target)
		if target < 0 {
			return 0, false, errz.Malformed(nil, "%s: exception %d target %d is not an instruction start",
				f.name(), i, e.Target)
		}
		return target, true, nil
	}
	return 0, false, nil
}

// catches reports whether a handler declared for type t accepts v. A nil,
// any or Object type catches everything.
func (vm *VirtualMachine) catches(t *names.MultiName, v object.Value) bool {
	if t == nil {
		return true
	}
	switch t.Name {
	case "", "*", "Object":
		return true
	}
	if c, ok := vm.lookupGlobal(t); ok {
		return vm.isInstance(v, c)
	}
	if class, ok := object.ErrorClass(v); ok {
		return t.Name == class || t.Name == "Error"
	}
	return false
}

// isInstance implements istype against a class value.
func (vm *VirtualMachine) isInstance(v object.Value, class object.Value) bool {
	switch c := class.(type) {
	case *Class:
		return instanceOf(v, c.prototype)
	case *NativeClass:
		return c.isInstance(v)
	case object.Object:
		if p, ok := c.GetProperty("", "prototype"); ok {
			if proto, ok := p.(object.Object); ok {
				return instanceOf(v, proto)
			}
		}
	}
	return false
}

// instanceOf reports whether proto is on the prototype chain of v.
func instanceOf(v object.Value, proto object.Object) bool {
	p, ok := v.(object.Prototyped)
	if !ok || proto == nil {
		return false
	}
	o := p.Prototype()
	for depth := 0; o != nil && depth < 1024; depth++ {
		if o == proto {
			return true
		}
		next, ok := o.(object.Prototyped)
		if !ok {
			return false
		}
		o = next.Prototype()
	}
	return false
}
