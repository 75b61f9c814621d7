package legacy

import (
	"strings"

	"github.com/deepnoodle-ai/avm/object"
)

func has(obj object.Object, name string) bool {
	_, ok := obj.GetProperty("", name)
	return ok
}

// lookup resolves a variable against the with blocks, innermost first,
// then the scope chain. Dotted paths resolve their first segment as a
// variable and the rest as members.
func (in *Interpreter) lookup(scope []object.Object, withs []withBlock, name string) object.Value {
	for i := len(withs) - 1; i >= 0; i-- {
		if v, ok := withs[i].obj.GetProperty("", name); ok {
			return v
		}
	}
	for i := len(scope) - 1; i >= 0; i-- {
		if v, ok := scope[i].GetProperty("", name); ok {
			return v
		}
	}
	switch name {
	case "_global", "_root", "this":
		return in.global
	}
	if v, ok := in.global.GetProperty("", name); ok {
		return v
	}
	if head, rest, ok := strings.Cut(name, "."); ok && head != "" {
		v := in.lookup(scope, withs, head)
		for _, part := range strings.Split(rest, ".") {
			v = in.getMember(v, part)
		}
		return v
	}
	return object.Undefined
}

func (e *execution) getVariable(name string) object.Value {
	return e.in.lookup(e.scope, e.withs, name)
}

// setVariable assigns an existing variable wherever the scope chain finds
// it. A new variable is created on the global object.
func (e *execution) setVariable(name string, v object.Value) error {
	for i := len(e.withs) - 1; i >= 0; i-- {
		if o := e.withs[i].obj; has(o, name) {
			return o.SetProperty("", name, v)
		}
	}
	for i := len(e.scope) - 1; i >= 0; i-- {
		if o := e.scope[i]; has(o, name) {
			return o.SetProperty("", name, v)
		}
	}
	return e.in.global.SetProperty("", name, v)
}

// setLocal defines a variable in the current function's locals, or on the
// global object at the top level.
func (e *execution) setLocal(name string, v object.Value) error {
	if e.frame != nil {
		return e.frame.Locals.SetProperty("", name, v)
	}
	return e.in.global.SetProperty("", name, v)
}

// declareLocal defines a variable as undefined unless it already exists.
func (e *execution) declareLocal(name string) error {
	var target *object.Dynamic = e.in.global
	if e.frame != nil {
		target = e.frame.Locals
	}
	if target.HasOwn("", name) {
		return nil
	}
	return target.SetProperty("", name, object.Undefined)
}

// deleteVariable removes the first binding of name along the scope chain.
func (e *execution) deleteVariable(name string) bool {
	for i := len(e.withs) - 1; i >= 0; i-- {
		if o := e.withs[i].obj; has(o, name) {
			return o.DeleteProperty("", name)
		}
	}
	for i := len(e.scope) - 1; i >= 0; i-- {
		if o := e.scope[i]; has(o, name) {
			return o.DeleteProperty("", name)
		}
	}
	return false
}

// closure returns the scope chain a function defined here captures,
// including the objects of enclosing with blocks.
func (e *execution) closure() []object.Object {
	scope := make([]object.Object, 0, len(e.scope)+len(e.withs))
	scope = append(scope, e.scope...)
	for _, w := range e.withs {
		scope = append(scope, w.obj)
	}
	return scope
}

func (e *execution) register(r uint8) object.Value {
	if e.frame != nil && len(e.frame.Registers) > 0 {
		if int(r) < len(e.frame.Registers) {
			return e.frame.Registers[r]
		}
	} else if int(r) < GlobalRegisters {
		return e.in.registers[r]
	}
	e.in.logger.Warn().Str("function", e.name).Uint8("register", r).Msg("invalid register")
	return object.Undefined
}

// setRegister writes a register of the current function, or a global
// register when the function has no register bank.
func (e *execution) setRegister(r uint8, v object.Value) {
	if e.frame != nil && len(e.frame.Registers) > 0 {
		if int(r) < len(e.frame.Registers) {
			e.frame.Registers[r] = v
			return
		}
	} else if int(r) < GlobalRegisters {
		e.in.registers[r] = v
		return
	}
	e.in.logger.Warn().Str("function", e.name).Uint8("register", r).Msg("invalid register")
}

// getMember reads a public property of any value. Strings answer length;
// other primitives have no members.
func (in *Interpreter) getMember(target object.Value, name string) object.Value {
	switch t := target.(type) {
	case object.String:
		if name == "length" {
			return object.Int(len([]rune(string(t))))
		}
	case object.Object:
		if object.IsNullish(t) {
			return object.Undefined
		}
		if v, ok := t.GetProperty("", name); ok && v != nil {
			return v
		}
	}
	return object.Undefined
}

func (in *Interpreter) setMember(target object.Value, name string, v object.Value) error {
	if o, ok := target.(object.Object); ok && !object.IsNullish(o) {
		return o.SetProperty("", name, v)
	}
	in.logger.Debug().Str("target", object.ToString(target)).Str("member", name).Msg("member assignment on a primitive ignored")
	return nil
}

// instanceOf reports whether ctor's prototype is on the prototype chain of
// v, or was declared as an interface along it.
func instanceOf(v object.Value, ctor object.Value) bool {
	c, ok := ctor.(object.Object)
	if !ok || object.IsNullish(c) {
		return false
	}
	pv, ok := c.GetProperty("", "prototype")
	if !ok {
		return false
	}
	proto, ok := pv.(object.Object)
	if !ok {
		return false
	}
	p, ok := v.(object.Prototyped)
	if !ok {
		return false
	}
	o := p.Prototype()
	for depth := 0; o != nil && depth < 1024; depth++ {
		if o == proto || implements(o, c) {
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

func implements(proto object.Object, ctor object.Object) bool {
	d, ok := proto.(*object.Dynamic)
	if !ok {
		return false
	}
	list, ok := d.GetOwn("", "__implements__")
	if !ok {
		return false
	}
	arr, ok := list.(object.Object)
	if !ok {
		return false
	}
	for _, iface := range object.ArrayValues(arr) {
		if iface == object.Value(ctor) {
			return true
		}
	}
	return false
}
