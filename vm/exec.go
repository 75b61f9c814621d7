package vm

import (
	"context"
	"math"
	"strings"

	"github.com/deepnoodle-ai/avm/bytecode"
	"github.com/deepnoodle-ai/avm/errz"
	"github.com/deepnoodle-ai/avm/names"
	"github.com/deepnoodle-ai/avm/object"
	"github.com/deepnoodle-ai/avm/op"
)

// exec executes one instruction of f. The returns are handled by eval.
func (vm *VirtualMachine) exec(ctx context.Context, f *frame, insn bytecode.Instruction) error {
	switch insn.Code {
	case op.Nop, op.Label, op.Bkpt, op.BkptLine, op.Debug, op.Timestamp:
		return nil
	case op.DebugLine:
		f.line = insn.Operand(0)
		return nil
	case op.DebugFile:
		file, err := vm.block.StringAt(insn.Operand(0))
		if err != nil {
			return err
		}
		f.file = file
		return nil
	case op.Throw:
		return object.Throw(vm.pop())
	case op.Kill:
		return f.setReg(insn.Operand(0), object.Undefined)

	// Branches
	case op.Jump:
		return vm.jump(ctx, f, insn, insn.Targets[0])
	case op.IfTrue:
		return vm.branch(ctx, f, insn, object.ToBoolean(vm.pop()))
	case op.IfFalse:
		return vm.branch(ctx, f, insn, !object.ToBoolean(vm.pop()))
	case op.IfEq, op.IfNe, op.IfStrictEq, op.IfStrictNe,
		op.IfLt, op.IfLe, op.IfGt, op.IfGe,
		op.IfNlt, op.IfNle, op.IfNgt, op.IfNge:
		b, a := vm.pop(), vm.pop()
		return vm.branch(ctx, f, insn, compare(insn.Code, a, b))
	case op.LookupSwitch:
		target := insn.Targets[0]
		index := object.ToNumber(vm.pop())
		if count := insn.Operand(1); index >= 0 && index <= float64(count) && index == math.Trunc(index) {
			target = insn.Targets[1+int(index)]
		}
		return vm.jump(ctx, f, insn, target)

	// Scope
	case op.PushScope, op.PushWith:
		v := vm.pop()
		if object.IsNullish(v) {
			return object.TypeErrorf("cannot push %s onto the scope chain", object.TypeOf(v))
		}
		return vm.scope.Push(v)
	case op.PopScope:
		_, err := vm.scope.Pop()
		return err
	case op.GetGlobalScope:
		v, err := vm.globalScope(f)
		if err != nil {
			return err
		}
		vm.push(v)
		return nil
	case op.GetScopeObject:
		i := f.scopeFence + insn.Operand(0)
		if i >= vm.scope.TotalSize() {
			return errz.StackFault("scope object %d out of range in %s", insn.Operand(0), f.name())
		}
		v, err := vm.scope.At(i)
		if err != nil {
			return err
		}
		vm.push(v)
		return nil

	// Enumeration
	case op.HasNext:
		index := int(object.ToInt32(vm.pop()))
		keys, err := vm.keys(vm.pop())
		if err != nil {
			return err
		}
		if index >= 0 && index < len(keys) {
			vm.push(object.Int(index + 1))
		} else {
			vm.push(object.Int(0))
		}
		return nil
	case op.HasNext2:
		objReg, indexReg := insn.Operand(0), insn.Operand(1)
		obj, err := f.reg(objReg)
		if err != nil {
			return err
		}
		iv, err := f.reg(indexReg)
		if err != nil {
			return err
		}
		keys, err := vm.keys(obj)
		if err != nil {
			return err
		}
		if index := int(object.ToInt32(iv)); index >= 0 && index < len(keys) {
			vm.push(object.True)
			return f.setReg(indexReg, object.Int(index+1))
		}
		vm.push(object.False)
		if err := f.setReg(objReg, object.Null); err != nil {
			return err
		}
		return f.setReg(indexReg, object.Int(0))
	case op.NextName, op.NextValue:
		index := int(object.ToInt32(vm.pop())) - 1
		target := vm.pop()
		keys, err := vm.keys(target)
		if err != nil {
			return err
		}
		if index < 0 || index >= len(keys) {
			vm.push(object.Undefined)
			return nil
		}
		if insn.Code == op.NextName {
			vm.push(object.String(keys[index]))
			return nil
		}
		obj, err := vm.objectOf(target)
		if err != nil {
			return err
		}
		v, _ := obj.GetProperty("", keys[index])
		vm.push(v)
		return nil

	// Constants
	case op.PushNull:
		vm.push(object.Null)
	case op.PushUndefined:
		vm.push(object.Undefined)
	case op.PushTrue:
		vm.push(object.True)
	case op.PushFalse:
		vm.push(object.False)
	case op.PushNaN:
		vm.push(object.NaN)
	case op.PushByte:
		vm.push(object.Int(int8(insn.Operand(0))))
	case op.PushShort:
		vm.push(object.Int(int16(insn.Operand(0))))
	case op.PushString:
		s, err := vm.block.StringAt(insn.Operand(0))
		if err != nil {
			return err
		}
		vm.push(object.String(s))
	case op.PushInt:
		n, err := vm.block.Int(insn.Operand(0))
		if err != nil {
			return err
		}
		vm.push(object.Int(n))
	case op.PushUint:
		n, err := vm.block.Uint(insn.Operand(0))
		if err != nil {
			return err
		}
		vm.push(object.Uint(n))
	case op.PushDouble:
		n, err := vm.block.Double(insn.Operand(0))
		if err != nil {
			return err
		}
		vm.push(object.Number(n))
	case op.PushNamespace:
		ns, err := vm.block.Namespace(insn.Operand(0))
		if err != nil {
			return err
		}
		vm.push(object.NewNamespace(ns))

	// Stack
	case op.Pop:
		vm.pop()
	case op.Dup:
		v, err := vm.stack.Top(0)
		if err != nil {
			return err
		}
		vm.push(v)
	case op.Swap:
		b, a := vm.pop(), vm.pop()
		vm.push(b)
		vm.push(a)

	// Functions and calls
	case op.NewFunction:
		method, err := vm.block.Method(insn.Operand(0))
		if err != nil {
			return err
		}
		scope, err := vm.capture(f)
		if err != nil {
			return err
		}
		fn := vm.newFunction(method, scope, nil)
		proto := object.NewDynamic("Object", vm.objectProto)
		proto.DefineHidden("", "constructor", fn)
		fn.DefineHidden("", "prototype", proto)
		vm.push(fn)
	case op.Call:
		args, err := vm.popArgs(insn.Operand(0))
		if err != nil {
			return err
		}
		this := vm.pop()
		fn := vm.pop()
		return vm.call(ctx, fn, this, args, retPush)
	case op.Construct:
		args, err := vm.popArgs(insn.Operand(0))
		if err != nil {
			return err
		}
		return vm.construct(ctx, vm.pop(), args)
	case op.ConstructProp:
		args, err := vm.popArgs(insn.Operand(1))
		if err != nil {
			return err
		}
		n, err := vm.multiname(insn.Operand(0))
		if err != nil {
			return err
		}
		recv := vm.pop()
		ctor, found, err := vm.member(ctx, recv, n)
		if err != nil {
			return err
		}
		if !found {
			return object.TypeErrorf("%s is not a constructor", n.MultiName)
		}
		return vm.construct(ctx, ctor, args)
	case op.CallProperty, op.CallPropLex, op.CallPropVoid:
		args, err := vm.popArgs(insn.Operand(1))
		if err != nil {
			return err
		}
		n, err := vm.multiname(insn.Operand(0))
		if err != nil {
			return err
		}
		recv := vm.pop()
		fn, found, err := vm.member(ctx, recv, n)
		if err != nil {
			return err
		}
		if !found {
			return object.TypeErrorf("%s is not a function", n.MultiName)
		}
		this := recv
		if insn.Code == op.CallPropLex {
			this = object.Null
		}
		ret := retPush
		if insn.Code == op.CallPropVoid {
			ret = retDiscard
		}
		return vm.call(ctx, fn, this, args, ret)
	case op.CallMethod:
		args, err := vm.popArgs(insn.Operand(1))
		if err != nil {
			return err
		}
		recv := vm.pop()
		cls := vm.classOf(recv)
		if cls == nil {
			return object.TypeErrorf("%s has no method table", describe(recv))
		}
		fn, ok := cls.method(insn.Operand(0))
		if !ok {
			return object.Throwf("ReferenceError", "%s has no method with dispatch id %d", cls.def.QualifiedName(), insn.Operand(0))
		}
		return vm.pushCall(fn, recv, args, retPush, nil)
	case op.CallStatic:
		args, err := vm.popArgs(insn.Operand(1))
		if err != nil {
			return err
		}
		method, err := vm.block.Method(insn.Operand(0))
		if err != nil {
			return err
		}
		recv := vm.pop()
		return vm.pushCall(vm.newFunction(method, nil, f.home), recv, args, retPush, nil)
	case op.CallSuper, op.CallSuperVoid:
		args, err := vm.popArgs(insn.Operand(1))
		if err != nil {
			return err
		}
		n, err := vm.multiname(insn.Operand(0))
		if err != nil {
			return err
		}
		recv := vm.pop()
		proto, err := vm.superPrototype(f)
		if err != nil {
			return err
		}
		fn, found, err := vm.valueOf(ctx, proto, recv, n)
		if err != nil {
			return err
		}
		if !found {
			return object.TypeErrorf("super.%s is not a function", n.Name)
		}
		ret := retPush
		if insn.Code == op.CallSuperVoid {
			ret = retDiscard
		}
		return vm.call(ctx, fn, recv, args, ret)
	case op.GetSuper:
		n, err := vm.multiname(insn.Operand(0))
		if err != nil {
			return err
		}
		recv := vm.pop()
		proto, err := vm.superPrototype(f)
		if err != nil {
			return err
		}
		v, _, err := vm.valueOf(ctx, proto, recv, n)
		if err != nil {
			return err
		}
		vm.push(v)
	case op.SetSuper:
		value := vm.pop()
		n, err := vm.multiname(insn.Operand(0))
		if err != nil {
			return err
		}
		recv := vm.pop()
		proto, err := vm.superPrototype(f)
		if err != nil {
			return err
		}
		_, v, found, err := vm.find(proto, n)
		if err != nil {
			return err
		}
		if acc, ok := v.(*object.Accessor); found && ok && acc.Setter != nil {
			return vm.call(ctx, acc.Setter, recv, []object.Value{value}, retDiscard)
		}
		return vm.setProperty(ctx, recv, n, value, false)
	case op.ConstructSuper:
		args, err := vm.popArgs(insn.Operand(0))
		if err != nil {
			return err
		}
		recv := vm.pop()
		if f.home == nil {
			return object.Throwf("VerifyError", "constructsuper outside a class in %s", f.name())
		}
		switch base := f.home.base.(type) {
		case *Class:
			return vm.pushCall(base.ctor, recv, args, retDiscard, nil)
		case *NativeClass:
			base.initInstance(recv, args)
		}
	case op.ApplyType:
		if _, err := vm.popArgs(insn.Operand(0)); err != nil {
			return err
		}
		// Parameterized types share their base's runtime representation.
		vm.push(vm.pop())
	case op.CallSuperID, op.CallInterface, op.GetDescendants, op.CheckFilter, op.Dxns, op.DxnsLate:
		return errz.Newf(errz.ErrRuntime, nil, "%s is not supported", insn.Code)

	// Object creation
	case op.NewObject:
		n := insn.Operand(0)
		pairs, err := vm.popArgs(2 * n)
		if err != nil {
			return err
		}
		obj := object.NewDynamic("Object", vm.objectProto)
		for i := 0; i < n; i++ {
			if err := obj.SetProperty("", object.ToString(pairs[2*i]), pairs[2*i+1]); err != nil {
				return err
			}
		}
		vm.push(obj)
	case op.NewArray:
		values, err := vm.popArgs(insn.Operand(0))
		if err != nil {
			return err
		}
		vm.push(vm.newArray(values))
	case op.NewActivation:
		scope, err := vm.capture(f)
		if err != nil {
			return err
		}
		vm.push(vm.newActivation(f.method.Body, scope))
	case op.NewClass:
		def, err := vm.block.Class(insn.Operand(0))
		if err != nil {
			return err
		}
		base := vm.pop()
		scope, err := vm.capture(f)
		if err != nil {
			return err
		}
		cls, err := vm.newClass(def, base, scope)
		if err != nil {
			return err
		}
		if def.StaticInit == nil {
			vm.push(cls)
			return nil
		}
		inner := append(scope, cls)
		return vm.pushCall(vm.newFunction(def.StaticInit, inner, cls), cls, nil, retResult, cls)
	case op.NewCatch:
		handlers := f.method.Body.Exceptions
		i := insn.Operand(0)
		if i < 0 || i >= len(handlers) {
			return errz.Malformed(nil, "%s: newcatch refers to exception %d of %d", f.name(), i, len(handlers))
		}
		vm.push(vm.newCatch(handlers[i]))

	// Properties
	case op.FindPropStrict, op.FindProperty:
		n, err := vm.multiname(insn.Operand(0))
		if err != nil {
			return err
		}
		obj, err := vm.findProperty(f, n, insn.Code == op.FindPropStrict)
		if err != nil {
			return err
		}
		vm.push(obj)
	case op.FindDef:
		if _, err := vm.staticName(insn.Operand(0)); err != nil {
			return err
		}
		vm.push(vm.global)
	case op.GetLex:
		n, err := vm.staticName(insn.Operand(0))
		if err != nil {
			return err
		}
		obj, err := vm.findProperty(f, n, true)
		if err != nil {
			return err
		}
		return vm.getProperty(ctx, obj, n)
	case op.GetProperty:
		n, err := vm.multiname(insn.Operand(0))
		if err != nil {
			return err
		}
		return vm.getProperty(ctx, vm.pop(), n)
	case op.SetProperty, op.InitProperty:
		value := vm.pop()
		n, err := vm.multiname(insn.Operand(0))
		if err != nil {
			return err
		}
		return vm.setProperty(ctx, vm.pop(), n, value, insn.Code == op.InitProperty)
	case op.DeleteProperty:
		n, err := vm.multiname(insn.Operand(0))
		if err != nil {
			return err
		}
		ok, err := vm.deleteProperty(vm.pop(), n)
		if err != nil {
			return err
		}
		vm.push(object.Bool(ok))

	// Registers
	case op.GetLocal:
		return vm.getLocal(f, insn.Operand(0))
	case op.GetLocal0, op.GetLocal1, op.GetLocal2, op.GetLocal3:
		return vm.getLocal(f, int(insn.Code-op.GetLocal0))
	case op.SetLocal:
		return f.setReg(insn.Operand(0), vm.pop())
	case op.SetLocal0, op.SetLocal1, op.SetLocal2, op.SetLocal3:
		return f.setReg(int(insn.Code-op.SetLocal0), vm.pop())
	case op.IncLocal, op.DecLocal, op.IncLocalI, op.DecLocalI:
		i := insn.Operand(0)
		v, err := f.reg(i)
		if err != nil {
			return err
		}
		return f.setReg(i, incdec(insn.Code, v))

	// Slots
	case op.GetSlot:
		obj := vm.pop()
		s, ok := obj.(object.Slotted)
		if !ok {
			return object.TypeErrorf("%s has no slots", describe(obj))
		}
		v, err := s.Slot(insn.Operand(0))
		if err != nil {
			return err
		}
		vm.push(v)
	case op.SetSlot:
		value := vm.pop()
		obj := vm.pop()
		s, ok := obj.(object.Slotted)
		if !ok {
			return object.TypeErrorf("%s has no slots", describe(obj))
		}
		return s.SetSlot(insn.Operand(0), value)
	case op.GetGlobalSlot, op.SetGlobalSlot:
		g, err := vm.globalScope(f)
		if err != nil {
			return err
		}
		s, ok := g.(object.Slotted)
		if !ok {
			return object.TypeErrorf("global scope has no slots")
		}
		if insn.Code == op.SetGlobalSlot {
			return s.SetSlot(insn.Operand(0), vm.pop())
		}
		v, err := s.Slot(insn.Operand(0))
		if err != nil {
			return err
		}
		vm.push(v)

	// Conversions
	case op.ConvertS:
		vm.push(object.String(object.ToString(vm.pop())))
	case op.CoerceS:
		v := vm.pop()
		if object.IsNullish(v) {
			vm.push(object.Null)
		} else {
			vm.push(object.String(object.ToString(v)))
		}
	case op.ConvertI, op.CoerceI:
		vm.push(object.Int(object.ToInt32(vm.pop())))
	case op.ConvertU, op.CoerceU:
		vm.push(object.Uint(object.ToUint32(vm.pop())))
	case op.ConvertD, op.CoerceD:
		vm.push(object.Number(object.ToNumber(vm.pop())))
	case op.ConvertB, op.CoerceB:
		vm.push(object.Bool(object.ToBoolean(vm.pop())))
	case op.ConvertO:
		v, err := vm.stack.Top(0)
		if err != nil {
			return err
		}
		if object.IsNullish(v) {
			return object.TypeErrorf("cannot convert %s to an object", object.TypeOf(v))
		}
	case op.CoerceO:
		if v := vm.pop(); v == object.Undefined {
			vm.push(object.Null)
		} else {
			vm.push(v)
		}
	case op.CoerceA:
		return nil
	case op.Coerce:
		n, err := vm.staticName(insn.Operand(0))
		if err != nil {
			return err
		}
		v, err := vm.coerce(vm.pop(), n.MultiName)
		if err != nil {
			return err
		}
		vm.push(v)
	case op.EscXElem, op.EscXAttr:
		r := xmlElemEscaper
		if insn.Code == op.EscXAttr {
			r = xmlAttrEscaper
		}
		vm.push(object.String(r.Replace(object.ToString(vm.pop()))))

	// Type tests
	case op.AsType, op.IsType:
		n, err := vm.staticName(insn.Operand(0))
		if err != nil {
			return err
		}
		class, err := vm.classByName(n.MultiName)
		if err != nil {
			return err
		}
		vm.typeTest(insn.Code == op.IsType, vm.pop(), class)
	case op.AsTypeLate, op.IsTypeLate:
		class := vm.pop()
		v := vm.pop()
		if _, ok := class.(object.Object); !ok {
			return object.TypeErrorf("%s is not a class", describe(class))
		}
		vm.typeTest(insn.Code == op.IsTypeLate, v, class)
	case op.InstanceOf:
		class := vm.pop()
		v := vm.pop()
		c, ok := class.(object.Object)
		if !ok {
			return object.TypeErrorf("%s is not a class or function", describe(class))
		}
		p, _ := c.GetProperty("", "prototype")
		proto, _ := p.(object.Object)
		vm.push(object.Bool(instanceOf(v, proto)))
	case op.In:
		target := vm.pop()
		name := vm.pop()
		obj, ok := target.(object.Object)
		if !ok {
			return object.TypeErrorf("cannot use 'in' on %s", object.TypeOf(target))
		}
		_, found := obj.GetProperty("", object.ToString(name))
		vm.push(object.Bool(found))

	// Arithmetic
	case op.Increment, op.Decrement, op.IncrementI, op.DecrementI:
		vm.push(incdec(insn.Code, vm.pop()))
	case op.Negate:
		vm.push(object.Negate(vm.pop()))
	case op.NegateI:
		vm.push(object.Int(-object.ToInt32(vm.pop())))
	case op.TypeOf:
		vm.push(object.String(object.TypeOf(vm.pop())))
	case op.Not:
		vm.push(object.Bool(!object.ToBoolean(vm.pop())))
	case op.BitNot:
		vm.push(object.BitNot(vm.pop()))
	case op.Add, op.Subtract, op.Multiply, op.Divide, op.Modulo,
		op.LShift, op.RShift, op.URShift, op.BitAnd, op.BitOr, op.BitXor,
		op.AddI, op.SubtractI, op.MultiplyI:
		b, a := vm.pop(), vm.pop()
		vm.push(binary(insn.Code, a, b))
	case op.Equals, op.StrictEquals, op.LessThan, op.LessEquals, op.GreaterThan, op.GreaterEquals:
		b, a := vm.pop(), vm.pop()
		vm.push(object.Bool(compare(insn.Code, a, b)))

	default:
		return errz.Malformed(errz.ErrUnknownOpcode, "%s: unknown opcode 0x%02x at offset %d", f.name(), uint8(insn.Code), insn.Offset)
	}
	return nil
}

// jump moves f to the instruction at target. Backward transfers are where
// loops spin, so they check cancellation and the time budget.
func (vm *VirtualMachine) jump(ctx context.Context, f *frame, insn bytecode.Instruction, target int) error {
	index := f.code.IndexOf(target)
	if index < 0 {
		return errz.Malformed(nil, "%s: branch at offset %d targets %d, which is not an instruction start",
			f.name(), insn.Offset, target)
	}
	if target <= insn.Offset {
		if err := vm.checkBudget(ctx); err != nil {
			return err
		}
	}
	f.ip = index
	return nil
}

func (vm *VirtualMachine) branch(ctx context.Context, f *frame, insn bytecode.Instruction, taken bool) error {
	if !taken {
		return nil
	}
	return vm.jump(ctx, f, insn, insn.Targets[0])
}

// compare evaluates the comparison of a conditional branch or a comparison
// opcode. The negated branches differ from their positive forms when an
// operand is NaN.
func compare(code op.Code, a, b object.Value) bool {
	switch code {
	case op.IfEq, op.Equals:
		return object.Equals(a, b)
	case op.IfNe:
		return !object.Equals(a, b)
	case op.IfStrictEq, op.StrictEquals:
		return object.StrictEquals(a, b)
	case op.IfStrictNe:
		return !object.StrictEquals(a, b)
	case op.IfLt, op.LessThan:
		return object.LessThan(a, b, false)
	case op.IfNlt:
		return !object.LessThan(a, b, false)
	case op.IfLe, op.LessEquals:
		return !object.LessThan(b, a, true)
	case op.IfNle:
		return object.LessThan(b, a, true)
	case op.IfGt, op.GreaterThan:
		return object.LessThan(b, a, false)
	case op.IfNgt:
		return !object.LessThan(b, a, false)
	case op.IfGe, op.GreaterEquals:
		return !object.LessThan(a, b, true)
	case op.IfNge:
		return object.LessThan(a, b, true)
	}
	return false
}

func binary(code op.Code, a, b object.Value) object.Value {
	switch code {
	case op.Add:
		return object.Add(a, b)
	case op.Subtract:
		return object.Subtract(a, b)
	case op.Multiply:
		return object.Multiply(a, b)
	case op.Divide:
		return object.Divide(a, b)
	case op.Modulo:
		return object.Modulo(a, b)
	case op.LShift:
		return object.LeftShift(a, b)
	case op.RShift:
		return object.RightShift(a, b)
	case op.URShift:
		return object.UnsignedRightShift(a, b)
	case op.BitAnd:
		return object.BitAnd(a, b)
	case op.BitOr:
		return object.BitOr(a, b)
	case op.BitXor:
		return object.BitXor(a, b)
	case op.AddI:
		return object.Int(object.ToInt32(a) + object.ToInt32(b))
	case op.SubtractI:
		return object.Int(object.ToInt32(a) - object.ToInt32(b))
	case op.MultiplyI:
		return object.Int(object.ToInt32(a) * object.ToInt32(b))
	}
	return object.Undefined
}

// incdec applies an increment or decrement opcode to v.
func incdec(code op.Code, v object.Value) object.Value {
	switch code {
	case op.Increment, op.IncLocal:
		return object.NumberValue(object.ToNumber(v) + 1)
	case op.Decrement, op.DecLocal:
		return object.NumberValue(object.ToNumber(v) - 1)
	case op.IncrementI, op.IncLocalI:
		return object.Int(object.ToInt32(v) + 1)
	case op.DecrementI, op.DecLocalI:
		return object.Int(object.ToInt32(v) - 1)
	}
	return v
}

var (
	xmlElemEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")
	xmlAttrEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;",
		`"`, "&quot;", "\n", "&#xA;", "\r", "&#xD;", "\t", "&#x9;")
)

func (vm *VirtualMachine) getLocal(f *frame, i int) error {
	v, err := f.reg(i)
	if err != nil {
		return err
	}
	vm.push(v)
	return nil
}

// capture returns the scope chain visible to f, outermost first, for a
// closure created in f.
func (vm *VirtualMachine) capture(f *frame) ([]object.Value, error) {
	total := vm.scope.TotalSize()
	scope := make([]object.Value, 0, total-f.scopeBase)
	for i := f.scopeBase; i < total; i++ {
		v, err := vm.scope.At(i)
		if err != nil {
			return nil, err
		}
		scope = append(scope, v)
	}
	return scope, nil
}

// globalScope returns the outermost scope of f, or the global object when
// f's scope chain is empty.
func (vm *VirtualMachine) globalScope(f *frame) (object.Value, error) {
	if f.scopeBase < vm.scope.TotalSize() {
		return vm.scope.At(f.scopeBase)
	}
	return vm.global, nil
}

// keys returns the enumerable property names of v.
func (vm *VirtualMachine) keys(v object.Value) ([]string, error) {
	if object.IsNullish(v) {
		return nil, nil
	}
	obj, err := vm.objectOf(v)
	if err != nil {
		return nil, err
	}
	if e, ok := obj.(object.Enumerable); ok {
		return e.Keys(), nil
	}
	return nil, nil
}

// member reads property n of recv for a call through it.
func (vm *VirtualMachine) member(ctx context.Context, recv object.Value, n qname) (object.Value, bool, error) {
	holder, err := vm.objectOf(recv)
	if err != nil {
		return nil, false, err
	}
	return vm.valueOf(ctx, holder, recv, n)
}

// classOf returns the script class whose prototype v was created with.
func (vm *VirtualMachine) classOf(v object.Value) *Class {
	p, ok := v.(object.Prototyped)
	if !ok {
		return nil
	}
	return vm.protos[p.Prototype()]
}

func (vm *VirtualMachine) superPrototype(f *frame) (object.Object, error) {
	if f.home == nil {
		return nil, object.Throwf("VerifyError", "%s is not a class method and has no super", f.name())
	}
	return f.home.superPrototype(), nil
}

// classByName resolves a type name to its class object.
func (vm *VirtualMachine) classByName(mn *names.MultiName) (object.Value, error) {
	if v, ok := vm.lookupGlobal(mn); ok && !object.IsNullish(v) {
		return v, nil
	}
	return nil, object.Throwf("VerifyError", "class %s could not be found", mn)
}

// coerce converts v to the type named by mn, throwing TypeError when an
// object is not an instance of the class.
func (vm *VirtualMachine) coerce(v object.Value, mn *names.MultiName) (object.Value, error) {
	switch mn.Name {
	case "", "*":
		return v, nil
	case "int":
		return object.Int(object.ToInt32(v)), nil
	case "uint":
		return object.Uint(object.ToUint32(v)), nil
	case "Number":
		return object.Number(object.ToNumber(v)), nil
	case "Boolean":
		return object.Bool(object.ToBoolean(v)), nil
	case "String":
		if object.IsNullish(v) {
			return object.Null, nil
		}
		return object.String(object.ToString(v)), nil
	}
	class, err := vm.classByName(mn)
	if err != nil {
		return nil, err
	}
	if object.IsNullish(v) {
		return object.Null, nil
	}
	if !vm.isInstance(v, class) {
		return nil, object.TypeErrorf("type coercion failed: cannot convert %s to %s", describe(v), mn.Name)
	}
	return v, nil
}

func (vm *VirtualMachine) typeTest(is bool, v, class object.Value) {
	ok := vm.isInstance(v, class)
	switch {
	case is:
		vm.push(object.Bool(ok))
	case ok:
		vm.push(v)
	default:
		vm.push(object.Null)
	}
}
