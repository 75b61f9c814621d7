package legacy

import (
	"context"
	"fmt"
	"math"

	"github.com/deepnoodle-ai/avm/bytecode"
	"github.com/deepnoodle-ai/avm/cursor"
	"github.com/deepnoodle-ai/avm/errz"
	"github.com/deepnoodle-ai/avm/object"
	"github.com/deepnoodle-ai/avm/op"
)

// timelineActions drive playback and have no meaning without a display
// list. They are skipped after popping their operands.
var timelineActions = map[op.Action]int{
	op.ActionNextFrame:    0,
	op.ActionPrevFrame:    0,
	op.ActionPlay:         0,
	op.ActionStop:         0,
	op.ActionGotoFrame:    0,
	op.ActionGetURL:       0,
	op.ActionWaitForFrame: 0,
	op.ActionSetTarget:    0,
	op.ActionGotoLabel:    0,
	op.ActionCall:         1,
	op.ActionGotoFrame2:   1,
	op.ActionGetURL2:      2,
}

func (in *Interpreter) push(v object.Value) {
	if v == nil {
		v = object.Undefined
	}
	if err := in.stack.Push(v); err != nil && in.fault == nil {
		in.fault = err
	}
}

func (in *Interpreter) pop() object.Value {
	v, err := in.stack.Pop()
	if err != nil {
		if in.fault == nil {
			in.fault = err
		}
		return object.Undefined
	}
	return v
}

func (in *Interpreter) popString() string {
	return object.ToString(in.pop())
}

// popArgs pops a count and then that many values. The first value popped
// is the first argument.
func (in *Interpreter) popArgs() ([]object.Value, error) {
	n := int(object.ToInteger(in.pop()))
	if n < 0 || n > in.stack.Size() {
		return nil, errz.StackFault("%d argument(s) requested, %d available", n, in.stack.Size())
	}
	args := make([]object.Value, n)
	for i := range args {
		args[i] = in.pop()
	}
	return args, nil
}

// exec runs one action. Control flow actions set e.next.
func (in *Interpreter) exec(ctx context.Context, e *execution, rec bytecode.ActionRecord) error {
	switch rec.Action {
	case op.ActionEnd:
		e.done = true

	// Arithmetic
	case op.ActionAdd:
		b, a := in.pop(), in.pop()
		in.push(object.NumberValue(object.ToNumber(a) + object.ToNumber(b)))
	case op.ActionAdd2:
		b, a := in.pop(), in.pop()
		in.push(object.Add(a, b))
	case op.ActionSubtract:
		b, a := in.pop(), in.pop()
		in.push(object.Subtract(a, b))
	case op.ActionMultiply:
		b, a := in.pop(), in.pop()
		in.push(object.Multiply(a, b))
	case op.ActionDivide:
		b, a := in.pop(), in.pop()
		in.push(object.Divide(a, b))
	case op.ActionModulo:
		b, a := in.pop(), in.pop()
		in.push(object.Modulo(a, b))
	case op.ActionIncrement:
		in.push(object.NumberValue(object.ToNumber(in.pop()) + 1))
	case op.ActionDecrement:
		in.push(object.NumberValue(object.ToNumber(in.pop()) - 1))
	case op.ActionToInteger:
		in.push(object.NumberValue(object.ToInteger(in.pop())))
	case op.ActionToNumber:
		in.push(object.NumberValue(object.ToNumber(in.pop())))
	case op.ActionToString:
		in.push(object.String(object.ToString(in.pop())))

	// Comparison and logic
	case op.ActionEquals:
		b, a := in.pop(), in.pop()
		in.push(object.Bool(object.ToNumber(a) == object.ToNumber(b)))
	case op.ActionLess:
		b, a := in.pop(), in.pop()
		in.push(object.Bool(object.ToNumber(a) < object.ToNumber(b)))
	case op.ActionEquals2:
		b, a := in.pop(), in.pop()
		in.push(object.Bool(object.Equals(a, b)))
	case op.ActionStrictEquals:
		b, a := in.pop(), in.pop()
		in.push(object.Bool(object.StrictEquals(a, b)))
	case op.ActionLess2:
		b, a := in.pop(), in.pop()
		in.push(lessThan(a, b))
	case op.ActionGreater:
		b, a := in.pop(), in.pop()
		in.push(lessThan(b, a))
	case op.ActionAnd:
		b, a := in.pop(), in.pop()
		in.push(object.Bool(object.ToBoolean(a) && object.ToBoolean(b)))
	case op.ActionOr:
		b, a := in.pop(), in.pop()
		in.push(object.Bool(object.ToBoolean(a) || object.ToBoolean(b)))
	case op.ActionNot:
		in.push(object.Bool(!object.ToBoolean(in.pop())))

	// Strings
	case op.ActionStringEquals:
		b, a := in.popString(), in.popString()
		in.push(object.Bool(a == b))
	case op.ActionStringLess:
		b, a := in.popString(), in.popString()
		in.push(object.Bool(a < b))
	case op.ActionStringGreater:
		b, a := in.popString(), in.popString()
		in.push(object.Bool(a > b))
	case op.ActionStringAdd:
		b, a := in.popString(), in.popString()
		in.push(object.String(a + b))
	case op.ActionStringLength:
		in.push(object.Int(len([]rune(in.popString()))))
	case op.ActionStringExtract:
		count := int(object.ToInteger(in.pop()))
		index := int(object.ToInteger(in.pop()))
		in.push(object.String(substring(in.popString(), index, count)))
	case op.ActionCharToAscii:
		s := []rune(in.popString())
		if len(s) == 0 {
			in.push(object.Int(0))
		} else {
			in.push(object.Int(s[0]))
		}
	case op.ActionAsciiToChar:
		in.push(object.String(string(rune(object.ToInt32(in.pop())))))

	// Bitwise
	case op.ActionBitAnd:
		b, a := in.pop(), in.pop()
		in.push(object.BitAnd(a, b))
	case op.ActionBitOr:
		b, a := in.pop(), in.pop()
		in.push(object.BitOr(a, b))
	case op.ActionBitXor:
		b, a := in.pop(), in.pop()
		in.push(object.BitXor(a, b))
	case op.ActionBitLShift:
		b, a := in.pop(), in.pop()
		in.push(object.LeftShift(a, b))
	case op.ActionBitRShift:
		b, a := in.pop(), in.pop()
		in.push(object.RightShift(a, b))
	case op.ActionBitURShift:
		b, a := in.pop(), in.pop()
		in.push(object.UnsignedRightShift(a, b))

	// Stack
	case op.ActionPush:
		return in.pushValues(e, rec.Payload)
	case op.ActionPop:
		in.pop()
	case op.ActionPushDuplicate:
		v, err := in.stack.Top(0)
		if err != nil {
			return err
		}
		in.push(v)
	case op.ActionStackSwap:
		a, b := in.pop(), in.pop()
		in.push(a)
		in.push(b)
	case op.ActionStoreRegister:
		if len(rec.Payload) < 1 {
			return errz.Malformed(nil, "StoreRegister without register number")
		}
		v, err := in.stack.Top(0)
		if err != nil {
			return err
		}
		e.setRegister(rec.Payload[0], v)
	case op.ActionConstantPool:
		pool, err := decodeConstantPool(rec.Payload)
		if err != nil {
			return err
		}
		in.pool = pool

	// Variables
	case op.ActionGetVariable:
		in.push(e.getVariable(in.popString()))
	case op.ActionSetVariable:
		v := in.pop()
		return e.setVariable(in.popString(), v)
	case op.ActionDefineLocal:
		v := in.pop()
		return e.setLocal(in.popString(), v)
	case op.ActionDefineLocal2:
		return e.declareLocal(in.popString())
	case op.ActionDelete:
		name := in.popString()
		target := in.pop()
		deleted := false
		if o, ok := target.(object.Object); ok {
			deleted = o.DeleteProperty("", name)
		}
		in.push(object.Bool(deleted))
	case op.ActionDelete2:
		in.push(object.Bool(e.deleteVariable(in.popString())))

	// Members and objects
	case op.ActionGetMember:
		name := in.popString()
		in.push(in.getMember(in.pop(), name))
	case op.ActionSetMember:
		v := in.pop()
		name := in.popString()
		return in.setMember(in.pop(), name, v)
	case op.ActionInitArray:
		args, err := in.popArgs()
		if err != nil {
			return err
		}
		in.push(in.newArray(args))
	case op.ActionInitObject:
		n := int(object.ToInteger(in.pop()))
		if n < 0 || 2*n > in.stack.Size() {
			return errz.StackFault("%d member(s) requested, %d value(s) available", n, in.stack.Size())
		}
		obj := object.NewDynamic("Object", in.objectProto)
		for i := 0; i < n; i++ {
			v := in.pop()
			if err := obj.SetProperty("", in.popString(), v); err != nil {
				return err
			}
		}
		in.push(obj)
	case op.ActionTypeOf:
		in.push(object.String(object.TypeOf(in.pop())))
	case op.ActionInstanceOf:
		ctor := in.pop()
		in.push(object.Bool(instanceOf(in.pop(), ctor)))
	case op.ActionCastOp:
		obj := in.pop()
		if instanceOf(obj, in.pop()) {
			in.push(obj)
		} else {
			in.push(object.Null)
		}
	case op.ActionImplementsOp:
		ctor := in.pop()
		ifaces, err := in.popArgs()
		if err != nil {
			return err
		}
		if c, ok := ctor.(object.Object); ok {
			if proto, ok := in.getMember(c, "prototype").(*object.Dynamic); ok {
				proto.DefineHidden("", "__implements__", in.newArray(ifaces))
			}
		}
	case op.ActionExtends:
		super := in.pop()
		sub, ok := in.pop().(object.Object)
		if !ok {
			in.logger.Warn().Msg("extends: subclass is not an object")
			return nil
		}
		var parent object.Object = in.objectProto
		if p, ok := in.getMember(super, "prototype").(object.Object); ok {
			parent = p
		}
		proto := object.NewDynamic("Object", parent)
		proto.DefineHidden("", "__constructor__", super)
		proto.DefineHidden("", "constructor", sub)
		return sub.SetProperty("", "prototype", proto)
	case op.ActionEnumerate:
		in.enumerate(e.getVariable(in.popString()))
	case op.ActionEnumerate2:
		in.enumerate(in.pop())
	case op.ActionTargetPath:
		in.pop()
		in.push(object.Undefined)

	// Calls
	case op.ActionCallFunction:
		name := in.popString()
		args, err := in.popArgs()
		if err != nil {
			return err
		}
		v, err := in.callValue(ctx, e.getVariable(name), nil, args)
		if err != nil {
			return err
		}
		in.push(v)
	case op.ActionCallMethod:
		name := in.pop()
		target := in.pop()
		args, err := in.popArgs()
		if err != nil {
			return err
		}
		fn, this := target, object.Value(nil)
		if s := object.ToString(name); name != object.Undefined && s != "" {
			fn, this = in.getMember(target, s), target
		}
		v, err := in.callValue(ctx, fn, this, args)
		if err != nil {
			return err
		}
		in.push(v)
	case op.ActionNewObject:
		name := in.popString()
		args, err := in.popArgs()
		if err != nil {
			return err
		}
		v, err := in.construct(ctx, e.getVariable(name), args)
		if err != nil {
			return err
		}
		in.push(v)
	case op.ActionNewMethod:
		name := in.pop()
		target := in.pop()
		args, err := in.popArgs()
		if err != nil {
			return err
		}
		ctor := target
		if s := object.ToString(name); name != object.Undefined && s != "" {
			ctor = in.getMember(target, s)
		}
		v, err := in.construct(ctx, ctor, args)
		if err != nil {
			return err
		}
		in.push(v)
	case op.ActionDefineFunction, op.ActionDefineFunction2:
		return in.defineFunction(e, rec)
	case op.ActionReturn:
		e.result = in.pop()
		e.returning = true
		e.next = e.stop
		if n := len(e.tries); n > 0 && e.tries[n-1].Phase == PhaseEnd {
			// A return in finally discards the exception the block
			// would rethrow.
			e.tries[n-1].uncaught = nil
		}

	// Control flow
	case op.ActionJump:
		target, ok := rec.BranchTarget()
		if !ok {
			return errz.Malformed(nil, "Jump without offset")
		}
		return in.jump(ctx, e, rec, target)
	case op.ActionIf:
		target, ok := rec.BranchTarget()
		if !ok {
			return errz.Malformed(nil, "If without offset")
		}
		if object.ToBoolean(in.pop()) {
			return in.jump(ctx, e, rec, target)
		}
	case op.ActionTry:
		t, err := decodeTry(rec.Payload, rec.End())
		if err != nil {
			return err
		}
		if t.AfterOffset > len(e.code) {
			return errz.Malformed(nil, "try block ends at %d past the buffer end %d", t.AfterOffset, len(e.code))
		}
		t.savedStop = e.stop
		e.stop = t.CatchOffset
		e.tries = append(e.tries, t)
	case op.ActionThrow:
		return object.Throw(in.pop())
	case op.ActionWith:
		return in.with(e, rec)

	// Host interaction
	case op.ActionTrace:
		in.writeTrace(object.ToString(in.pop()))
	case op.ActionGetTime:
		in.push(object.NumberValue(float64(in.clock().Sub(in.startedAt).Milliseconds())))
	case op.ActionRandomNumber:
		max := object.ToInt32(in.pop())
		if max <= 0 {
			in.push(object.Int(0))
		} else {
			in.push(object.Int(in.random.Int31n(max)))
		}

	default:
		if pops, ok := timelineActions[rec.Action]; ok {
			for i := 0; i < pops; i++ {
				in.pop()
			}
			in.logger.Debug().Str("action", rec.Action.String()).Msg("timeline action ignored")
			return nil
		}
		in.logger.Warn().Str("action", rec.Action.String()).Int("offset", rec.Offset).Msg("unknown action skipped")
	}
	return nil
}

// lessThan is the ECMA comparison of the later action set. An undefined
// ordering, when either side is NaN, yields undefined.
func lessThan(a, b object.Value) object.Value {
	lt := object.LessThan(a, b, false)
	if lt != object.LessThan(a, b, true) {
		return object.Undefined
	}
	return object.Bool(lt)
}

// substring extracts count characters starting at the one-based index. A
// negative count extends to the end of s.
func substring(s string, index, count int) string {
	r := []rune(s)
	if index < 1 {
		index = 1
	}
	start := index - 1
	if start >= len(r) {
		return ""
	}
	end := len(r)
	if count >= 0 && start+count < end {
		end = start + count
	}
	return string(r[start:end])
}

// enumerate pushes a null terminator and then the enumerable property
// names of target.
func (in *Interpreter) enumerate(target object.Value) {
	in.push(object.Null)
	en, ok := target.(object.Enumerable)
	if !ok {
		return
	}
	for _, k := range en.Keys() {
		in.push(object.String(k))
	}
}

// pushValues decodes the entries of a Push action.
func (in *Interpreter) pushValues(e *execution, payload []byte) error {
	c := cursor.New(payload)
	for !c.AtEnd() {
		kind, _ := c.ReadU8()
		var v object.Value
		var err error
		switch kind {
		case op.PushTypeString:
			var s string
			s, err = c.ReadCString()
			v = object.String(s)
		case op.PushTypeFloat:
			var f float32
			f, err = c.ReadF32()
			v = object.NumberValue(float64(f))
		case op.PushTypeNull:
			v = object.Null
		case op.PushTypeUndefined:
			v = object.Undefined
		case op.PushTypeRegister:
			var r uint8
			if r, err = c.ReadU8(); err == nil {
				v = e.register(r)
			}
		case op.PushTypeBool:
			var b uint8
			b, err = c.ReadU8()
			v = object.Bool(b != 0)
		case op.PushTypeDouble:
			// The two 32-bit halves are stored high word first.
			var hi, lo uint32
			if hi, err = c.ReadU32(); err == nil {
				lo, err = c.ReadU32()
			}
			v = object.NumberValue(math.Float64frombits(uint64(hi)<<32 | uint64(lo)))
		case op.PushTypeInt:
			var i int32
			i, err = c.ReadS32()
			v = object.Int(i)
		case op.PushTypeConstant8:
			var i uint8
			if i, err = c.ReadU8(); err == nil {
				v = in.constant(e, int(i))
			}
		case op.PushTypeConstant:
			var i uint16
			if i, err = c.ReadU16(); err == nil {
				v = in.constant(e, int(i))
			}
		default:
			in.logger.Warn().Str("function", e.name).Int("offset", e.start).Uint8("type", kind).
				Msg("unknown push type, rest of the push ignored")
			return nil
		}
		if err != nil {
			return errz.Malformed(err, "push: truncated value of type %d", kind)
		}
		in.push(v)
	}
	return nil
}

// constant returns an entry of the constant pool in effect. An index out of
// range is logged and yields undefined.
func (in *Interpreter) constant(e *execution, i int) object.Value {
	if i < len(in.pool) {
		return object.String(in.pool[i])
	}
	in.logger.Warn().Str("function", e.name).Int("index", i).Int("size", len(in.pool)).
		Msg("constant pool index out of range")
	return object.Undefined
}

func decodeConstantPool(payload []byte) ([]string, error) {
	c := cursor.New(payload)
	n, err := c.ReadU16()
	if err != nil {
		return nil, errz.Malformed(err, "constant pool without count")
	}
	pool := make([]string, n)
	for i := range pool {
		if pool[i], err = c.ReadCString(); err != nil {
			return nil, errz.Malformed(err, "constant pool entry %d of %d truncated", i, n)
		}
	}
	return pool, nil
}

// defineFunction creates a function whose body follows the defining
// action. Named functions become variables; anonymous ones are pushed.
func (in *Interpreter) defineFunction(e *execution, rec bytecode.ActionRecord) error {
	c := cursor.New(rec.Payload)
	extended := rec.Action == op.ActionDefineFunction2
	name, err := c.ReadCString()
	if err != nil {
		return errz.Malformed(err, "%s: truncated name", rec.Action)
	}
	n, err := c.ReadU16()
	if err != nil {
		return errz.Malformed(err, "%s: missing parameter count", rec.Action)
	}
	fn := &Function{
		Dynamic:  object.NewDynamic("Function", in.functionProto),
		in:       in,
		name:     name,
		extended: extended,
		pool:     in.pool,
		scope:    e.closure(),
		params:   make([]Param, n),
	}
	if extended {
		regs, err := c.ReadU8()
		if err != nil {
			return errz.Malformed(err, "%s: missing register count", rec.Action)
		}
		if fn.flags, err = c.ReadU16(); err != nil {
			return errz.Malformed(err, "%s: missing flags", rec.Action)
		}
		fn.registers = int(regs)
	}
	for i := range fn.params {
		if extended {
			if fn.params[i].Register, err = c.ReadU8(); err != nil {
				return errz.Malformed(err, "%s: truncated parameter %d", rec.Action, i)
			}
		}
		if fn.params[i].Name, err = c.ReadCString(); err != nil {
			return errz.Malformed(err, "%s: truncated parameter %d", rec.Action, i)
		}
	}
	size, err := c.ReadU16()
	if err != nil {
		return errz.Malformed(err, "%s: missing body size", rec.Action)
	}
	start, end := rec.End(), rec.End()+int(size)
	if end > len(e.code) {
		return errz.Malformed(nil, "%s: body of %d byte(s) at %d overruns the buffer", rec.Action, size, start)
	}
	fn.code = e.code[start:end]
	e.next = end

	proto := object.NewDynamic("Object", in.objectProto)
	proto.DefineHidden("", "constructor", fn)
	fn.DefineHidden("", "prototype", proto)
	fn.DefineHidden("", "length", object.Int(int32(n)))

	if name == "" {
		in.push(fn)
		return nil
	}
	return e.setLocal(name, fn)
}

// with enters a with block scoping its body to the popped object.
func (in *Interpreter) with(e *execution, rec bytecode.ActionRecord) error {
	target := in.pop()
	if len(rec.Payload) < 2 {
		return errz.Malformed(nil, "With without block size")
	}
	size := int(rec.Payload[0]) | int(rec.Payload[1])<<8
	end := rec.End() + size
	obj, ok := target.(object.Object)
	if !ok || object.IsNullish(obj) {
		in.logger.Warn().Str("value", object.ToString(target)).Msg("with target is not an object, block skipped")
		e.next = end
		return nil
	}
	if limit := in.withLimit(); len(e.withs) >= limit {
		in.logger.Warn().Int("limit", limit).Int("version", in.version).Msg("with nesting limit exceeded")
		return errz.StackFault("with nesting exceeds %d for version %d", limit, in.version)
	}
	e.withs = append(e.withs, withBlock{obj: obj, end: end})
	return nil
}

func (in *Interpreter) writeTrace(s string) {
	if in.trace != nil {
		fmt.Fprintln(in.trace, s)
		return
	}
	in.logger.Info().Str("source", "trace").Msg(s)
}
