package asm

import (
	"fmt"
	"math"

	"github.com/deepnoodle-ai/avm/cursor"
	"github.com/deepnoodle-ai/avm/op"
)

// Actions assembles a legacy action stream.
type Actions struct {
	w      *cursor.Writer
	labels map[string]int
	fixups []span
}

// span patches a 16-bit field with the distance between two points. An
// empty from label means the fixed offset base.
type span struct {
	at   int
	base int
	from string
	to   string
}

// NewActions returns an empty action assembler.
func NewActions() *Actions {
	return &Actions{w: cursor.NewWriter(), labels: map[string]int{}}
}

// Offset returns the offset of the next action.
func (a *Actions) Offset() int {
	return a.w.Len()
}

// Op appends an action without payload.
func (a *Actions) Op(code op.Action) *Actions {
	if code.HasPayload() {
		panic(fmt.Sprintf("asm: %s requires a payload", code))
	}
	a.w.U8(uint8(code))
	return a
}

// Payload appends an action with a raw payload.
func (a *Actions) Payload(code op.Action, payload []byte) *Actions {
	a.w.U8(uint8(code)).U16(uint16(len(payload))).Raw(payload)
	return a
}

// Label binds name to the current offset.
func (a *Actions) Label(name string) *Actions {
	if _, dup := a.labels[name]; dup {
		panic(fmt.Sprintf("asm: label %q defined twice", name))
	}
	a.labels[name] = a.w.Len()
	return a
}

// End appends the End action.
func (a *Actions) End() *Actions {
	return a.Op(op.ActionEnd)
}

// Value is one entry of a Push action.
type Value struct {
	kind uint8
	raw  []byte
}

// Str pushes a string.
func Str(s string) Value {
	return Value{op.PushTypeString, cursor.NewWriter().CString(s).Bytes()}
}

// Float pushes a single-precision number.
func Float(f float32) Value {
	return Value{op.PushTypeFloat, cursor.NewWriter().U32(math.Float32bits(f)).Bytes()}
}

// Null pushes null.
func Null() Value { return Value{kind: op.PushTypeNull} }

// Undefined pushes undefined.
func Undefined() Value { return Value{kind: op.PushTypeUndefined} }

// Reg pushes the value of a register.
func Reg(r uint8) Value { return Value{op.PushTypeRegister, []byte{r}} }

// Bool pushes a boolean.
func Bool(b bool) Value {
	if b {
		return Value{op.PushTypeBool, []byte{1}}
	}
	return Value{op.PushTypeBool, []byte{0}}
}

// Double pushes a double, stored with its 32-bit halves swapped.
func Double(f float64) Value {
	bits := math.Float64bits(f)
	return Value{op.PushTypeDouble, cursor.NewWriter().U32(uint32(bits >> 32)).U32(uint32(bits)).Bytes()}
}

// Int pushes a 32-bit integer.
func Int(v int32) Value {
	return Value{op.PushTypeInt, cursor.NewWriter().U32(uint32(v)).Bytes()}
}

// Const pushes an entry of the constant pool.
func Const(i int) Value {
	if i < 256 {
		return Value{op.PushTypeConstant8, []byte{uint8(i)}}
	}
	return Value{op.PushTypeConstant, cursor.NewWriter().U16(uint16(i)).Bytes()}
}

// Push appends a Push action.
func (a *Actions) Push(values ...Value) *Actions {
	w := cursor.NewWriter()
	for _, v := range values {
		w.U8(v.kind).Raw(v.raw)
	}
	return a.Payload(op.ActionPush, w.Bytes())
}

// ConstantPool appends a ConstantPool action.
func (a *Actions) ConstantPool(strs ...string) *Actions {
	w := cursor.NewWriter().U16(uint16(len(strs)))
	for _, s := range strs {
		w.CString(s)
	}
	return a.Payload(op.ActionConstantPool, w.Bytes())
}

// StoreRegister appends a StoreRegister action.
func (a *Actions) StoreRegister(r uint8) *Actions {
	return a.Payload(op.ActionStoreRegister, []byte{r})
}

// Jump appends an unconditional branch to label.
func (a *Actions) Jump(label string) *Actions {
	return a.branch(op.ActionJump, label)
}

// If appends a branch to label taken when the popped value is true.
func (a *Actions) If(label string) *Actions {
	return a.branch(op.ActionIf, label)
}

func (a *Actions) branch(code op.Action, label string) *Actions {
	a.w.U8(uint8(code)).U16(2)
	at := a.w.Len()
	a.w.U16(0)
	a.fixups = append(a.fixups, span{at: at, base: a.w.Len(), to: label})
	return a
}

// Try describes a Try action. The try block runs from the end of the Try
// action to CatchLabel, the catch block to FinallyLabel and the finally
// block to EndLabel. CatchName binds the exception to a variable; when
// empty, it is stored in CatchRegister.
type Try struct {
	HasCatch      bool
	HasFinally    bool
	CatchName     string
	CatchRegister uint8
	CatchLabel    string
	FinallyLabel  string
	EndLabel      string
}

// Try appends a Try action.
func (a *Actions) Try(t Try) *Actions {
	var flags uint8
	if t.HasCatch {
		flags |= op.TryHasCatch
	}
	if t.HasFinally {
		flags |= op.TryHasFinally
	}
	tail := cursor.NewWriter()
	if t.CatchName == "" {
		flags |= op.TryCatchInRegister
		tail.U8(t.CatchRegister)
	} else {
		tail.CString(t.CatchName)
	}
	a.w.U8(uint8(op.ActionTry)).U16(uint16(7 + len(tail.Bytes())))
	a.w.U8(flags)
	sizes := a.w.Len()
	a.w.U16(0).U16(0).U16(0).Raw(tail.Bytes())
	body := a.w.Len()
	a.fixups = append(a.fixups,
		span{at: sizes, base: body, to: t.CatchLabel},
		span{at: sizes + 2, from: t.CatchLabel, to: t.FinallyLabel},
		span{at: sizes + 4, from: t.FinallyLabel, to: t.EndLabel},
	)
	return a
}

// DefineFunction appends a DefineFunction action whose body follows it.
func (a *Actions) DefineFunction(name string, params []string, body *Actions) *Actions {
	code := body.Bytes()
	w := cursor.NewWriter().CString(name).U16(uint16(len(params)))
	for _, p := range params {
		w.CString(p)
	}
	w.U16(uint16(len(code)))
	a.Payload(op.ActionDefineFunction, w.Bytes())
	a.w.Raw(code)
	return a
}

// Param is a DefineFunction2 parameter. A zero register binds the argument
// to a local variable by name.
type Param struct {
	Register uint8
	Name     string
}

// Function2 describes a DefineFunction2 action.
type Function2 struct {
	Name      string
	Registers uint8
	Flags     uint16
	Params    []Param
}

// DefineFunction2 appends a DefineFunction2 action whose body follows it.
func (a *Actions) DefineFunction2(f Function2, body *Actions) *Actions {
	code := body.Bytes()
	w := cursor.NewWriter().CString(f.Name).U16(uint16(len(f.Params))).U8(f.Registers).U16(f.Flags)
	for _, p := range f.Params {
		w.U8(p.Register).CString(p.Name)
	}
	w.U16(uint16(len(code)))
	a.Payload(op.ActionDefineFunction2, w.Bytes())
	a.w.Raw(code)
	return a
}

// With appends a With action scoping body to the popped object.
func (a *Actions) With(body *Actions) *Actions {
	code := body.Bytes()
	a.Payload(op.ActionWith, cursor.NewWriter().U16(uint16(len(code))).Bytes())
	a.w.Raw(code)
	return a
}

func (a *Actions) offset(label string) int {
	off, ok := a.labels[label]
	if !ok {
		panic(fmt.Sprintf("asm: undefined label %q", label))
	}
	return off
}

// Bytes resolves labels and returns the encoded stream.
func (a *Actions) Bytes() []byte {
	buf := append([]byte(nil), a.w.Bytes()...)
	for _, f := range a.fixups {
		from := f.base
		if f.from != "" {
			from = a.offset(f.from)
		}
		d := uint16(int16(a.offset(f.to) - from))
		buf[f.at] = byte(d)
		buf[f.at+1] = byte(d >> 8)
	}
	return buf
}
