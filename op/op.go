// Package op defines the opcodes of the stack-machine bytecode and the
// action codes of the legacy tag-encoded bytecode.
package op

// Code is a one-byte opcode that indicates an operation to execute.
type Code uint8

const (
	Invalid Code = 0

	// Control
	Bkpt      Code = 0x01
	Nop       Code = 0x02
	Throw     Code = 0x03
	GetSuper  Code = 0x04
	SetSuper  Code = 0x05
	Dxns      Code = 0x06
	DxnsLate  Code = 0x07
	Kill      Code = 0x08
	Label     Code = 0x09

	// Branches
	IfNlt        Code = 0x0C
	IfNle        Code = 0x0D
	IfNgt        Code = 0x0E
	IfNge        Code = 0x0F
	Jump         Code = 0x10
	IfTrue       Code = 0x11
	IfFalse      Code = 0x12
	IfEq         Code = 0x13
	IfNe         Code = 0x14
	IfLt         Code = 0x15
	IfLe         Code = 0x16
	IfGt         Code = 0x17
	IfGe         Code = 0x18
	IfStrictEq   Code = 0x19
	IfStrictNe   Code = 0x1A
	LookupSwitch Code = 0x1B

	// Scope and enumeration
	PushWith  Code = 0x1C
	PopScope  Code = 0x1D
	NextName  Code = 0x1E
	HasNext   Code = 0x1F
	NextValue Code = 0x23
	HasNext2  Code = 0x32

	// Push constants
	PushNull      Code = 0x20
	PushUndefined Code = 0x21
	PushByte      Code = 0x24
	PushShort     Code = 0x25
	PushTrue      Code = 0x26
	PushFalse     Code = 0x27
	PushNaN       Code = 0x28
	PushString    Code = 0x2C
	PushInt       Code = 0x2D
	PushUint      Code = 0x2E
	PushDouble    Code = 0x2F
	PushScope     Code = 0x30
	PushNamespace Code = 0x31

	// Stack
	Pop  Code = 0x29
	Dup  Code = 0x2A
	Swap Code = 0x2B

	// Calls
	NewFunction    Code = 0x40
	Call           Code = 0x41
	Construct      Code = 0x42
	CallMethod     Code = 0x43
	CallStatic     Code = 0x44
	CallSuper      Code = 0x45
	CallProperty   Code = 0x46
	ReturnVoid     Code = 0x47
	ReturnValue    Code = 0x48
	ConstructSuper Code = 0x49
	ConstructProp  Code = 0x4A
	CallSuperID    Code = 0x4B
	CallPropLex    Code = 0x4C
	CallInterface  Code = 0x4D
	CallSuperVoid  Code = 0x4E
	CallPropVoid   Code = 0x4F
	ApplyType      Code = 0x53

	// Object construction
	NewObject      Code = 0x55
	NewArray       Code = 0x56
	NewActivation  Code = 0x57
	NewClass       Code = 0x58
	GetDescendants Code = 0x59
	NewCatch       Code = 0x5A

	// Properties
	FindPropStrict Code = 0x5D
	FindProperty   Code = 0x5E
	FindDef        Code = 0x5F
	GetLex         Code = 0x60
	SetProperty    Code = 0x61
	GetLocal       Code = 0x62
	SetLocal       Code = 0x63
	GetGlobalScope Code = 0x64
	GetScopeObject Code = 0x65
	GetProperty    Code = 0x66
	InitProperty   Code = 0x68
	DeleteProperty Code = 0x6A
	GetSlot        Code = 0x6C
	SetSlot        Code = 0x6D
	GetGlobalSlot  Code = 0x6E
	SetGlobalSlot  Code = 0x6F

	// Conversion
	ConvertS    Code = 0x70
	EscXElem    Code = 0x71
	EscXAttr    Code = 0x72
	ConvertI    Code = 0x73
	ConvertU    Code = 0x74
	ConvertD    Code = 0x75
	ConvertB    Code = 0x76
	ConvertO    Code = 0x77
	CheckFilter Code = 0x78
	Coerce      Code = 0x80
	CoerceB     Code = 0x81
	CoerceA     Code = 0x82
	CoerceI     Code = 0x83
	CoerceD     Code = 0x84
	CoerceS     Code = 0x85
	AsType      Code = 0x86
	AsTypeLate  Code = 0x87
	CoerceU     Code = 0x88
	CoerceO     Code = 0x89

	// Arithmetic
	Negate        Code = 0x90
	Increment     Code = 0x91
	IncLocal      Code = 0x92
	Decrement     Code = 0x93
	DecLocal      Code = 0x94
	TypeOf        Code = 0x95
	Not           Code = 0x96
	BitNot        Code = 0x97
	Add           Code = 0xA0
	Subtract      Code = 0xA1
	Multiply      Code = 0xA2
	Divide        Code = 0xA3
	Modulo        Code = 0xA4
	LShift        Code = 0xA5
	RShift        Code = 0xA6
	URShift       Code = 0xA7
	BitAnd        Code = 0xA8
	BitOr         Code = 0xA9
	BitXor        Code = 0xAA
	Equals        Code = 0xAB
	StrictEquals  Code = 0xAC
	LessThan      Code = 0xAD
	LessEquals    Code = 0xAE
	GreaterThan   Code = 0xAF
	GreaterEquals Code = 0xB0
	InstanceOf    Code = 0xB1
	IsType        Code = 0xB2
	IsTypeLate    Code = 0xB3
	In            Code = 0xB4
	IncrementI    Code = 0xC0
	DecrementI    Code = 0xC1
	IncLocalI     Code = 0xC2
	DecLocalI     Code = 0xC3
	NegateI       Code = 0xC4
	AddI          Code = 0xC5
	SubtractI     Code = 0xC6
	MultiplyI     Code = 0xC7

	// Registers
	GetLocal0 Code = 0xD0
	GetLocal1 Code = 0xD1
	GetLocal2 Code = 0xD2
	GetLocal3 Code = 0xD3
	SetLocal0 Code = 0xD4
	SetLocal1 Code = 0xD5
	SetLocal2 Code = 0xD6
	SetLocal3 Code = 0xD7

	// Debugging
	Debug     Code = 0xEF
	DebugLine Code = 0xF0
	DebugFile Code = 0xF1
	BkptLine  Code = 0xF2
	Timestamp Code = 0xF3
)

// OperandKind describes how an immediate operand is encoded.
type OperandKind uint8

const (
	// U8 is a single unsigned byte.
	U8 OperandKind = iota + 1
	// U30 is a variable-length unsigned integer.
	U30
	// S24 is a three byte signed branch offset.
	S24
)

func (k OperandKind) String() string {
	switch k {
	case U8:
		return "u8"
	case U30:
		return "u30"
	case S24:
		return "s24"
	default:
		return ""
	}
}

// Info contains information about an opcode.
type Info struct {
	Code     Code
	Name     string
	Operands []OperandKind

	// Switch is set for LookupSwitch, whose operand list is variable: a
	// default offset, a case count n and n+1 case offsets.
	Switch bool
}

// Valid reports whether the info describes a defined opcode.
func (i Info) Valid() bool {
	return i.Name != ""
}

// OperandCount returns the number of fixed operands.
func (i Info) OperandCount() int {
	return len(i.Operands)
}

var infos [256]Info

func init() {
	type opInfo struct {
		op       Code
		name     string
		operands []OperandKind
	}
	var (
		none   []OperandKind
		u30    = []OperandKind{U30}
		u30x2  = []OperandKind{U30, U30}
		s24    = []OperandKind{S24}
		u8     = []OperandKind{U8}
		debug  = []OperandKind{U8, U30, U8, U30}
		swtch  = []OperandKind{S24, U30}
	)
	ops := []opInfo{
		{Bkpt, "bkpt", none},
		{Nop, "nop", none},
		{Throw, "throw", none},
		{GetSuper, "getsuper", u30},
		{SetSuper, "setsuper", u30},
		{Dxns, "dxns", u30},
		{DxnsLate, "dxnslate", none},
		{Kill, "kill", u30},
		{Label, "label", none},
		{IfNlt, "ifnlt", s24},
		{IfNle, "ifnle", s24},
		{IfNgt, "ifngt", s24},
		{IfNge, "ifnge", s24},
		{Jump, "jump", s24},
		{IfTrue, "iftrue", s24},
		{IfFalse, "iffalse", s24},
		{IfEq, "ifeq", s24},
		{IfNe, "ifne", s24},
		{IfLt, "iflt", s24},
		{IfLe, "ifle", s24},
		{IfGt, "ifgt", s24},
		{IfGe, "ifge", s24},
		{IfStrictEq, "ifstricteq", s24},
		{IfStrictNe, "ifstrictne", s24},
		{LookupSwitch, "lookupswitch", swtch},
		{PushWith, "pushwith", none},
		{PopScope, "popscope", none},
		{NextName, "nextname", none},
		{HasNext, "hasnext", none},
		{PushNull, "pushnull", none},
		{PushUndefined, "pushundefined", none},
		{NextValue, "nextvalue", none},
		{PushByte, "pushbyte", u8},
		{PushShort, "pushshort", u30},
		{PushTrue, "pushtrue", none},
		{PushFalse, "pushfalse", none},
		{PushNaN, "pushnan", none},
		{Pop, "pop", none},
		{Dup, "dup", none},
		{Swap, "swap", none},
		{PushString, "pushstring", u30},
		{PushInt, "pushint", u30},
		{PushUint, "pushuint", u30},
		{PushDouble, "pushdouble", u30},
		{PushScope, "pushscope", none},
		{PushNamespace, "pushnamespace", u30},
		{HasNext2, "hasnext2", u30x2},
		{NewFunction, "newfunction", u30},
		{Call, "call", u30},
		{Construct, "construct", u30},
		{CallMethod, "callmethod", u30x2},
		{CallStatic, "callstatic", u30x2},
		{CallSuper, "callsuper", u30x2},
		{CallProperty, "callproperty", u30x2},
		{ReturnVoid, "returnvoid", none},
		{ReturnValue, "returnvalue", none},
		{ConstructSuper, "constructsuper", u30},
		{ConstructProp, "constructprop", u30x2},
		{CallSuperID, "callsuperid", none},
		{CallPropLex, "callproplex", u30x2},
		{CallInterface, "callinterface", none},
		{CallSuperVoid, "callsupervoid", u30x2},
		{CallPropVoid, "callpropvoid", u30x2},
		{ApplyType, "applytype", u30},
		{NewObject, "newobject", u30},
		{NewArray, "newarray", u30},
		{NewActivation, "newactivation", none},
		{NewClass, "newclass", u30},
		{GetDescendants, "getdescendants", u30},
		{NewCatch, "newcatch", u30},
		{FindPropStrict, "findpropstrict", u30},
		{FindProperty, "findproperty", u30},
		{FindDef, "finddef", u30},
		{GetLex, "getlex", u30},
		{SetProperty, "setproperty", u30},
		{GetLocal, "getlocal", u30},
		{SetLocal, "setlocal", u30},
		{GetGlobalScope, "getglobalscope", none},
		{GetScopeObject, "getscopeobject", u8},
		{GetProperty, "getproperty", u30},
		{InitProperty, "initproperty", u30},
		{DeleteProperty, "deleteproperty", u30},
		{GetSlot, "getslot", u30},
		{SetSlot, "setslot", u30},
		{GetGlobalSlot, "getglobalslot", u30},
		{SetGlobalSlot, "setglobalslot", u30},
		{ConvertS, "convert_s", none},
		{EscXElem, "esc_xelem", none},
		{EscXAttr, "esc_xattr", none},
		{ConvertI, "convert_i", none},
		{ConvertU, "convert_u", none},
		{ConvertD, "convert_d", none},
		{ConvertB, "convert_b", none},
		{ConvertO, "convert_o", none},
		{CheckFilter, "checkfilter", none},
		{Coerce, "coerce", u30},
		{CoerceB, "coerce_b", none},
		{CoerceA, "coerce_a", none},
		{CoerceI, "coerce_i", none},
		{CoerceD, "coerce_d", none},
		{CoerceS, "coerce_s", none},
		{AsType, "astype", u30},
		{AsTypeLate, "astypelate", none},
		{CoerceU, "coerce_u", none},
		{CoerceO, "coerce_o", none},
		{Negate, "negate", none},
		{Increment, "increment", none},
		{IncLocal, "inclocal", u30},
		{Decrement, "decrement", none},
		{DecLocal, "declocal", u30},
		{TypeOf, "typeof", none},
		{Not, "not", none},
		{BitNot, "bitnot", none},
		{Add, "add", none},
		{Subtract, "subtract", none},
		{Multiply, "multiply", none},
		{Divide, "divide", none},
		{Modulo, "modulo", none},
		{LShift, "lshift", none},
		{RShift, "rshift", none},
		{URShift, "urshift", none},
		{BitAnd, "bitand", none},
		{BitOr, "bitor", none},
		{BitXor, "bitxor", none},
		{Equals, "equals", none},
		{StrictEquals, "strictequals", none},
		{LessThan, "lessthan", none},
		{LessEquals, "lessequals", none},
		{GreaterThan, "greaterthan", none},
		{GreaterEquals, "greaterequals", none},
		{InstanceOf, "instanceof", none},
		{IsType, "istype", u30},
		{IsTypeLate, "istypelate", none},
		{In, "in", none},
		{IncrementI, "increment_i", none},
		{DecrementI, "decrement_i", none},
		{IncLocalI, "inclocal_i", u30},
		{DecLocalI, "declocal_i", u30},
		{NegateI, "negate_i", none},
		{AddI, "add_i", none},
		{SubtractI, "subtract_i", none},
		{MultiplyI, "multiply_i", none},
		{GetLocal0, "getlocal0", none},
		{GetLocal1, "getlocal1", none},
		{GetLocal2, "getlocal2", none},
		{GetLocal3, "getlocal3", none},
		{SetLocal0, "setlocal0", none},
		{SetLocal1, "setlocal1", none},
		{SetLocal2, "setlocal2", none},
		{SetLocal3, "setlocal3", none},
		{Debug, "debug", debug},
		{DebugLine, "debugline", u30},
		{DebugFile, "debugfile", u30},
		{BkptLine, "bkptline", u30},
		{Timestamp, "timestamp", none},
	}
	for _, o := range ops {
		infos[o.op] = Info{
			Code:     o.op,
			Name:     o.name,
			Operands: o.operands,
			Switch:   o.op == LookupSwitch,
		}
	}
}

// GetInfo returns information about the given opcode. The result is not
// Valid for undefined opcodes.
func GetInfo(op Code) Info {
	return infos[op]
}

func (c Code) String() string {
	if info := infos[c]; info.Valid() {
		return info.Name
	}
	return "op_0x" + hexByte(uint8(c))
}

// IsBranch reports whether the opcode carries a relative branch offset.
func (c Code) IsBranch() bool {
	return (c >= IfNlt && c <= IfStrictNe) || c == LookupSwitch
}

// IsConditional reports whether the opcode is a branch that pops operands
// and may fall through.
func (c Code) IsConditional() bool {
	return c >= IfNlt && c <= IfStrictNe && c != Jump
}

const hexDigits = "0123456789abcdef"

func hexByte(b uint8) string {
	return string([]byte{hexDigits[b>>4], hexDigits[b&0x0F]})
}
