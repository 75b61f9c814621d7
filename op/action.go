package op

// Action is a legacy action tag. Tags with the high bit set are followed by
// a 16-bit little-endian payload length and the payload.
type Action uint8

const (
	ActionEnd             Action = 0x00
	ActionNextFrame       Action = 0x04
	ActionPrevFrame       Action = 0x05
	ActionPlay            Action = 0x06
	ActionStop            Action = 0x07
	ActionAdd             Action = 0x0A
	ActionSubtract        Action = 0x0B
	ActionMultiply        Action = 0x0C
	ActionDivide          Action = 0x0D
	ActionEquals          Action = 0x0E
	ActionLess            Action = 0x0F
	ActionAnd             Action = 0x10
	ActionOr              Action = 0x11
	ActionNot             Action = 0x12
	ActionStringEquals    Action = 0x13
	ActionStringLength    Action = 0x14
	ActionStringExtract   Action = 0x15
	ActionPop             Action = 0x17
	ActionToInteger       Action = 0x18
	ActionGetVariable     Action = 0x1C
	ActionSetVariable     Action = 0x1D
	ActionStringAdd       Action = 0x21
	ActionTrace           Action = 0x26
	ActionStringLess      Action = 0x29
	ActionThrow           Action = 0x2A
	ActionCastOp          Action = 0x2B
	ActionImplementsOp    Action = 0x2C
	ActionRandomNumber    Action = 0x30
	ActionCharToAscii     Action = 0x32
	ActionAsciiToChar     Action = 0x33
	ActionGetTime         Action = 0x34
	ActionDelete          Action = 0x3A
	ActionDelete2         Action = 0x3B
	ActionDefineLocal     Action = 0x3C
	ActionCallFunction    Action = 0x3D
	ActionReturn          Action = 0x3E
	ActionModulo          Action = 0x3F
	ActionNewObject       Action = 0x40
	ActionDefineLocal2    Action = 0x41
	ActionInitArray       Action = 0x42
	ActionInitObject      Action = 0x43
	ActionTypeOf          Action = 0x44
	ActionTargetPath      Action = 0x45
	ActionEnumerate       Action = 0x46
	ActionAdd2            Action = 0x47
	ActionLess2           Action = 0x48
	ActionEquals2         Action = 0x49
	ActionToNumber        Action = 0x4A
	ActionToString        Action = 0x4B
	ActionPushDuplicate   Action = 0x4C
	ActionStackSwap       Action = 0x4D
	ActionGetMember       Action = 0x4E
	ActionSetMember       Action = 0x4F
	ActionIncrement       Action = 0x50
	ActionDecrement       Action = 0x51
	ActionCallMethod      Action = 0x52
	ActionNewMethod       Action = 0x53
	ActionInstanceOf      Action = 0x54
	ActionEnumerate2      Action = 0x55
	ActionBitAnd          Action = 0x60
	ActionBitOr           Action = 0x61
	ActionBitXor          Action = 0x62
	ActionBitLShift       Action = 0x63
	ActionBitRShift       Action = 0x64
	ActionBitURShift      Action = 0x65
	ActionStrictEquals    Action = 0x66
	ActionGreater         Action = 0x67
	ActionStringGreater   Action = 0x68
	ActionExtends         Action = 0x69
	ActionGotoFrame       Action = 0x81
	ActionGetURL          Action = 0x83
	ActionStoreRegister   Action = 0x87
	ActionConstantPool    Action = 0x88
	ActionWaitForFrame    Action = 0x8A
	ActionSetTarget       Action = 0x8B
	ActionGotoLabel       Action = 0x8C
	ActionDefineFunction2 Action = 0x8E
	ActionTry             Action = 0x8F
	ActionWith            Action = 0x94
	ActionPush            Action = 0x96
	ActionJump            Action = 0x99
	ActionGetURL2         Action = 0x9A
	ActionDefineFunction  Action = 0x9B
	ActionIf              Action = 0x9D
	ActionCall            Action = 0x9E
	ActionGotoFrame2      Action = 0x9F
)

var actionNames = map[Action]string{
	ActionEnd:             "End",
	ActionNextFrame:       "NextFrame",
	ActionPrevFrame:       "PrevFrame",
	ActionPlay:            "Play",
	ActionStop:            "Stop",
	ActionAdd:             "Add",
	ActionSubtract:        "Subtract",
	ActionMultiply:        "Multiply",
	ActionDivide:          "Divide",
	ActionEquals:          "Equals",
	ActionLess:            "Less",
	ActionAnd:             "And",
	ActionOr:              "Or",
	ActionNot:             "Not",
	ActionStringEquals:    "StringEquals",
	ActionStringLength:    "StringLength",
	ActionStringExtract:   "StringExtract",
	ActionPop:             "Pop",
	ActionToInteger:       "ToInteger",
	ActionGetVariable:     "GetVariable",
	ActionSetVariable:     "SetVariable",
	ActionStringAdd:       "StringAdd",
	ActionTrace:           "Trace",
	ActionStringLess:      "StringLess",
	ActionThrow:           "Throw",
	ActionCastOp:          "CastOp",
	ActionImplementsOp:    "ImplementsOp",
	ActionRandomNumber:    "RandomNumber",
	ActionCharToAscii:     "CharToAscii",
	ActionAsciiToChar:     "AsciiToChar",
	ActionGetTime:         "GetTime",
	ActionDelete:          "Delete",
	ActionDelete2:         "Delete2",
	ActionDefineLocal:     "DefineLocal",
	ActionCallFunction:    "CallFunction",
	ActionReturn:          "Return",
	ActionModulo:          "Modulo",
	ActionNewObject:       "NewObject",
	ActionDefineLocal2:    "DefineLocal2",
	ActionInitArray:       "InitArray",
	ActionInitObject:      "InitObject",
	ActionTypeOf:          "TypeOf",
	ActionTargetPath:      "TargetPath",
	ActionEnumerate:       "Enumerate",
	ActionAdd2:            "Add2",
	ActionLess2:           "Less2",
	ActionEquals2:         "Equals2",
	ActionToNumber:        "ToNumber",
	ActionToString:        "ToString",
	ActionPushDuplicate:   "PushDuplicate",
	ActionStackSwap:       "StackSwap",
	ActionGetMember:       "GetMember",
	ActionSetMember:       "SetMember",
	ActionIncrement:       "Increment",
	ActionDecrement:       "Decrement",
	ActionCallMethod:      "CallMethod",
	ActionNewMethod:       "NewMethod",
	ActionInstanceOf:      "InstanceOf",
	ActionEnumerate2:      "Enumerate2",
	ActionBitAnd:          "BitAnd",
	ActionBitOr:           "BitOr",
	ActionBitXor:          "BitXor",
	ActionBitLShift:       "BitLShift",
	ActionBitRShift:       "BitRShift",
	ActionBitURShift:      "BitURShift",
	ActionStrictEquals:    "StrictEquals",
	ActionGreater:         "Greater",
	ActionStringGreater:   "StringGreater",
	ActionExtends:         "Extends",
	ActionGotoFrame:       "GotoFrame",
	ActionGetURL:          "GetURL",
	ActionStoreRegister:   "StoreRegister",
	ActionConstantPool:    "ConstantPool",
	ActionWaitForFrame:    "WaitForFrame",
	ActionSetTarget:       "SetTarget",
	ActionGotoLabel:       "GotoLabel",
	ActionDefineFunction2: "DefineFunction2",
	ActionTry:             "Try",
	ActionWith:            "With",
	ActionPush:            "Push",
	ActionJump:            "Jump",
	ActionGetURL2:         "GetURL2",
	ActionDefineFunction:  "DefineFunction",
	ActionIf:              "If",
	ActionCall:            "Call",
	ActionGotoFrame2:      "GotoFrame2",
}

// HasPayload reports whether the tag is followed by a length and payload.
func (a Action) HasPayload() bool {
	return a&0x80 != 0
}

// Known reports whether the action code is defined.
func (a Action) Known() bool {
	_, ok := actionNames[a]
	return ok
}

func (a Action) String() string {
	if name, ok := actionNames[a]; ok {
		return name
	}
	return "Action_0x" + hexByte(uint8(a))
}

// Push value types used in the Push action payload.
const (
	PushTypeString    = 0
	PushTypeFloat     = 1
	PushTypeNull      = 2
	PushTypeUndefined = 3
	PushTypeRegister  = 4
	PushTypeBool      = 5
	PushTypeDouble    = 6
	PushTypeInt       = 7
	PushTypeConstant8 = 8
	PushTypeConstant  = 9
)

// Flags of the DefineFunction2 action.
const (
	PreloadThis       = 0x0001
	SuppressThis      = 0x0002
	PreloadArguments  = 0x0004
	SuppressArguments = 0x0008
	PreloadSuper      = 0x0010
	SuppressSuper     = 0x0020
	PreloadRoot       = 0x0040
	PreloadParent     = 0x0080
	PreloadGlobal     = 0x0100
)

// Flags of the Try action.
const (
	TryHasCatch        = 0x01
	TryHasFinally      = 0x02
	TryCatchInRegister = 0x04
)
