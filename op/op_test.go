package op

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetInfo(t *testing.T) {
	info := GetInfo(CallProperty)
	require.True(t, info.Valid())
	assert.Equal(t, "callproperty", info.Name)
	assert.Equal(t, 2, info.OperandCount())
	assert.Equal(t, CallProperty, info.Code)
}

func TestGetInfoOperands(t *testing.T) {
	tests := []struct {
		code     Code
		name     string
		operands []OperandKind
	}{
		{Nop, "nop", nil},
		{Jump, "jump", []OperandKind{S24}},
		{IfNlt, "ifnlt", []OperandKind{S24}},
		{PushByte, "pushbyte", []OperandKind{U8}},
		{PushShort, "pushshort", []OperandKind{U30}},
		{GetScopeObject, "getscopeobject", []OperandKind{U8}},
		{HasNext2, "hasnext2", []OperandKind{U30, U30}},
		{Debug, "debug", []OperandKind{U8, U30, U8, U30}},
		{LookupSwitch, "lookupswitch", []OperandKind{S24, U30}},
		{GetLocal0, "getlocal0", nil},
		{ConvertS, "convert_s", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info := GetInfo(tt.code)
			assert.Equal(t, tt.code, info.Code)
			assert.Equal(t, tt.name, info.Name)
			assert.Equal(t, len(tt.operands), info.OperandCount())
			for i, k := range tt.operands {
				assert.Equal(t, k, info.Operands[i])
			}
		})
	}
	assert.True(t, GetInfo(LookupSwitch).Switch)
	assert.False(t, GetInfo(Jump).Switch)
}

func TestUndefinedOpcode(t *testing.T) {
	info := GetInfo(Code(0x22))
	assert.False(t, info.Valid())
	assert.Equal(t, "op_0x22", Code(0x22).String())
	assert.Equal(t, "add", Add.String())
}

func TestBranchPredicates(t *testing.T) {
	assert.True(t, Jump.IsBranch())
	assert.False(t, Jump.IsConditional())
	assert.True(t, IfStrictNe.IsConditional())
	assert.True(t, LookupSwitch.IsBranch())
	assert.False(t, LookupSwitch.IsConditional())
	assert.False(t, PushWith.IsBranch())
}

func TestActions(t *testing.T) {
	assert.True(t, ActionPush.HasPayload())
	assert.False(t, ActionAdd2.HasPayload())
	assert.Equal(t, "DefineFunction2", ActionDefineFunction2.String())
	assert.True(t, ActionTry.Known())
	assert.False(t, Action(0x7F).Known())
	assert.Equal(t, "Action_0x7f", Action(0x7F).String())
}
