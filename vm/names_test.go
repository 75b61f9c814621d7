package vm

import (
	"testing"

	"github.com/deepnoodle-ai/avm/errz"
	"github.com/deepnoodle-ai/avm/internal/asm"
	"github.com/deepnoodle-ai/avm/object"
	"github.com/deepnoodle-ai/avm/op"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRuntimeMultinames(t *testing.T) {
	u := asm.NewUnit()
	mine := u.Package("mine")
	rtql := u.RTQNameL()
	rtq := u.RTQName("x")
	mnl := u.MultinameL(u.NamespaceSet(u.Package(""), mine))
	qualified := u.QName(mine, "x")
	public := u.Public("x")
	x := u.String("x")

	c := prologue().
		Op(op.NewObject, 0).Op(op.SetLocal1).
		// The namespace is pushed before the name.
		Op(op.GetLocal1).Op(op.PushNamespace, mine).Op(op.PushString, x).
		Op(op.PushByte, 7).Op(op.SetProperty, rtql).
		Op(op.GetLocal1).Op(op.PushNamespace, mine).Op(op.PushString, x).
		Op(op.GetProperty, rtql).
		Op(op.GetLocal1).Op(op.PushNamespace, mine).Op(op.GetProperty, rtq).
		Op(op.GetLocal1).Op(op.PushString, x).Op(op.GetProperty, mnl).
		Op(op.GetLocal1).Op(op.GetProperty, qualified).
		Op(op.GetLocal1).Op(op.GetProperty, public).
		Op(op.NewArray, 5).Op(op.ReturnValue)
	u.Script(u.Function(asm.MethodDef{Name: "main"}, 2, c.Bytes()))

	result, err := run(t, u)
	require.NoError(t, err)
	assert.Equal(t, []object.Value{
		object.Int(7), object.Int(7), object.Int(7), object.Int(7), object.Undefined,
	}, values(t, result))
}

func TestRuntimeNameMustFollowNamespace(t *testing.T) {
	u := asm.NewUnit()
	mine := u.Package("mine")
	rtql := u.RTQNameL()
	c := prologue().
		Op(op.NewObject, 0).
		Op(op.PushString, u.String("x")).Op(op.PushNamespace, mine).
		Op(op.GetProperty, rtql).
		Op(op.ReturnValue)
	u.Script(u.Function(asm.MethodDef{Name: "main"}, 1, c.Bytes()))

	_, err := run(t, u)
	se := structured(t, err)
	assert.Equal(t, errz.ErrType, se.Kind)
	class, ok := object.ErrorClass(se.Value.(object.Value))
	require.True(t, ok)
	assert.Equal(t, "TypeError", class)
}
