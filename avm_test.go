package avm

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/deepnoodle-ai/avm/errz"
	"github.com/deepnoodle-ai/avm/internal/asm"
	"github.com/deepnoodle-ai/avm/object"
	"github.com/deepnoodle-ai/avm/op"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func prologue() *asm.Code {
	return asm.NewCode().Op(op.GetLocal0).Op(op.PushScope)
}

func mainUnit(code *asm.Code) []byte {
	u := asm.NewUnit()
	u.Script(u.Function(asm.MethodDef{Name: "main"}, 1, code.Bytes()))
	return u.Bytes()
}

func TestEval(t *testing.T) {
	data := mainUnit(prologue().
		Op(op.PushByte, 1).Op(op.PushByte, 2).Op(op.Add).
		Op(op.ReturnValue))
	result, err := Eval(context.Background(), data)
	require.NoError(t, err)
	assert.Equal(t, int64(3), result)
}

func TestRunIsRepeatable(t *testing.T) {
	u := asm.NewUnit()
	half := u.Double(0.5)
	u.Script(u.Function(asm.MethodDef{Name: "main"}, 1, prologue().
		Op(op.PushDouble, half).Op(op.ReturnValue).Bytes()))
	block, err := Load(u.Bytes())
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		result, err := Run(context.Background(), block)
		require.NoError(t, err)
		assert.Equal(t, 0.5, result)
	}
}

func TestEnvFunction(t *testing.T) {
	double := func(ctx context.Context, this object.Value, args []object.Value) (object.Value, error) {
		return object.Multiply(object.Arg(args, 0), object.Int(2)), nil
	}
	u := asm.NewUnit()
	name := u.Public("double")
	u.Script(u.Function(asm.MethodDef{Name: "main"}, 1, prologue().
		Op(op.FindPropStrict, name).
		Op(op.PushByte, 21).
		Op(op.CallProperty, name, 1).
		Op(op.ReturnValue).Bytes()))

	result, err := Eval(context.Background(), u.Bytes(), WithEnv(map[string]any{"double": double}))
	require.NoError(t, err)
	assert.Equal(t, int64(42), result)
}

func TestObjectResult(t *testing.T) {
	u := asm.NewUnit()
	u.Script(u.Function(asm.MethodDef{Name: "main"}, 1, prologue().
		Op(op.PushString, u.String("a")).Op(op.PushByte, 1).
		Op(op.PushString, u.String("b")).Op(op.PushNull).
		Op(op.NewObject, 2).
		Op(op.ReturnValue).Bytes()))
	result, err := Eval(context.Background(), u.Bytes())
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"a": int64(1), "b": nil}, result)
}

func TestUncaughtThrow(t *testing.T) {
	u := asm.NewUnit()
	u.Script(u.Function(asm.MethodDef{Name: "main"}, 1, prologue().
		Op(op.PushString, u.String("boom")).Op(op.Throw).Bytes()))
	_, err := Eval(context.Background(), u.Bytes())
	require.Error(t, err)
	var se *errz.StructuredError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, errz.ErrScript, se.Kind)
	assert.Equal(t, object.String("boom"), se.Value)
}

func TestBudget(t *testing.T) {
	data := mainUnit(prologue().
		Label("top").
		Branch(op.Jump, "top"))
	now := time.Unix(0, 0)
	clock := func() time.Time {
		now = now.Add(time.Second)
		return now
	}
	_, err := Eval(context.Background(), data, WithBudget(5*time.Second), WithClock(clock))
	require.Error(t, err)
	assert.ErrorIs(t, err, errz.ErrBudgetExceeded)
}

func TestValidate(t *testing.T) {
	u := asm.NewUnit()
	u.Script(u.Function(asm.MethodDef{Name: "main"}, 1, asm.NewCode().
		Op(op.Jump, 100).
		Op(op.ReturnVoid).Bytes()))
	err := Validate(u.Bytes())
	require.Error(t, err)

	require.NoError(t, Validate(mainUnit(prologue().Op(op.ReturnVoid))))
	assert.Error(t, Validate([]byte{0x10}))
}

func TestMachineCall(t *testing.T) {
	u := asm.NewUnit()
	name := u.Public("add")
	add := u.Function(asm.MethodDef{Name: "add", Params: []int{0, 0}}, 3, asm.NewCode().
		Op(op.GetLocal1).Op(op.GetLocal2).Op(op.Add).Op(op.ReturnValue).Bytes())
	u.Script(u.Function(asm.MethodDef{Name: "main"}, 1, prologue().Op(op.ReturnVoid).Bytes()),
		asm.MethodTrait(name, add))
	block, err := Load(u.Bytes())
	require.NoError(t, err)

	m, err := NewMachine(block)
	require.NoError(t, err)
	_, err = m.Run(context.Background())
	require.NoError(t, err)

	result, err := m.Call(context.Background(), "add", 2, 3)
	require.NoError(t, err)
	assert.Equal(t, int64(5), result)

	result, err = m.Call(context.Background(), "add", "a", "b")
	require.NoError(t, err)
	assert.Equal(t, "ab", result)

	_, err = m.Call(context.Background(), "missing")
	assert.Error(t, err)

	_, err = m.Call(context.Background(), "add", struct{}{})
	assert.ErrorContains(t, err, "argument 0")
}

func TestMachineGet(t *testing.T) {
	u := asm.NewUnit()
	name := u.Public("answer")
	u.Script(u.Function(asm.MethodDef{Name: "main"}, 1, prologue().
		Op(op.FindProperty, name).
		Op(op.PushByte, 42).
		Op(op.SetProperty, name).
		Op(op.ReturnVoid).Bytes()))
	block, err := Load(u.Bytes())
	require.NoError(t, err)
	m, err := NewMachine(block)
	require.NoError(t, err)

	_, err = m.Get("answer")
	assert.Error(t, err)

	_, err = m.Run(context.Background())
	require.NoError(t, err)
	v, err := m.Get("answer")
	require.NoError(t, err)
	assert.Equal(t, int64(42), v)
	raw, err := m.GetValue("answer")
	require.NoError(t, err)
	assert.Equal(t, object.Int(42), raw)
}

func TestRunActions(t *testing.T) {
	code := asm.NewActions().
		Push(asm.Int(2), asm.Int(3)).Op(op.ActionAdd2).
		Op(op.ActionReturn).
		Bytes()
	result, err := RunActions(context.Background(), code)
	require.NoError(t, err)
	assert.Equal(t, int64(5), result)
}

func TestRunActionsTrace(t *testing.T) {
	var buf bytes.Buffer
	code := asm.NewActions().
		Push(asm.Str("hello")).Op(op.ActionTrace).
		Op(op.ActionEnd).
		Bytes()
	result, err := RunActions(context.Background(), code, WithTrace(&buf))
	require.NoError(t, err)
	assert.Nil(t, result)
	assert.Contains(t, buf.String(), "hello")
}

func TestRunActionsGlobals(t *testing.T) {
	code := asm.NewActions().
		Push(asm.Str("x")).Op(op.ActionGetVariable).
		Push(asm.Str("!")).Op(op.ActionAdd2).
		Op(op.ActionReturn).
		Bytes()
	result, err := RunActions(context.Background(), code, WithGlobal("x", "hi"))
	require.NoError(t, err)
	assert.Equal(t, "hi!", result)
}

func TestRunActionsMaxDepth(t *testing.T) {
	body := asm.NewActions().
		Push(asm.Int(0), asm.Str("f")).Op(op.ActionCallFunction).
		Op(op.ActionReturn)
	code := asm.NewActions().
		DefineFunction("f", nil, body).
		Push(asm.Int(0), asm.Str("f")).Op(op.ActionCallFunction).
		Op(op.ActionReturn).
		Bytes()
	_, err := RunActions(context.Background(), code, WithMaxDepth(8))
	require.Error(t, err)
	var se *errz.StructuredError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, errz.ErrStack, se.Kind)
}
