package legacy

import (
	"context"
	"testing"

	"github.com/deepnoodle-ai/avm/errz"
	"github.com/deepnoodle-ai/avm/internal/asm"
	"github.com/deepnoodle-ai/avm/object"
	"github.com/deepnoodle-ai/avm/op"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCallArgumentOrder(t *testing.T) {
	a := asm.NewActions().
		DefineFunction("sub", []string{"a", "b"}, asm.NewActions().
			Push(asm.Str("a")).Op(op.ActionGetVariable).
			Push(asm.Str("b")).Op(op.ActionGetVariable).
			Op(op.ActionSubtract).
			Op(op.ActionReturn))
	call(a, "sub", asm.Int(10), asm.Int(3)).Op(op.ActionReturn)
	result, err := run(t, a)
	require.NoError(t, err)
	assert.Equal(t, object.Int(7), result)
}

func TestMissingParametersAreUndefined(t *testing.T) {
	a := asm.NewActions().
		DefineFunction("f", []string{"a", "b"}, asm.NewActions().
			Push(asm.Str("b")).Op(op.ActionGetVariable).Op(op.ActionTypeOf).
			Op(op.ActionReturn))
	call(a, "f", asm.Int(1)).Op(op.ActionReturn)
	result, err := run(t, a)
	require.NoError(t, err)
	assert.Equal(t, object.String("undefined"), result)
}

func TestArgumentsCallee(t *testing.T) {
	a := asm.NewActions().
		DefineFunction("f", nil, asm.NewActions().
			Push(asm.Str("arguments")).Op(op.ActionGetVariable).
			Push(asm.Str("callee")).Op(op.ActionGetMember).
			Push(asm.Str("f")).Op(op.ActionGetVariable).
			Op(op.ActionStrictEquals).
			Push(asm.Str("arguments")).Op(op.ActionGetVariable).
			Push(asm.Str("length")).Op(op.ActionGetMember).
			Op(op.ActionInitArray).
			Op(op.ActionReturn))
	// InitArray uses the argument count as its own length, which yields
	// an array holding the comparison result.
	call(a, "f", asm.Str("x")).Op(op.ActionReturn)
	result, err := run(t, a)
	require.NoError(t, err)
	assert.Equal(t, []object.Value{object.Bool(true)}, values(t, result))
}

func TestFunctionLocalsDoNotLeak(t *testing.T) {
	in := newInterpreter(t)
	a := asm.NewActions().
		DefineFunction("f", nil, asm.NewActions().
			Push(asm.Str("local"), asm.Int(1)).Op(op.ActionDefineLocal).
			Push(asm.Str("shared"), asm.Int(2)).Op(op.ActionSetVariable))
	call(a, "f").Op(op.ActionPop)
	_, err := in.Run(context.Background(), a.Bytes())
	require.NoError(t, err)

	_, err = in.Get("local")
	assert.ErrorIs(t, err, ErrGlobalNotFound)
	shared, err := in.Get("shared")
	require.NoError(t, err)
	assert.Equal(t, object.Int(2), shared)
}

func TestClosureCapturesScope(t *testing.T) {
	a := asm.NewActions().
		DefineFunction("outer", nil, asm.NewActions().
			Push(asm.Str("captured"), asm.Str("inner value")).Op(op.ActionDefineLocal).
			DefineFunction("", nil, asm.NewActions().
				Push(asm.Str("captured")).Op(op.ActionGetVariable).
				Op(op.ActionReturn)).
			Op(op.ActionReturn))
	call(a, "outer").
		Push(asm.Str("inner")).Op(op.ActionStackSwap).Op(op.ActionSetVariable)
	call(a, "inner").Op(op.ActionReturn)
	result, err := run(t, a)
	require.NoError(t, err)
	assert.Equal(t, object.String("inner value"), result)
}

func TestDefineFunction2Preloads(t *testing.T) {
	in := newInterpreter(t)
	body := asm.NewActions().
		Push(asm.Reg(3), asm.Str("y")).Op(op.ActionGetVariable).Op(op.ActionAdd2).
		Push(asm.Reg(2), asm.Str("length")).Op(op.ActionGetMember).Op(op.ActionAdd2).
		Op(op.ActionReturn)
	a := asm.NewActions().
		DefineFunction2(asm.Function2{
			Name:      "f",
			Registers: 4,
			Flags:     op.PreloadThis | op.PreloadArguments | op.SuppressSuper,
			Params:    []asm.Param{{Register: 3, Name: "x"}, {Name: "y"}},
		}, body)
	call(a, "f", asm.Int(5), asm.Int(7)).Op(op.ActionReturn)
	result, err := in.Run(context.Background(), a.Bytes())
	require.NoError(t, err)
	assert.Equal(t, object.Int(14), result)
}

func TestDefineFunction2PreloadsThis(t *testing.T) {
	in := newInterpreter(t)
	a := asm.NewActions().
		DefineFunction2(asm.Function2{
			Name:      "f",
			Registers: 2,
			Flags:     op.PreloadThis | op.SuppressArguments,
		}, asm.NewActions().Push(asm.Reg(1)).Op(op.ActionReturn))
	call(a, "f").Op(op.ActionReturn)
	result, err := in.Run(context.Background(), a.Bytes())
	require.NoError(t, err)
	assert.Same(t, in.Global(), result)
}

func TestExplicitParameterOverridesPreload(t *testing.T) {
	fn := asm.Function2{
		Name:      "f",
		Registers: 2,
		Flags:     op.PreloadThis,
		Params:    []asm.Param{{Register: 1, Name: "a"}},
	}
	body := asm.NewActions().Push(asm.Reg(1)).Op(op.ActionTypeOf).Op(op.ActionReturn)

	a := asm.NewActions().DefineFunction2(fn, body)
	call(a, "f", asm.Str("hi")).Op(op.ActionReturn)
	result, err := run(t, a)
	require.NoError(t, err)
	assert.Equal(t, object.String("string"), result)

	// A parameter that was not supplied leaves the preloaded value.
	a = asm.NewActions().DefineFunction2(fn, body)
	call(a, "f").Op(op.ActionReturn)
	result, err = run(t, a)
	require.NoError(t, err)
	assert.Equal(t, object.String("object"), result)
}

func TestConstantPoolRestoredAfterCall(t *testing.T) {
	in := newInterpreter(t)
	a := asm.NewActions().
		ConstantPool("outer").
		DefineFunction("f", nil, asm.NewActions().
			ConstantPool("inner").
			Push(asm.Const(0)).
			Op(op.ActionReturn))
	call(a, "f").
		Push(asm.Const(0)).Op(op.ActionAdd2).
		Op(op.ActionReturn)
	result, err := in.Run(context.Background(), a.Bytes())
	require.NoError(t, err)
	assert.Equal(t, object.String("innerouter"), result)
	assert.Nil(t, in.pool)
}

func TestConstantPoolRestoredAfterException(t *testing.T) {
	in := newInterpreter(t)
	a := asm.NewActions().
		ConstantPool("outer").
		DefineFunction("f", nil, asm.NewActions().
			ConstantPool("inner").
			Push(asm.Const(0)).
			Op(op.ActionThrow)).
		Try(asm.Try{HasCatch: true, CatchName: "e", CatchLabel: "catch", FinallyLabel: "finally", EndLabel: "end"})
	call(a, "f").
		Jump("finally").
		Label("catch").
		Label("finally").
		Label("end").
		Push(asm.Const(0), asm.Str("e")).Op(op.ActionGetVariable).Op(op.ActionAdd2).
		Op(op.ActionReturn)
	result, err := in.Run(context.Background(), a.Bytes())
	require.NoError(t, err)
	assert.Equal(t, object.String("outerinner"), result)
	assert.Nil(t, in.pool)
}

func TestFunctionPoolCapturedAtDefinition(t *testing.T) {
	a := asm.NewActions().
		ConstantPool("defined").
		DefineFunction("f", nil, asm.NewActions().Push(asm.Const(0)).Op(op.ActionReturn)).
		ConstantPool("caller")
	call(a, "f").Op(op.ActionReturn)
	result, err := run(t, a)
	require.NoError(t, err)
	assert.Equal(t, object.String("defined"), result)
}

func TestCallDepthLimit(t *testing.T) {
	recurse := asm.NewActions()
	call(recurse, "f").Op(op.ActionReturn)
	a := asm.NewActions().
		DefineFunction("f", nil, recurse).
		Try(asm.Try{HasCatch: true, CatchName: "e", CatchLabel: "catch", FinallyLabel: "finally", EndLabel: "end"})
	call(a, "f").
		Label("catch").
		Label("finally").
		Label("end")
	_, err := run(t, a, WithMaxDepth(10))
	se := structured(t, err)
	assert.Equal(t, errz.ErrStack, se.Kind)
	assert.ErrorIs(t, err, errz.ErrCallDepth)
	assert.Len(t, se.Stack, 11)
}

func TestHostReentry(t *testing.T) {
	apply := func(ctx context.Context, this object.Value, args []object.Value) (object.Value, error) {
		fn, ok := object.Arg(args, 0).(object.Callable)
		if !ok {
			return nil, object.TypeErrorf("not callable")
		}
		return fn.Call(ctx, nil, args[1:])
	}
	in := newInterpreter(t, WithGlobals(map[string]any{"apply": apply}))
	a := asm.NewActions().
		DefineFunction("inc", []string{"n"}, asm.NewActions().
			Push(asm.Str("n")).Op(op.ActionGetVariable).Op(op.ActionIncrement).
			Op(op.ActionReturn)).
		Push(asm.Int(41), asm.Str("inc")).Op(op.ActionGetVariable).
		Push(asm.Int(2), asm.Str("apply")).Op(op.ActionCallFunction).
		Op(op.ActionReturn)
	result, err := in.Run(context.Background(), a.Bytes())
	require.NoError(t, err)
	assert.Equal(t, object.Int(42), result)

	inc, err := in.Get("inc")
	require.NoError(t, err)
	result, err = in.Invoke(context.Background(), inc, nil, object.Int(1))
	require.NoError(t, err)
	assert.Equal(t, object.Int(2), result)

	// Called directly, a script function enters the interpreter itself.
	result, err = inc.(object.Callable).Call(context.Background(), nil, []object.Value{object.Int(9)})
	require.NoError(t, err)
	assert.Equal(t, object.Int(10), result)
}

func TestCallMethod(t *testing.T) {
	a := asm.NewActions().
		Push(asm.Str("o"), asm.Str("k"), asm.Int(4), asm.Int(1)).Op(op.ActionInitObject).Op(op.ActionSetVariable).
		Push(asm.Str("o")).Op(op.ActionGetVariable).
		Push(asm.Str("get")).
		DefineFunction("", nil, asm.NewActions().
			Push(asm.Str("this")).Op(op.ActionGetVariable).
			Push(asm.Str("k")).Op(op.ActionGetMember).
			Op(op.ActionReturn)).
		Op(op.ActionSetMember).
		Push(asm.Int(0), asm.Str("o")).Op(op.ActionGetVariable).
		Push(asm.Str("get")).Op(op.ActionCallMethod).
		Op(op.ActionReturn)
	result, err := run(t, a)
	require.NoError(t, err)
	assert.Equal(t, object.Int(4), result)
}

func TestCallOfNonFunctionPushesUndefined(t *testing.T) {
	a := asm.NewActions()
	call(a, "missing").Op(op.ActionReturn)
	result, err := run(t, a)
	require.NoError(t, err)
	assert.Equal(t, object.Undefined, result)
}

func TestExtendsAndInstanceOf(t *testing.T) {
	a := asm.NewActions().
		DefineFunction("A", nil, asm.NewActions()).
		DefineFunction("B", nil, asm.NewActions()).
		Push(asm.Str("B")).Op(op.ActionGetVariable).
		Push(asm.Str("A")).Op(op.ActionGetVariable).
		Op(op.ActionExtends).
		Push(asm.Int(0), asm.Str("B")).Op(op.ActionNewObject).
		Push(asm.Str("A")).Op(op.ActionGetVariable).
		Op(op.ActionInstanceOf).
		Op(op.ActionReturn)
	result, err := run(t, a)
	require.NoError(t, err)
	assert.Equal(t, object.Bool(true), result)
}

func TestSuperIsBoundFromVersion6(t *testing.T) {
	program := func() *asm.Actions {
		return asm.NewActions().
			DefineFunction("A", nil, asm.NewActions()).
			DefineFunction("B", nil, asm.NewActions().
				Push(asm.Str("seen"), asm.Str("super")).Op(op.ActionGetVariable).
				Push(asm.Str("A")).Op(op.ActionGetVariable).
				Op(op.ActionStrictEquals).
				Op(op.ActionSetVariable)).
			Push(asm.Str("B")).Op(op.ActionGetVariable).
			Push(asm.Str("A")).Op(op.ActionGetVariable).
			Op(op.ActionExtends).
			Push(asm.Int(0), asm.Str("B")).Op(op.ActionNewObject).Op(op.ActionPop).
			Push(asm.Str("seen")).Op(op.ActionGetVariable).
			Op(op.ActionReturn)
	}
	result, err := run(t, program())
	require.NoError(t, err)
	assert.Equal(t, object.Bool(true), result)

	result, err = run(t, program(), WithSWFVersion(5))
	require.NoError(t, err)
	assert.Equal(t, object.Bool(false), result)
}
