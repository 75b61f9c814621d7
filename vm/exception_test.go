package vm

import (
	"context"
	"errors"
	"testing"

	"github.com/deepnoodle-ai/avm/errz"
	"github.com/deepnoodle-ai/avm/internal/asm"
	"github.com/deepnoodle-ai/avm/object"
	"github.com/deepnoodle-ai/avm/op"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func structured(t *testing.T, err error) *errz.StructuredError {
	t.Helper()
	require.Error(t, err)
	var se *errz.StructuredError
	require.True(t, errors.As(err, &se), "expected a structured error, got %T: %v", err, err)
	return se
}

func TestCatchThrownValue(t *testing.T) {
	u := asm.NewUnit()
	c := prologue().
		Label("from").
		Op(op.PushString, u.String("boom")).
		Op(op.Throw).
		Label("to").
		Op(op.PushUndefined).Op(op.ReturnValue).
		Label("catch").
		Op(op.PushString, u.String("!")).Op(op.Add).Op(op.ReturnValue)
	code := c.Bytes()
	u.Script(u.Function(asm.MethodDef{Name: "main"}, 1, code, asm.ExceptionDef{
		From:   c.LabelOffset("from"),
		To:     c.LabelOffset("to"),
		Target: c.LabelOffset("catch"),
	}))

	result, err := run(t, u)
	require.NoError(t, err)
	assert.Equal(t, object.String("boom!"), result)
}

func TestExceptionUnwindsThroughCalls(t *testing.T) {
	u := asm.NewUnit()
	fname := u.Public("f")
	errName := u.Public("Error")
	f := u.Function(asm.MethodDef{Name: "f"}, 1, asm.NewCode().
		Op(op.FindPropStrict, errName).
		Op(op.PushString, u.String("bad")).
		Op(op.ConstructProp, errName, 1).
		Op(op.Throw).Bytes())
	c := prologue().
		Label("from").
		Op(op.FindPropStrict, fname).
		Op(op.CallProperty, fname, 0).
		Label("to").
		Op(op.ReturnValue).
		Label("wrong").
		Op(op.PushString, u.String("wrong")).Op(op.ReturnValue).
		Label("catch").
		Op(op.GetProperty, u.Public("message")).Op(op.ReturnValue)
	code := c.Bytes()
	main := u.Function(asm.MethodDef{Name: "main"}, 1, code,
		asm.ExceptionDef{
			From:   c.LabelOffset("from"),
			To:     c.LabelOffset("to"),
			Target: c.LabelOffset("wrong"),
			Type:   u.Public("TypeError"),
		},
		asm.ExceptionDef{
			From:   c.LabelOffset("from"),
			To:     c.LabelOffset("to"),
			Target: c.LabelOffset("catch"),
			Type:   errName,
		})
	u.Script(main, asm.MethodTrait(fname, f))

	result, err := run(t, u)
	require.NoError(t, err)
	assert.Equal(t, object.String("bad"), result)
}

func TestUncaughtThrowBecomesScriptError(t *testing.T) {
	u := asm.NewUnit()
	u.Script(u.Function(asm.MethodDef{Name: "main"}, 1, prologue().
		Op(op.DebugLine, 7).
		Op(op.PushString, u.String("x")).
		Op(op.Throw).Bytes()))

	_, err := run(t, u)
	se := structured(t, err)
	assert.Equal(t, errz.ErrScript, se.Kind)
	assert.Equal(t, object.String("x"), se.Value)
	assert.Equal(t, "main", se.Location.Function)
	assert.Equal(t, 7, se.Location.Line)
	require.Len(t, se.Stack, 1)
	exc, ok := object.AsException(err)
	require.True(t, ok)
	assert.Equal(t, object.String("x"), exc.Value)
}

func TestUncaughtTypeError(t *testing.T) {
	u := asm.NewUnit()
	u.Script(u.Function(asm.MethodDef{Name: "main"}, 1, prologue().
		Op(op.PushNull).
		Op(op.GetProperty, u.Public("x")).
		Op(op.ReturnValue).Bytes()))

	_, err := run(t, u)
	se := structured(t, err)
	assert.Equal(t, errz.ErrType, se.Kind)
	class, ok := object.ErrorClass(se.Value.(object.Value))
	require.True(t, ok)
	assert.Equal(t, "TypeError", class)
}

func TestTypeErrorIsCatchable(t *testing.T) {
	u := asm.NewUnit()
	c := prologue().
		Label("from").
		Op(op.PushNull).
		Op(op.GetProperty, u.Public("x")).
		Label("to").
		Op(op.ReturnValue).
		Label("catch").
		Op(op.GetProperty, u.Public("name")).Op(op.ReturnValue)
	code := c.Bytes()
	u.Script(u.Function(asm.MethodDef{Name: "main"}, 1, code, asm.ExceptionDef{
		From:   c.LabelOffset("from"),
		To:     c.LabelOffset("to"),
		Target: c.LabelOffset("catch"),
		Type:   u.Public("TypeError"),
	}))

	result, err := run(t, u)
	require.NoError(t, err)
	assert.Equal(t, object.String("TypeError"), result)
}

func TestStackFaultIsNotCatchable(t *testing.T) {
	u := asm.NewUnit()
	c := prologue().
		Label("from").
		Op(op.Pop).
		Label("to").
		Op(op.ReturnVoid).
		Label("catch").
		Op(op.ReturnValue)
	code := c.Bytes()
	u.Script(u.Function(asm.MethodDef{Name: "main"}, 1, code, asm.ExceptionDef{
		From:   c.LabelOffset("from"),
		To:     c.LabelOffset("to"),
		Target: c.LabelOffset("catch"),
	}))

	_, err := run(t, u)
	se := structured(t, err)
	assert.Equal(t, errz.ErrStack, se.Kind)
	assert.Equal(t, "main", se.Location.Function)
}

func TestCalleeCannotPopCallerOperands(t *testing.T) {
	u := asm.NewUnit()
	fname := u.Public("f")
	f := u.Function(asm.MethodDef{Name: "f"}, 1, asm.NewCode().Op(op.Pop).Op(op.ReturnVoid).Bytes())
	main := u.Function(asm.MethodDef{Name: "main"}, 1, prologue().
		Op(op.PushByte, 1).
		Op(op.PushByte, 2).
		Op(op.FindPropStrict, fname).
		Op(op.CallPropVoid, fname, 0).
		Op(op.Add).
		Op(op.ReturnValue).Bytes())
	u.Script(main, asm.MethodTrait(fname, f))

	_, err := run(t, u)
	se := structured(t, err)
	assert.Equal(t, errz.ErrStack, se.Kind)
	assert.Equal(t, "f", se.Location.Function)
	require.Len(t, se.Stack, 2)
	assert.Equal(t, "main", se.Stack[1].Function)
}

func TestCallDepthLimit(t *testing.T) {
	u := asm.NewUnit()
	fname := u.Public("f")
	f := u.Function(asm.MethodDef{Name: "f"}, 1, asm.NewCode().
		Op(op.FindPropStrict, fname).
		Op(op.CallProperty, fname, 0).
		Op(op.ReturnValue).Bytes())
	main := u.Function(asm.MethodDef{Name: "main"}, 1, prologue().
		Op(op.FindPropStrict, fname).
		Op(op.CallProperty, fname, 0).
		Op(op.ReturnValue).Bytes())
	u.Script(main, asm.MethodTrait(fname, f))

	machine := newVM(t, u, WithMaxDepth(16))
	_, err := machine.Run(context.Background())
	se := structured(t, err)
	assert.Equal(t, errz.ErrStack, se.Kind)
	assert.ErrorIs(t, err, errz.ErrCallDepth)

	// The machine is usable again after the failed run.
	assert.Empty(t, machine.states)
	assert.Equal(t, 0, machine.stack.TotalSize())
	assert.Equal(t, 0, machine.scope.TotalSize())
}

func TestExceptionCrossesHostBoundary(t *testing.T) {
	apply := object.NewBuiltin("apply", func(ctx context.Context, this object.Value, args []object.Value) (object.Value, error) {
		return args[0].(object.Callable).Call(ctx, nil, nil)
	})
	u := asm.NewUnit()
	applyName := u.Public("apply")
	thrower := u.Function(asm.MethodDef{Name: "thrower"}, 1, asm.NewCode().
		Op(op.PushString, u.String("inner")).Op(op.Throw).Bytes())
	c := prologue().
		Label("from").
		Op(op.FindPropStrict, applyName).
		Op(op.NewFunction, thrower).
		Op(op.CallProperty, applyName, 1).
		Label("to").
		Op(op.ReturnValue).
		Label("catch").
		Op(op.PushString, u.String("?")).Op(op.Add).Op(op.ReturnValue)
	code := c.Bytes()
	u.Script(u.Function(asm.MethodDef{Name: "main"}, 1, code, asm.ExceptionDef{
		From:   c.LabelOffset("from"),
		To:     c.LabelOffset("to"),
		Target: c.LabelOffset("catch"),
	}))

	result, err := run(t, u, WithGlobals(map[string]any{"apply": apply}))
	require.NoError(t, err)
	assert.Equal(t, object.String("inner?"), result)
}

func TestRethrowFromCatch(t *testing.T) {
	u := asm.NewUnit()
	c := prologue().
		Label("from").
		Op(op.PushString, u.String("first")).
		Op(op.Throw).
		Label("to").
		Label("catch").
		Op(op.Pop).
		Op(op.PushString, u.String("second")).
		Op(op.Throw)
	code := c.Bytes()
	u.Script(u.Function(asm.MethodDef{Name: "main"}, 1, code, asm.ExceptionDef{
		From:   c.LabelOffset("from"),
		To:     c.LabelOffset("to"),
		Target: c.LabelOffset("catch"),
	}))

	_, err := run(t, u)
	se := structured(t, err)
	assert.Equal(t, object.String("second"), se.Value)
}

func TestNewCatchBindsVariable(t *testing.T) {
	u := asm.NewUnit()
	eName := u.Public("e")
	c := prologue().
		Label("from").
		Op(op.PushString, u.String("caught")).
		Op(op.Throw).
		Label("to").
		Label("catch").
		Op(op.SetLocal1).
		Op(op.NewCatch, 0).
		Op(op.Dup).
		Op(op.PushScope).
		Op(op.GetLocal1).
		Op(op.SetSlot, 1).
		Op(op.GetLex, eName).
		Op(op.ReturnValue)
	code := c.Bytes()
	u.Script(u.Function(asm.MethodDef{Name: "main"}, 2, code, asm.ExceptionDef{
		From:    c.LabelOffset("from"),
		To:      c.LabelOffset("to"),
		Target:  c.LabelOffset("catch"),
		VarName: eName,
	}))

	result, err := run(t, u)
	require.NoError(t, err)
	assert.Equal(t, object.String("caught"), result)
}
