package legacy

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

func newInterpreter(t *testing.T, opts ...Option) *Interpreter {
	t.Helper()
	in, err := New(opts...)
	require.NoError(t, err)
	return in
}

func run(t *testing.T, a *asm.Actions, opts ...Option) (object.Value, error) {
	t.Helper()
	return newInterpreter(t, opts...).Run(context.Background(), a.Bytes())
}

func structured(t *testing.T, err error) *errz.StructuredError {
	t.Helper()
	require.Error(t, err)
	var se *errz.StructuredError
	require.True(t, errors.As(err, &se), "expected a structured error, got %T: %v", err, err)
	return se
}

func values(t *testing.T, v object.Value) []object.Value {
	t.Helper()
	obj, ok := v.(object.Object)
	require.True(t, ok, "expected an object, got %v", v)
	return object.ArrayValues(obj)
}

// call pushes args in reverse and calls the named function.
func call(a *asm.Actions, name string, args ...asm.Value) *asm.Actions {
	vals := make([]asm.Value, 0, len(args)+2)
	for i := len(args) - 1; i >= 0; i-- {
		vals = append(vals, args[i])
	}
	vals = append(vals, asm.Int(int32(len(args))), asm.Str(name))
	return a.Push(vals...).Op(op.ActionCallFunction)
}

func TestArithmetic(t *testing.T) {
	a := asm.NewActions().
		Push(asm.Int(6), asm.Int(7)).Op(op.ActionMultiply).
		Push(asm.Int(2)).Op(op.ActionSubtract).
		Op(op.ActionReturn)
	result, err := run(t, a)
	require.NoError(t, err)
	assert.Equal(t, object.Int(40), result)
}

func TestAdd2ConcatenatesStrings(t *testing.T) {
	a := asm.NewActions().
		Push(asm.Str("n="), asm.Int(3)).Op(op.ActionAdd2).
		Op(op.ActionReturn)
	result, err := run(t, a)
	require.NoError(t, err)
	assert.Equal(t, object.String("n=3"), result)
}

func TestLess2WithNaNIsUndefined(t *testing.T) {
	a := asm.NewActions().
		Push(asm.Str("x"), asm.Int(1)).Op(op.ActionLess2).
		Op(op.ActionReturn)
	result, err := run(t, a)
	require.NoError(t, err)
	assert.Equal(t, object.Undefined, result)

	a = asm.NewActions().
		Push(asm.Int(1), asm.Int(2)).Op(op.ActionLess2).
		Op(op.ActionReturn)
	result, err = run(t, a)
	require.NoError(t, err)
	assert.Equal(t, object.Bool(true), result)
}

func TestStringExtractIsOneBased(t *testing.T) {
	a := asm.NewActions().
		Push(asm.Str("hello"), asm.Int(2), asm.Int(3)).Op(op.ActionStringExtract).
		Op(op.ActionReturn)
	result, err := run(t, a)
	require.NoError(t, err)
	assert.Equal(t, object.String("ell"), result)
}

func TestPushTypes(t *testing.T) {
	a := asm.NewActions().
		Push(asm.Str("s"), asm.Float(1.5), asm.Null(), asm.Undefined(),
			asm.Bool(true), asm.Double(2.25), asm.Int(-7), asm.Int(7)).
		Op(op.ActionInitArray).
		Op(op.ActionReturn)
	result, err := run(t, a)
	require.NoError(t, err)
	assert.Equal(t, []object.Value{
		object.Int(-7),
		object.Number(2.25),
		object.Bool(true),
		object.Undefined,
		object.Null,
		object.Number(1.5),
		object.String("s"),
	}, values(t, result))
}

func TestConstantPool(t *testing.T) {
	a := asm.NewActions().
		ConstantPool("a", "b").
		Push(asm.Const(0), asm.Const(1)).Op(op.ActionStringAdd).
		Push(asm.Const(9)).Op(op.ActionAdd2).
		Op(op.ActionReturn)
	result, err := run(t, a)
	require.NoError(t, err)
	assert.Equal(t, object.String("abundefined"), result)
}

func TestGlobalRegisters(t *testing.T) {
	in := newInterpreter(t)
	a := asm.NewActions().
		Push(asm.Str("kept")).StoreRegister(2).Op(op.ActionPop).
		Push(asm.Reg(2)).Op(op.ActionReturn)
	result, err := in.Run(context.Background(), a.Bytes())
	require.NoError(t, err)
	assert.Equal(t, object.String("kept"), result)
	assert.Equal(t, object.String("kept"), in.Register(2))
	assert.Equal(t, object.Undefined, in.Register(3))
}

func TestVariables(t *testing.T) {
	in := newInterpreter(t, WithGlobals(map[string]any{"base": 10}))
	a := asm.NewActions().
		Push(asm.Str("x"), asm.Str("base")).Op(op.ActionGetVariable).
		Push(asm.Int(5)).Op(op.ActionAdd2).
		Op(op.ActionSetVariable).
		Push(asm.Str("gone"), asm.Int(1)).Op(op.ActionSetVariable).
		Push(asm.Str("gone")).Op(op.ActionDelete2).Op(op.ActionPop).
		Push(asm.Str("x")).Op(op.ActionGetVariable).
		Op(op.ActionReturn)
	result, err := in.Run(context.Background(), a.Bytes())
	require.NoError(t, err)
	assert.Equal(t, object.Int(15), result)

	x, err := in.Get("x")
	require.NoError(t, err)
	assert.Equal(t, object.Int(15), x)
	_, err = in.Get("gone")
	require.ErrorIs(t, err, ErrGlobalNotFound)
}

func TestObjectMembers(t *testing.T) {
	a := asm.NewActions().
		Push(asm.Str("o"), asm.Str("x"), asm.Int(1), asm.Int(1)).Op(op.ActionInitObject).
		Op(op.ActionSetVariable).
		Push(asm.Str("o")).Op(op.ActionGetVariable).
		Push(asm.Str("y"), asm.Int(2)).Op(op.ActionSetMember).
		Push(asm.Str("o")).Op(op.ActionGetVariable).Push(asm.Str("x")).Op(op.ActionGetMember).
		Push(asm.Str("o")).Op(op.ActionGetVariable).Push(asm.Str("y")).Op(op.ActionGetMember).
		Op(op.ActionAdd2).
		Op(op.ActionReturn)
	result, err := run(t, a)
	require.NoError(t, err)
	assert.Equal(t, object.Int(3), result)
}

func TestEnumerate(t *testing.T) {
	a := asm.NewActions().
		Push(asm.Str("a"), asm.Int(1), asm.Str("b"), asm.Int(2), asm.Int(2)).Op(op.ActionInitObject).
		Op(op.ActionEnumerate2).
		Push(asm.Int(2)).Op(op.ActionInitArray).
		Op(op.ActionReturn)
	result, err := run(t, a)
	require.NoError(t, err)
	assert.ElementsMatch(t, []object.Value{object.String("a"), object.String("b")}, values(t, result))
}

func TestBranches(t *testing.T) {
	// Sum 1..5 with a backward branch.
	a := asm.NewActions().
		Push(asm.Str("i"), asm.Int(0)).Op(op.ActionSetVariable).
		Push(asm.Str("sum"), asm.Int(0)).Op(op.ActionSetVariable).
		Label("top").
		Push(asm.Str("i"), asm.Str("i")).Op(op.ActionGetVariable).Op(op.ActionIncrement).Op(op.ActionSetVariable).
		Push(asm.Str("sum"), asm.Str("sum")).Op(op.ActionGetVariable).
		Push(asm.Str("i")).Op(op.ActionGetVariable).Op(op.ActionAdd2).Op(op.ActionSetVariable).
		Push(asm.Str("i")).Op(op.ActionGetVariable).Push(asm.Int(5)).Op(op.ActionLess2).
		If("top").
		Push(asm.Str("sum")).Op(op.ActionGetVariable).
		Op(op.ActionReturn)
	result, err := run(t, a)
	require.NoError(t, err)
	assert.Equal(t, object.Int(15), result)
}

func TestJumpOutsideBufferIsMalformed(t *testing.T) {
	a := asm.NewActions().Payload(op.ActionJump, []byte{0xff, 0x7f})
	_, err := run(t, a)
	se := structured(t, err)
	assert.Equal(t, errz.ErrMalformed, se.Kind)
}

func TestStackUnderflowIsFault(t *testing.T) {
	a := asm.NewActions().Op(op.ActionAdd2)
	_, err := run(t, a)
	se := structured(t, err)
	assert.Equal(t, errz.ErrStack, se.Kind)
	assert.Equal(t, "<actions>", se.Location.Function)
}

func TestTimelineAndUnknownActionsAreSkipped(t *testing.T) {
	a := asm.NewActions().
		Op(op.ActionPlay).
		Push(asm.Str("url"), asm.Str("_blank")).Payload(op.ActionGetURL2, []byte{0}).
		Op(op.Action(0x02)).
		Push(asm.Str("ok")).Op(op.ActionReturn)
	result, err := run(t, a)
	require.NoError(t, err)
	assert.Equal(t, object.String("ok"), result)
}

func TestTrace(t *testing.T) {
	var buf bytes.Buffer
	a := asm.NewActions().Push(asm.Str("hello")).Op(op.ActionTrace)
	_, err := run(t, a, WithTrace(&buf))
	require.NoError(t, err)
	assert.Equal(t, "hello\n", buf.String())
}

func TestLeftoverValuesAreDropped(t *testing.T) {
	in := newInterpreter(t)
	a := asm.NewActions().Push(asm.Int(1), asm.Int(2), asm.Int(3))
	_, err := in.Run(context.Background(), a.Bytes())
	require.NoError(t, err)
	assert.Equal(t, 0, in.stack.TotalSize())
	assert.Equal(t, 0, in.stack.Fence())
}

func TestWithScopesLookup(t *testing.T) {
	a := asm.NewActions().
		Push(asm.Str("o"), asm.Str("x"), asm.Int(1), asm.Int(1)).Op(op.ActionInitObject).
		Op(op.ActionSetVariable).
		Push(asm.Str("x"), asm.Str("global")).Op(op.ActionSetVariable).
		Push(asm.Str("o")).Op(op.ActionGetVariable).
		With(asm.NewActions().
			Push(asm.Str("inside"), asm.Str("x")).Op(op.ActionGetVariable).Op(op.ActionSetVariable)).
		Push(asm.Str("inside")).Op(op.ActionGetVariable).
		Push(asm.Str("x")).Op(op.ActionGetVariable).
		Op(op.ActionStringAdd).
		Op(op.ActionReturn)
	result, err := run(t, a)
	require.NoError(t, err)
	assert.Equal(t, object.String("1global"), result)
}

// nestedWiths builds depth with blocks on the global object o.
func nestedWiths(depth int) *asm.Actions {
	body := asm.NewActions().Push(asm.Str("reached"), asm.Bool(true)).Op(op.ActionSetVariable)
	for i := 0; i < depth; i++ {
		body = asm.NewActions().
			Push(asm.Str("o")).Op(op.ActionGetVariable).
			With(body)
	}
	return asm.NewActions().
		Push(asm.Str("o"), asm.Int(0)).Op(op.ActionInitObject).Op(op.ActionSetVariable).
		Push(asm.Str("o")).Op(op.ActionGetVariable).
		With(body)
}

func TestWithNestingLimit(t *testing.T) {
	tests := []struct {
		version int
		depth   int
		ok      bool
	}{
		{version: 5, depth: 7, ok: true},
		{version: 5, depth: 8, ok: false},
		{version: 6, depth: 8, ok: true},
		{version: 6, depth: 15, ok: true},
		{version: 6, depth: 16, ok: false},
	}
	for _, tt := range tests {
		// nestedWiths adds one block of its own.
		_, err := run(t, nestedWiths(tt.depth-1), WithSWFVersion(tt.version))
		if tt.ok {
			require.NoError(t, err, "version %d depth %d", tt.version, tt.depth)
			continue
		}
		se := structured(t, err)
		assert.Equal(t, errz.ErrStack, se.Kind, "version %d depth %d", tt.version, tt.depth)
	}
}

func TestWithNonObjectSkipsBlock(t *testing.T) {
	a := asm.NewActions().
		Push(asm.Int(3)).
		With(asm.NewActions().Push(asm.Str("ran"), asm.Bool(true)).Op(op.ActionSetVariable)).
		Push(asm.Str("ran")).Op(op.ActionGetVariable).Op(op.ActionTypeOf).
		Op(op.ActionReturn)
	result, err := run(t, a)
	require.NoError(t, err)
	assert.Equal(t, object.String("undefined"), result)
}

// countingClock returns a clock that advances by step on every read.
func countingClock(step time.Duration) (func() time.Time, *int) {
	reads := 0
	base := time.Unix(1700000000, 0)
	return func() time.Time {
		reads++
		return base.Add(time.Duration(reads) * step)
	}, &reads
}

func TestBudgetOnBackwardJump(t *testing.T) {
	a := asm.NewActions().Label("top").Jump("top")
	clock, _ := countingClock(time.Minute)
	_, err := run(t, a, WithBudget(time.Second), WithClock(clock))
	se := structured(t, err)
	assert.Equal(t, errz.ErrTimeout, se.Kind)
	assert.ErrorIs(t, err, errz.ErrBudgetExceeded)
}

func TestForwardJumpSkipsBudget(t *testing.T) {
	a := asm.NewActions().
		Jump("end").
		Push(asm.Str("skipped")).Op(op.ActionReturn).
		Label("end").
		Push(asm.Str("done")).Op(op.ActionReturn)
	clock, _ := countingClock(time.Hour)
	result, err := run(t, a, WithBudget(time.Second), WithClock(clock))
	require.NoError(t, err)
	assert.Equal(t, object.String("done"), result)
}

func TestCancelledContextStopsLoop(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	in := newInterpreter(t)
	_, err := in.Run(ctx, asm.NewActions().Label("top").Jump("top").Bytes())
	se := structured(t, err)
	assert.Equal(t, errz.ErrTimeout, se.Kind)
	assert.ErrorIs(t, err, context.Canceled)
}

type markSet map[object.Object]bool

func (m markSet) MarkReachable(obj object.Object) { m[obj] = true }

func TestMarkReachable(t *testing.T) {
	in := newInterpreter(t)
	a := asm.NewActions().
		Push(asm.Str("kept"), asm.Int(0)).Op(op.ActionInitObject).Op(op.ActionSetVariable)
	_, err := in.Run(context.Background(), a.Bytes())
	require.NoError(t, err)
	kept, err := in.Get("kept")
	require.NoError(t, err)

	m := markSet{}
	in.MarkReachable(m)
	assert.True(t, m[in.Global()])
	assert.True(t, m[kept.(object.Object)])
}
