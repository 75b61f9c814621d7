package object

import (
	"context"
	"math"
	"testing"

	"github.com/deepnoodle-ai/avm/errz"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLessThanInfinities(t *testing.T) {
	inf, ninf := Number(math.Inf(1)), Number(math.Inf(-1))
	tests := []struct {
		a, b Value
		want bool
	}{
		{inf, inf, false},
		{inf, Int(1), false},
		{Int(1), inf, true},
		{ninf, inf, true},
		{Int(1), ninf, false},
		{ninf, ninf, false},
		{ninf, Int(-5), true},
		{Int(1), Int(2), true},
		{Int(2), Int(1), false},
		{String("abc"), String("abd"), true},
		{String("10"), String("9"), true},
		{String("10"), Int(9), false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, LessThan(tt.a, tt.b, false), "%s < %s", tt.a.Inspect(), tt.b.Inspect())
	}
}

func TestLessThanStringsUseUTF16Order(t *testing.T) {
	smile, private := String("\U0001F600"), String("\uE000")
	assert.True(t, LessThan(smile, private, false))
	assert.False(t, LessThan(private, smile, false))
	assert.True(t, LessThan(String("a\U0001F600"), String("a\uFFFD"), false))
	assert.True(t, LessThan(String("ab"), String("abc"), false))
	assert.False(t, LessThan(String("é"), String("e"), false))
}

func TestLessThanNaNUsesDefault(t *testing.T) {
	assert.False(t, LessThan(NaN, Int(1), false))
	assert.True(t, LessThan(NaN, Int(1), true))
	assert.True(t, LessThan(Undefined, Int(1), true))
	assert.False(t, LessThan(String("x"), Int(1), false))
}

func TestEquals(t *testing.T) {
	obj := NewDynamic("Object", nil)
	tests := []struct {
		a, b   Value
		loose  bool
		strict bool
	}{
		{Int(1), Number(1), true, true},
		{Uint(3), Int(3), true, true},
		{String("1"), Int(1), true, false},
		{True, Int(1), true, false},
		{Undefined, Null, true, false},
		{Null, Int(0), false, false},
		{NaN, NaN, false, false},
		{String("a"), String("a"), true, true},
		{obj, obj, true, true},
		{obj, NewDynamic("Object", nil), false, false},
		{obj, String("[object Object]"), true, false},
		{NewArray([]Value{Int(1), Int(2)}), String("1,2"), true, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.loose, Equals(tt.a, tt.b), "%s == %s", tt.a.Inspect(), tt.b.Inspect())
		assert.Equal(t, tt.strict, StrictEquals(tt.a, tt.b), "%s === %s", tt.a.Inspect(), tt.b.Inspect())
	}
}

func TestConversions(t *testing.T) {
	assert.Equal(t, "1", ToString(Number(1)))
	assert.Equal(t, "1.5", ToString(Number(1.5)))
	assert.Equal(t, "NaN", ToString(NaN))
	assert.Equal(t, "-Infinity", ToString(Number(math.Inf(-1))))
	assert.Equal(t, "1e+21", ToString(Number(1e21)))
	assert.Equal(t, "1e-7", ToString(Number(1e-7)))
	assert.Equal(t, "undefined", ToString(Undefined))
	assert.Equal(t, "null", ToString(Null))

	assert.Equal(t, 255.0, ToNumber(String("0xff")))
	assert.Equal(t, 0.0, ToNumber(String("  ")))
	assert.True(t, math.IsNaN(ToNumber(String("inf"))))
	assert.True(t, math.IsNaN(ToNumber(Undefined)))
	assert.Equal(t, 0.0, ToNumber(Null))

	assert.Equal(t, int32(-1), ToInt32(Number(4294967295)))
	assert.Equal(t, uint32(4294967295), ToUint32(Int(-1)))
	assert.Equal(t, int32(0), ToInt32(NaN))

	assert.False(t, ToBoolean(String("")))
	assert.True(t, ToBoolean(String("0")))
	assert.False(t, ToBoolean(NaN))
	assert.True(t, ToBoolean(NewDynamic("", nil)))
}

func TestAdd(t *testing.T) {
	assert.Equal(t, Int(3), Add(Int(1), Int(2)))
	assert.Equal(t, String("12"), Add(String("1"), Int(2)))
	assert.Equal(t, Number(1.5), Add(Number(1), Number(0.5)))
	assert.Equal(t, String("x[object Object]"), Add(String("x"), NewDynamic("", nil)))
}

func TestTypeOf(t *testing.T) {
	assert.Equal(t, "undefined", TypeOf(Undefined))
	assert.Equal(t, "object", TypeOf(Null))
	assert.Equal(t, "number", TypeOf(Uint(1)))
	assert.Equal(t, "function", TypeOf(NewBuiltin("f", nil)))
	assert.Equal(t, "object", TypeOf(NewArray(nil)))
}

func TestDynamicPrototypeAndSlots(t *testing.T) {
	proto := NewDynamic("Object", nil)
	require.Nil(t, proto.SetProperty("", "greet", String("hi")))
	obj := NewDynamic("Widget", proto)

	v, ok := obj.GetProperty("", "greet")
	require.True(t, ok)
	assert.Equal(t, String("hi"), v)
	assert.False(t, obj.HasOwn("", "greet"))

	id := obj.DefineSlot(0, "", "count", Int(0), false)
	assert.Equal(t, 1, id)
	require.Nil(t, obj.SetSlot(id, Int(5)))
	v, ok = obj.GetProperty("", "count")
	require.True(t, ok)
	assert.Equal(t, Int(5), v)
	assert.Empty(t, obj.Keys(), "slots are not enumerable")
	assert.False(t, obj.DeleteProperty("", "count"))

	obj.DefineSlot(2, "", "MAX", Int(9), true)
	err := obj.SetProperty("", "MAX", Int(10))
	require.Error(t, err)
	kind, _ := errz.KindOf(err)
	assert.Equal(t, errz.ErrType, kind)

	_, err = obj.Slot(7)
	assert.Error(t, err)
}

func TestArray(t *testing.T) {
	arr := NewArray([]Value{Int(1), String("x")})
	assert.Equal(t, []Value{Int(1), String("x")}, ArrayValues(arr))
	require.Nil(t, arr.SetProperty("", "3", True))
	length, _ := arr.GetProperty("", "length")
	assert.Equal(t, Int(4), length)
	assert.Equal(t, []string{"0", "1", "3"}, arr.Keys())
}

func TestCyclicArrayToString(t *testing.T) {
	arr := NewArray(nil)
	require.Nil(t, arr.SetProperty("", "0", Int(1)))
	require.Nil(t, arr.SetProperty("", "1", arr))
	assert.Equal(t, "1,", ToString(arr))
	assert.Equal(t, "[1, [cycle]]", arr.Inspect())

	// The cycle may pass through an error message.
	err := NewDynamic("Error", nil)
	require.Nil(t, err.SetProperty("", "message", arr))
	require.Nil(t, arr.SetProperty("", "1", err))
	assert.Equal(t, "1,Error", ToString(arr))

	// Conversion leaves no state behind.
	require.Nil(t, arr.SetProperty("", "1", String("x")))
	assert.Equal(t, "1,x", ToString(arr))
}

type recordingMarker struct {
	seen []Object
}

func (r *recordingMarker) MarkReachable(obj Object) {
	r.seen = append(r.seen, obj)
}

func TestTrace(t *testing.T) {
	child := NewDynamic("Object", nil)
	getter := NewBuiltin("g", func(ctx context.Context, this Value, args []Value) (Value, error) {
		return Int(1), nil
	})
	obj := NewDynamic("Object", nil)
	require.Nil(t, obj.SetProperty("", "child", child))
	require.Nil(t, obj.SetProperty("", "acc", &Accessor{Getter: getter}))
	require.Nil(t, obj.SetProperty("", "n", Int(1)))

	m := &recordingMarker{}
	obj.Trace(m)
	assert.Equal(t, []Object{child, getter}, m.seen)
}

func TestFromGo(t *testing.T) {
	v, err := FromGo(map[string]any{
		"a": 1,
		"b": []any{"x", true},
	})
	require.Nil(t, err)
	assert.Equal(t, map[string]any{
		"a": int64(1),
		"b": []any{"x", true},
	}, ToGo(v))

	_, err = FromGo(struct{}{})
	assert.Error(t, err)
}

func TestException(t *testing.T) {
	exc := TypeErrorf("bad %s", "thing")
	class, ok := ErrorClass(exc.Value)
	require.True(t, ok)
	assert.Equal(t, "TypeError", class)
	assert.Equal(t, "uncaught exception: TypeError: bad thing", exc.Error())

	got, ok := AsException(error(exc))
	require.True(t, ok)
	assert.Same(t, exc, got)
}

func TestReachCycles(t *testing.T) {
	a := NewDynamic("Object", nil)
	b := NewDynamic("Object", a)
	require.Nil(t, a.SetProperty("", "b", b))
	require.Nil(t, a.SetProperty("", "self", a))

	m := &recordingMarker{}
	Reach(m, []Value{a, Int(3), b, Null})
	assert.Len(t, m.seen, 2)
	assert.ElementsMatch(t, []Object{a, b}, m.seen)
}

func TestInitPropertyWritesConstants(t *testing.T) {
	obj := NewDynamic("Point", nil)
	obj.DefineSlot(1, "", "x", Int(0), true)
	obj.Seal()

	err := obj.SetProperty("", "x", Int(5))
	kind, ok := errz.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, errz.ErrType, kind)

	require.Nil(t, obj.InitProperty("", "x", Int(5)))
	v, err := obj.Slot(1)
	require.Nil(t, err)
	assert.Equal(t, Int(5), v)

	assert.Error(t, obj.InitProperty("", "y", Int(1)))
}
