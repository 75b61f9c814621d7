package errz

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorMessage(t *testing.T) {
	err := NewStructuredErrorf(ErrType, SourceLocation{Function: "main", Offset: 12}, nil,
		"cannot call %s", "undefined")
	assert.Equal(t, "type error: cannot call undefined (main @12)", err.Error())

	err = Newf(ErrRuntime, nil, "boom")
	assert.Equal(t, "runtime error: boom", err.Error())
}

func TestLocationString(t *testing.T) {
	tests := []struct {
		loc      SourceLocation
		expected string
	}{
		{SourceLocation{Offset: 3}, "@3"},
		{SourceLocation{Function: "f", Offset: 3, Line: 7}, "f @3 line 7"},
		{SourceLocation{Function: "f", Offset: 3, File: "Main.as", Line: 7}, "f @3 Main.as:7"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, tt.loc.String())
	}
	assert.True(t, SourceLocation{}.IsZero())
}

func TestSentinelCauses(t *testing.T) {
	tests := []struct {
		err      *StructuredError
		kind     ErrorKind
		sentinel error
		fatal    bool
	}{
		{Truncated(10, 4, 12), ErrMalformed, ErrTruncatedInput, true},
		{PoolFault("string", 9, 3), ErrPool, ErrPoolIndex, true},
		{StackFault("pop of empty stack"), ErrStack, ErrStackFault, false},
		{Timeout("budget of %s exceeded", "1s"), ErrTimeout, ErrBudgetExceeded, false},
	}
	for _, tt := range tests {
		wrapped := fmt.Errorf("loading: %w", tt.err)
		assert.ErrorIs(t, wrapped, tt.sentinel)
		kind, ok := KindOf(wrapped)
		require.True(t, ok)
		assert.Equal(t, tt.kind, kind)
		assert.Equal(t, tt.fatal, tt.err.IsFatal())
	}
	_, ok := KindOf(errors.New("plain"))
	assert.False(t, ok)
	assert.Equal(t, "read of 4 byte(s) at offset 10 exceeds end 12", Truncated(10, 4, 12).Message)
}

func TestFriendlyErrorMessage(t *testing.T) {
	stack := []StackFrame{
		{Function: "inner", Location: SourceLocation{Function: "inner", Offset: 4}},
		{Location: SourceLocation{Offset: 9}},
	}
	err := NewStructuredError(ErrScript, "boom", SourceLocation{Function: "inner", Offset: 4}, stack)
	expected := "uncaught exception: boom (inner @4)\n" +
		"\n" +
		"Stack trace:\n" +
		"  at inner (inner @4)\n" +
		"  at <anonymous> (@9)\n"
	assert.Equal(t, expected, err.FriendlyErrorMessage())

	cause := errors.New("cause")
	assert.Same(t, cause, err.WithCause(cause).Unwrap())
}
