package stack

import (
	"errors"
	"testing"

	"github.com/deepnoodle-ai/avm/errz"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPushPop(t *testing.T) {
	s := New[int](0)
	for i := 0; i < 200; i++ {
		require.Nil(t, s.Push(i))
	}
	require.Equal(t, 200, s.Size())
	for i := 199; i >= 0; i-- {
		v, err := s.Pop()
		require.Nil(t, err)
		require.Equal(t, i, v)
	}
	_, err := s.Pop()
	require.Error(t, err)
	assert.True(t, errors.Is(err, errz.ErrStackFault))
}

func TestFencing(t *testing.T) {
	s := New[string](0)
	require.Nil(t, s.Push("a"))
	require.Nil(t, s.Push("b"))

	prev, err := s.SetFence(s.TotalSize())
	require.Nil(t, err)
	assert.Equal(t, 0, prev)
	assert.Equal(t, 0, s.Size())
	assert.Equal(t, 2, s.TotalSize())

	require.Nil(t, s.Push("c"))
	size := s.Size()
	for i := 0; i < size; i++ {
		_, err := s.Pop()
		require.Nil(t, err)
	}
	_, err = s.Pop()
	require.Error(t, err, "popping past the fence must fault")
	kind, ok := errz.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, errz.ErrStack, kind)

	// Fenced entries are not reachable through Top or Drop...
	_, err = s.Top(0)
	assert.Error(t, err)
	assert.Error(t, s.Drop(1))

	// ...but remain readable by absolute index.
	for i := 0; i < s.TotalSize(); i++ {
		v, err := s.At(i)
		require.Nil(t, err)
		assert.Equal(t, []string{"a", "b"}[i], v)
	}
	_, err = s.At(s.TotalSize())
	assert.Error(t, err)

	_, err = s.SetFence(prev)
	require.Nil(t, err)
	v, err := s.Pop()
	require.Nil(t, err)
	assert.Equal(t, "b", v)
}

func TestFenceBounds(t *testing.T) {
	s := New[int](0)
	require.Nil(t, s.Push(1))
	_, err := s.SetFence(2)
	assert.Error(t, err)
	_, err = s.SetFence(-1)
	assert.Error(t, err)
	assert.Equal(t, 0, s.Fence())
}

func TestTopDropGrow(t *testing.T) {
	s := New[int](0)
	for i := 1; i <= 5; i++ {
		require.Nil(t, s.Push(i))
	}
	v, err := s.Top(0)
	require.Nil(t, err)
	assert.Equal(t, 5, v)
	v, err = s.Top(4)
	require.Nil(t, err)
	assert.Equal(t, 1, v)
	_, err = s.Top(5)
	assert.Error(t, err)

	require.Nil(t, s.SetTop(1, 40))
	v, _ = s.Top(1)
	assert.Equal(t, 40, v)

	require.Nil(t, s.Drop(2))
	assert.Equal(t, 3, s.Size())
	require.Nil(t, s.Grow(3))
	assert.Equal(t, 6, s.Size())
	v, _ = s.Top(0)
	assert.Equal(t, 0, v, "grown slots are zeroed")
	assert.Error(t, s.Drop(7))
}

func TestLimit(t *testing.T) {
	s := New[int](3)
	require.Nil(t, s.Push(1))
	require.Nil(t, s.Grow(2))
	err := s.Push(4)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errz.ErrStackFault))
	assert.Error(t, s.Grow(1))
}

func TestRefStableAcrossGrowth(t *testing.T) {
	s := New[int](0)
	require.Nil(t, s.Push(42))
	ref, err := s.Ref(0)
	require.Nil(t, err)
	for i := 0; i < chunkSize*8; i++ {
		require.Nil(t, s.Push(i))
	}
	assert.Equal(t, 42, *ref)
	*ref = 7
	v, err := s.At(0)
	require.Nil(t, err)
	assert.Equal(t, 7, v)
}
