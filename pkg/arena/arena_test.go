package arena_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeusync/physync/pkg/arena"
)

func TestHandlePacking(t *testing.T) {
	tests := []struct {
		index      uint32
		generation uint32
	}{
		{0, 0},
		{1, 0},
		{0, 1},
		{0xFFFFFFFE, 0x12345678},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("index=%d,gen=%d", tt.index, tt.generation), func(t *testing.T) {
			h := arena.NewHandle(tt.index, tt.generation)
			back := arena.Unpack(h.Pack())
			assert.Equal(t, h, back)
			assert.Equal(t, tt.index, back.Index())
			assert.Equal(t, tt.generation, back.Generation())
		})
	}
}

func TestInsertGetRemove(t *testing.T) {
	a := arena.New[string](4)

	h1 := a.Insert("one")
	h2 := a.Insert("two")
	assert.NotEqual(t, h1, h2)
	assert.Equal(t, 2, a.Len())

	v, ok := a.Get(h1)
	require.True(t, ok)
	assert.Equal(t, "one", v)

	removed, ok := a.Remove(h1)
	require.True(t, ok)
	assert.Equal(t, "one", removed)
	assert.Equal(t, 1, a.Len())

	_, ok = a.Remove(h1)
	assert.False(t, ok, "second removal must report false")

	_, ok = a.Get(h1)
	assert.False(t, ok)
	assert.Nil(t, a.GetMut(h1))
}

func TestStaleHandleAfterReuse(t *testing.T) {
	a := arena.New[int](0)

	old := a.Insert(1)
	_, ok := a.Remove(old)
	require.True(t, ok)

	reused := a.Insert(2)
	assert.Equal(t, old.Index(), reused.Index(), "slot should be reused")
	assert.NotEqual(t, old.Generation(), reused.Generation())

	_, ok = a.Get(old)
	assert.False(t, ok, "stale handle must not resolve to the new value")
	v, ok := a.Get(reused)
	require.True(t, ok)
	assert.Equal(t, 2, v)
}

func TestNeverIssuedHandle(t *testing.T) {
	a := arena.New[int](0)
	a.Insert(7)

	_, ok := a.Get(arena.NewHandle(42, 0))
	assert.False(t, ok)
	_, ok = a.Get(arena.Invalid)
	assert.False(t, ok)
	assert.False(t, a.Contains(arena.Invalid))
}

func TestGetMut(t *testing.T) {
	a := arena.New[int](0)
	h := a.Insert(1)

	p := a.GetMut(h)
	require.NotNil(t, p)
	*p = 10

	v, _ := a.Get(h)
	assert.Equal(t, 10, v)
}

func TestIterationOrder(t *testing.T) {
	a := arena.New[int](0)
	h0 := a.Insert(0)
	h1 := a.Insert(1)
	h2 := a.Insert(2)
	a.Remove(h1)

	var got []arena.Handle
	for h := range a.All() {
		got = append(got, h)
	}
	assert.Equal(t, []arena.Handle{h0, h2}, got)
	assert.Equal(t, got, a.Handles())
}

func TestCloneIsIndependent(t *testing.T) {
	a := arena.New[[]int](0)
	h := a.Insert([]int{1, 2})
	gone := a.Insert([]int{3})
	a.Remove(gone)

	b := a.Clone(func(v []int) []int { return append([]int(nil), v...) })

	*b.GetMut(h) = append(*b.GetMut(h), 3)
	orig, _ := a.Get(h)
	assert.Equal(t, []int{1, 2}, orig)

	// Both lineages allocate the same handle next.
	assert.Equal(t, a.Insert(nil), b.Insert(nil))
}
