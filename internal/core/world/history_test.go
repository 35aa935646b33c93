package world

import (
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeusync/physync/internal/core/physics/dynamics"
	"github.com/zeusync/physync/internal/core/physics/geom"
)

func newState() *State {
	return NewState(mgl64.Vec3{0, -9.81, 0}, dynamics.DefaultIntegrationParameters())
}

func TestHistoryPushAndGet(t *testing.T) {
	initial := newState()
	h := NewHistory(initial, 0)
	assert.Equal(t, uint32(0), h.Latest())
	assert.Same(t, initial, h.Current())

	next := newState()
	assert.Equal(t, uint32(1), h.Push(next))
	got, ok := h.Get(1)
	require.True(t, ok)
	assert.Same(t, next, got)
	got, ok = h.Get(0)
	require.True(t, ok)
	assert.Same(t, initial, got)

	_, ok = h.Get(2)
	assert.False(t, ok)
}

func TestHistoryRetention(t *testing.T) {
	h := NewHistory(newState(), 3)
	for i := 0; i < 5; i++ {
		h.Push(newState())
	}
	assert.Equal(t, 3, h.Len())
	assert.Equal(t, uint32(3), h.Oldest())
	assert.Equal(t, uint32(5), h.Latest())
	_, ok := h.Get(2)
	assert.False(t, ok)
}

func TestHistoryTruncateAfter(t *testing.T) {
	h := NewHistory(newState(), 0)
	for i := 0; i < 4; i++ {
		h.Push(newState())
	}
	third, _ := h.Get(2)

	require.True(t, h.TruncateAfter(2))
	assert.Equal(t, uint32(2), h.Latest())
	assert.Same(t, third, h.Current())

	assert.False(t, h.TruncateAfter(3))
	assert.True(t, h.TruncateAfter(2))
	assert.Equal(t, 3, h.Len())
}

func TestStateCloneIsIndependent(t *testing.T) {
	s := newState()
	h := s.Bodies.Insert(dynamics.NewRigidBody(dynamics.Dynamic, geom.Translation(0, 1, 0)))
	s.bind("A", h)

	c := s.Clone()
	c.Bodies.GetMut(h).SetLinearVelocity(mgl64.Vec3{1, 0, 0}, true)
	c.unbind(h)
	c.bind("B", c.Bodies.Insert(dynamics.NewRigidBody(dynamics.Fixed, geom.Identity())))

	b, _ := s.Bodies.Get(h)
	assert.Equal(t, mgl64.Vec3{}, b.LinearVelocity())
	id, ok := s.IDOf(h)
	assert.True(t, ok)
	assert.Equal(t, "A", id)
	_, ok = s.HandleOf("B")
	assert.False(t, ok)
	assert.Equal(t, 1, s.NumNamed())
	assert.Equal(t, 1, c.NumNamed())
}

func TestChecksum(t *testing.T) {
	build := func() *State {
		s := newState()
		s.Bodies.Insert(dynamics.NewRigidBody(dynamics.Dynamic, geom.Translation(1, 2, 3)))
		s.Bodies.Insert(dynamics.NewRigidBody(dynamics.Fixed, geom.Identity()))
		return s
	}
	a, b := build(), build()
	assert.Equal(t, a.Checksum(), b.Checksum())
	assert.Equal(t, a.Checksum(), a.Clone().Checksum())

	for _, body := range b.Bodies.All {
		if body.IsDynamic() {
			body.SetLinearVelocity(mgl64.Vec3{0, 1e-9, 0}, true)
		}
	}
	assert.NotEqual(t, a.Checksum(), b.Checksum())
	assert.NotEqual(t, newState().Checksum(), a.Checksum())
}
