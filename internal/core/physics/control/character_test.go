package control

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeusync/physync/internal/core/physics/dynamics"
	"github.com/zeusync/physync/internal/core/physics/geom"
	"github.com/zeusync/physync/internal/core/physics/pipeline"
)

type scene struct {
	bodies    *dynamics.BodySet
	colliders *dynamics.ColliderSet
	queries   *pipeline.QueryPipeline
}

func newScene() *scene {
	return &scene{
		bodies:    dynamics.NewBodySet(),
		colliders: dynamics.NewColliderSet(),
		queries:   pipeline.NewQueryPipeline(),
	}
}

func (s *scene) addFixed(t *testing.T, pos geom.Isometry, shape geom.Shape) dynamics.BodyHandle {
	t.Helper()
	h := s.bodies.Insert(dynamics.NewRigidBody(dynamics.Fixed, pos))
	_, ok := s.colliders.InsertWithParent(dynamics.NewCollider(shape, dynamics.DefaultMaterial(), geom.Identity()), h, s.bodies)
	require.True(t, ok)
	s.queries.Update(s.colliders)
	return h
}

func (s *scene) move(c CharacterController, start geom.Isometry, desired mgl64.Vec3, filter pipeline.QueryFilter) EffectiveMovement {
	return c.MoveShape(1.0/60, s.bodies, s.colliders, s.queries, geom.NewBall(0.5), start, desired, filter)
}

func addGround(t *testing.T, s *scene) dynamics.BodyHandle {
	return s.addFixed(t, geom.Translation(0, -0.5, 0), geom.NewCuboid(mgl64.Vec3{20, 0.5, 20}))
}

func TestMoveShapeUnobstructed(t *testing.T) {
	s := newScene()
	c := DefaultCharacterController()

	out := s.move(c, geom.Translation(0, 10, 0), mgl64.Vec3{1, 2, 3}, pipeline.QueryFilter{})

	assert.Equal(t, mgl64.Vec3{1, 2, 3}, out.Translation)
	assert.False(t, out.Grounded)
	assert.Empty(t, out.Collisions)
	assert.InDelta(t, 60, out.Velocity[0], 1e-9)
}

func TestMoveShapeLandsOnGround(t *testing.T) {
	s := newScene()
	addGround(t, s)
	c := DefaultCharacterController()

	out := s.move(c, geom.Translation(0, 1, 0), mgl64.Vec3{0, -1, 0}, pipeline.QueryFilter{})

	assert.InDelta(t, -0.49, out.Translation[1], 1e-4)
	assert.True(t, out.Grounded)
	require.Len(t, out.Collisions, 1)
	assert.InDelta(t, 1, out.Collisions[0].Normal[1], 1e-6)
	assert.False(t, out.IsSlidingDownSlope)
}

func TestMoveShapeWalksAlongGround(t *testing.T) {
	s := newScene()
	addGround(t, s)
	c := DefaultCharacterController()

	out := s.move(c, geom.Translation(0, 0.51, 0), mgl64.Vec3{1, -0.1, 0}, pipeline.QueryFilter{})

	assert.InDelta(t, 1, out.Translation[0], 1e-4)
	assert.InDelta(t, 0, out.Translation[1], 1e-4)
	assert.True(t, out.Grounded)
}

func TestMoveShapeSlidesAlongWall(t *testing.T) {
	tests := []struct {
		name  string
		slide bool
		want  mgl64.Vec3
	}{
		{name: "slide", slide: true, want: mgl64.Vec3{0.99, 0, 1}},
		{name: "stop", slide: false, want: mgl64.Vec3{0.99, 0, 0.495}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newScene()
			s.addFixed(t, geom.Translation(2, 0, 0), geom.NewCuboid(mgl64.Vec3{0.5, 2, 2}))
			c := DefaultCharacterController()
			c.Slide = tt.slide

			out := s.move(c, geom.Identity(), mgl64.Vec3{2, 0, 1}, pipeline.QueryFilter{})

			for i := range 3 {
				assert.InDelta(t, tt.want[i], out.Translation[i], 1e-3)
			}
			assert.False(t, out.Grounded)
			require.NotEmpty(t, out.Collisions)
			assert.InDelta(t, -1, out.Collisions[0].Normal[0], 1e-6)
		})
	}
}

func TestMoveShapeIgnoresExcludedBody(t *testing.T) {
	s := newScene()
	wall := s.addFixed(t, geom.Translation(2, 0, 0), geom.NewCuboid(mgl64.Vec3{0.5, 2, 2}))
	c := DefaultCharacterController()

	out := s.move(c, geom.Identity(), mgl64.Vec3{3, 0, 0}, pipeline.QueryFilter{}.ExcludeBody(wall))

	assert.Equal(t, mgl64.Vec3{3, 0, 0}, out.Translation)
	assert.Empty(t, out.Collisions)
}

func TestMoveShapeOnSlopes(t *testing.T) {
	normal := func(angle float64) mgl64.Vec3 {
		return mgl64.Vec3{-math.Sin(angle), math.Cos(angle), 0}
	}
	// The top face of the ramp passes through the origin.
	ramp := func(angle float64) geom.Isometry {
		return geom.NewIsometry(normal(angle).Mul(-0.5), mgl64.QuatRotate(angle, mgl64.Vec3{0, 0, 1}))
	}
	restingOn := func(angle float64) geom.Isometry {
		return geom.Identity().Translated(normal(angle).Mul(0.51))
	}

	t.Run("gentle slope holds the character", func(t *testing.T) {
		s := newScene()
		s.addFixed(t, ramp(0.2), geom.NewCuboid(mgl64.Vec3{20, 0.5, 20}))
		c := DefaultCharacterController()

		out := s.move(c, restingOn(0.2), mgl64.Vec3{0, -0.2, 0}, pipeline.QueryFilter{})

		assert.InDelta(t, 0, out.Translation.Len(), 1e-3)
		assert.True(t, out.Grounded)
		assert.False(t, out.IsSlidingDownSlope)
	})

	t.Run("steep slope slides", func(t *testing.T) {
		s := newScene()
		s.addFixed(t, ramp(1.0), geom.NewCuboid(mgl64.Vec3{20, 0.5, 20}))
		c := DefaultCharacterController()

		out := s.move(c, restingOn(1.0), mgl64.Vec3{0, -0.2, 0}, pipeline.QueryFilter{})

		assert.Less(t, out.Translation[1], -1e-3)
		assert.True(t, out.IsSlidingDownSlope)
		assert.False(t, out.Grounded)
	})
}
