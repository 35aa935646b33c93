package pipeline

import (
	"context"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeusync/physync/internal/core/physics/dynamics"
	"github.com/zeusync/physync/internal/core/physics/geom"
)

type testWorld struct {
	in       StepInput
	pipeline *PhysicsPipeline
	events   ContactEvents
}

func newTestWorld() *testWorld {
	return &testWorld{
		in: StepInput{
			Gravity:     mgl64.Vec3{0, -9.81, 0},
			Params:      dynamics.DefaultIntegrationParameters(),
			Bodies:      dynamics.NewBodySet(),
			Colliders:   dynamics.NewColliderSet(),
			Joints:      dynamics.NewJointSet(),
			Islands:     dynamics.NewIslandManager(),
			NarrowPhase: NewNarrowPhase(),
			Queries:     NewQueryPipeline(),
		},
		pipeline: NewPhysicsPipeline(),
	}
}

func (w *testWorld) clone() *testWorld {
	return &testWorld{
		in: StepInput{
			Gravity:     w.in.Gravity,
			Params:      w.in.Params,
			Bodies:      w.in.Bodies.Clone(),
			Colliders:   w.in.Colliders.Clone(),
			Joints:      w.in.Joints.Clone(),
			Islands:     w.in.Islands.Clone(),
			NarrowPhase: w.in.NarrowPhase.Clone(),
			Queries:     w.in.Queries.Clone(),
		},
		pipeline: NewPhysicsPipeline(),
	}
}

func (w *testWorld) add(t *testing.T, kind dynamics.BodyKind, pos geom.Isometry, shape geom.Shape) (dynamics.BodyHandle, dynamics.ColliderHandle) {
	t.Helper()
	h := w.in.Bodies.Insert(dynamics.NewRigidBody(kind, pos))
	ch, ok := w.in.Colliders.InsertWithParent(dynamics.NewCollider(shape, dynamics.DefaultMaterial(), geom.Identity()), h, w.in.Bodies)
	require.True(t, ok)
	w.in.Queries.MarkDirty()
	return h, ch
}

func (w *testWorld) step(t *testing.T, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		events, err := w.pipeline.Step(context.Background(), w.in)
		require.NoError(t, err)
		w.events.Started = append(w.events.Started, events.Started...)
		w.events.Stopped = append(w.events.Stopped, events.Stopped...)
	}
}

func (w *testWorld) position(h dynamics.BodyHandle) mgl64.Vec3 {
	b, _ := w.in.Bodies.Get(h)
	return b.Position().Translation
}

func addGround(t *testing.T, w *testWorld) dynamics.BodyHandle {
	h, _ := w.add(t, dynamics.Fixed, geom.Translation(0, -0.5, 0), geom.NewCuboid(mgl64.Vec3{10, 0.5, 10}))
	return h
}

func TestBallSettlesOnGround(t *testing.T) {
	w := newTestWorld()
	ground := addGround(t, w)
	ball, _ := w.add(t, dynamics.Dynamic, geom.Translation(0, 2, 0), geom.NewBall(0.5))

	w.step(t, 120)

	pos := w.position(ball)
	assert.InDelta(t, 0.5, pos[1], 0.05)
	assert.InDelta(t, 0, pos[0], 1e-6)
	assert.Equal(t, mgl64.Vec3{0, -0.5, 0}, w.position(ground))

	require.Len(t, w.events.Started, 1)
	assert.Empty(t, w.events.Stopped)
}

func TestBoxRestsFlat(t *testing.T) {
	w := newTestWorld()
	addGround(t, w)
	box, _ := w.add(t, dynamics.Dynamic, geom.Translation(0, 1, 0), geom.NewCuboid(mgl64.Vec3{0.5, 0.5, 0.5}))

	w.step(t, 120)

	b, _ := w.in.Bodies.Get(box)
	assert.InDelta(t, 0.5, b.Position().Translation[1], 0.05)
	assert.True(t, b.Position().ApproxEqual(geom.Translation(b.Position().Translation[0], b.Position().Translation[1], b.Position().Translation[2]), 1e-3),
		"box should not tip over")
}

func TestStepIsDeterministic(t *testing.T) {
	build := func() (*testWorld, []dynamics.BodyHandle) {
		w := newTestWorld()
		addGround(t, w)
		var handles []dynamics.BodyHandle
		for i := 0; i < 4; i++ {
			h, _ := w.add(t, dynamics.Dynamic, geom.Translation(float64(i)*0.3, 1+float64(i)*1.1, 0), geom.NewCuboid(mgl64.Vec3{0.5, 0.5, 0.5}))
			handles = append(handles, h)
		}
		return w, handles
	}

	a, handles := build()
	b, _ := build()
	a.step(t, 30)
	b.step(t, 30)
	forked := a.clone()
	a.step(t, 60)
	b.step(t, 60)
	forked.step(t, 60)

	for _, h := range handles {
		ba, _ := a.in.Bodies.Get(h)
		bb, _ := b.in.Bodies.Get(h)
		bf, _ := forked.in.Bodies.Get(h)
		assert.Equal(t, ba.Position(), bb.Position())
		assert.Equal(t, ba.Position(), bf.Position())
		assert.Equal(t, ba.LinearVelocity(), bf.LinearVelocity())
	}
}

func TestFixedBodyNeverMoves(t *testing.T) {
	w := newTestWorld()
	ground := addGround(t, w)
	w.add(t, dynamics.Dynamic, geom.Translation(0, 0.4, 0), geom.NewBall(0.5))
	w.in.Bodies.GetMut(ground).ApplyImpulse(mgl64.Vec3{100, 100, 0}, true)

	w.step(t, 30)

	b, _ := w.in.Bodies.Get(ground)
	assert.Equal(t, geom.Translation(0, -0.5, 0), b.Position())
	assert.Equal(t, mgl64.Vec3{}, b.LinearVelocity())
}

func TestFastBallDoesNotTunnel(t *testing.T) {
	w := newTestWorld()
	w.add(t, dynamics.Fixed, geom.Translation(0, -0.05, 0), geom.NewCuboid(mgl64.Vec3{5, 0.05, 5}))
	ball, _ := w.add(t, dynamics.Dynamic, geom.Translation(0, 3, 0), geom.NewBall(0.1))
	body := w.in.Bodies.GetMut(ball)
	body.EnableCCD(true)
	body.SetLinearVelocity(mgl64.Vec3{0, -300, 0}, true)

	w.step(t, 3)

	assert.Greater(t, w.position(ball)[1], 0.0)
}

func TestKinematicFollowsTarget(t *testing.T) {
	w := newTestWorld()
	h, _ := w.add(t, dynamics.KinematicPositionBased, geom.Identity(), geom.NewCuboid(mgl64.Vec3{1, 0.1, 1}))
	w.in.Bodies.GetMut(h).SetNextKinematicPosition(geom.Translation(0, 1, 0))

	w.step(t, 1)
	assert.InDelta(t, 1, w.position(h)[1], 1e-12)

	w.step(t, 5)
	assert.InDelta(t, 1, w.position(h)[1], 1e-12, "no new target keeps the body in place")
}

func TestJointHoldsBodiesTogether(t *testing.T) {
	w := newTestWorld()
	anchor, _ := w.add(t, dynamics.Fixed, geom.Translation(0, 5, 0), geom.NewBall(0.1))
	bob, _ := w.add(t, dynamics.Dynamic, geom.Translation(1, 5, 0), geom.NewBall(0.2))
	w.in.Joints.Insert(dynamics.BallJoint{Body1: anchor, Body2: bob, LocalAnchor2: mgl64.Vec3{-1, 0, 0}})

	w.step(t, 60)

	b, _ := w.in.Bodies.Get(bob)
	attach := b.Position().TransformPoint(mgl64.Vec3{-1, 0, 0})
	assert.InDelta(t, 0, attach.Sub(mgl64.Vec3{0, 5, 0}).Len(), 0.1)
	assert.Less(t, b.Position().Translation[1], 5.0, "the bob swings down")
}

func TestQueries(t *testing.T) {
	w := newTestWorld()
	ball, ballCollider := w.add(t, dynamics.Dynamic, geom.Identity(), geom.NewBall(0.5))
	_, boxCollider := w.add(t, dynamics.Fixed, geom.Translation(3, 0, 0), geom.NewCuboid(mgl64.Vec3{0.5, 0.5, 0.5}))
	w.in.Queries.Update(w.in.Colliders)

	collect := func(filter QueryFilter) []dynamics.ColliderHandle {
		var out []dynamics.ColliderHandle
		w.in.Queries.IntersectSphere(w.in.Bodies, w.in.Colliders, mgl64.Vec3{}, 5, filter, func(h dynamics.ColliderHandle, _ *dynamics.Collider) bool {
			out = append(out, h)
			return true
		})
		return out
	}
	assert.Equal(t, []dynamics.ColliderHandle{ballCollider, boxCollider}, collect(QueryFilter{}))
	assert.Equal(t, []dynamics.ColliderHandle{ballCollider}, collect(QueryFilter{OnlyDynamic: true}))

	ray := geom.Ray{Origin: mgl64.Vec3{-5, 0, 0}, Dir: mgl64.Vec3{1, 0, 0}}
	hit, ok := w.in.Queries.CastRay(w.in.Bodies, w.in.Colliders, ray, 100, QueryFilter{})
	require.True(t, ok)
	assert.Equal(t, ballCollider, hit.Collider)
	assert.InDelta(t, 4.5, hit.Toi, 1e-9)

	hit, ok = w.in.Queries.CastRay(w.in.Bodies, w.in.Colliders, ray, 100, QueryFilter{}.ExcludeBody(ball))
	require.True(t, ok)
	assert.Equal(t, boxCollider, hit.Collider)
	assert.InDelta(t, 7.5, hit.Toi, 1e-9)

	_, ok = w.in.Queries.CastRay(w.in.Bodies, w.in.Colliders, ray, 4, QueryFilter{})
	assert.False(t, ok)

	shapeHit, ok := w.in.Queries.CastShape(w.in.Bodies, w.in.Colliders, geom.NewBall(0.25), geom.Translation(-5, 0, 0), mgl64.Vec3{1, 0, 0}, 10, 0, QueryFilter{})
	require.True(t, ok)
	assert.Equal(t, ballCollider, shapeHit.Collider)
	assert.InDelta(t, 4.25, shapeHit.Toi, 1e-3)
}

func TestRemoveColliderDropsContacts(t *testing.T) {
	w := newTestWorld()
	addGround(t, w)
	_, ballCollider := w.add(t, dynamics.Dynamic, geom.Translation(0, 0.5, 0), geom.NewBall(0.5))
	w.step(t, 1)
	require.Len(t, w.in.NarrowPhase.Pairs(), 1)

	dropped := w.in.NarrowPhase.RemoveCollider(ballCollider, w.in.Bodies)
	assert.Len(t, dropped, 1)
	assert.Empty(t, w.in.NarrowPhase.Pairs())
}

func TestRestingBallFallsAsleep(t *testing.T) {
	w := newTestWorld()
	addGround(t, w)
	ball, _ := w.add(t, dynamics.Dynamic, geom.Translation(0, 0.5, 0), geom.NewBall(0.5))

	asleepAt := -1
	for i := 0; i < 300 && asleepAt < 0; i++ {
		w.step(t, 1)
		if b, _ := w.in.Bodies.Get(ball); b.IsSleeping() {
			asleepAt = i
		}
	}
	require.Positive(t, asleepAt, "the ball never fell asleep")

	b, _ := w.in.Bodies.Get(ball)
	assert.Equal(t, mgl64.Vec3{}, b.LinearVelocity())
	assert.InDelta(t, 0.5, b.Position().Translation[1], 0.02)
}

func TestRemoveColliderWakesPartner(t *testing.T) {
	w := newTestWorld()
	_, groundCollider := w.add(t, dynamics.Fixed, geom.Translation(0, -0.5, 0), geom.NewCuboid(mgl64.Vec3{10, 0.5, 10}))
	ball, _ := w.add(t, dynamics.Dynamic, geom.Translation(0, 0.5, 0), geom.NewBall(0.5))
	w.step(t, 300)
	b, _ := w.in.Bodies.Get(ball)
	require.True(t, b.IsSleeping())

	w.in.NarrowPhase.RemoveCollider(groundCollider, w.in.Bodies)
	b, _ = w.in.Bodies.Get(ball)
	assert.False(t, b.IsSleeping())
}

func TestContactImpulsesCarryOver(t *testing.T) {
	w := newTestWorld()
	addGround(t, w)
	w.add(t, dynamics.Dynamic, geom.Translation(0, 0.5, 0), geom.NewCuboid(mgl64.Vec3{0.5, 0.5, 0.5}))
	w.step(t, 10)

	pairs := w.in.NarrowPhase.Pairs()
	require.Len(t, pairs, 1)
	require.Len(t, pairs[0].Impulses, 4)
	total := 0.0
	for _, imp := range pairs[0].Impulses {
		assert.GreaterOrEqual(t, imp.Normal, 0.0)
		total += imp.Normal
	}
	assert.InDelta(t, 9.81/60, total, 0.02, "the contacts carry the weight of the box")

	forked := w.clone()
	before := pairs[0].Impulses
	forked.step(t, 1)
	assert.Equal(t, before, w.in.NarrowPhase.Pairs()[0].Impulses, "stepping a clone leaves the source alone")
}

func TestBoxStackComesToRest(t *testing.T) {
	w := newTestWorld()
	addGround(t, w)
	var boxes []dynamics.BodyHandle
	for i := 0; i < 3; i++ {
		h, _ := w.add(t, dynamics.Dynamic, geom.Translation(0, 0.5+float64(i), 0), geom.NewCuboid(mgl64.Vec3{0.5, 0.5, 0.5}))
		boxes = append(boxes, h)
	}

	w.step(t, 1200)

	for i, h := range boxes {
		b, _ := w.in.Bodies.Get(h)
		pos := b.Position()
		assert.InDelta(t, 0, pos.Translation[0], 0.01, "box %d", i)
		assert.InDelta(t, 0.5+float64(i), pos.Translation[1], 0.03, "box %d", i)
		assert.InDelta(t, 0, pos.Translation[2], 0.01, "box %d", i)
		assert.True(t, pos.ApproxEqual(geom.Translation(pos.Translation[0], pos.Translation[1], pos.Translation[2]), 1e-2), "box %d tilted", i)
		assert.True(t, b.IsSleeping(), "box %d", i)
	}
}
