package dynamics

import (
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeusync/physync/internal/core/physics/geom"
)

type fixture struct {
	bodies    *BodySet
	colliders *ColliderSet
	joints    *JointSet
}

func newFixture() fixture {
	return fixture{bodies: NewBodySet(), colliders: NewColliderSet(), joints: NewJointSet()}
}

func (f fixture) addBody(t *testing.T, kind BodyKind, pos geom.Isometry, shape geom.Shape) (BodyHandle, ColliderHandle) {
	t.Helper()
	h := f.bodies.Insert(NewRigidBody(kind, pos))
	ch, ok := f.colliders.InsertWithParent(NewCollider(shape, DefaultMaterial(), geom.Identity()), h, f.bodies)
	require.True(t, ok)
	return h, ch
}

func TestParseBodyKind(t *testing.T) {
	tests := map[string]BodyKind{
		"dynamic":   Dynamic,
		"Fixed":     Fixed,
		"static":    Fixed,
		"kinematic": KinematicPositionBased,
		"":          Dynamic,
	}
	for in, want := range tests {
		got, err := ParseBodyKind(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
		assert.NotEmpty(t, got.String())
	}

	_, err := ParseBodyKind("gaseous")
	assert.Error(t, err)
}

func TestMassFollowsColliders(t *testing.T) {
	f := newFixture()
	h, first := f.addBody(t, Dynamic, geom.Identity(), geom.NewCuboid(mgl64.Vec3{0.5, 0.5, 0.5}))

	body, _ := f.bodies.Get(h)
	assert.InDelta(t, 1, body.Mass(), 1e-12)

	second, ok := f.colliders.InsertWithParent(
		NewCollider(geom.NewCuboid(mgl64.Vec3{0.5, 0.5, 0.5}), DefaultMaterial(), geom.Translation(2, 0, 0)), h, f.bodies)
	require.True(t, ok)

	body, _ = f.bodies.Get(h)
	assert.InDelta(t, 2, body.Mass(), 1e-12)
	assert.InDelta(t, 1, body.MassProperties().LocalCoM[0], 1e-12)
	assert.Equal(t, []ColliderHandle{first, second}, body.Colliders())

	removed, ok := f.colliders.Remove(first, f.bodies, true)
	require.True(t, ok)
	assert.Equal(t, h, removed.Parent())

	body, _ = f.bodies.Get(h)
	assert.InDelta(t, 1, body.Mass(), 1e-12)
	assert.Equal(t, []ColliderHandle{second}, body.Colliders())

	_, ok = f.colliders.Remove(first, f.bodies, true)
	assert.False(t, ok)
}

func TestInsertColliderOnMissingParent(t *testing.T) {
	f := newFixture()
	h := f.bodies.Insert(NewRigidBody(Dynamic, geom.Identity()))
	_, ok := f.bodies.Remove(h, f.colliders, f.joints)
	require.True(t, ok)

	_, ok = f.colliders.InsertWithParent(NewCollider(geom.NewBall(1), DefaultMaterial(), geom.Identity()), h, f.bodies)
	assert.False(t, ok)
	assert.Zero(t, f.colliders.Len())
}

func TestRemoveBodyCascades(t *testing.T) {
	f := newFixture()
	a, ca := f.addBody(t, Dynamic, geom.Identity(), geom.NewBall(0.5))
	b, _ := f.addBody(t, Dynamic, geom.Translation(2, 0, 0), geom.NewBall(0.5))
	f.joints.Insert(BallJoint{Body1: a, Body2: b, LocalAnchor1: mgl64.Vec3{1, 0, 0}, LocalAnchor2: mgl64.Vec3{-1, 0, 0}})

	_, ok := f.bodies.Remove(a, f.colliders, f.joints)
	require.True(t, ok)

	assert.False(t, f.colliders.Contains(ca))
	assert.Equal(t, 1, f.colliders.Len())
	assert.Zero(t, f.joints.Len())
	assert.Nil(t, f.bodies.GetMut(a))
}

func TestCloneIsIndependent(t *testing.T) {
	f := newFixture()
	h, _ := f.addBody(t, Dynamic, geom.Identity(), geom.NewBall(0.5))

	bodies := f.bodies.Clone()
	colliders := f.colliders.Clone()

	bodies.GetMut(h).SetLinearVelocity(mgl64.Vec3{1, 0, 0}, true)
	_, ok := colliders.InsertWithParent(NewCollider(geom.NewBall(0.1), DefaultMaterial(), geom.Identity()), h, bodies)
	require.True(t, ok)

	orig, _ := f.bodies.Get(h)
	assert.Equal(t, mgl64.Vec3{}, orig.LinearVelocity())
	assert.Len(t, orig.Colliders(), 1)
	assert.Equal(t, 1, f.colliders.Len())
}

func TestImpulsesAndForces(t *testing.T) {
	f := newFixture()
	h, _ := f.addBody(t, Dynamic, geom.Identity(), geom.NewCuboid(mgl64.Vec3{0.5, 0.5, 0.5}))
	fixed, _ := f.addBody(t, Fixed, geom.Identity(), geom.NewCuboid(mgl64.Vec3{0.5, 0.5, 0.5}))

	body := f.bodies.GetMut(h)
	body.ApplyImpulse(mgl64.Vec3{2, 0, 0}, true)
	assert.InDelta(t, 2, body.LinearVelocity()[0], 1e-12)

	body.ApplyTorqueImpulse(mgl64.Vec3{0, 1.0 / 6.0, 0}, true)
	assert.InDelta(t, 1, body.AngularVelocity()[1], 1e-9)

	body.AddForce(mgl64.Vec3{0, 10, 0}, true)
	body.IntegrateForces(0.1, mgl64.Vec3{0, -9.81, 0})
	assert.InDelta(t, 0.1*(10-9.81), body.LinearVelocity()[1], 1e-12)
	body.ResetForces()
	assert.Equal(t, mgl64.Vec3{}, body.Force())

	fb := f.bodies.GetMut(fixed)
	fb.ApplyImpulse(mgl64.Vec3{5, 0, 0}, true)
	fb.AddForce(mgl64.Vec3{5, 0, 0}, true)
	fb.IntegrateForces(0.1, mgl64.Vec3{0, -9.81, 0})
	fb.IntegratePosition(0.1)
	assert.Equal(t, mgl64.Vec3{}, fb.LinearVelocity())
	assert.Equal(t, mgl64.Vec3{}, fb.Position().Translation)
	assert.Zero(t, fb.Mass())
}

func TestGravityMovesMasslessBody(t *testing.T) {
	b := NewRigidBody(Dynamic, geom.Translation(0, 10, 0))
	b.IntegrateForces(0.5, mgl64.Vec3{0, -10, 0})
	b.IntegratePosition(0.5)
	assert.InDelta(t, 7.5, b.Position().Translation[1], 1e-12)
}

func TestKinematicVelocityFromTarget(t *testing.T) {
	b := NewRigidBody(KinematicPositionBased, geom.Identity())
	b.SetNextKinematicPosition(geom.NewIsometry(mgl64.Vec3{1, 0, 0}, mgl64.QuatRotate(0.5, mgl64.Vec3{0, 1, 0})))
	b.ComputeKinematicVelocity(0.5)

	assert.InDelta(t, 2, b.LinearVelocity()[0], 1e-12)
	assert.InDelta(t, 1, b.AngularVelocity()[1], 1e-9)

	b.IntegratePosition(0.5)
	assert.InDelta(t, 1, b.Position().Translation[0], 1e-12)
}

func TestSolverStopsBallOnGround(t *testing.T) {
	f := newFixture()
	ball, _ := f.addBody(t, Dynamic, geom.Translation(0, 0.5, 0), geom.NewBall(0.5))
	ground, _ := f.addBody(t, Fixed, geom.Translation(0, -0.5, 0), geom.NewCuboid(mgl64.Vec3{10, 0.5, 10}))
	f.bodies.GetMut(ball).SetLinearVelocity(mgl64.Vec3{0, -1, 0}, true)

	m, ok := geom.ContactConvex(geom.NewBall(0.5), geom.Translation(0, 0.5, 0),
		geom.NewCuboid(mgl64.Vec3{10, 0.5, 10}), geom.Translation(0, -0.5, 0), 0.01)
	require.True(t, ok)

	params := DefaultIntegrationParameters()
	NewSolver().Solve(f.bodies, []ContactInput{{Body1: ball, Body2: ground, Manifold: m, Friction: 0.5}}, nil, params)

	b, _ := f.bodies.Get(ball)
	assert.InDelta(t, 0, b.LinearVelocity()[1], 1e-9)
}

func TestSolverWarmStartsFromPreviousImpulses(t *testing.T) {
	f := newFixture()
	ball, _ := f.addBody(t, Dynamic, geom.Translation(0, 0.5, 0), geom.NewBall(0.5))
	ground, _ := f.addBody(t, Fixed, geom.Translation(0, -0.5, 0), geom.NewCuboid(mgl64.Vec3{10, 0.5, 10}))
	m, ok := geom.ContactConvex(geom.NewBall(0.5), geom.Translation(0, 0.5, 0),
		geom.NewCuboid(mgl64.Vec3{10, 0.5, 10}), geom.Translation(0, -0.5, 0), 0.01)
	require.True(t, ok)

	params := DefaultIntegrationParameters()
	fall := mgl64.Vec3{0, -9.81 * params.Dt, 0}
	f.bodies.GetMut(ball).SetLinearVelocity(fall, true)
	first := []ContactInput{{Body1: ball, Body2: ground, Manifold: m, Friction: 0.5}}
	NewSolver().Solve(f.bodies, first, nil, params)
	require.Len(t, first[0].Impulses, len(m.Points))
	assert.Positive(t, first[0].Impulses[0].Normal)

	// The stored impulse alone holds the ball.
	f.bodies.GetMut(ball).SetLinearVelocity(fall, true)
	params.SolverIterations = 0
	second := []ContactInput{{Body1: ball, Body2: ground, Manifold: m, Friction: 0.5, Warm: first[0].Impulses}}
	NewSolver().Solve(f.bodies, second, nil, params)

	b, _ := f.bodies.Get(ball)
	assert.InDelta(t, 0, b.LinearVelocity()[1], 1e-9)
	assert.Equal(t, first[0].Impulses, second[0].Impulses)
}

func TestSolverSkipsManifoldWithoutDynamicBody(t *testing.T) {
	f := newFixture()
	a, _ := f.addBody(t, Fixed, geom.Identity(), geom.NewBall(0.5))
	b, _ := f.addBody(t, Fixed, geom.Translation(0.9, 0, 0), geom.NewBall(0.5))
	m, ok := geom.ContactConvex(geom.NewBall(0.5), geom.Identity(), geom.NewBall(0.5), geom.Translation(0.9, 0, 0), 0.01)
	require.True(t, ok)

	contacts := []ContactInput{{Body1: a, Body2: b, Manifold: m, Impulses: []ContactImpulse{{Normal: 1}}}}
	NewSolver().Solve(f.bodies, contacts, nil, DefaultIntegrationParameters())
	assert.Nil(t, contacts[0].Impulses)
}

func TestSolverCorrectsPenetrationWithoutVelocity(t *testing.T) {
	f := newFixture()
	ball, _ := f.addBody(t, Dynamic, geom.Translation(0, 0.4, 0), geom.NewBall(0.5))
	ground, _ := f.addBody(t, Fixed, geom.Translation(0, -0.5, 0), geom.NewCuboid(mgl64.Vec3{10, 0.5, 10}))
	m, ok := geom.ContactConvex(geom.NewBall(0.5), geom.Translation(0, 0.4, 0),
		geom.NewCuboid(mgl64.Vec3{10, 0.5, 10}), geom.Translation(0, -0.5, 0), 0.01)
	require.True(t, ok)

	params := DefaultIntegrationParameters()
	NewSolver().Solve(f.bodies, []ContactInput{{Body1: ball, Body2: ground, Manifold: m}}, nil, params)

	b := f.bodies.GetMut(ball)
	assert.Equal(t, mgl64.Vec3{}, b.LinearVelocity())

	b.IntegratePosition(params.Dt)
	lifted := b.Position()
	assert.Greater(t, lifted.Translation[1], 0.4)

	b.IntegratePosition(params.Dt)
	assert.True(t, lifted.ApproxEqual(b.Position(), 1e-12), "the correction is applied once")
}

func TestSolverBallJoint(t *testing.T) {
	f := newFixture()
	a, _ := f.addBody(t, Dynamic, geom.Identity(), geom.NewBall(0.5))
	b, _ := f.addBody(t, Dynamic, geom.Translation(2, 0, 0), geom.NewBall(0.5))
	f.joints.Insert(BallJoint{Body1: a, Body2: b, LocalAnchor1: mgl64.Vec3{1, 0, 0}, LocalAnchor2: mgl64.Vec3{-1, 0, 0}})
	f.bodies.GetMut(b).SetLinearVelocity(mgl64.Vec3{0, 1, 0}, true)

	NewSolver().Solve(f.bodies, nil, f.joints, DefaultIntegrationParameters())

	ba, _ := f.bodies.Get(a)
	bb, _ := f.bodies.Get(b)
	va := ba.LinearVelocity().Add(ba.AngularVelocity().Cross(mgl64.Vec3{1, 0, 0}))
	vb := bb.LinearVelocity().Add(bb.AngularVelocity().Cross(mgl64.Vec3{-1, 0, 0}))
	for i := 0; i < 3; i++ {
		assert.InDelta(t, va[i], vb[i], 1e-9)
	}
	assert.Greater(t, ba.LinearVelocity()[1], 0.0, "the joint drags the first body along")
}

func TestIslandsSleepAndWake(t *testing.T) {
	f := newFixture()
	h, _ := f.addBody(t, Dynamic, geom.Identity(), geom.NewBall(0.5))
	other, _ := f.addBody(t, Dynamic, geom.Translation(5, 0, 0), geom.NewBall(0.5))
	f.bodies.GetMut(other).SetLinearVelocity(mgl64.Vec3{1, 0, 0}, true)

	islands := NewIslandManager()
	params := DefaultIntegrationParameters()

	tick := func(links []Link) {
		islands.Update(f.bodies, links)
		islands.UpdateSleep(f.bodies, params)
	}

	for i := 0; i < 10; i++ {
		tick(nil)
	}
	body, _ := f.bodies.Get(h)
	assert.False(t, body.IsSleeping())
	assert.Len(t, islands.Islands(), 2)

	for i := 0; i < 130; i++ {
		tick(nil)
	}
	body, _ = f.bodies.Get(h)
	assert.True(t, body.IsSleeping())
	moving, _ := f.bodies.Get(other)
	assert.False(t, moving.IsSleeping())

	// Linking the moving body to the sleeping one wakes it up.
	islands.Update(f.bodies, []Link{{Body1: h, Body2: other}})
	body, _ = f.bodies.Get(h)
	assert.False(t, body.IsSleeping())
	assert.Len(t, islands.Islands(), 1)

	clone := islands.Clone()
	assert.Equal(t, islands.Islands(), clone.Islands())
}

func TestIntegrationParametersValidate(t *testing.T) {
	assert.NoError(t, DefaultIntegrationParameters().Validate())

	p := DefaultIntegrationParameters()
	p.Dt = 0
	assert.ErrorIs(t, p.Validate(), ErrInvalidParameters)

	p = DefaultIntegrationParameters()
	p.SolverIterations = 0
	assert.ErrorIs(t, p.Validate(), ErrInvalidParameters)
}
