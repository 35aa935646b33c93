// Package dynamics holds rigid bodies, colliders, joints and the
// velocity-level constraint solver.
package dynamics

import (
	"fmt"
	"strings"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/zeusync/physync/internal/core/physics/geom"
	"github.com/zeusync/physync/pkg/arena"
)

type BodyKind uint8

const (
	Dynamic BodyKind = iota
	Fixed
	KinematicPositionBased
)

func (k BodyKind) String() string {
	switch k {
	case Dynamic:
		return "dynamic"
	case Fixed:
		return "fixed"
	case KinematicPositionBased:
		return "kinematic"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// ParseBodyKind accepts the names produced by String.
func ParseBodyKind(s string) (BodyKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "dynamic", "":
		return Dynamic, nil
	case "fixed", "static":
		return Fixed, nil
	case "kinematic", "kinematic_position_based":
		return KinematicPositionBased, nil
	default:
		return Dynamic, fmt.Errorf("unknown body kind %q", s)
	}
}

type BodyHandle struct{ arena.Handle }

type ColliderHandle struct{ arena.Handle }

type JointHandle struct{ arena.Handle }

var (
	InvalidBody     = BodyHandle{arena.Invalid}
	InvalidCollider = ColliderHandle{arena.Invalid}
	InvalidJoint    = JointHandle{arena.Invalid}
)

// RigidBody is plain data: copying it copies everything but the collider
// list, which Clone duplicates.
type RigidBody struct {
	kind         BodyKind
	position     geom.Isometry
	nextPosition geom.Isometry

	linvel mgl64.Vec3
	angvel mgl64.Vec3
	force  mgl64.Vec3
	torque mgl64.Vec3

	mass            geom.MassProperties
	invMass         float64
	invInertiaLocal mgl64.Mat3

	linearDamping  float64
	angularDamping float64
	gravityScale   float64
	ccd            bool

	sleeping   bool
	sleepTimer float64

	// Position correction from the solver. It moves the body during the
	// next position integration only and never shows up as velocity.
	pushLinvel mgl64.Vec3
	pushAngvel mgl64.Vec3

	colliders []ColliderHandle
}

func NewRigidBody(kind BodyKind, position geom.Isometry) RigidBody {
	return RigidBody{
		kind:         kind,
		position:     position,
		nextPosition: position,
		gravityScale: 1,
	}
}

// Clone returns a copy that shares nothing mutable with b.
func (b RigidBody) Clone() RigidBody {
	b.colliders = append([]ColliderHandle(nil), b.colliders...)
	return b
}

func (b *RigidBody) Kind() BodyKind { return b.kind }
func (b *RigidBody) IsDynamic() bool { return b.kind == Dynamic }
func (b *RigidBody) IsFixed() bool { return b.kind == Fixed }
func (b *RigidBody) IsKinematic() bool { return b.kind == KinematicPositionBased }
func (b *RigidBody) IsSleeping() bool { return b.sleeping }
func (b *RigidBody) IsCCDEnabled() bool { return b.ccd }
func (b *RigidBody) GravityScale() float64 { return b.gravityScale }

func (b *RigidBody) Position() geom.Isometry { return b.position }
func (b *RigidBody) NextPosition() geom.Isometry { return b.nextPosition }
func (b *RigidBody) LinearVelocity() mgl64.Vec3 { return b.linvel }
func (b *RigidBody) AngularVelocity() mgl64.Vec3 { return b.angvel }
func (b *RigidBody) Force() mgl64.Vec3 { return b.force }
func (b *RigidBody) Torque() mgl64.Vec3 { return b.torque }

// Colliders returns the attached collider handles in attachment order.
func (b *RigidBody) Colliders() []ColliderHandle { return b.colliders }

// Mass is zero for non-dynamic bodies and for dynamic bodies without
// colliders.
func (b *RigidBody) Mass() float64 {
	if !b.IsDynamic() {
		return 0
	}
	return b.mass.Mass
}

func (b *RigidBody) InvMass() float64 { return b.invMass }

func (b *RigidBody) MassProperties() geom.MassProperties { return b.mass }

// CenterOfMass returns the world-space center of mass.
func (b *RigidBody) CenterOfMass() mgl64.Vec3 {
	return b.position.TransformPoint(b.mass.LocalCoM)
}

// InvInertiaWorld returns R * I^-1 * R^T.
func (b *RigidBody) InvInertiaWorld() mgl64.Mat3 {
	r := b.position.RotationMatrix()
	return r.Mul3(b.invInertiaLocal).Mul3(r.Transpose())
}

// SetPosition teleports the body. Kinematic targets follow so the body does
// not slide back.
func (b *RigidBody) SetPosition(iso geom.Isometry, wake bool) {
	b.position = iso
	b.nextPosition = iso
	if wake {
		b.WakeUp()
	}
}

// SetNextKinematicPosition sets the pose a kinematic body reaches at the end
// of the next step. Ignored for other kinds.
func (b *RigidBody) SetNextKinematicPosition(iso geom.Isometry) {
	if b.IsKinematic() {
		b.nextPosition = iso
	}
}

func (b *RigidBody) SetLinearVelocity(v mgl64.Vec3, wake bool) {
	if b.IsFixed() {
		return
	}
	b.linvel = v
	if wake {
		b.WakeUp()
	}
}

func (b *RigidBody) SetAngularVelocity(w mgl64.Vec3, wake bool) {
	if b.IsFixed() {
		return
	}
	b.angvel = w
	if wake {
		b.WakeUp()
	}
}

func (b *RigidBody) SetDamping(linear, angular float64) {
	b.linearDamping = linear
	b.angularDamping = angular
}

func (b *RigidBody) Damping() (linear, angular float64) {
	return b.linearDamping, b.angularDamping
}

func (b *RigidBody) SetGravityScale(scale float64) { b.gravityScale = scale }

func (b *RigidBody) EnableCCD(enabled bool) { b.ccd = enabled }

// AddForce accumulates a force applied at the center of mass for the next
// step only.
func (b *RigidBody) AddForce(f mgl64.Vec3, wake bool) {
	if !b.IsDynamic() {
		return
	}
	b.force = b.force.Add(f)
	if wake {
		b.WakeUp()
	}
}

func (b *RigidBody) AddTorque(t mgl64.Vec3, wake bool) {
	if !b.IsDynamic() {
		return
	}
	b.torque = b.torque.Add(t)
	if wake {
		b.WakeUp()
	}
}

// AddForceAtPoint accumulates a force applied at a world point.
func (b *RigidBody) AddForceAtPoint(f, point mgl64.Vec3, wake bool) {
	if !b.IsDynamic() {
		return
	}
	b.force = b.force.Add(f)
	b.torque = b.torque.Add(point.Sub(b.CenterOfMass()).Cross(f))
	if wake {
		b.WakeUp()
	}
}

// ApplyImpulse changes the linear velocity immediately.
func (b *RigidBody) ApplyImpulse(impulse mgl64.Vec3, wake bool) {
	if !b.IsDynamic() {
		return
	}
	b.linvel = b.linvel.Add(impulse.Mul(b.invMass))
	if wake {
		b.WakeUp()
	}
}

func (b *RigidBody) ApplyTorqueImpulse(impulse mgl64.Vec3, wake bool) {
	if !b.IsDynamic() {
		return
	}
	b.angvel = b.angvel.Add(b.InvInertiaWorld().Mul3x1(impulse))
	if wake {
		b.WakeUp()
	}
}

func (b *RigidBody) ApplyImpulseAtPoint(impulse, point mgl64.Vec3, wake bool) {
	b.ApplyImpulse(impulse, wake)
	b.ApplyTorqueImpulse(point.Sub(b.CenterOfMass()).Cross(impulse), wake)
}

func (b *RigidBody) ResetForces() {
	b.force = mgl64.Vec3{}
	b.torque = mgl64.Vec3{}
}

func (b *RigidBody) WakeUp() {
	if b.IsFixed() {
		return
	}
	b.sleeping = false
	b.sleepTimer = 0
}

// Sleep puts the body to rest and zeroes its velocities.
func (b *RigidBody) Sleep() {
	if !b.IsDynamic() {
		return
	}
	b.sleeping = true
	b.linvel = mgl64.Vec3{}
	b.angvel = mgl64.Vec3{}
	b.pushLinvel = mgl64.Vec3{}
	b.pushAngvel = mgl64.Vec3{}
}

// IsMoving reports whether the body has any velocity.
func (b *RigidBody) IsMoving() bool {
	return b.linvel.LenSqr() > 0 || b.angvel.LenSqr() > 0
}

// setMassProperties installs the combined collider mass.
func (b *RigidBody) setMassProperties(mp geom.MassProperties) {
	b.mass = mp
	if !b.IsDynamic() {
		b.invMass = 0
		b.invInertiaLocal = mgl64.Mat3{}
		return
	}
	b.invMass = mp.InvMass()
	b.invInertiaLocal = mp.InvInertia()
}

// IntegrateForces applies gravity and the accumulated forces to the
// velocities. Gravity is an acceleration and also moves bodies without
// mass.
func (b *RigidBody) IntegrateForces(dt float64, gravity mgl64.Vec3) {
	if !b.IsDynamic() || b.sleeping {
		return
	}

	accel := gravity.Mul(b.gravityScale).Add(b.force.Mul(b.invMass))
	b.linvel = b.linvel.Add(accel.Mul(dt))
	b.angvel = b.angvel.Add(b.InvInertiaWorld().Mul3x1(b.torque).Mul(dt))

	if b.linearDamping > 0 {
		b.linvel = b.linvel.Mul(1 / (1 + dt*b.linearDamping))
	}
	if b.angularDamping > 0 {
		b.angvel = b.angvel.Mul(1 / (1 + dt*b.angularDamping))
	}
}

// ComputeKinematicVelocity derives the velocities that carry a kinematic
// body to its target over dt.
func (b *RigidBody) ComputeKinematicVelocity(dt float64) {
	if !b.IsKinematic() || dt <= 0 {
		return
	}
	b.linvel = b.nextPosition.Translation.Sub(b.position.Translation).Mul(1 / dt)
	b.angvel = geom.AngularVelocityBetween(b.position.Rotation, b.nextPosition.Rotation, dt)
}

// PredictPosition returns where the body ends up after moving with its
// current velocities for dt. Rotation happens about the center of mass.
func (b *RigidBody) PredictPosition(dt float64) geom.Isometry {
	return b.predict(dt, b.linvel, b.angvel)
}

func (b *RigidBody) predict(dt float64, linvel, angvel mgl64.Vec3) geom.Isometry {
	switch {
	case b.IsKinematic():
		return b.nextPosition
	case !b.IsDynamic() || b.sleeping:
		return b.position
	}

	com := b.CenterOfMass()
	rot := geom.IntegrateRotation(b.position.Rotation, angvel, dt)
	newCom := com.Add(linvel.Mul(dt))
	return geom.Isometry{
		Translation: newCom.Sub(rot.Rotate(b.mass.LocalCoM)),
		Rotation:    rot,
	}
}

// IntegratePosition moves the body by its velocities plus the pending
// position correction, which is consumed.
func (b *RigidBody) IntegratePosition(dt float64) {
	if b.IsFixed() {
		return
	}
	b.position = b.predict(dt, b.linvel.Add(b.pushLinvel), b.angvel.Add(b.pushAngvel))
	b.pushLinvel = mgl64.Vec3{}
	b.pushAngvel = mgl64.Vec3{}
}
