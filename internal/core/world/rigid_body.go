package world

import (
	"slices"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/zeusync/physync/internal/core/observability/log"
	"github.com/zeusync/physync/internal/core/physics/dynamics"
	"github.com/zeusync/physync/internal/core/physics/geom"
	"github.com/zeusync/physync/internal/core/shapes"
)

// RigidBody is the handle a scene node keeps on its body. It never holds
// pointers into a state: every call goes through the world, so after a
// rewind that removed the body the calls quietly do nothing.
type RigidBody struct {
	id   string
	kind dynamics.BodyKind

	world     *World
	handle    dynamics.BodyHandle
	colliders []dynamics.ColliderHandle
	compound  geom.Compound
	hasShape  bool
}

func NewRigidBody(id string, kind dynamics.BodyKind) *RigidBody {
	return &RigidBody{id: id, kind: kind, handle: dynamics.InvalidBody}
}

func (b *RigidBody) ID() string { return b.id }

func (b *RigidBody) Kind() dynamics.BodyKind { return b.kind }

func (b *RigidBody) Handle() dynamics.BodyHandle { return b.handle }

func (b *RigidBody) IsRegistered() bool { return b.world != nil }

// Register adds the body to w, or binds to the body w already has for this
// id. It returns the pose the owner should display.
func (b *RigidBody) Register(w *World, initial geom.Isometry) geom.Isometry {
	if b.world != nil && b.world != w {
		b.Unregister()
	}
	h, pos := w.AddBody(b.id, b.kind, initial)
	b.world, b.handle = w, h
	b.refreshCompound()
	return pos
}

// Unregister removes the body from its world. It is safe to call twice.
func (b *RigidBody) Unregister() {
	if b.world == nil {
		return
	}
	if h, ok := b.resolve(); ok {
		b.world.RemoveBody(h)
	}
	b.world = nil
	b.handle = dynamics.InvalidBody
	b.colliders = nil
	b.compound, b.hasShape = geom.Compound{}, false
}

// Despawn is Unregister on request of the simulation owner rather than the
// scene.
func (b *RigidBody) Despawn() {
	if b.world != nil {
		b.world.log.Info("despawn requested", log.String("id", b.id), log.Stringer("handle", b.handle))
	}
	b.Unregister()
}

func (b *RigidBody) AddCollider(src shapes.Source, material dynamics.Material, local geom.Isometry) (dynamics.ColliderHandle, error) {
	parent, ok := b.resolve()
	if !ok {
		return dynamics.InvalidCollider, ErrNotRegistered
	}
	h, err := b.world.AddColliderToBody(src, material, local, parent)
	if err != nil {
		return h, err
	}
	b.colliders = append(b.colliders, h)
	b.refreshCompound()
	return h, nil
}

func (b *RigidBody) RemoveCollider(h dynamics.ColliderHandle) (dynamics.Collider, bool) {
	parent, ok := b.resolve()
	if !ok {
		return dynamics.Collider{}, false
	}
	b.colliders = slices.DeleteFunc(b.colliders, func(o dynamics.ColliderHandle) bool { return o == h })
	defer b.refreshCompound()
	if c, ok := b.world.Collider(h); !ok || c.Parent() != parent {
		return dynamics.Collider{}, false
	}
	return b.world.RemoveCollider(h)
}

// Colliders lists the colliders added through this proxy.
func (b *RigidBody) Colliders() []dynamics.ColliderHandle { return b.colliders }

// CompoundShape is the cached summary of the body's colliders.
func (b *RigidBody) CompoundShape() (geom.Compound, bool) { return b.compound, b.hasShape }

func (b *RigidBody) refreshCompound() {
	if b.world == nil {
		return
	}
	b.compound, b.hasShape = b.world.CompoundShape(b.handle)
}

// resolve returns the handle the world currently maps the id to. A cached
// handle can outlive its body across a rewind and be issued again to
// another id, so it is only trusted while the world still agrees.
func (b *RigidBody) resolve() (dynamics.BodyHandle, bool) {
	if b.world == nil {
		return dynamics.InvalidBody, false
	}
	if id, ok := b.world.ExternalID(b.handle); ok && id == b.id {
		return b.handle, true
	}
	h, ok := b.world.BodyByID(b.id)
	if !ok {
		return dynamics.InvalidBody, false
	}
	b.handle = h
	b.colliders = nil
	if body, ok := b.world.Body(h); ok {
		b.colliders = slices.Clone(body.Colliders())
	}
	b.refreshCompound()
	return h, true
}

func (b *RigidBody) body() *dynamics.RigidBody {
	h, ok := b.resolve()
	if !ok {
		return nil
	}
	return b.world.BodyMut(h)
}

func (b *RigidBody) AddForce(f mgl64.Vec3) {
	if body := b.body(); body != nil {
		body.AddForce(f, true)
	}
}

func (b *RigidBody) AddTorque(t mgl64.Vec3) {
	if body := b.body(); body != nil {
		body.AddTorque(t, true)
	}
}

func (b *RigidBody) ApplyImpulse(impulse mgl64.Vec3) {
	if body := b.body(); body != nil {
		body.ApplyImpulse(impulse, true)
	}
}

func (b *RigidBody) ApplyTorqueImpulse(impulse mgl64.Vec3) {
	if body := b.body(); body != nil {
		body.ApplyTorqueImpulse(impulse, true)
	}
}

// SetNextKinematicPosition only affects kinematic bodies.
func (b *RigidBody) SetNextKinematicPosition(pos geom.Isometry) {
	if body := b.body(); body != nil {
		body.SetNextKinematicPosition(pos)
	}
}

func (b *RigidBody) Mass() float64 {
	if body := b.body(); body != nil {
		return body.Mass()
	}
	return 0
}

func (b *RigidBody) LinearVelocity() mgl64.Vec3 {
	if body := b.body(); body != nil {
		return body.LinearVelocity()
	}
	return mgl64.Vec3{}
}

func (b *RigidBody) AngularVelocity() mgl64.Vec3 {
	if body := b.body(); body != nil {
		return body.AngularVelocity()
	}
	return mgl64.Vec3{}
}

// Position returns the identity pose for unregistered or stale bodies.
func (b *RigidBody) Position() geom.Isometry {
	if body := b.body(); body != nil {
		return body.Position()
	}
	return geom.Identity()
}

func (b *RigidBody) Raycast(direction mgl64.Vec3, maxDistance float64) RaycastResult {
	h, ok := b.resolve()
	if !ok {
		return RaycastResult{}
	}
	return b.world.Raycast(h, direction, maxDistance)
}
