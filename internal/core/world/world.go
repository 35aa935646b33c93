// Package world keeps a tick-indexed history of physics states. Callers
// register bodies and colliders against the current tick, step it forward
// and rewind to any retained tick to resimulate from there.
package world

import (
	"context"
	"fmt"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/google/uuid"

	"github.com/zeusync/physync/internal/core/events/bus"
	"github.com/zeusync/physync/internal/core/observability/log"
	"github.com/zeusync/physync/internal/core/physics/control"
	"github.com/zeusync/physync/internal/core/physics/dynamics"
	"github.com/zeusync/physync/internal/core/physics/geom"
	"github.com/zeusync/physync/internal/core/physics/pipeline"
	"github.com/zeusync/physync/internal/core/shapes"
)

const eventSource = "world"

// Config holds what a new world starts with.
type Config struct {
	Gravity mgl64.Vec3
	Params  dynamics.IntegrationParameters
	// MaxRetainedTicks bounds the history; zero keeps every tick.
	MaxRetainedTicks int
}

func DefaultConfig() Config {
	return Config{
		Gravity: mgl64.Vec3{0, -9.81, 0},
		Params:  dynamics.DefaultIntegrationParameters(),
	}
}

// Option configures a World.
type Option func(*World)

// WithScene makes every step push body poses to the scene. Without a scene
// the world runs headless.
func WithScene(scene Scene) Option {
	return func(w *World) { w.scene = scene }
}

func WithLogger(logger log.Log) Option {
	return func(w *World) { w.log = logger }
}

func WithEventBus(events bus.EventBus) Option {
	return func(w *World) { w.events = events }
}

// WithCharacterController replaces the controller used by MoveShape.
func WithCharacterController(c control.CharacterController) Option {
	return func(w *World) { w.controller = c }
}

// World owns every state. All methods act on the current tick and must be
// called from one goroutine.
type World struct {
	id         uuid.UUID
	history    *History
	pipeline   *pipeline.PhysicsPipeline
	controller control.CharacterController
	scene      Scene
	log        log.Log
	events     bus.EventBus
}

func New(cfg Config, opts ...Option) (*World, error) {
	if err := cfg.Params.Validate(); err != nil {
		return nil, fmt.Errorf("world config: %w", err)
	}
	if cfg.MaxRetainedTicks < 0 {
		return nil, fmt.Errorf("world config: negative max retained ticks %d", cfg.MaxRetainedTicks)
	}

	w := &World{
		id:         uuid.New(),
		history:    NewHistory(NewState(cfg.Gravity, cfg.Params), cfg.MaxRetainedTicks),
		pipeline:   pipeline.NewPhysicsPipeline(),
		controller: control.DefaultCharacterController(),
		log:        log.Nop(),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.log = w.log.With(log.Stringer("world", w.id))
	return w, nil
}

func (w *World) ID() uuid.UUID { return w.id }

func (w *World) CurrentTick() uint32 { return w.history.Latest() }

func (w *World) OldestTick() uint32 { return w.history.Oldest() }

// State returns the stored state of tick. It must be treated as read-only.
func (w *World) State(tick uint32) (*State, bool) {
	return w.history.Get(tick)
}

func (w *World) Checksum(tick uint32) (uint64, bool) {
	s, ok := w.history.Get(tick)
	if !ok {
		return 0, false
	}
	return s.Checksum(), true
}

func (w *World) current() *State { return w.history.Current() }

// AddBody registers the body of an external id. Registering an id that is
// already mapped returns the existing body and its simulated pose, which
// the caller should adopt.
func (w *World) AddBody(id string, kind dynamics.BodyKind, initial geom.Isometry) (dynamics.BodyHandle, geom.Isometry) {
	s := w.current()
	if h, ok := s.HandleOf(id); ok {
		if b := s.Bodies.GetMut(h); b != nil {
			return h, b.Position()
		}
		s.unbind(h)
	}

	h := s.Bodies.Insert(dynamics.NewRigidBody(kind, initial))
	s.bind(id, h)
	s.Queries.MarkDirty()

	w.log.Info("body added",
		log.Uint32("tick", w.CurrentTick()),
		log.Stringer("handle", h),
		log.String("id", id),
		log.Stringer("kind", kind),
	)
	w.publish(bus.BodyAdded, BodyEvent{ID: id, Body: h})
	return h, initial
}

// RemoveBody removes the body with its colliders, joints and id mapping.
// Stale handles are ignored.
func (w *World) RemoveBody(h dynamics.BodyHandle) {
	s := w.current()
	body := s.Bodies.GetMut(h)
	if body == nil {
		return
	}
	id, _ := s.IDOf(h)
	w.log.Info("removing body", log.Stringer("handle", h), log.String("id", id))

	var stopped []pipeline.ColliderPair
	for _, ch := range body.Colliders() {
		stopped = append(stopped, s.NarrowPhase.RemoveCollider(ch, s.Bodies)...)
	}
	w.publishContacts(s, bus.ContactStopped, stopped)

	s.Bodies.Remove(h, s.Colliders, s.Joints)
	s.Islands.Remove(h)
	s.unbind(h)
	s.Queries.MarkDirty()

	w.log.Info("body removed",
		log.Uint32("tick", w.CurrentTick()),
		log.Stringer("handle", h),
		log.String("id", id),
	)
	w.publish(bus.BodyRemoved, BodyEvent{ID: id, Body: h})
}

// AddColliderToBody builds the shape of src at scale 1 and attaches it to
// parent at local.
func (w *World) AddColliderToBody(src shapes.Source, material dynamics.Material, local geom.Isometry, parent dynamics.BodyHandle) (dynamics.ColliderHandle, error) {
	shape, ok := src.Shape(1)
	if !ok {
		w.log.Warn("collider shape is degenerate, no collider added",
			log.Stringer("parent", parent),
			log.String("source", fmt.Sprintf("%T", src)),
		)
		return dynamics.InvalidCollider, ErrDegenerateShape
	}

	s := w.current()
	h, ok := s.Colliders.InsertWithParent(dynamics.NewCollider(shape, material, local), parent, s.Bodies)
	if !ok {
		return dynamics.InvalidCollider, fmt.Errorf("attach collider to %s: %w", parent, ErrBodyNotFound)
	}
	s.Queries.MarkDirty()

	id, _ := s.IDOf(parent)
	w.log.Debug("collider added",
		log.Uint32("tick", w.CurrentTick()),
		log.Stringer("handle", h),
		log.Stringer("shape", shape.Type()),
		log.String("id", id),
	)
	w.publish(bus.ColliderAdded, ColliderEvent{ID: id, Collider: h})
	return h, nil
}

// RemoveCollider detaches and returns the collider. The parent's mass is
// recomputed.
func (w *World) RemoveCollider(h dynamics.ColliderHandle) (dynamics.Collider, bool) {
	s := w.current()
	if !s.Colliders.Contains(h) {
		return dynamics.Collider{}, false
	}
	w.publishContacts(s, bus.ContactStopped, s.NarrowPhase.RemoveCollider(h, s.Bodies))

	c, _ := s.Colliders.Remove(h, s.Bodies, true)
	s.Queries.MarkDirty()

	id, _ := s.IDOf(c.Parent())
	w.log.Debug("collider removed", log.Stringer("handle", h), log.String("id", id))
	w.publish(bus.ColliderRemoved, ColliderEvent{ID: id, Collider: h})
	return c, true
}

// AddJoint ties anchor1, in the frame of b1, to anchor2, in the frame of
// b2.
func (w *World) AddJoint(b1, b2 dynamics.BodyHandle, anchor1, anchor2 mgl64.Vec3) (dynamics.JointHandle, error) {
	if b1 == b2 {
		return dynamics.InvalidJoint, ErrSameBody
	}
	s := w.current()
	body1, body2 := s.Bodies.GetMut(b1), s.Bodies.GetMut(b2)
	switch {
	case body1 == nil:
		return dynamics.InvalidJoint, fmt.Errorf("joint body %s: %w", b1, ErrBodyNotFound)
	case body2 == nil:
		return dynamics.InvalidJoint, fmt.Errorf("joint body %s: %w", b2, ErrBodyNotFound)
	}

	h := s.Joints.Insert(dynamics.BallJoint{Body1: b1, Body2: b2, LocalAnchor1: anchor1, LocalAnchor2: anchor2})
	body1.WakeUp()
	body2.WakeUp()
	w.log.Debug("joint added", log.Stringer("handle", h), log.Stringer("body1", b1), log.Stringer("body2", b2))
	return h, nil
}

func (w *World) RemoveJoint(h dynamics.JointHandle) bool {
	s := w.current()
	j, ok := s.Joints.Remove(h)
	if !ok {
		return false
	}
	for _, b := range [2]dynamics.BodyHandle{j.Body1, j.Body2} {
		if body := s.Bodies.GetMut(b); body != nil {
			body.WakeUp()
		}
	}
	return true
}

// Body returns a copy of the body at the current tick.
func (w *World) Body(h dynamics.BodyHandle) (dynamics.RigidBody, bool) {
	return w.current().Bodies.Get(h)
}

// BodyMut gives access to forces and velocities at the current tick. Use
// SetBodyPosition to move a body.
func (w *World) BodyMut(h dynamics.BodyHandle) *dynamics.RigidBody {
	return w.current().Bodies.GetMut(h)
}

// SetBodyPosition teleports a body and its colliders.
func (w *World) SetBodyPosition(h dynamics.BodyHandle, pos geom.Isometry) bool {
	s := w.current()
	b := s.Bodies.GetMut(h)
	if b == nil {
		return false
	}
	b.SetPosition(pos, true)
	s.Bodies.SyncColliders(h, s.Colliders)
	s.Queries.MarkDirty()
	return true
}

func (w *World) Collider(h dynamics.ColliderHandle) (dynamics.Collider, bool) {
	return w.current().Colliders.Get(h)
}

func (w *World) BodyByID(id string) (dynamics.BodyHandle, bool) {
	return w.current().HandleOf(id)
}

func (w *World) ExternalID(h dynamics.BodyHandle) (string, bool) {
	return w.current().IDOf(h)
}

// CompoundShape summarizes the colliders of a body as one shape in the body
// frame. ok is false for unknown bodies and bodies without colliders.
func (w *World) CompoundShape(h dynamics.BodyHandle) (geom.Compound, bool) {
	s := w.current()
	b := s.Bodies.GetMut(h)
	if b == nil || len(b.Colliders()) == 0 {
		return geom.Compound{}, false
	}
	parts := make([]geom.CompoundPart, 0, len(b.Colliders()))
	for _, ch := range b.Colliders() {
		if c := s.Colliders.GetMut(ch); c != nil {
			parts = append(parts, geom.CompoundPart{Shape: c.Shape(), Local: c.LocalPosition()})
		}
	}
	return geom.Compound{Parts: parts}, true
}

// Step advances the current tick and returns the new one. Every named body
// is pushed to its scene node before the new state is stored; a node that
// cannot be found makes Step panic with a *ConsistencyError.
func (w *World) Step() (uint32, error) {
	from := w.CurrentTick()
	next := w.current().Clone()

	contacts, err := w.pipeline.Step(context.Background(), next.stepInput())
	if err != nil {
		return from, fmt.Errorf("step tick %d: %w", from, err)
	}

	tick := from + 1
	w.syncScene(next, tick)
	w.history.Push(next)

	w.log.Debug("world stepped",
		log.Uint32("tick", tick),
		log.Int("bodies", next.Bodies.Len()),
		log.Int("contacts", len(next.NarrowPhase.Pairs())),
	)
	w.publishContacts(next, bus.ContactStarted, contacts.Started)
	w.publishContacts(next, bus.ContactStopped, contacts.Stopped)
	if w.events != nil {
		w.publish(bus.WorldStepped, StepEvent{Tick: tick, Checksum: next.Checksum()})
	}
	return tick, nil
}

// LoadState makes tick current and drops every later tick. It returns
// false and changes nothing when tick is not retained.
func (w *World) LoadState(tick uint32) bool {
	from := w.CurrentTick()
	if !w.history.TruncateAfter(tick) {
		w.log.Debug("rewind target not retained",
			log.Uint32("tick", tick),
			log.Uint32("oldest", w.OldestTick()),
			log.Uint32("latest", from),
		)
		return false
	}
	w.log.Info("world rewound", log.Uint32("from", from), log.Uint32("tick", tick))
	w.publish(bus.WorldRewound, StepEvent{Tick: tick, Checksum: w.current().Checksum()})
	return true
}

// SyncTransforms pushes the current poses to the scene, typically right
// after LoadState.
func (w *World) SyncTransforms() {
	w.syncScene(w.current(), w.CurrentTick())
}

func (w *World) syncScene(s *State, tick uint32) {
	if w.scene == nil {
		return
	}
	for h, b := range s.Bodies.All {
		id, ok := s.IDOf(h)
		if !ok {
			continue
		}
		node, ok := w.scene.Node(id)
		if !ok {
			w.fail(&ConsistencyError{
				Tick:   tick,
				Body:   h,
				ID:     id,
				Reason: "tracked node not found, was it removed without unregistering?",
			})
		}
		node.SetTransform(b.Position())
	}
}

func (w *World) fail(err *ConsistencyError) {
	w.log.Error("physics state diverged from the scene",
		log.Uint32("tick", err.Tick),
		log.Stringer("handle", err.Body),
		log.String("id", err.ID),
		log.String("reason", err.Reason),
	)
	panic(err)
}

// publish drops handler failures; bus observers report them.
func (w *World) publish(typ string, data any) {
	if w.events == nil {
		return
	}
	_ = w.events.Publish(bus.NewEvent(typ, eventSource, w.CurrentTick(), data))
}

func (w *World) publishContacts(s *State, typ string, pairs []pipeline.ColliderPair) {
	if w.events == nil {
		return
	}
	for _, p := range pairs {
		w.publish(typ, ContactEvent{
			ID1:       colliderOwner(s, p.Collider1),
			ID2:       colliderOwner(s, p.Collider2),
			Collider1: p.Collider1,
			Collider2: p.Collider2,
		})
	}
}

func colliderOwner(s *State, h dynamics.ColliderHandle) string {
	c := s.Colliders.GetMut(h)
	if c == nil {
		return ""
	}
	id, _ := s.IDOf(c.Parent())
	return id
}
