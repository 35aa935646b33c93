package dynamics

import (
	"github.com/zeusync/physync/internal/core/physics/geom"
	"github.com/zeusync/physync/pkg/arena"
)

type BodySet struct {
	bodies *arena.Arena[RigidBody]
}

func NewBodySet() *BodySet {
	return &BodySet{bodies: arena.New[RigidBody](16)}
}

func (s *BodySet) Clone() *BodySet {
	return &BodySet{bodies: s.bodies.Clone(RigidBody.Clone)}
}

func (s *BodySet) Len() int { return s.bodies.Len() }

func (s *BodySet) Insert(b RigidBody) BodyHandle {
	b.colliders = nil
	b.setMassProperties(geom.MassProperties{})
	return BodyHandle{s.bodies.Insert(b)}
}

func (s *BodySet) Get(h BodyHandle) (RigidBody, bool) {
	return s.bodies.Get(h.Handle)
}

// GetMut returns nil for stale or unknown handles.
func (s *BodySet) GetMut(h BodyHandle) *RigidBody {
	return s.bodies.GetMut(h.Handle)
}

func (s *BodySet) Contains(h BodyHandle) bool {
	return s.bodies.Contains(h.Handle)
}

// All iterates bodies in handle slot order.
func (s *BodySet) All(yield func(BodyHandle, *RigidBody) bool) {
	for h, b := range s.bodies.All() {
		if !yield(BodyHandle{h}, b) {
			return
		}
	}
}

// Remove deletes the body along with its colliders and joints.
func (s *BodySet) Remove(h BodyHandle, colliders *ColliderSet, joints *JointSet) (RigidBody, bool) {
	body, ok := s.bodies.Remove(h.Handle)
	if !ok {
		return RigidBody{}, false
	}

	for _, ch := range body.colliders {
		colliders.colliders.Remove(ch.Handle)
	}
	if joints != nil {
		for _, jh := range joints.AttachedTo(h) {
			if j, ok := joints.Remove(jh); ok {
				other := j.Body1
				if other == h {
					other = j.Body2
				}
				if b := s.GetMut(other); b != nil {
					b.WakeUp()
				}
			}
		}
	}
	return body, true
}

// SyncColliders moves every collider of h to the body's current pose.
func (s *BodySet) SyncColliders(h BodyHandle, colliders *ColliderSet) {
	body := s.GetMut(h)
	if body == nil {
		return
	}
	for _, ch := range body.colliders {
		if c := colliders.GetMut(ch); c != nil {
			c.UpdatePosition(body.position)
		}
	}
}

func (s *BodySet) recomputeMass(h BodyHandle, colliders *ColliderSet) {
	body := s.GetMut(h)
	if body == nil {
		return
	}

	var total geom.MassProperties
	for _, ch := range body.colliders {
		if c := colliders.GetMut(ch); c != nil {
			total = total.Add(c.MassProperties())
		}
	}
	body.setMassProperties(total)
}
