package dynamics

import (
	"github.com/zeusync/physync/internal/core/physics/geom"
	"github.com/zeusync/physync/pkg/arena"
)

// Material holds the surface response of a collider.
type Material struct {
	Friction    float64 `yaml:"friction" toml:"friction"`
	Restitution float64 `yaml:"restitution" toml:"restitution"`
	Density     float64 `yaml:"density" toml:"density"`
}

func DefaultMaterial() Material {
	return Material{Friction: 0.5, Restitution: 0, Density: 1}
}

// Collider attaches a shape to a body. The shape is shared between
// snapshots and never mutated.
type Collider struct {
	shape    geom.Shape
	parent   BodyHandle
	local    geom.Isometry
	position geom.Isometry
	material Material
}

func NewCollider(shape geom.Shape, material Material, local geom.Isometry) Collider {
	return Collider{
		shape:    shape,
		parent:   InvalidBody,
		local:    local,
		position: local,
		material: material,
	}
}

func (c *Collider) Shape() geom.Shape { return c.shape }
func (c *Collider) Parent() BodyHandle { return c.parent }
func (c *Collider) LocalPosition() geom.Isometry { return c.local }
func (c *Collider) Position() geom.Isometry { return c.position }
func (c *Collider) Material() Material { return c.material }
func (c *Collider) AABB() geom.AABB { return geom.ShapeAABB(c.shape, c.position) }

func (c *Collider) MassProperties() geom.MassProperties {
	return c.shape.MassProperties(c.material.Density).Transformed(c.local)
}

// UpdatePosition recomputes the world pose from the parent pose.
func (c *Collider) UpdatePosition(parent geom.Isometry) {
	c.position = parent.Mul(c.local)
}

type ColliderSet struct {
	colliders *arena.Arena[Collider]
}

func NewColliderSet() *ColliderSet {
	return &ColliderSet{colliders: arena.New[Collider](16)}
}

func (s *ColliderSet) Clone() *ColliderSet {
	return &ColliderSet{colliders: s.colliders.Clone(nil)}
}

func (s *ColliderSet) Len() int { return s.colliders.Len() }

func (s *ColliderSet) Get(h ColliderHandle) (Collider, bool) {
	return s.colliders.Get(h.Handle)
}

func (s *ColliderSet) GetMut(h ColliderHandle) *Collider {
	return s.colliders.GetMut(h.Handle)
}

func (s *ColliderSet) Contains(h ColliderHandle) bool {
	return s.colliders.Contains(h.Handle)
}

// All iterates colliders in handle slot order.
func (s *ColliderSet) All(yield func(ColliderHandle, *Collider) bool) {
	for h, c := range s.colliders.All() {
		if !yield(ColliderHandle{h}, c) {
			return
		}
	}
}

// InsertWithParent attaches c to parent and recomputes the parent's mass.
// It returns false when the parent does not exist.
func (s *ColliderSet) InsertWithParent(c Collider, parent BodyHandle, bodies *BodySet) (ColliderHandle, bool) {
	body := bodies.GetMut(parent)
	if body == nil {
		return InvalidCollider, false
	}

	c.parent = parent
	c.UpdatePosition(body.position)
	h := ColliderHandle{s.colliders.Insert(c)}

	body.colliders = append(body.colliders, h)
	bodies.recomputeMass(parent, s)
	body.WakeUp()
	return h, true
}

// Remove detaches the collider and recomputes the parent's mass when the
// parent still exists.
func (s *ColliderSet) Remove(h ColliderHandle, bodies *BodySet, wake bool) (Collider, bool) {
	c, ok := s.colliders.Remove(h.Handle)
	if !ok {
		return Collider{}, false
	}

	if body := bodies.GetMut(c.parent); body != nil {
		for i, ch := range body.colliders {
			if ch == h {
				body.colliders = append(body.colliders[:i:i], body.colliders[i+1:]...)
				break
			}
		}
		bodies.recomputeMass(c.parent, s)
		if wake {
			body.WakeUp()
		}
	}
	return c, true
}
