// Package pipeline advances a physics state by one step and answers spatial
// queries against it.
package pipeline

import (
	"sort"

	"github.com/zeusync/physync/internal/core/physics/dynamics"
	"github.com/zeusync/physync/internal/core/physics/geom"
)

// ColliderPair is ordered so that Collider1 has the lower slot index.
type ColliderPair struct {
	Collider1 dynamics.ColliderHandle
	Collider2 dynamics.ColliderHandle
}

func NewColliderPair(a, b dynamics.ColliderHandle) ColliderPair {
	if b.Index() < a.Index() {
		a, b = b, a
	}
	return ColliderPair{Collider1: a, Collider2: b}
}

// Key packs both slot indices. It is unique among live colliders.
func (p ColliderPair) Key() uint64 {
	return uint64(p.Collider1.Index())<<32 | uint64(p.Collider2.Index())
}

// Involves reports whether h is one of the two colliders.
func (p ColliderPair) Involves(h dynamics.ColliderHandle) bool {
	return p.Collider1 == h || p.Collider2 == h
}

// BroadPair is a candidate pair. Frozen pairs only involve bodies at rest
// and keep their previous contacts.
type BroadPair struct {
	ColliderPair
	Frozen bool
}

type sapEntry struct {
	handle dynamics.ColliderHandle
	body   dynamics.BodyHandle
	active bool
	aabb   geom.AABB
}

// BroadPhase finds overlapping collider boxes with a sweep and prune along X.
type BroadPhase struct {
	entries []sapEntry
}

func NewBroadPhase() *BroadPhase {
	return &BroadPhase{}
}

// FindPairs returns candidate pairs sorted by key. Boxes are loosened by the
// prediction distance and swept along each body's motion over the step.
func (bp *BroadPhase) FindPairs(bodies *dynamics.BodySet, colliders *dynamics.ColliderSet, params dynamics.IntegrationParameters) []BroadPair {
	bp.entries = bp.entries[:0]
	for h, c := range colliders.All {
		body := bodies.GetMut(c.Parent())
		if body == nil {
			continue
		}

		aabb := c.AABB().Loosened(params.PredictionDistance)
		if isActive(body) {
			aabb = aabb.Swept(body.LinearVelocity().Mul(params.Dt))
		}
		bp.entries = append(bp.entries, sapEntry{
			handle: h,
			body:   c.Parent(),
			active: isActive(body),
			aabb:   aabb,
		})
	}

	sort.SliceStable(bp.entries, func(i, j int) bool {
		return bp.entries[i].aabb.Min[0] < bp.entries[j].aabb.Min[0]
	})

	var pairs []BroadPair
	for i := range bp.entries {
		a := &bp.entries[i]
		for j := i + 1; j < len(bp.entries); j++ {
			b := &bp.entries[j]
			if b.aabb.Min[0] > a.aabb.Max[0] {
				break
			}
			if a.body == b.body || !a.aabb.Intersects(b.aabb) {
				continue
			}
			if !canCollide(bodies, a.body, b.body) {
				continue
			}
			pairs = append(pairs, BroadPair{
				ColliderPair: NewColliderPair(a.handle, b.handle),
				Frozen:       !a.active && !b.active,
			})
		}
	}

	sort.Slice(pairs, func(i, j int) bool { return pairs[i].Key() < pairs[j].Key() })
	return pairs
}

func isActive(b *dynamics.RigidBody) bool {
	switch {
	case b.IsDynamic():
		return !b.IsSleeping()
	case b.IsKinematic():
		return b.IsMoving()
	default:
		return false
	}
}

// canCollide rejects pairs where neither body can respond.
func canCollide(bodies *dynamics.BodySet, h1, h2 dynamics.BodyHandle) bool {
	b1, b2 := bodies.GetMut(h1), bodies.GetMut(h2)
	return b1.IsDynamic() || b2.IsDynamic()
}
