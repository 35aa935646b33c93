package pipeline

import (
	"sort"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/zeusync/physync/internal/core/physics/dynamics"
	"github.com/zeusync/physync/internal/core/physics/geom"
)

// QueryFilter narrows the colliders a query considers. The zero value
// accepts everything.
type QueryFilter struct {
	OnlyDynamic bool
	Predicate   func(dynamics.ColliderHandle, *dynamics.Collider) bool

	excludeBody     *dynamics.BodyHandle
	excludeCollider *dynamics.ColliderHandle
}

// ExcludeBody returns a copy of f that skips every collider of h.
func (f QueryFilter) ExcludeBody(h dynamics.BodyHandle) QueryFilter {
	f.excludeBody = &h
	return f
}

func (f QueryFilter) ExcludeCollider(h dynamics.ColliderHandle) QueryFilter {
	f.excludeCollider = &h
	return f
}

// accepts lets colliders without a parent through so that callers can
// detect them.
func (f QueryFilter) accepts(h dynamics.ColliderHandle, c *dynamics.Collider, bodies *dynamics.BodySet) bool {
	if f.excludeCollider != nil && *f.excludeCollider == h {
		return false
	}
	if f.excludeBody != nil && *f.excludeBody == c.Parent() {
		return false
	}
	if f.OnlyDynamic {
		if b := bodies.GetMut(c.Parent()); b != nil && !b.IsDynamic() {
			return false
		}
	}
	if f.Predicate != nil && !f.Predicate(h, c) {
		return false
	}
	return true
}

type queryEntry struct {
	handle dynamics.ColliderHandle
	aabb   geom.AABB
}

// QueryPipeline is a flat spatial index of collider boxes sorted by their
// lower X bound, rebuilt after every step.
type QueryPipeline struct {
	entries []queryEntry
	dirty   bool
}

func NewQueryPipeline() *QueryPipeline {
	return &QueryPipeline{}
}

func (q *QueryPipeline) Clone() *QueryPipeline {
	return &QueryPipeline{entries: append([]queryEntry(nil), q.entries...), dirty: q.dirty}
}

// MarkDirty flags the index as out of date with its colliders.
func (q *QueryPipeline) MarkDirty() { q.dirty = true }

func (q *QueryPipeline) IsDirty() bool { return q.dirty }

func (q *QueryPipeline) Len() int { return len(q.entries) }

// Update rebuilds the index from the current collider poses.
func (q *QueryPipeline) Update(colliders *dynamics.ColliderSet) {
	q.entries = q.entries[:0]
	for h, c := range colliders.All {
		q.entries = append(q.entries, queryEntry{handle: h, aabb: c.AABB()})
	}
	sort.SliceStable(q.entries, func(i, j int) bool {
		return q.entries[i].aabb.Min[0] < q.entries[j].aabb.Min[0]
	})
	q.dirty = false
}

// IntersectSphere calls fn, in index order, for every accepted collider
// touching the sphere. It stops when fn returns false.
func (q *QueryPipeline) IntersectSphere(bodies *dynamics.BodySet, colliders *dynamics.ColliderSet, center mgl64.Vec3, radius float64, filter QueryFilter, fn func(dynamics.ColliderHandle, *dynamics.Collider) bool) {
	box := geom.AABBFromHalfExtents(center, mgl64.Vec3{radius, radius, radius})
	for _, e := range q.entries {
		if e.aabb.Min[0] > box.Max[0] {
			return
		}
		if !e.aabb.Intersects(box) {
			continue
		}
		c := colliders.GetMut(e.handle)
		if c == nil || !filter.accepts(e.handle, c, bodies) {
			continue
		}
		if geom.DistanceToPoint(c.Shape(), c.Position(), center) > radius {
			continue
		}
		if !fn(e.handle, c) {
			return
		}
	}
}

// RayHit is the first collider hit by a ray. Toi is in multiples of the ray
// direction.
type RayHit struct {
	Collider dynamics.ColliderHandle
	Toi      float64
	Point    mgl64.Vec3
}

// CastRay returns the closest hit within maxToi. Equal distances resolve to
// the collider that comes first in the index.
func (q *QueryPipeline) CastRay(bodies *dynamics.BodySet, colliders *dynamics.ColliderSet, ray geom.Ray, maxToi float64, filter QueryFilter) (RayHit, bool) {
	best := RayHit{Collider: dynamics.InvalidCollider, Toi: maxToi}
	found := false

	for _, e := range q.entries {
		if _, ok := e.aabb.CastRay(ray, best.Toi); !ok {
			continue
		}
		c := colliders.GetMut(e.handle)
		if c == nil || !filter.accepts(e.handle, c, bodies) {
			continue
		}
		toi, ok := geom.CastRay(c.Shape(), c.Position(), ray, best.Toi)
		if !ok || (found && toi >= best.Toi) {
			continue
		}
		best = RayHit{Collider: e.handle, Toi: toi, Point: ray.PointAt(toi)}
		found = true
	}
	return best, found
}

// ShapeHit is the first collider met by a translational shape sweep.
type ShapeHit struct {
	Collider dynamics.ColliderHandle
	geom.ShapeCastHit
}

// CastShape sweeps shape from iso along vel and returns the earliest hit in
// [0, maxToi] at which the shape comes within targetDist of a collider.
func (q *QueryPipeline) CastShape(bodies *dynamics.BodySet, colliders *dynamics.ColliderSet, shape geom.Convex, iso geom.Isometry, vel mgl64.Vec3, maxToi, targetDist float64, filter QueryFilter) (ShapeHit, bool) {
	swept := geom.ShapeAABB(shape, iso).Swept(vel.Mul(maxToi)).Loosened(targetDist)

	var best ShapeHit
	found := false
	for _, e := range q.entries {
		if e.aabb.Min[0] > swept.Max[0] {
			break
		}
		if !e.aabb.Intersects(swept) {
			continue
		}
		c := colliders.GetMut(e.handle)
		if c == nil || !filter.accepts(e.handle, c, bodies) {
			continue
		}
		hit, ok := geom.CastShapes(shape, iso, vel, c.Shape(), c.Position(), maxToi, targetDist)
		if !ok || (found && hit.Toi >= best.Toi) {
			continue
		}
		best = ShapeHit{Collider: e.handle, ShapeCastHit: hit}
		found = true
	}
	return best, found
}
