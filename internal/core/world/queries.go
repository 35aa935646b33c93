package world

import (
	"github.com/go-gl/mathgl/mgl64"

	"github.com/zeusync/physync/internal/core/physics/control"
	"github.com/zeusync/physync/internal/core/physics/dynamics"
	"github.com/zeusync/physync/internal/core/physics/geom"
	"github.com/zeusync/physync/internal/core/physics/pipeline"
)

// RaycastResult is either a miss or the external id of the first body hit
// and its distance.
type RaycastResult struct {
	Body     string
	Distance float64
	hit      bool
}

func (r RaycastResult) IsHit() bool { return r.hit }

// Fields returns the hit as a map for scripting, or an empty map on a miss.
func (r RaycastResult) Fields() map[string]any {
	if !r.hit {
		return map[string]any{}
	}
	return map[string]any{"body": r.Body, "distance": r.Distance}
}

// BodiesWithinSphere lists the ids of dynamic bodies with a collider
// touching the sphere, once each, in spatial index order.
func (w *World) BodiesWithinSphere(center mgl64.Vec3, radius float64) []string {
	s := w.current()
	s.refreshQueries()

	var (
		out  []string
		seen = make(map[dynamics.BodyHandle]struct{})
	)
	filter := pipeline.QueryFilter{OnlyDynamic: true}
	s.Queries.IntersectSphere(s.Bodies, s.Colliders, center, radius, filter, func(_ dynamics.ColliderHandle, c *dynamics.Collider) bool {
		parent := c.Parent()
		if _, dup := seen[parent]; dup {
			return true
		}
		seen[parent] = struct{}{}
		out = append(out, w.resolve(s, parent))
		return true
	})
	return out
}

// Raycast casts from the position of from along direction, ignoring from
// itself. A stale body or a zero direction never hits.
func (w *World) Raycast(from dynamics.BodyHandle, direction mgl64.Vec3, maxDistance float64) RaycastResult {
	s := w.current()
	body := s.Bodies.GetMut(from)
	if body == nil {
		return RaycastResult{}
	}
	dir, _, ok := geom.Normalize(direction)
	if !ok {
		return RaycastResult{}
	}
	s.refreshQueries()

	ray := geom.Ray{Origin: body.Position().Translation, Dir: dir}
	hit, ok := s.Queries.CastRay(s.Bodies, s.Colliders, ray, maxDistance, pipeline.QueryFilter{}.ExcludeBody(from))
	if !ok {
		return RaycastResult{}
	}
	c := s.Colliders.GetMut(hit.Collider)
	return RaycastResult{Body: w.resolve(s, c.Parent()), Distance: hit.Toi, hit: true}
}

// MoveShape sweeps shape from start along desired, sliding along whatever
// it meets, and reports the movement it can make. exclude is ignored by
// the sweep. Nothing in the world changes. Only convex shapes move.
func (w *World) MoveShape(dt float64, shape geom.Shape, start geom.Isometry, desired mgl64.Vec3, exclude dynamics.BodyHandle) control.EffectiveMovement {
	convex, ok := shape.(geom.Convex)
	if !ok {
		return control.EffectiveMovement{}
	}
	s := w.current()
	s.refreshQueries()
	filter := pipeline.QueryFilter{}.ExcludeBody(exclude)
	return w.controller.MoveShape(dt, s.Bodies, s.Colliders, s.Queries, convex, start, desired, filter)
}

// resolve maps a collider parent to its external id and panics when the
// body is gone or unnamed.
func (w *World) resolve(s *State, h dynamics.BodyHandle) string {
	if !s.Bodies.Contains(h) {
		w.fail(&ConsistencyError{Tick: w.CurrentTick(), Body: h, Reason: "collider has no parent body"})
	}
	id, ok := s.IDOf(h)
	if !ok {
		w.fail(&ConsistencyError{Tick: w.CurrentTick(), Body: h, Reason: "body has no external id"})
	}
	return id
}
