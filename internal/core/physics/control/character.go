// Package control moves kinematic characters through a physics state without
// changing it.
package control

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/zeusync/physync/internal/core/physics/dynamics"
	"github.com/zeusync/physync/internal/core/physics/geom"
	"github.com/zeusync/physync/internal/core/physics/pipeline"
)

const minMove = 1e-6

// CharacterController sweeps a shape through the colliders of a state,
// stopping at obstacles and optionally sliding along them.
type CharacterController struct {
	Up mgl64.Vec3
	// Offset is the gap kept between the character and anything it touches.
	Offset float64
	Slide  bool
	// MaxSlopeClimbAngle and MinSlopeSlideAngle are in radians from Up.
	MaxSlopeClimbAngle float64
	MinSlopeSlideAngle float64
	MaxIterations      int
}

func DefaultCharacterController() CharacterController {
	return CharacterController{
		Up:                 mgl64.Vec3{0, 1, 0},
		Offset:             0.01,
		Slide:              true,
		MaxSlopeClimbAngle: math.Pi / 4,
		MinSlopeSlideAngle: math.Pi / 6,
		MaxIterations:      20,
	}
}

// CharacterCollision is one obstacle met during a move.
type CharacterCollision struct {
	Collider dynamics.ColliderHandle
	// Position is the character pose when the hit happened.
	Position geom.Isometry
	// Translation is the movement applied before the hit, Remaining what was
	// still left to do.
	Translation mgl64.Vec3
	Remaining   mgl64.Vec3
	Toi         float64
	// Normal is the obstacle surface normal, pointing at the character.
	Normal  mgl64.Vec3
	Witness mgl64.Vec3
}

// EffectiveMovement is the outcome of MoveShape.
type EffectiveMovement struct {
	Translation        mgl64.Vec3
	Velocity           mgl64.Vec3
	Grounded           bool
	IsSlidingDownSlope bool
	Collisions         []CharacterCollision
}

// MoveShape computes how far shape, placed at start, can follow desired
// during dt. Colliders rejected by filter are ignored.
func (c CharacterController) MoveShape(
	dt float64,
	bodies *dynamics.BodySet,
	colliders *dynamics.ColliderSet,
	queries *pipeline.QueryPipeline,
	shape geom.Convex,
	start geom.Isometry,
	desired mgl64.Vec3,
	filter pipeline.QueryFilter,
) EffectiveMovement {
	up, _, ok := geom.Normalize(c.Up)
	if !ok {
		up = mgl64.Vec3{0, 1, 0}
	}

	var out EffectiveMovement
	pos := start
	remaining := desired

	for i := 0; i < c.MaxIterations; i++ {
		dir, length, ok := geom.Normalize(remaining)
		if !ok || length < minMove {
			break
		}

		hit, found := queries.CastShape(bodies, colliders, shape, pos, dir, length, c.Offset, filter)
		if !found {
			out.Translation = out.Translation.Add(remaining)
			pos = pos.Translated(remaining)
			remaining = mgl64.Vec3{}
			break
		}

		advance := dir.Mul(hit.Toi)
		out.Translation = out.Translation.Add(advance)
		pos = pos.Translated(advance)
		remaining = dir.Mul(length - hit.Toi)

		normal := hit.Normal.Mul(-1)
		out.Collisions = append(out.Collisions, CharacterCollision{
			Collider:    hit.Collider,
			Position:    pos,
			Translation: out.Translation,
			Remaining:   remaining,
			Toi:         hit.Toi,
			Normal:      normal,
			Witness:     hit.Witness,
		})

		if c.isGround(normal, up) {
			out.Grounded = true
		}
		if !c.Slide {
			break
		}

		var sliding bool
		remaining, sliding = c.slide(remaining, normal, up)
		out.IsSlidingDownSlope = out.IsSlidingDownSlope || sliding
	}

	if !out.Grounded {
		out.Grounded = c.groundBelow(bodies, colliders, queries, shape, pos, up, filter)
	}
	if dt > 0 {
		out.Velocity = out.Translation.Mul(1 / dt)
	}
	return out
}

func (c CharacterController) slopeAngle(normal, up mgl64.Vec3) float64 {
	return math.Acos(mgl64.Clamp(normal.Dot(up), -1, 1))
}

func (c CharacterController) isGround(normal, up mgl64.Vec3) bool {
	return c.slopeAngle(normal, up) <= c.MaxSlopeClimbAngle+1e-9
}

// slide projects the remaining motion onto the obstacle plane. Gentle
// slopes cancel the downward part so the character stands still on them;
// steep ones block any upward progress.
func (c CharacterController) slide(remaining, normal, up mgl64.Vec3) (mgl64.Vec3, bool) {
	vertical := up.Mul(remaining.Dot(up))
	horizontal := remaining.Sub(vertical)
	angle := c.slopeAngle(normal, up)

	switch {
	case angle < c.MinSlopeSlideAngle && vertical.Dot(up) < 0:
		return projectOnPlane(horizontal, normal), false

	case angle > c.MaxSlopeClimbAngle && angle < math.Pi/2-1e-6:
		slid := projectOnPlane(remaining, normal)
		if climb := slid.Dot(up); climb > 0 {
			slid = slid.Sub(up.Mul(climb))
			if wall, _, ok := geom.Normalize(normal.Sub(up.Mul(normal.Dot(up)))); ok {
				if into := slid.Dot(wall); into < 0 {
					slid = slid.Sub(wall.Mul(into))
				}
			}
			return slid, false
		}
		return slid, slid.Dot(up) < -minMove

	default:
		slid := projectOnPlane(remaining, normal)
		sliding := angle >= c.MinSlopeSlideAngle && angle < math.Pi/2-1e-6 && slid.Dot(up) < -minMove
		return slid, sliding
	}
}

// groundBelow looks for walkable ground just below the character.
func (c CharacterController) groundBelow(bodies *dynamics.BodySet, colliders *dynamics.ColliderSet, queries *pipeline.QueryPipeline, shape geom.Convex, pos geom.Isometry, up mgl64.Vec3, filter pipeline.QueryFilter) bool {
	hit, ok := queries.CastShape(bodies, colliders, shape, pos, up.Mul(-1), 2*c.Offset, c.Offset, filter)
	return ok && c.isGround(hit.Normal.Mul(-1), up)
}

func projectOnPlane(v, normal mgl64.Vec3) mgl64.Vec3 {
	return v.Sub(normal.Mul(v.Dot(normal)))
}
