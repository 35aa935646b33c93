package geom

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

type CompoundPart struct {
	Shape Shape
	Local Isometry
}

// Compound groups shapes placed relative to a common frame. A body's
// colliders are summarized as one compound.
type Compound struct {
	Parts []CompoundPart
}

var _ Shape = Compound{}

func (Compound) Type() ShapeType { return CompoundShape }

func (c Compound) IsEmpty() bool { return len(c.Parts) == 0 }

func (c Compound) LocalAABB() AABB {
	out := EmptyAABB()
	for _, p := range c.Parts {
		out = out.Merge(ShapeAABB(p.Shape, p.Local))
	}
	return out
}

func (c Compound) MassProperties(density float64) MassProperties {
	var out MassProperties
	for _, p := range c.Parts {
		out = out.Add(p.Shape.MassProperties(density).Transformed(p.Local))
	}
	return out
}

func (c Compound) ProjectLocalPoint(p mgl64.Vec3) PointProjection {
	best := PointProjection{Point: p}
	bestDist := math.Inf(1)
	for _, part := range c.Parts {
		proj := ProjectPoint(part.Shape, part.Local, p)
		if proj.IsInside {
			return proj
		}
		if d := proj.Point.Sub(p).LenSqr(); d < bestDist {
			best, bestDist = proj, d
		}
	}
	return best
}

func (c Compound) CastLocalRay(ray Ray, maxToi float64) (float64, bool) {
	best, hit := maxToi, false
	for _, part := range c.Parts {
		if t, ok := CastRay(part.Shape, part.Local, ray, best); ok && (!hit || t < best) {
			best, hit = t, true
		}
	}
	return best, hit
}
