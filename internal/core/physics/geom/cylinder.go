package geom

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// Cylinder is centered on the origin with its axis along local Y.
type Cylinder struct {
	Radius     float64
	HalfHeight float64
	margin     float64
}

var _ Convex = Cylinder{}

func NewCylinder(halfHeight, radius float64) Cylinder {
	return Cylinder{
		Radius:     radius,
		HalfHeight: halfHeight,
		margin:     math.Max(0, math.Min(maxMargin, 0.2*math.Min(radius, halfHeight))),
	}
}

func (Cylinder) Type() ShapeType { return CylinderShape }

func (c Cylinder) LocalAABB() AABB {
	return AABBFromHalfExtents(mgl64.Vec3{}, mgl64.Vec3{c.Radius, c.HalfHeight, c.Radius})
}

func (c Cylinder) MassProperties(density float64) MassProperties {
	r, h := c.Radius, c.HalfHeight
	mass := density * math.Pi * r * r * 2 * h
	ix := mass * (3*r*r + 4*h*h) / 12
	return principal(mass, mgl64.Vec3{}, ix, mass*r*r/2, ix)
}

func (c Cylinder) ProjectLocalPoint(p mgl64.Vec3) PointProjection {
	radial := math.Hypot(p[0], p[2])
	if radial <= c.Radius && math.Abs(p[1]) <= c.HalfHeight {
		return PointProjection{Point: p, IsInside: true}
	}
	out := mgl64.Vec3{p[0], clamp(p[1], -c.HalfHeight, c.HalfHeight), p[2]}
	if radial > c.Radius {
		s := c.Radius / radial
		out[0] *= s
		out[2] *= s
	}
	return PointProjection{Point: out}
}

func (c Cylinder) CastLocalRay(ray Ray, maxToi float64) (float64, bool) {
	if c.ProjectLocalPoint(ray.Origin).IsInside {
		return 0, true
	}

	best, hit := math.Inf(1), false
	if t, ok := rayInfiniteCylinderY(ray, c.Radius); ok {
		if y := ray.PointAt(t)[1]; math.Abs(y) <= c.HalfHeight {
			best, hit = t, true
		}
	}
	if math.Abs(ray.Dir[1]) > 1e-15 {
		for _, y := range [2]float64{-c.HalfHeight, c.HalfHeight} {
			t := (y - ray.Origin[1]) / ray.Dir[1]
			if t < 0 || t >= best {
				continue
			}
			p := ray.PointAt(t)
			if math.Hypot(p[0], p[2]) <= c.Radius {
				best, hit = t, true
			}
		}
	}
	if !hit || best > maxToi {
		return 0, false
	}
	return best, true
}

func (c Cylinder) CoreSupport(dir mgl64.Vec3) mgl64.Vec3 {
	out := mgl64.Vec3{0, sign(dir[1]) * (c.HalfHeight - c.margin), 0}
	if radial := math.Hypot(dir[0], dir[2]); radial > 1e-12 {
		s := (c.Radius - c.margin) / radial
		out[0] = dir[0] * s
		out[2] = dir[2] * s
	}
	return out
}

func (c Cylinder) Margin() float64 { return c.margin }

func (c Cylinder) featurePoints(mgl64.Vec3) []mgl64.Vec3 {
	r, h := c.Radius, c.HalfHeight
	out := make([]mgl64.Vec3, 0, 8)
	for _, y := range [2]float64{-h, h} {
		out = append(out,
			mgl64.Vec3{r, y, 0},
			mgl64.Vec3{0, y, r},
			mgl64.Vec3{-r, y, 0},
			mgl64.Vec3{0, y, -r},
		)
	}
	return out
}
