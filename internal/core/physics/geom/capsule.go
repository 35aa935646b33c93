package geom

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// Capsule is a segment along the local Y axis swept by a sphere.
type Capsule struct {
	Radius     float64
	HalfHeight float64
}

var _ Convex = Capsule{}

func NewCapsule(halfHeight, radius float64) Capsule {
	return Capsule{Radius: radius, HalfHeight: halfHeight}
}

func (Capsule) Type() ShapeType { return CapsuleShape }

func (c Capsule) LocalAABB() AABB {
	return AABBFromHalfExtents(mgl64.Vec3{}, mgl64.Vec3{c.Radius, c.HalfHeight + c.Radius, c.Radius})
}

func (c Capsule) MassProperties(density float64) MassProperties {
	r, h := c.Radius, c.HalfHeight
	cylinder := density * math.Pi * r * r * 2 * h
	caps := density * 4 / 3 * math.Pi * r * r * r

	iy := cylinder*r*r/2 + caps*2*r*r/5
	ix := cylinder*(3*r*r+4*h*h)/12 + caps*(2*r*r/5+h*h+3*h*r/4)
	return principal(cylinder+caps, mgl64.Vec3{}, ix, iy, ix)
}

func (c Capsule) segment() (mgl64.Vec3, mgl64.Vec3) {
	return mgl64.Vec3{0, -c.HalfHeight, 0}, mgl64.Vec3{0, c.HalfHeight, 0}
}

func (c Capsule) ProjectLocalPoint(p mgl64.Vec3) PointProjection {
	onSegment := mgl64.Vec3{0, clamp(p[1], -c.HalfHeight, c.HalfHeight), 0}
	d := p.Sub(onSegment)
	n, l, ok := Normalize(d)
	if !ok || l <= c.Radius {
		return PointProjection{Point: p, IsInside: true}
	}
	return PointProjection{Point: onSegment.Add(n.Mul(c.Radius))}
}

func (c Capsule) CastLocalRay(ray Ray, maxToi float64) (float64, bool) {
	if c.ProjectLocalPoint(ray.Origin).IsInside {
		return 0, true
	}

	best, hit := math.Inf(1), false
	if t, ok := rayInfiniteCylinderY(ray, c.Radius); ok {
		if y := ray.PointAt(t)[1]; math.Abs(y) <= c.HalfHeight {
			best, hit = t, true
		}
	}
	a, b := c.segment()
	for _, center := range [2]mgl64.Vec3{a, b} {
		if t, ok := raySphere(ray, center, c.Radius); ok && t < best {
			best, hit = t, true
		}
	}
	if !hit || best > maxToi {
		return 0, false
	}
	return best, true
}

func (c Capsule) CoreSupport(dir mgl64.Vec3) mgl64.Vec3 {
	return mgl64.Vec3{0, sign(dir[1]) * c.HalfHeight, 0}
}

func (c Capsule) Margin() float64 { return c.Radius }

func (c Capsule) featurePoints(dir mgl64.Vec3) []mgl64.Vec3 {
	n, _, ok := Normalize(dir)
	if !ok {
		return nil
	}
	a, b := c.segment()
	off := n.Mul(c.Radius)
	return []mgl64.Vec3{a.Add(off), b.Add(off)}
}

// rayInfiniteCylinderY returns where ray enters the infinite cylinder of the
// given radius around the Y axis.
func rayInfiniteCylinderY(ray Ray, radius float64) (float64, bool) {
	a := ray.Dir[0]*ray.Dir[0] + ray.Dir[2]*ray.Dir[2]
	if a <= 1e-30 {
		return 0, false
	}
	b := ray.Origin[0]*ray.Dir[0] + ray.Origin[2]*ray.Dir[2]
	c := ray.Origin[0]*ray.Origin[0] + ray.Origin[2]*ray.Origin[2] - radius*radius
	disc := b*b - a*c
	if disc < 0 {
		return 0, false
	}
	t := (-b - math.Sqrt(disc)) / a
	if t < 0 {
		return 0, false
	}
	return t, true
}
