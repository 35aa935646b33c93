package geom

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// maxMargin caps the rounding applied to box and cylinder cores.
const maxMargin = 0.04

type Cuboid struct {
	HalfExtents mgl64.Vec3
	margin      float64
}

var _ Convex = Cuboid{}

func NewCuboid(halfExtents mgl64.Vec3) Cuboid {
	smallest := math.Min(halfExtents[0], math.Min(halfExtents[1], halfExtents[2]))
	return Cuboid{
		HalfExtents: halfExtents,
		margin:      math.Max(0, math.Min(maxMargin, 0.2*smallest)),
	}
}

func (Cuboid) Type() ShapeType { return CuboidShape }

func (c Cuboid) LocalAABB() AABB {
	return AABBFromHalfExtents(mgl64.Vec3{}, c.HalfExtents)
}

func (c Cuboid) MassProperties(density float64) MassProperties {
	h := c.HalfExtents
	mass := density * 8 * h[0] * h[1] * h[2]
	return principal(mass, mgl64.Vec3{},
		mass/3*(h[1]*h[1]+h[2]*h[2]),
		mass/3*(h[0]*h[0]+h[2]*h[2]),
		mass/3*(h[0]*h[0]+h[1]*h[1]),
	)
}

func (c Cuboid) ProjectLocalPoint(p mgl64.Vec3) PointProjection {
	box := c.LocalAABB()
	if box.Contains(p) {
		return PointProjection{Point: p, IsInside: true}
	}
	var out mgl64.Vec3
	for i := 0; i < 3; i++ {
		out[i] = clamp(p[i], -c.HalfExtents[i], c.HalfExtents[i])
	}
	return PointProjection{Point: out}
}

func (c Cuboid) CastLocalRay(ray Ray, maxToi float64) (float64, bool) {
	return c.LocalAABB().CastRay(ray, maxToi)
}

func (c Cuboid) CoreSupport(dir mgl64.Vec3) mgl64.Vec3 {
	m := c.margin
	return mgl64.Vec3{
		sign(dir[0]) * (c.HalfExtents[0] - m),
		sign(dir[1]) * (c.HalfExtents[1] - m),
		sign(dir[2]) * (c.HalfExtents[2] - m),
	}
}

func (c Cuboid) Margin() float64 { return c.margin }

// Vertices returns the eight corners in a fixed order.
func (c Cuboid) Vertices() [8]mgl64.Vec3 {
	h := c.HalfExtents
	var out [8]mgl64.Vec3
	for i := 0; i < 8; i++ {
		out[i] = mgl64.Vec3{
			h[0] * float64(1-2*(i&1)),
			h[1] * float64(1-2*((i>>1)&1)),
			h[2] * float64(1-2*((i>>2)&1)),
		}
	}
	return out
}

func (c Cuboid) featurePoints(mgl64.Vec3) []mgl64.Vec3 {
	v := c.Vertices()
	return v[:]
}
