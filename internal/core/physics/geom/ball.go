package geom

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

type Ball struct {
	Radius float64
}

var _ Convex = Ball{}

func NewBall(radius float64) Ball {
	return Ball{Radius: radius}
}

func (Ball) Type() ShapeType { return BallShape }

func (b Ball) LocalAABB() AABB {
	return AABBFromHalfExtents(mgl64.Vec3{}, mgl64.Vec3{b.Radius, b.Radius, b.Radius})
}

func (b Ball) MassProperties(density float64) MassProperties {
	mass := density * 4 / 3 * math.Pi * b.Radius * b.Radius * b.Radius
	i := 2.0 / 5.0 * mass * b.Radius * b.Radius
	return principal(mass, mgl64.Vec3{}, i, i, i)
}

func (b Ball) ProjectLocalPoint(p mgl64.Vec3) PointProjection {
	n, l, ok := Normalize(p)
	if !ok || l <= b.Radius {
		return PointProjection{Point: p, IsInside: true}
	}
	return PointProjection{Point: n.Mul(b.Radius)}
}

func (b Ball) CastLocalRay(ray Ray, maxToi float64) (float64, bool) {
	t, ok := raySphere(ray, mgl64.Vec3{}, b.Radius)
	if !ok || t > maxToi {
		return 0, false
	}
	return t, true
}

func (Ball) CoreSupport(mgl64.Vec3) mgl64.Vec3 { return mgl64.Vec3{} }

func (b Ball) Margin() float64 { return b.Radius }

// raySphere returns the entry parameter of ray into the sphere, 0 when the
// origin is inside.
func raySphere(ray Ray, center mgl64.Vec3, radius float64) (float64, bool) {
	o := ray.Origin.Sub(center)
	c := o.Dot(o) - radius*radius
	if c <= 0 {
		return 0, true
	}
	a := ray.Dir.Dot(ray.Dir)
	if a <= 1e-30 {
		return 0, false
	}
	b := o.Dot(ray.Dir)
	if b > 0 {
		return 0, false
	}
	disc := b*b - a*c
	if disc < 0 {
		return 0, false
	}
	return (-b - math.Sqrt(disc)) / a, true
}
