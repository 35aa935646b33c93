package geom

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// Triangle is a two-sided flat triangle with no thickness.
type Triangle struct {
	A, B, C mgl64.Vec3
}

var _ Convex = Triangle{}

func (Triangle) Type() ShapeType { return TriangleShape }

func (t Triangle) LocalAABB() AABB {
	return EmptyAABB().MergePoint(t.A).MergePoint(t.B).MergePoint(t.C)
}

func (Triangle) MassProperties(float64) MassProperties { return MassProperties{} }

// Normal returns the unit normal following the A, B, C winding.
func (t Triangle) Normal() (mgl64.Vec3, bool) {
	n, _, ok := Normalize(t.B.Sub(t.A).Cross(t.C.Sub(t.A)))
	return n, ok
}

func (t Triangle) Center() mgl64.Vec3 {
	return t.A.Add(t.B).Add(t.C).Mul(1.0 / 3.0)
}

func (t Triangle) ProjectLocalPoint(p mgl64.Vec3) PointProjection {
	return PointProjection{Point: closestOnTriangle(p, t.A, t.B, t.C)}
}

// CastLocalRay uses the Moller-Trumbore test on both faces.
func (t Triangle) CastLocalRay(ray Ray, maxToi float64) (float64, bool) {
	e1 := t.B.Sub(t.A)
	e2 := t.C.Sub(t.A)
	p := ray.Dir.Cross(e2)
	det := e1.Dot(p)
	if math.Abs(det) < 1e-15 {
		return 0, false
	}
	inv := 1 / det
	s := ray.Origin.Sub(t.A)
	u := s.Dot(p) * inv
	if u < 0 || u > 1 {
		return 0, false
	}
	q := s.Cross(e1)
	v := ray.Dir.Dot(q) * inv
	if v < 0 || u+v > 1 {
		return 0, false
	}
	toi := e2.Dot(q) * inv
	if toi < 0 || toi > maxToi {
		return 0, false
	}
	return toi, true
}

func (t Triangle) CoreSupport(dir mgl64.Vec3) mgl64.Vec3 {
	best := t.A
	bestDot := dir.Dot(t.A)
	if d := dir.Dot(t.B); d > bestDot {
		best, bestDot = t.B, d
	}
	if d := dir.Dot(t.C); d > bestDot {
		best = t.C
	}
	return best
}

func (Triangle) Margin() float64 { return 0 }

func (t Triangle) featurePoints(mgl64.Vec3) []mgl64.Vec3 {
	return []mgl64.Vec3{t.A, t.B, t.C}
}

// closestOnTriangle follows the Voronoi region walk from Ericson,
// Real-Time Collision Detection, 5.1.5.
func closestOnTriangle(p, a, b, c mgl64.Vec3) mgl64.Vec3 {
	ab := b.Sub(a)
	ac := c.Sub(a)
	ap := p.Sub(a)
	d1 := ab.Dot(ap)
	d2 := ac.Dot(ap)
	if d1 <= 0 && d2 <= 0 {
		return a
	}

	bp := p.Sub(b)
	d3 := ab.Dot(bp)
	d4 := ac.Dot(bp)
	if d3 >= 0 && d4 <= d3 {
		return b
	}

	vc := d1*d4 - d3*d2
	if vc <= 0 && d1 >= 0 && d3 <= 0 {
		return a.Add(ab.Mul(d1 / (d1 - d3)))
	}

	cp := p.Sub(c)
	d5 := ab.Dot(cp)
	d6 := ac.Dot(cp)
	if d6 >= 0 && d5 <= d6 {
		return c
	}

	vb := d5*d2 - d1*d6
	if vb <= 0 && d2 >= 0 && d6 <= 0 {
		return a.Add(ac.Mul(d2 / (d2 - d6)))
	}

	va := d3*d6 - d5*d4
	if va <= 0 && (d4-d3) >= 0 && (d5-d6) >= 0 {
		return b.Add(c.Sub(b).Mul((d4 - d3) / ((d4 - d3) + (d5 - d6))))
	}

	denom := va + vb + vc
	if math.Abs(denom) < 1e-30 {
		return a
	}
	v := vb / denom
	w := vc / denom
	return a.Add(ab.Mul(v)).Add(ac.Mul(w))
}
