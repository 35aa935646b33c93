package geom

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// AABB is an axis-aligned bounding box.
type AABB struct {
	Min mgl64.Vec3
	Max mgl64.Vec3
}

// EmptyAABB returns a box that contains nothing and absorbs any Merge.
func EmptyAABB() AABB {
	inf := math.Inf(1)
	return AABB{
		Min: mgl64.Vec3{inf, inf, inf},
		Max: mgl64.Vec3{-inf, -inf, -inf},
	}
}

// AABBFromHalfExtents builds a box around center.
func AABBFromHalfExtents(center, halfExtents mgl64.Vec3) AABB {
	return AABB{Min: center.Sub(halfExtents), Max: center.Add(halfExtents)}
}

// TransformAABB returns the world box enclosing a local box moved by iso.
func TransformAABB(local AABB, iso Isometry) AABB {
	center := iso.TransformPoint(local.Center())
	he := local.HalfExtents()
	r := iso.RotationMatrix()

	var world mgl64.Vec3
	for row := 0; row < 3; row++ {
		for col := 0; col < 3; col++ {
			world[row] += math.Abs(r.At(row, col)) * he[col]
		}
	}
	return AABBFromHalfExtents(center, world)
}

func (b AABB) Center() mgl64.Vec3 {
	return b.Min.Add(b.Max).Mul(0.5)
}

func (b AABB) HalfExtents() mgl64.Vec3 {
	return b.Max.Sub(b.Min).Mul(0.5)
}

func (b AABB) IsEmpty() bool {
	return b.Min[0] > b.Max[0] || b.Min[1] > b.Max[1] || b.Min[2] > b.Max[2]
}

func (b AABB) Merge(o AABB) AABB {
	var out AABB
	for i := 0; i < 3; i++ {
		out.Min[i] = math.Min(b.Min[i], o.Min[i])
		out.Max[i] = math.Max(b.Max[i], o.Max[i])
	}
	return out
}

// MergePoint grows the box to contain p.
func (b AABB) MergePoint(p mgl64.Vec3) AABB {
	return b.Merge(AABB{Min: p, Max: p})
}

// Loosened grows the box by margin on every side.
func (b AABB) Loosened(margin float64) AABB {
	m := mgl64.Vec3{margin, margin, margin}
	return AABB{Min: b.Min.Sub(m), Max: b.Max.Add(m)}
}

// Swept returns the box covering b and b moved by delta.
func (b AABB) Swept(delta mgl64.Vec3) AABB {
	return b.Merge(AABB{Min: b.Min.Add(delta), Max: b.Max.Add(delta)})
}

func (b AABB) Intersects(o AABB) bool {
	return b.Min[0] <= o.Max[0] && b.Max[0] >= o.Min[0] &&
		b.Min[1] <= o.Max[1] && b.Max[1] >= o.Min[1] &&
		b.Min[2] <= o.Max[2] && b.Max[2] >= o.Min[2]
}

func (b AABB) Contains(p mgl64.Vec3) bool {
	return p[0] >= b.Min[0] && p[0] <= b.Max[0] &&
		p[1] >= b.Min[1] && p[1] <= b.Max[1] &&
		p[2] >= b.Min[2] && p[2] <= b.Max[2]
}

// CastRay clips the ray against the box with the slab method and returns
// the entry parameter. A ray starting inside the box enters at 0.
func (b AABB) CastRay(ray Ray, maxToi float64) (float64, bool) {
	tmin, tmax := 0.0, maxToi
	for i := 0; i < 3; i++ {
		if math.Abs(ray.Dir[i]) < 1e-15 {
			if ray.Origin[i] < b.Min[i] || ray.Origin[i] > b.Max[i] {
				return 0, false
			}
			continue
		}
		inv := 1 / ray.Dir[i]
		t1 := (b.Min[i] - ray.Origin[i]) * inv
		t2 := (b.Max[i] - ray.Origin[i]) * inv
		if t1 > t2 {
			t1, t2 = t2, t1
		}
		tmin = math.Max(tmin, t1)
		tmax = math.Min(tmax, t2)
		if tmin > tmax {
			return 0, false
		}
	}
	return tmin, true
}

// Ray is a half-line; Dir does not need to be unit length, toi values are
// expressed in multiples of Dir.
type Ray struct {
	Origin mgl64.Vec3
	Dir    mgl64.Vec3
}

func (r Ray) PointAt(t float64) mgl64.Vec3 {
	return r.Origin.Add(r.Dir.Mul(t))
}

// Transform moves the ray by iso.
func (r Ray) Transform(iso Isometry) Ray {
	return Ray{Origin: iso.TransformPoint(r.Origin), Dir: iso.TransformVector(r.Dir)}
}

// InverseTransform expresses the ray in the local frame of iso.
func (r Ray) InverseTransform(iso Isometry) Ray {
	return Ray{Origin: iso.InverseTransformPoint(r.Origin), Dir: iso.InverseTransformVector(r.Dir)}
}
