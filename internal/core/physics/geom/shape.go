package geom

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl64"
)

type ShapeType uint8

const (
	BallShape ShapeType = iota
	CuboidShape
	CapsuleShape
	CylinderShape
	TriangleShape
	TriMeshShape
	CompoundShape
)

func (t ShapeType) String() string {
	switch t {
	case BallShape:
		return "ball"
	case CuboidShape:
		return "cuboid"
	case CapsuleShape:
		return "capsule"
	case CylinderShape:
		return "cylinder"
	case TriangleShape:
		return "triangle"
	case TriMeshShape:
		return "trimesh"
	case CompoundShape:
		return "compound"
	default:
		return fmt.Sprintf("shape(%d)", uint8(t))
	}
}

// Shape is a collision shape expressed in its own local frame. Shapes are
// immutable once built and are shared between snapshots.
type Shape interface {
	Type() ShapeType
	LocalAABB() AABB
	MassProperties(density float64) MassProperties
	// ProjectLocalPoint returns the point of the solid shape closest to p.
	ProjectLocalPoint(p mgl64.Vec3) PointProjection
	// CastLocalRay returns the first hit parameter along ray. Rays starting
	// inside a solid shape hit at 0.
	CastLocalRay(ray Ray, maxToi float64) (float64, bool)
}

// Convex shapes are described by a core and a margin: the shape is the set
// of points within Margin of the core. Distance queries run on the cores,
// which keeps them well conditioned when shapes touch.
type Convex interface {
	Shape
	CoreSupport(dir mgl64.Vec3) mgl64.Vec3
	Margin() float64
}

// featured shapes expose the local points used to build multi-point
// contact manifolds against flat surfaces.
type featured interface {
	featurePoints(dir mgl64.Vec3) []mgl64.Vec3
}

type PointProjection struct {
	Point    mgl64.Vec3
	IsInside bool
}

// ShapeAABB returns the world-space box of s placed at iso.
func ShapeAABB(s Shape, iso Isometry) AABB {
	return TransformAABB(s.LocalAABB(), iso)
}

// ProjectPoint projects a world point on s placed at iso.
func ProjectPoint(s Shape, iso Isometry, p mgl64.Vec3) PointProjection {
	proj := s.ProjectLocalPoint(iso.InverseTransformPoint(p))
	proj.Point = iso.TransformPoint(proj.Point)
	return proj
}

// DistanceToPoint is zero for points inside the solid shape.
func DistanceToPoint(s Shape, iso Isometry, p mgl64.Vec3) float64 {
	proj := ProjectPoint(s, iso, p)
	if proj.IsInside {
		return 0
	}
	return proj.Point.Sub(p).Len()
}

// CastRay casts a world ray against s placed at iso.
func CastRay(s Shape, iso Isometry, ray Ray, maxToi float64) (float64, bool) {
	return s.CastLocalRay(ray.InverseTransform(iso), maxToi)
}

// Support returns the farthest point of the full convex shape along dir.
func Support(c Convex, dir mgl64.Vec3) mgl64.Vec3 {
	p := c.CoreSupport(dir)
	if m := c.Margin(); m > 0 {
		if n, _, ok := Normalize(dir); ok {
			p = p.Add(n.Mul(m))
		}
	}
	return p
}

// MassProperties describes mass, center of mass and the inertia tensor about
// the center of mass, all in the frame of the owner.
type MassProperties struct {
	Mass     float64
	LocalCoM mgl64.Vec3
	Inertia  mgl64.Mat3
}

func principal(mass float64, com mgl64.Vec3, ix, iy, iz float64) MassProperties {
	return MassProperties{
		Mass:     mass,
		LocalCoM: com,
		Inertia:  mgl64.Diag3(mgl64.Vec3{ix, iy, iz}),
	}
}

// Transformed expresses the properties in the parent frame of iso.
func (m MassProperties) Transformed(iso Isometry) MassProperties {
	r := iso.RotationMatrix()
	return MassProperties{
		Mass:     m.Mass,
		LocalCoM: iso.TransformPoint(m.LocalCoM),
		Inertia:  r.Mul3(m.Inertia).Mul3(r.Transpose()),
	}
}

// Add combines two bodies of mass using the parallel axis theorem.
func (m MassProperties) Add(o MassProperties) MassProperties {
	total := m.Mass + o.Mass
	if total <= 0 {
		return MassProperties{}
	}

	com := m.LocalCoM.Mul(m.Mass).Add(o.LocalCoM.Mul(o.Mass)).Mul(1 / total)
	inertia := m.Inertia.Add(shiftInertia(m.Mass, m.LocalCoM.Sub(com))).
		Add(o.Inertia).Add(shiftInertia(o.Mass, o.LocalCoM.Sub(com)))

	return MassProperties{Mass: total, LocalCoM: com, Inertia: inertia}
}

func (m MassProperties) InvMass() float64 {
	if m.Mass <= 0 {
		return 0
	}
	return 1 / m.Mass
}

// InvInertia returns the inverse tensor, zero when the tensor is singular.
func (m MassProperties) InvInertia() mgl64.Mat3 {
	if m.Mass <= 0 {
		return mgl64.Mat3{}
	}
	if det := m.Inertia.Det(); det <= 1e-18 {
		return mgl64.Mat3{}
	}
	return m.Inertia.Inv()
}

func shiftInertia(mass float64, d mgl64.Vec3) mgl64.Mat3 {
	dd := d.Dot(d)
	outer := mgl64.Mat3{
		d[0] * d[0], d[1] * d[0], d[2] * d[0],
		d[0] * d[1], d[1] * d[1], d[2] * d[1],
		d[0] * d[2], d[1] * d[2], d[2] * d[2],
	}
	return mgl64.Ident3().Mul(dd).Sub(outer).Mul(mass)
}
