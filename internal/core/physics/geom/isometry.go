// Package geom holds the geometric side of the physics engine: rigid
// transforms, bounding boxes, collision shapes, and the distance, contact
// and cast queries built on top of them.
package geom

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// Isometry is a rigid transform: a rotation followed by a translation.
type Isometry struct {
	Translation mgl64.Vec3
	Rotation    mgl64.Quat
}

// Identity returns the identity transform.
func Identity() Isometry {
	return Isometry{Rotation: mgl64.QuatIdent()}
}

// Translation returns a pure translation.
func Translation(x, y, z float64) Isometry {
	return Isometry{Translation: mgl64.Vec3{x, y, z}, Rotation: mgl64.QuatIdent()}
}

func NewIsometry(translation mgl64.Vec3, rotation mgl64.Quat) Isometry {
	return Isometry{Translation: translation, Rotation: rotation}
}

// FromEuler builds a transform from a translation and euler angles in
// radians, applied about X, then Y, then Z.
func FromEuler(translation mgl64.Vec3, euler mgl64.Vec3) Isometry {
	return Isometry{
		Translation: translation,
		Rotation:    mgl64.AnglesToQuat(euler[0], euler[1], euler[2], mgl64.XYZ).Normalize(),
	}
}

// Mul composes two transforms: the result applies o first, then i.
func (i Isometry) Mul(o Isometry) Isometry {
	return Isometry{
		Translation: i.TransformPoint(o.Translation),
		Rotation:    i.Rotation.Mul(o.Rotation),
	}
}

func (i Isometry) TransformPoint(p mgl64.Vec3) mgl64.Vec3 {
	return i.Rotation.Rotate(p).Add(i.Translation)
}

func (i Isometry) TransformVector(v mgl64.Vec3) mgl64.Vec3 {
	return i.Rotation.Rotate(v)
}

func (i Isometry) InverseTransformPoint(p mgl64.Vec3) mgl64.Vec3 {
	return i.Rotation.Conjugate().Rotate(p.Sub(i.Translation))
}

func (i Isometry) InverseTransformVector(v mgl64.Vec3) mgl64.Vec3 {
	return i.Rotation.Conjugate().Rotate(v)
}

func (i Isometry) Inverse() Isometry {
	inv := i.Rotation.Conjugate()
	return Isometry{
		Translation: inv.Rotate(i.Translation.Mul(-1)),
		Rotation:    inv,
	}
}

// Translated returns the transform moved by delta.
func (i Isometry) Translated(delta mgl64.Vec3) Isometry {
	return Isometry{Translation: i.Translation.Add(delta), Rotation: i.Rotation}
}

// Matrix returns the homogeneous 4x4 matrix of the transform.
func (i Isometry) Matrix() mgl64.Mat4 {
	t := i.Translation
	return mgl64.Translate3D(t[0], t[1], t[2]).Mul4(i.Rotation.Mat4())
}

// RotationMatrix returns the 3x3 rotation matrix.
func (i Isometry) RotationMatrix() mgl64.Mat3 {
	return QuatToMat3(i.Rotation)
}

// ApproxEqual compares translations and rotations within eps. q and -q
// describe the same rotation and compare equal.
func (i Isometry) ApproxEqual(o Isometry, eps float64) bool {
	if i.Translation.Sub(o.Translation).Len() > eps {
		return false
	}
	return math.Abs(math.Abs(i.Rotation.Dot(o.Rotation))-1) <= eps
}

// QuatToMat3 converts a unit quaternion to a rotation matrix.
func QuatToMat3(q mgl64.Quat) mgl64.Mat3 {
	c0 := q.Rotate(mgl64.Vec3{1, 0, 0})
	c1 := q.Rotate(mgl64.Vec3{0, 1, 0})
	c2 := q.Rotate(mgl64.Vec3{0, 0, 1})
	return mgl64.Mat3{
		c0[0], c0[1], c0[2],
		c1[0], c1[1], c1[2],
		c2[0], c2[1], c2[2],
	}
}

// Skew returns the cross-product matrix of v, so Skew(v).Mul3x1(w) == v.Cross(w).
func Skew(v mgl64.Vec3) mgl64.Mat3 {
	return mgl64.Mat3{
		0, v[2], -v[1],
		-v[2], 0, v[0],
		v[1], -v[0], 0,
	}
}

// Normalize returns v scaled to unit length along with its original length.
// ok is false when v is too short to have a direction.
func Normalize(v mgl64.Vec3) (unit mgl64.Vec3, length float64, ok bool) {
	length = v.Len()
	if length <= 1e-12 || math.IsNaN(length) || math.IsInf(length, 0) {
		return mgl64.Vec3{}, length, false
	}
	return v.Mul(1 / length), length, true
}

// Perpendicular returns a unit vector orthogonal to v.
func Perpendicular(v mgl64.Vec3) mgl64.Vec3 {
	if c := v.Cross(mgl64.Vec3{0, 1, 0}); c.Len() > 1e-4 {
		return c.Normalize()
	}
	r, _, _ := Normalize(v.Cross(mgl64.Vec3{1, 0, 0}))
	return r
}

// Tangents returns two unit vectors completing n to an orthonormal basis.
func Tangents(n mgl64.Vec3) (mgl64.Vec3, mgl64.Vec3) {
	t1 := Perpendicular(n)
	t2 := n.Cross(t1)
	return t1, t2
}

// IntegrateRotation advances q by the angular velocity w over dt.
func IntegrateRotation(q mgl64.Quat, w mgl64.Vec3, dt float64) mgl64.Quat {
	angle := w.Len() * dt
	if angle <= 1e-15 {
		return q
	}
	axis := w.Mul(1 / w.Len())
	return mgl64.QuatRotate(angle, axis).Mul(q).Normalize()
}

// AngularVelocityBetween returns the angular velocity that rotates from to
// to over dt along the shortest arc.
func AngularVelocityBetween(from, to mgl64.Quat, dt float64) mgl64.Vec3 {
	delta := to.Mul(from.Conjugate()).Normalize()
	if delta.W < 0 {
		delta = delta.Scale(-1)
	}
	s := delta.V.Len()
	if s <= 1e-15 || dt <= 0 {
		return mgl64.Vec3{}
	}
	angle := 2 * math.Atan2(s, delta.W)
	return delta.V.Mul(angle / (s * dt))
}

func sign(x float64) float64 {
	if x < 0 {
		return -1
	}
	return 1
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
