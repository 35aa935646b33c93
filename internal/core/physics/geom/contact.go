package geom

import (
	"math"
	"slices"
	"sort"

	"github.com/go-gl/mathgl/mgl64"
)

const (
	// MaxManifoldPoints bounds the number of points kept per manifold.
	MaxManifoldPoints = 4

	augmentTolerance = 1e-2
	duplicateSqDist  = 1e-8
)

// ContactPoint is a pair of witness points. Dist is the signed separation
// along the manifold normal, negative when penetrating.
type ContactPoint struct {
	PointA mgl64.Vec3
	PointB mgl64.Vec3
	Dist   float64
}

// Manifold is a set of contact points sharing a normal that points from
// the first shape towards the second.
type Manifold struct {
	Normal mgl64.Vec3
	Points []ContactPoint
}

// Separation is the distance of the deepest point.
func (m Manifold) Separation() float64 {
	best := math.Inf(1)
	for _, p := range m.Points {
		best = math.Min(best, p.Dist)
	}
	return best
}

// ClosestPoints returns the signed distance between two convex shapes, the
// unit normal from a to b and the witness points on each surface.
func ClosestPoints(a Convex, isoA Isometry, b Convex, isoB Isometry) (dist float64, normal, pa, pb mgl64.Vec3) {
	coreDist, ca, cb, overlap := CoreDistance(a, isoA, b, isoB)
	if !overlap {
		n, _, ok := Normalize(cb.Sub(ca))
		if ok {
			pa = ca.Add(n.Mul(a.Margin()))
			pb = cb.Sub(n.Mul(b.Margin()))
			return coreDist - a.Margin() - b.Margin(), n, pa, pb
		}
	}
	return separatingAxis(a, isoA, b, isoB)
}

// separatingAxis handles intersecting cores: it picks, among a set of
// candidate axes, the one with the least penetration.
func separatingAxis(a Convex, isoA Isometry, b Convex, isoB Isometry) (float64, mgl64.Vec3, mgl64.Vec3, mgl64.Vec3) {
	best := math.Inf(-1)
	var bestN, bestA, bestB mgl64.Vec3

	for _, axis := range candidateAxes(a, isoA, b, isoB) {
		for _, n := range [2]mgl64.Vec3{axis, axis.Mul(-1)} {
			sa := isoA.TransformPoint(Support(a, isoA.InverseTransformVector(n)))
			sb := isoB.TransformPoint(Support(b, isoB.InverseTransformVector(n.Mul(-1))))
			sep := sb.Dot(n) - sa.Dot(n)
			if sep > best {
				best, bestN = sep, n
				bestB = sb
				bestA = sb.Sub(n.Mul(sep))
			}
		}
	}
	return best, bestN, bestA, bestB
}

func candidateAxes(a Convex, isoA Isometry, b Convex, isoB Isometry) []mgl64.Vec3 {
	raw := make([]mgl64.Vec3, 0, 20)
	raw = append(raw, isoB.Translation.Sub(isoA.Translation), mgl64.Vec3{1, 0, 0}, mgl64.Vec3{0, 1, 0}, mgl64.Vec3{0, 0, 1})

	ra := isoA.RotationMatrix()
	rb := isoB.RotationMatrix()
	for i := 0; i < 3; i++ {
		raw = append(raw, ra.Col(i), rb.Col(i))
	}
	for _, s := range [2]struct {
		shape Convex
		iso   Isometry
	}{{a, isoA}, {b, isoB}} {
		if tri, ok := s.shape.(Triangle); ok {
			if n, ok := tri.Normal(); ok {
				raw = append(raw, s.iso.TransformVector(n))
			}
		}
	}
	if a.Type() == CuboidShape && b.Type() == CuboidShape {
		for i := 0; i < 3; i++ {
			for j := 0; j < 3; j++ {
				raw = append(raw, ra.Col(i).Cross(rb.Col(j)))
			}
		}
	}

	out := raw[:0]
	for _, axis := range raw {
		if n, _, ok := Normalize(axis); ok && n.Len() > 0.5 {
			out = append(out, n)
		}
	}
	return out
}

// ContactConvex builds the manifold between two convex shapes when they are
// closer than prediction.
func ContactConvex(a Convex, isoA Isometry, b Convex, isoB Isometry, prediction float64) (Manifold, bool) {
	dist, n, pa, pb := ClosestPoints(a, isoA, b, isoB)
	if dist > prediction {
		return Manifold{}, false
	}

	var extra []ContactPoint
	if fa, ok := a.(featured); ok {
		for _, f := range fa.featurePoints(isoA.InverseTransformVector(n)) {
			v := isoA.TransformPoint(f)
			sep := pb.Sub(v).Dot(n)
			if sep > prediction {
				continue
			}
			onB := v.Add(n.Mul(sep))
			if DistanceToPoint(b, isoB, onB) > augmentTolerance {
				continue
			}
			extra = append(extra, ContactPoint{PointA: v, PointB: onB, Dist: sep})
		}
	}
	if fb, ok := b.(featured); ok {
		for _, f := range fb.featurePoints(isoB.InverseTransformVector(n.Mul(-1))) {
			v := isoB.TransformPoint(f)
			sep := v.Sub(pa).Dot(n)
			if sep > prediction {
				continue
			}
			onA := v.Sub(n.Mul(sep))
			if DistanceToPoint(a, isoA, onA) > augmentTolerance {
				continue
			}
			extra = append(extra, ContactPoint{PointA: onA, PointB: v, Dist: sep})
		}
	}

	points := make([]ContactPoint, 0, len(extra)+1)
	for _, p := range extra {
		if !hasPoint(points, p) {
			points = append(points, p)
		}
	}
	if len(points) < 2 {
		if p := (ContactPoint{PointA: pa, PointB: pb, Dist: dist}); !hasPoint(points, p) {
			points = append(points, p)
		}
	}

	sort.SliceStable(points, func(i, j int) bool { return points[i].Dist < points[j].Dist })
	return Manifold{Normal: n, Points: reducePoints(points, n)}, true
}

// reducePoints keeps at most MaxManifoldPoints of points, which must be
// sorted by depth. It keeps the deepest point and then the points spanning
// the largest area around it, so a resting face keeps support on all sides.
// The result stays sorted by depth.
func reducePoints(points []ContactPoint, n mgl64.Vec3) []ContactPoint {
	if len(points) <= MaxManifoldPoints {
		return points
	}

	chosen := []int{0}
	pick := func(score func(p mgl64.Vec3) float64) {
		best, bestScore := -1, 0.0
		for i, p := range points {
			if slices.Contains(chosen, i) {
				continue
			}
			if s := score(p.PointA); best < 0 || s > bestScore {
				best, bestScore = i, s
			}
		}
		chosen = append(chosen, best)
	}

	a := points[0].PointA
	pick(func(p mgl64.Vec3) float64 { return p.Sub(a).LenSqr() })
	b := points[chosen[1]].PointA
	pick(func(p mgl64.Vec3) float64 {
		return math.Abs(b.Sub(a).Cross(p.Sub(a)).Dot(n))
	})
	c := points[chosen[2]].PointA
	area := b.Sub(a).Cross(c.Sub(a)).Dot(n)
	pick(func(p mgl64.Vec3) float64 {
		// Area added by p outside the triangle abc.
		outside := 0.0
		for _, e := range [][2]mgl64.Vec3{{a, b}, {b, c}, {c, a}} {
			outside = math.Max(outside, -e[1].Sub(e[0]).Cross(p.Sub(e[0])).Dot(n)*area)
		}
		return outside
	})

	slices.Sort(chosen)
	out := make([]ContactPoint, len(chosen))
	for i, idx := range chosen {
		out[i] = points[idx]
	}
	return out
}

func hasPoint(points []ContactPoint, p ContactPoint) bool {
	for _, q := range points {
		if q.PointA.Sub(p.PointA).LenSqr() <= duplicateSqDist {
			return true
		}
	}
	return false
}

// Contacts returns the manifolds between two shapes. Triangle meshes produce
// one manifold per touching triangle; two meshes never collide.
func Contacts(a Shape, isoA Isometry, b Shape, isoB Isometry, prediction float64) []Manifold {
	switch {
	case a.Type() == TriMeshShape && b.Type() == TriMeshShape:
		return nil
	case a.Type() == TriMeshShape:
		return flipAll(Contacts(b, isoB, a, isoA, prediction))
	case a.Type() == CompoundShape:
		var out []Manifold
		for _, part := range a.(Compound).Parts {
			out = append(out, Contacts(part.Shape, isoA.Mul(part.Local), b, isoB, prediction)...)
		}
		return out
	case b.Type() == CompoundShape:
		var out []Manifold
		for _, part := range b.(Compound).Parts {
			out = append(out, Contacts(a, isoA, part.Shape, isoB.Mul(part.Local), prediction)...)
		}
		return out
	}

	ca, ok := a.(Convex)
	if !ok {
		return nil
	}

	if mesh, ok := b.(*TriMesh); ok {
		inMesh := isoB.Inverse().Mul(isoA)
		box := ShapeAABB(a, inMesh).Loosened(prediction)

		var out []Manifold
		for _, i := range mesh.TrianglesIntersecting(box) {
			if m, ok := ContactConvex(ca, isoA, mesh.Triangle(i), isoB, prediction); ok {
				out = append(out, m)
			}
		}
		return out
	}

	cb, ok := b.(Convex)
	if !ok {
		return nil
	}
	if m, ok := ContactConvex(ca, isoA, cb, isoB, prediction); ok {
		return []Manifold{m}
	}
	return nil
}

// Flip swaps the roles of the two shapes.
func (m Manifold) Flip() Manifold {
	out := Manifold{Normal: m.Normal.Mul(-1), Points: make([]ContactPoint, len(m.Points))}
	for i, p := range m.Points {
		out.Points[i] = ContactPoint{PointA: p.PointB, PointB: p.PointA, Dist: p.Dist}
	}
	return out
}

func flipAll(ms []Manifold) []Manifold {
	for i := range ms {
		ms[i] = ms[i].Flip()
	}
	return ms
}
