package geom

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

const castMaxIterations = 32

// ShapeCastHit describes the first contact of a translational sweep.
type ShapeCastHit struct {
	Toi     float64
	Normal  mgl64.Vec3 // from the moving shape towards the obstacle
	Witness mgl64.Vec3 // on the obstacle
	Dist    float64    // separation at Toi, negative when already penetrating
}

// CastShapes sweeps a along vel (per unit of time) against the static shape
// b and returns the first time in [0, maxToi] at which their distance drops
// to targetDist. It uses conservative advancement, which is exact for pure
// translations of convex shapes.
func CastShapes(a Convex, isoA Isometry, vel mgl64.Vec3, b Shape, isoB Isometry, maxToi, targetDist float64) (ShapeCastHit, bool) {
	switch s := b.(type) {
	case *TriMesh:
		return castAgainstMesh(a, isoA, vel, s, isoB, maxToi, targetDist)
	case Compound:
		var best ShapeCastHit
		found := false
		for _, part := range s.Parts {
			hit, ok := CastShapes(a, isoA, vel, part.Shape, isoB.Mul(part.Local), maxToi, targetDist)
			if ok && (!found || hit.Toi < best.Toi) {
				best, found = hit, true
			}
		}
		return best, found
	case Convex:
		return castConvex(a, isoA, vel, s, isoB, maxToi, targetDist)
	default:
		return ShapeCastHit{}, false
	}
}

func castConvex(a Convex, isoA Isometry, vel mgl64.Vec3, b Convex, isoB Isometry, maxToi, targetDist float64) (ShapeCastHit, bool) {
	const tolerance = 1e-5

	t := 0.0
	for i := 0; i < castMaxIterations; i++ {
		dist, n, _, pb := ClosestPoints(a, isoA.Translated(vel.Mul(t)), b, isoB)
		closing := vel.Dot(n)
		if dist <= targetDist+tolerance {
			// The distance between convex shapes is convex along a line, so a
			// shape already in range that is not closing in never gets closer.
			if closing <= 1e-12 {
				return ShapeCastHit{}, false
			}
			return ShapeCastHit{Toi: t, Normal: n, Witness: pb, Dist: dist}, true
		}
		if closing <= 1e-12 {
			return ShapeCastHit{}, false
		}
		t += (dist - targetDist) / closing
		if t > maxToi {
			return ShapeCastHit{}, false
		}
	}
	return ShapeCastHit{}, false
}

func castAgainstMesh(a Convex, isoA Isometry, vel mgl64.Vec3, mesh *TriMesh, isoMesh Isometry, maxToi, targetDist float64) (ShapeCastHit, bool) {
	inMesh := isoMesh.Inverse().Mul(isoA)
	localVel := isoMesh.InverseTransformVector(vel)
	box := ShapeAABB(a, inMesh).Swept(localVel.Mul(maxToi)).Loosened(targetDist + 1e-3)

	best := ShapeCastHit{Toi: math.Inf(1)}
	found := false
	for _, i := range mesh.TrianglesIntersecting(box) {
		hit, ok := castConvex(a, isoA, vel, mesh.Triangle(i), isoMesh, maxToi, targetDist)
		if ok && hit.Toi < best.Toi {
			best, found = hit, true
		}
	}
	return best, found
}
