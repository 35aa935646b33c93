package geom

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

const (
	gjkMaxIterations = 64
	gjkRelTolerance  = 1e-10
	gjkAbsTolerance  = 1e-12
)

type simplexVertex struct {
	w, a, b mgl64.Vec3
}

// CoreDistance runs GJK on the cores of two convex shapes and returns the
// core distance with the closest core points in world space. overlap is set
// when the cores intersect, in which case the points are meaningless.
func CoreDistance(a Convex, isoA Isometry, b Convex, isoB Isometry) (dist float64, pa, pb mgl64.Vec3, overlap bool) {
	support := func(d mgl64.Vec3) simplexVertex {
		sa := isoA.TransformPoint(a.CoreSupport(isoA.InverseTransformVector(d)))
		sb := isoB.TransformPoint(b.CoreSupport(isoB.InverseTransformVector(d.Mul(-1))))
		return simplexVertex{w: sa.Sub(sb), a: sa, b: sb}
	}

	dir := isoB.Translation.Sub(isoA.Translation)
	if dir.LenSqr() < 1e-20 {
		dir = mgl64.Vec3{1, 0, 0}
	}

	simplex := []simplexVertex{support(dir.Mul(-1))}
	v := simplex[0].w
	lambdas := []float64{1}

	for iter := 0; iter < gjkMaxIterations; iter++ {
		vv := v.Dot(v)
		if vv <= gjkAbsTolerance {
			return 0, pa, pb, true
		}

		w := support(v.Mul(-1))
		if vv-v.Dot(w.w) <= gjkRelTolerance*vv+gjkAbsTolerance {
			break
		}
		if containsVertex(simplex, w.w) {
			break
		}

		candidate := append(append(make([]simplexVertex, 0, 4), simplex...), w)
		next, nextLambdas, point, ok := closestOnSimplex(candidate)
		if !ok {
			break
		}
		if len(next) == 4 {
			return 0, pa, pb, true
		}
		if point.LenSqr() >= vv {
			// No progress; keep the previous best simplex.
			break
		}
		simplex, lambdas, v = next, nextLambdas, point
	}

	for i, sv := range simplex {
		pa = pa.Add(sv.a.Mul(lambdas[i]))
		pb = pb.Add(sv.b.Mul(lambdas[i]))
	}
	d := v.Len()
	if d <= math.Sqrt(gjkAbsTolerance) {
		return 0, pa, pb, true
	}
	return d, pa, pb, false
}

func containsVertex(simplex []simplexVertex, w mgl64.Vec3) bool {
	for _, sv := range simplex {
		if sv.w.Sub(w).LenSqr() <= 1e-20 {
			return true
		}
	}
	return false
}

// closestOnSimplex finds the point of the simplex hull closest to the origin
// by testing every face: the answer lies in the relative interior of the face
// whose affine projection has strictly positive barycentric coordinates.
func closestOnSimplex(vertices []simplexVertex) ([]simplexVertex, []float64, mgl64.Vec3, bool) {
	n := len(vertices)
	bestDist := math.Inf(1)
	var (
		bestSet     []simplexVertex
		bestLambdas []float64
		bestPoint   mgl64.Vec3
		found       bool
	)

	for mask := 1; mask < 1<<n; mask++ {
		subset := make([]simplexVertex, 0, n)
		for i := 0; i < n; i++ {
			if mask&(1<<i) != 0 {
				subset = append(subset, vertices[i])
			}
		}

		lambdas, ok := affineBarycentric(subset)
		if !ok {
			continue
		}

		var p mgl64.Vec3
		for i, sv := range subset {
			p = p.Add(sv.w.Mul(lambdas[i]))
		}
		if d := p.LenSqr(); d < bestDist {
			bestDist = d
			bestSet, bestLambdas, bestPoint, found = subset, lambdas, p, true
		}
	}
	return bestSet, bestLambdas, bestPoint, found
}

// affineBarycentric projects the origin on the affine hull of the points and
// reports whether every barycentric coordinate is positive.
func affineBarycentric(points []simplexVertex) ([]float64, bool) {
	k := len(points) - 1
	if k == 0 {
		return []float64{1}, true
	}

	p0 := points[0].w
	edges := make([]mgl64.Vec3, k)
	for i := 0; i < k; i++ {
		edges[i] = points[i+1].w.Sub(p0)
	}

	var g [3][3]float64
	var r [3]float64
	scale := 0.0
	for i := 0; i < k; i++ {
		for j := 0; j < k; j++ {
			g[i][j] = edges[i].Dot(edges[j])
		}
		r[i] = -p0.Dot(edges[i])
		scale = math.Max(scale, g[i][i])
	}

	mu, ok := solveSmall(g, r, k, scale)
	if !ok {
		return nil, false
	}

	lambdas := make([]float64, k+1)
	lambdas[0] = 1
	for i := 0; i < k; i++ {
		lambdas[i+1] = mu[i]
		lambdas[0] -= mu[i]
	}
	for _, l := range lambdas {
		if l <= 0 {
			return nil, false
		}
	}
	return lambdas, true
}

// solveSmall solves g*x = r for k <= 3 with partial pivoting.
func solveSmall(g [3][3]float64, r [3]float64, k int, scale float64) ([3]float64, bool) {
	var x [3]float64
	eps := 1e-12 * math.Max(scale, 1e-30)

	for col := 0; col < k; col++ {
		pivot := col
		for row := col + 1; row < k; row++ {
			if math.Abs(g[row][col]) > math.Abs(g[pivot][col]) {
				pivot = row
			}
		}
		if math.Abs(g[pivot][col]) <= eps {
			return x, false
		}
		g[col], g[pivot] = g[pivot], g[col]
		r[col], r[pivot] = r[pivot], r[col]

		for row := col + 1; row < k; row++ {
			f := g[row][col] / g[col][col]
			for c := col; c < k; c++ {
				g[row][c] -= f * g[col][c]
			}
			r[row] -= f * r[col]
		}
	}

	for row := k - 1; row >= 0; row-- {
		s := r[row]
		for c := row + 1; c < k; c++ {
			s -= g[row][c] * x[c]
		}
		x[row] = s / g[row][row]
	}
	return x, true
}
