package geom

import (
	"errors"
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

var ErrEmptyMesh = errors.New("mesh has no triangles")

// TriMesh is an indexed triangle soup. It has no volume and contributes no
// mass.
type TriMesh struct {
	vertices []mgl64.Vec3
	indices  [][3]uint32
	aabbs    []AABB
	aabb     AABB
}

var _ Shape = (*TriMesh)(nil)

// NewTriMesh validates the indices and precomputes per-triangle boxes.
func NewTriMesh(vertices []mgl64.Vec3, indices [][3]uint32) (*TriMesh, error) {
	if len(indices) == 0 {
		return nil, ErrEmptyMesh
	}

	m := &TriMesh{
		vertices: append([]mgl64.Vec3(nil), vertices...),
		indices:  append([][3]uint32(nil), indices...),
		aabbs:    make([]AABB, len(indices)),
		aabb:     EmptyAABB(),
	}
	for i, tri := range m.indices {
		for _, idx := range tri {
			if int(idx) >= len(m.vertices) {
				return nil, fmt.Errorf("triangle %d: vertex index %d out of range (%d vertices)", i, idx, len(m.vertices))
			}
		}
		m.aabbs[i] = m.Triangle(i).LocalAABB()
		m.aabb = m.aabb.Merge(m.aabbs[i])
	}
	return m, nil
}

func (*TriMesh) Type() ShapeType { return TriMeshShape }

func (m *TriMesh) NumTriangles() int { return len(m.indices) }

func (m *TriMesh) Triangle(i int) Triangle {
	tri := m.indices[i]
	return Triangle{A: m.vertices[tri[0]], B: m.vertices[tri[1]], C: m.vertices[tri[2]]}
}

// TrianglesIntersecting returns, in index order, the triangles whose box
// overlaps the local box.
func (m *TriMesh) TrianglesIntersecting(box AABB) []int {
	var out []int
	for i, b := range m.aabbs {
		if b.Intersects(box) {
			out = append(out, i)
		}
	}
	return out
}

func (m *TriMesh) LocalAABB() AABB { return m.aabb }

func (*TriMesh) MassProperties(float64) MassProperties { return MassProperties{} }

func (m *TriMesh) ProjectLocalPoint(p mgl64.Vec3) PointProjection {
	best := PointProjection{}
	bestDist := math.Inf(1)
	for i := range m.indices {
		proj := m.Triangle(i).ProjectLocalPoint(p)
		if d := proj.Point.Sub(p).LenSqr(); d < bestDist {
			best, bestDist = proj, d
		}
	}
	return best
}

func (m *TriMesh) CastLocalRay(ray Ray, maxToi float64) (float64, bool) {
	if _, ok := m.aabb.CastRay(ray, maxToi); !ok {
		return 0, false
	}
	best, hit := maxToi, false
	for i, box := range m.aabbs {
		if _, ok := box.CastRay(ray, best); !ok {
			continue
		}
		if t, ok := m.Triangle(i).CastLocalRay(ray, best); ok {
			best, hit = t, true
		}
	}
	return best, hit
}
