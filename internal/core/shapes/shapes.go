// Package shapes holds the declarative collider sources a body can be built
// from. Each source turns its parameters into a geometric shape, or reports
// that it has nothing usable.
package shapes

import (
	"github.com/go-gl/mathgl/mgl64"

	"github.com/zeusync/physync/internal/core/physics/geom"
)

// Source produces a collider shape scaled uniformly by scale. ok is false
// when the source is degenerate.
type Source interface {
	Shape(scale float64) (shape geom.Shape, ok bool)
}

var (
	_ Source = Ball{}
	_ Source = Capsule{}
	_ Source = Cuboid{}
	_ Source = Cylinder{}
	_ Source = Mesh{}
	_ Source = Scaled{}
)

type Ball struct {
	Radius float64 `yaml:"radius" toml:"radius"`
}

func DefaultBall() Ball { return Ball{Radius: 0.5} }

func (b Ball) Shape(scale float64) (geom.Shape, bool) {
	r := b.Radius * scale
	if r <= 0 {
		return nil, false
	}
	return geom.NewBall(r), true
}

// Capsule is aligned with the local Y axis.
type Capsule struct {
	Radius     float64 `yaml:"radius" toml:"radius"`
	HalfHeight float64 `yaml:"half_height" toml:"half_height"`
}

func DefaultCapsule() Capsule { return Capsule{Radius: 0.5, HalfHeight: 1} }

func (c Capsule) Shape(scale float64) (geom.Shape, bool) {
	r, hh := c.Radius*scale, c.HalfHeight*scale
	if r <= 0 || hh < 0 {
		return nil, false
	}
	return geom.NewCapsule(hh, r), true
}

// Cuboid is given by its full edge lengths.
type Cuboid struct {
	Dimensions mgl64.Vec3 `yaml:"dimensions" toml:"dimensions"`
}

func DefaultCuboid() Cuboid { return Cuboid{Dimensions: mgl64.Vec3{0.5, 0.5, 0.5}} }

func (c Cuboid) Shape(scale float64) (geom.Shape, bool) {
	he := c.Dimensions.Mul(scale / 2)
	if he[0] <= 0 || he[1] <= 0 || he[2] <= 0 {
		return nil, false
	}
	return geom.NewCuboid(he), true
}

// Cylinder is aligned with the local Y axis.
type Cylinder struct {
	Radius     float64 `yaml:"radius" toml:"radius"`
	HalfHeight float64 `yaml:"half_height" toml:"half_height"`
}

func DefaultCylinder() Cylinder { return Cylinder{Radius: 0.5, HalfHeight: 1} }

func (c Cylinder) Shape(scale float64) (geom.Shape, bool) {
	r, hh := c.Radius*scale, c.HalfHeight*scale
	if r <= 0 || hh <= 0 {
		return nil, false
	}
	return geom.NewCylinder(hh, r), true
}

// Surface is one indexed triangle list. Every three indices form a
// triangle.
type Surface struct {
	Vertices []mgl64.Vec3 `yaml:"vertices" toml:"vertices"`
	Indices  []int32      `yaml:"indices" toml:"indices"`
}

// Mesh builds a triangle mesh from its first surface. A mesh without
// surfaces, with a dangling index or with a partial triangle is degenerate.
type Mesh struct {
	Surfaces []Surface `yaml:"surfaces" toml:"surfaces"`
}

func (m Mesh) Shape(scale float64) (geom.Shape, bool) {
	if len(m.Surfaces) == 0 || scale <= 0 {
		return nil, false
	}
	s := m.Surfaces[0]
	if len(s.Indices)%3 != 0 {
		return nil, false
	}

	vertices := make([]mgl64.Vec3, len(s.Vertices))
	for i, v := range s.Vertices {
		vertices[i] = v.Mul(scale)
	}
	triangles := make([][3]uint32, 0, len(s.Indices)/3)
	for i := 0; i < len(s.Indices); i += 3 {
		var tri [3]uint32
		for k := range tri {
			idx := s.Indices[i+k]
			if idx < 0 {
				return nil, false
			}
			tri[k] = uint32(idx)
		}
		triangles = append(triangles, tri)
	}

	mesh, err := geom.NewTriMesh(vertices, triangles)
	if err != nil {
		return nil, false
	}
	return mesh, true
}

// Scaled multiplies the scale passed to Source by Factor.
type Scaled struct {
	Source Source
	Factor float64
}

func (s Scaled) Shape(scale float64) (geom.Shape, bool) {
	if s.Source == nil {
		return nil, false
	}
	return s.Source.Shape(scale * s.Factor)
}
