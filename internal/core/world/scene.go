package world

import "github.com/zeusync/physync/internal/core/physics/geom"

// Scene resolves external ids to the nodes that display the bodies.
type Scene interface {
	Node(id string) (Node, bool)
}

type Node interface {
	SetTransform(geom.Isometry)
}
