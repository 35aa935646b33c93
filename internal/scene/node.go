package scene

import (
	"errors"
	"fmt"
	"strings"

	"github.com/zeusync/physync/internal/core/observability/log"
	"github.com/zeusync/physync/internal/core/physics/dynamics"
	"github.com/zeusync/physync/internal/core/physics/geom"
	"github.com/zeusync/physync/internal/core/shapes"
	"github.com/zeusync/physync/internal/core/world"
)

// Node is one element of the tree. A plain node only carries a transform;
// body and collider nodes also take part in the simulation while the tree
// is bound to a world.
type Node struct {
	name      string
	transform geom.Isometry
	parent    *Node
	children  []*Node

	body     *bodyPart
	collider *colliderPart
}

type bodyPart struct {
	kind  dynamics.BodyKind
	proxy *world.RigidBody
}

type colliderPart struct {
	source   shapes.Source
	material dynamics.Material
	handle   dynamics.ColliderHandle
	attached bool
}

func NewNode(name string, transform geom.Isometry) *Node {
	return &Node{name: name, transform: transform}
}

// NewBody creates a node whose transform follows a rigid body. The node
// path is the body's external id.
func NewBody(name string, kind dynamics.BodyKind, transform geom.Isometry) *Node {
	n := NewNode(name, transform)
	n.body = &bodyPart{kind: kind}
	return n
}

// NewCollider creates a collider node. It attaches to its parent body at
// its own transform, which is relative to the body.
func NewCollider(name string, src shapes.Source, material dynamics.Material, local geom.Isometry) *Node {
	n := NewNode(name, local)
	n.collider = &colliderPart{source: src, material: material, handle: dynamics.InvalidCollider}
	return n
}

func (n *Node) Name() string { return n.name }

func (n *Node) Parent() *Node { return n.parent }

func (n *Node) Children() []*Node { return n.children }

func (n *Node) Transform() geom.Isometry { return n.transform }

// SetTransform is called by the world after every step for body nodes.
func (n *Node) SetTransform(iso geom.Isometry) { n.transform = iso }

// Path is the slash separated list of names from the root.
func (n *Node) Path() string {
	if n.parent == nil {
		return "/"
	}
	var parts []string
	for cur := n; cur.parent != nil; cur = cur.parent {
		parts = append(parts, cur.name)
	}
	var b strings.Builder
	for i := len(parts) - 1; i >= 0; i-- {
		b.WriteByte('/')
		b.WriteString(parts[i])
	}
	return b.String()
}

func (n *Node) IsBody() bool { return n.body != nil }

func (n *Node) IsCollider() bool { return n.collider != nil }

// Body returns the proxy of a body node that has entered a world.
func (n *Node) Body() (*world.RigidBody, bool) {
	if n.body == nil || n.body.proxy == nil {
		return nil, false
	}
	return n.body.proxy, true
}

// ColliderHandle returns the handle of an attached collider node.
func (n *Node) ColliderHandle() (dynamics.ColliderHandle, bool) {
	if n.collider == nil || !n.collider.attached {
		return dynamics.InvalidCollider, false
	}
	return n.collider.handle, true
}

func (n *Node) child(name string) *Node {
	for _, c := range n.children {
		if c.name == name {
			return c
		}
	}
	return nil
}

// enterTree registers a body node and every collider below it.
func (n *Node) enterTree(w *world.World, logger log.Log) error {
	switch {
	case n.body != nil:
		proxy := world.NewRigidBody(n.Path(), n.body.kind)
		n.transform = proxy.Register(w, n.transform)
		n.body.proxy = proxy
		for _, c := range n.children {
			if c.collider != nil {
				if err := c.attach(proxy, logger); err != nil {
					return err
				}
			}
		}
	case n.collider != nil && n.parent != nil && n.parent.body != nil && n.parent.body.proxy != nil:
		return n.attach(n.parent.body.proxy, logger)
	}
	return nil
}

func (n *Node) attach(proxy *world.RigidBody, logger log.Log) error {
	if n.collider.attached {
		return nil
	}
	h, err := proxy.AddCollider(n.collider.source, n.collider.material, n.transform)
	switch {
	case errors.Is(err, world.ErrDegenerateShape):
		logger.Warn("collider node skipped", log.String("path", n.Path()))
		return nil
	case err != nil:
		return fmt.Errorf("collider %s: %w", n.Path(), err)
	}
	n.collider.handle, n.collider.attached = h, true
	return nil
}

// exitTree undoes enterTree.
func (n *Node) exitTree() {
	switch {
	case n.body != nil && n.body.proxy != nil:
		n.body.proxy.Unregister()
		n.body.proxy = nil
		for _, c := range n.children {
			if c.collider != nil {
				c.collider.attached = false
				c.collider.handle = dynamics.InvalidCollider
			}
		}
	case n.collider != nil && n.collider.attached:
		if n.parent != nil && n.parent.body != nil && n.parent.body.proxy != nil {
			n.parent.body.proxy.RemoveCollider(n.collider.handle)
		}
		n.collider.attached = false
		n.collider.handle = dynamics.InvalidCollider
	}
}
