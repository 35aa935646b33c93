// Package scene is a small in-memory node tree that hosts simulated bodies.
// Body nodes register with the world when they enter a bound tree and
// unregister when they leave it; the world writes poses back to them.
package scene

import (
	"errors"
	"fmt"
	"strings"

	"github.com/zeusync/physync/internal/core/observability/log"
	"github.com/zeusync/physync/internal/core/physics/geom"
	"github.com/zeusync/physync/internal/core/world"
)

var (
	ErrNodeExists   = errors.New("node already exists")
	ErrNodeNotFound = errors.New("node not found")
	ErrInvalidName  = errors.New("invalid node name")
)

var _ world.Scene = (*Tree)(nil)

// Tree indexes its nodes by path. It is not safe for concurrent use.
type Tree struct {
	root  *Node
	nodes map[string]*Node
	world *world.World
	log   log.Log
}

func NewTree(logger log.Log) *Tree {
	if logger == nil {
		logger = log.Nop()
	}
	root := NewNode("", geom.Identity())
	return &Tree{
		root:  root,
		nodes: map[string]*Node{"/": root},
		log:   logger,
	}
}

func (t *Tree) Root() *Node { return t.root }

// Len counts the nodes below the root.
func (t *Tree) Len() int { return len(t.nodes) - 1 }

func (t *Tree) World() *world.World { return t.world }

func (t *Tree) Get(path string) (*Node, bool) {
	n, ok := t.nodes[path]
	return n, ok
}

// Node resolves a body id for the world.
func (t *Tree) Node(id string) (world.Node, bool) {
	n, ok := t.nodes[id]
	if !ok {
		return nil, false
	}
	return n, true
}

// Add links n below the node at parentPath. In a bound tree the new
// subtree enters the world right away.
func (t *Tree) Add(parentPath string, n *Node) error {
	if n.name == "" || strings.Contains(n.name, "/") {
		return fmt.Errorf("add %q: %w", n.name, ErrInvalidName)
	}
	parent, ok := t.nodes[parentPath]
	if !ok {
		return fmt.Errorf("add %q under %s: %w", n.name, parentPath, ErrNodeNotFound)
	}
	if parent.child(n.name) != nil {
		return fmt.Errorf("add %q under %s: %w", n.name, parentPath, ErrNodeExists)
	}

	n.parent = parent
	parent.children = append(parent.children, n)
	walk(n, func(c *Node) bool {
		t.nodes[c.Path()] = c
		return true
	})
	t.log.Debug("node added", log.String("path", n.Path()))

	if t.world == nil {
		return nil
	}
	return t.enter(n)
}

// Remove unlinks the subtree at path. Nodes leave the world children first.
func (t *Tree) Remove(path string) (*Node, error) {
	n, ok := t.nodes[path]
	if !ok || n == t.root {
		return nil, fmt.Errorf("remove %s: %w", path, ErrNodeNotFound)
	}

	if t.world != nil {
		t.exit(n)
	}
	walk(n, func(c *Node) bool {
		delete(t.nodes, c.Path())
		return true
	})

	siblings := n.parent.children
	for i, c := range siblings {
		if c == n {
			n.parent.children = append(siblings[:i:i], siblings[i+1:]...)
			break
		}
	}
	n.parent = nil
	t.log.Debug("node removed", log.String("path", path))
	return n, nil
}

// Enter binds the tree to w and registers every body node in it.
func (t *Tree) Enter(w *world.World) error {
	if t.world != nil {
		t.Exit()
	}
	t.world = w
	return t.enter(t.root)
}

// Exit unregisters every body node and unbinds the world.
func (t *Tree) Exit() {
	if t.world == nil {
		return
	}
	t.exit(t.root)
	t.world = nil
}

// Walk visits the tree in preorder until fn returns false.
func (t *Tree) Walk(fn func(*Node) bool) {
	walk(t.root, fn)
}

func (t *Tree) enter(n *Node) error {
	var err error
	walk(n, func(c *Node) bool {
		err = c.enterTree(t.world, t.log)
		return err == nil
	})
	return err
}

func (t *Tree) exit(n *Node) {
	for _, c := range n.children {
		t.exit(c)
	}
	n.exitTree()
}

func walk(n *Node, fn func(*Node) bool) bool {
	if !fn(n) {
		return false
	}
	for _, c := range n.children {
		if !walk(c, fn) {
			return false
		}
	}
	return true
}
