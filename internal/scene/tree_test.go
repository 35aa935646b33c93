package scene

import (
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/zeusync/physync/internal/core/observability/log"
	"github.com/zeusync/physync/internal/core/physics/dynamics"
	"github.com/zeusync/physync/internal/core/physics/geom"
	"github.com/zeusync/physync/internal/core/shapes"
	"github.com/zeusync/physync/internal/core/world"
)

func newBoundTree(t *testing.T) (*Tree, *world.World) {
	t.Helper()
	tree := NewTree(log.Nop())
	w, err := world.New(world.DefaultConfig(), world.WithScene(tree))
	require.NoError(t, err)
	require.NoError(t, tree.Enter(w))
	return tree, w
}

func addLevel(t *testing.T, tree *Tree) {
	t.Helper()
	require.NoError(t, tree.Add("/", NewNode("level", geom.Identity())))
	require.NoError(t, tree.Add("/level", NewBody("ground", dynamics.Fixed, geom.Translation(0, -0.5, 0))))
	require.NoError(t, tree.Add("/level/ground", NewCollider("shape", shapes.Cuboid{Dimensions: mgl64.Vec3{20, 1, 20}}, dynamics.DefaultMaterial(), geom.Identity())))
}

func TestAddAndRemove(t *testing.T) {
	tree := NewTree(nil)
	require.NoError(t, tree.Add("/", NewNode("a", geom.Identity())))
	require.NoError(t, tree.Add("/a", NewNode("b", geom.Identity())))

	b, ok := tree.Get("/a/b")
	require.True(t, ok)
	assert.Equal(t, "/a/b", b.Path())
	assert.Equal(t, 2, tree.Len())

	assert.ErrorIs(t, tree.Add("/a", NewNode("b", geom.Identity())), ErrNodeExists)
	assert.ErrorIs(t, tree.Add("/missing", NewNode("c", geom.Identity())), ErrNodeNotFound)
	assert.ErrorIs(t, tree.Add("/", NewNode("x/y", geom.Identity())), ErrInvalidName)
	assert.ErrorIs(t, tree.Add("/", NewNode("", geom.Identity())), ErrInvalidName)

	removed, err := tree.Remove("/a")
	require.NoError(t, err)
	assert.Equal(t, "a", removed.Name())
	assert.Zero(t, tree.Len())
	_, ok = tree.Get("/a/b")
	assert.False(t, ok)

	_, err = tree.Remove("/")
	assert.ErrorIs(t, err, ErrNodeNotFound)
}

func TestWalkIsPreorder(t *testing.T) {
	tree := NewTree(nil)
	require.NoError(t, tree.Add("/", NewNode("a", geom.Identity())))
	require.NoError(t, tree.Add("/a", NewNode("b", geom.Identity())))
	require.NoError(t, tree.Add("/", NewNode("c", geom.Identity())))

	var paths []string
	tree.Walk(func(n *Node) bool {
		paths = append(paths, n.Path())
		return true
	})
	assert.Equal(t, []string{"/", "/a", "/a/b", "/c"}, paths)
}

func TestEnterRegistersBodies(t *testing.T) {
	tree := NewTree(nil)
	addLevel(t, tree)
	require.NoError(t, tree.Add("/level", NewBody("ball", dynamics.Dynamic, geom.Translation(0, 3, 0))))
	require.NoError(t, tree.Add("/level/ball", NewCollider("shape", shapes.DefaultBall(), dynamics.DefaultMaterial(), geom.Identity())))

	w, err := world.New(world.DefaultConfig(), world.WithScene(tree))
	require.NoError(t, err)
	require.NoError(t, tree.Enter(w))

	ball, _ := tree.Get("/level/ball")
	proxy, ok := ball.Body()
	require.True(t, ok)
	assert.Equal(t, "/level/ball", proxy.ID())
	assert.Positive(t, proxy.Mass())

	shape, _ := tree.Get("/level/ball/shape")
	_, ok = shape.ColliderHandle()
	assert.True(t, ok)

	for i := 0; i < 120; i++ {
		_, err := w.Step()
		require.NoError(t, err)
	}
	assert.InDelta(t, 0.5, ball.Transform().Translation[1], 0.05)
	assert.Equal(t, proxy.Position(), ball.Transform())
}

func TestBodyAddedToBoundTree(t *testing.T) {
	tree, w := newBoundTree(t)
	addLevel(t, tree)

	_, ok := w.BodyByID("/level/ground")
	require.True(t, ok)
	ground, _ := tree.Get("/level/ground")
	proxy, _ := ground.Body()
	compound, ok := proxy.CompoundShape()
	require.True(t, ok)
	assert.Len(t, compound.Parts, 1)
}

func TestRemovingNodesUnregisters(t *testing.T) {
	tree, w := newBoundTree(t)
	addLevel(t, tree)
	require.NoError(t, tree.Add("/level", NewBody("ball", dynamics.Dynamic, geom.Translation(0, 1, 0))))
	require.NoError(t, tree.Add("/level/ball", NewCollider("a", shapes.DefaultBall(), dynamics.DefaultMaterial(), geom.Identity())))
	require.NoError(t, tree.Add("/level/ball", NewCollider("b", shapes.DefaultCuboid(), dynamics.DefaultMaterial(), geom.Translation(0, 0.5, 0))))

	ball, _ := tree.Get("/level/ball")
	proxy, _ := ball.Body()
	require.Len(t, proxy.Colliders(), 2)

	_, err := tree.Remove("/level/ball/b")
	require.NoError(t, err)
	assert.Len(t, proxy.Colliders(), 1)

	_, err = tree.Remove("/level/ball")
	require.NoError(t, err)
	_, ok := w.BodyByID("/level/ball")
	assert.False(t, ok)
	assert.Empty(t, w.BodiesWithinSphere(mgl64.Vec3{0, 1, 0}, 1))

	_, err = w.Step()
	require.NoError(t, err)
}

func TestDegenerateColliderNodeIsSkipped(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	tree := NewTree(log.NewFromZap(zap.New(core), log.LevelWarn))
	w, err := world.New(world.DefaultConfig(), world.WithScene(tree))
	require.NoError(t, err)
	require.NoError(t, tree.Enter(w))

	require.NoError(t, tree.Add("/", NewBody("mesh", dynamics.Fixed, geom.Identity())))
	require.NoError(t, tree.Add("/mesh", NewCollider("shape", shapes.Mesh{}, dynamics.DefaultMaterial(), geom.Identity())))

	shape, _ := tree.Get("/mesh/shape")
	_, ok := shape.ColliderHandle()
	assert.False(t, ok)
	assert.Equal(t, 1, logs.FilterMessage("collider node skipped").Len())
}

func TestExitUnregistersEverything(t *testing.T) {
	tree, w := newBoundTree(t)
	addLevel(t, tree)

	tree.Exit()
	assert.Nil(t, tree.World())
	_, ok := w.BodyByID("/level/ground")
	assert.False(t, ok)

	require.NoError(t, tree.Enter(w))
	_, ok = w.BodyByID("/level/ground")
	assert.True(t, ok)
}
