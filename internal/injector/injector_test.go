package injector

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeusync/physync/internal/config"
	"github.com/zeusync/physync/internal/core/events/bus"
	"github.com/zeusync/physync/internal/core/physics/dynamics"
	"github.com/zeusync/physync/internal/core/physics/geom"
	"github.com/zeusync/physync/internal/scene"
)

func TestInitializeRuntime(t *testing.T) {
	cfg := config.Defaults()
	cfg.Logging.Level = "none"
	cfg.World.MaxRetainedTicks = 5

	rt, err := InitializeRuntime(cfg)
	require.NoError(t, err)
	assert.Same(t, rt.World, rt.Tree.World())

	stepped := 0
	_, err = rt.Events.Subscribe(bus.WorldStepped, func(bus.Event) error { stepped++; return nil })
	require.NoError(t, err)

	require.NoError(t, rt.Tree.Add("/", scene.NewBody("crate", dynamics.Dynamic, geom.Translation(0, 10, 0))))
	for i := 0; i < 8; i++ {
		_, err := rt.World.Step()
		require.NoError(t, err)
	}
	assert.Equal(t, 8, stepped)
	assert.Equal(t, uint32(4), rt.World.OldestTick())

	crate, _ := rt.Tree.Get("/crate")
	assert.Less(t, crate.Transform().Translation[1], 10.0)
}

func TestInitializeRuntimeRejectsBadConfig(t *testing.T) {
	cfg := config.Defaults()
	cfg.Logging.Level = "none"
	cfg.World.Integration.SolverIterations = 0

	_, err := InitializeRuntime(cfg)
	assert.ErrorIs(t, err, dynamics.ErrInvalidParameters)
}
