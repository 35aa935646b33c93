package injector

import (
	"fmt"

	"github.com/zeusync/physync/internal/config"
	"github.com/zeusync/physync/internal/core/events/bus"
	"github.com/zeusync/physync/internal/core/observability/log"
	"github.com/zeusync/physync/internal/core/world"
	"github.com/zeusync/physync/internal/scene"
)

// Runtime is everything a simulation host needs, wired from one Config.
type Runtime struct {
	Config config.Config
	Log    log.Log
	Events bus.EventBus
	Tree   *scene.Tree
	World  *world.World
}

func ProvideLogger(cfg config.Config) log.Log {
	return log.NewWithConfig(log.ParseLevel(cfg.Logging.Level), cfg.Logging.Format)
}

// ProvideEventBus returns a bus that logs failed deliveries.
func ProvideEventBus(logger log.Log) bus.EventBus {
	b := bus.New()
	b.AddObserver(bus.NewLogObserver(logger))
	return b
}

func ProvideTree(logger log.Log) *scene.Tree {
	return scene.NewTree(logger.With(log.String("component", "scene")))
}

// ProvideWorld builds the world and binds the tree to it.
func ProvideWorld(cfg config.Config, logger log.Log, events bus.EventBus, tree *scene.Tree) (*world.World, error) {
	w, err := world.New(cfg.WorldConfig(),
		world.WithLogger(logger.With(log.String("component", "world"))),
		world.WithEventBus(events),
		world.WithScene(tree),
	)
	if err != nil {
		return nil, err
	}
	if err := tree.Enter(w); err != nil {
		return nil, fmt.Errorf("enter scene: %w", err)
	}
	return w, nil
}
