package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/zeusync/physync/internal/config"
	"github.com/zeusync/physync/internal/core/observability/log"
	"github.com/zeusync/physync/internal/injector"
	"github.com/zeusync/physync/internal/scenario"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "physync:", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configPath = flag.String("config", "", "path to a .yaml or .toml config file")
		script     = flag.String("script", "", "Lua scenario to run, overrides scenario.script")
		ticks      = flag.Int("ticks", -1, "ticks to step after the script, overrides scenario.ticks")
	)
	flag.Parse()

	cfg := config.Defaults()
	if *configPath != "" {
		var err error
		if cfg, err = config.Load(*configPath); err != nil {
			return err
		}
	}
	if *script != "" {
		cfg.Scenario.Script = *script
	}
	if *ticks >= 0 {
		cfg.Scenario.Ticks = *ticks
	}

	rt, err := injector.InitializeRuntime(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = log.Provide().Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt.Log.Info("physync started",
		log.Stringer("world", rt.World.ID()),
		log.String("script", cfg.Scenario.Script),
		log.Int("ticks", cfg.Scenario.Ticks),
	)

	if cfg.Scenario.Script != "" {
		engine := scenario.NewEngine(rt.World, rt.Log.With(log.String("component", "scenario")))
		defer engine.Close()
		if err := engine.RunFile(cfg.Scenario.Script); err != nil {
			return err
		}
	}

	for i := 0; i < cfg.Scenario.Ticks; i++ {
		if err := ctx.Err(); err != nil {
			rt.Log.Warn("interrupted", log.Uint32("tick", rt.World.CurrentTick()))
			break
		}
		if _, err := rt.World.Step(); err != nil {
			return err
		}
	}

	tick := rt.World.CurrentTick()
	sum, _ := rt.World.Checksum(tick)
	rt.Log.Info("physync finished", log.Uint32("tick", tick), log.Uint64("checksum", sum))
	fmt.Printf("tick=%d checksum=%016x\n", tick, sum)
	return nil
}
