// Package config loads the physync configuration from YAML or TOML files.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/go-gl/mathgl/mgl64"
	"gopkg.in/yaml.v3"

	"github.com/zeusync/physync/internal/core/physics/dynamics"
	"github.com/zeusync/physync/internal/core/world"
)

var ErrUnsupportedFormat = errors.New("unsupported config format")

type Config struct {
	World    WorldConfig    `yaml:"world" toml:"world"`
	Logging  LoggingConfig  `yaml:"logging" toml:"logging"`
	Scenario ScenarioConfig `yaml:"scenario" toml:"scenario"`
}

type WorldConfig struct {
	Gravity mgl64.Vec3 `yaml:"gravity" toml:"gravity"`
	// MaxRetainedTicks bounds the rewind window; zero keeps every tick.
	MaxRetainedTicks int                            `yaml:"max_retained_ticks" toml:"max_retained_ticks"`
	Integration      dynamics.IntegrationParameters `yaml:"integration" toml:"integration"`
}

type LoggingConfig struct {
	Level  string `yaml:"level" toml:"level"`
	Format string `yaml:"format" toml:"format"`
}

type ScenarioConfig struct {
	// Script is a Lua file run against the world after start up.
	Script string `yaml:"script" toml:"script"`
	// Ticks are stepped after the script returns.
	Ticks int `yaml:"ticks" toml:"ticks"`
}

func Defaults() Config {
	wc := world.DefaultConfig()
	return Config{
		World: WorldConfig{
			Gravity:          wc.Gravity,
			MaxRetainedTicks: wc.MaxRetainedTicks,
			Integration:      wc.Params,
		},
		Logging: LoggingConfig{Level: "info", Format: "console"},
	}
}

// Load reads path on top of Defaults. The format follows the extension.
func Load(path string) (Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return Config{}, fmt.Errorf("load config: %w", err)
	}
	defer f.Close()

	var cfg Config
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		cfg, err = LoadYAML(f)
	case ".toml":
		cfg, err = LoadTOML(f)
	default:
		err = fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
	if err != nil {
		return Config{}, fmt.Errorf("load config %s: %w", path, err)
	}
	return cfg, nil
}

// LoadYAML decodes r on top of Defaults. Unknown keys are rejected.
func LoadYAML(r io.Reader) (Config, error) {
	cfg := Defaults()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, err
	}
	return cfg, cfg.Validate()
}

// LoadTOML decodes r on top of Defaults. Unknown keys are rejected.
func LoadTOML(r io.Reader) (Config, error) {
	cfg := Defaults()
	md, err := toml.NewDecoder(r).Decode(&cfg)
	if err != nil {
		return Config{}, err
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return Config{}, fmt.Errorf("unknown key %q", undecoded[0].String())
	}
	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	if err := c.World.Integration.Validate(); err != nil {
		return fmt.Errorf("world: %w", err)
	}
	if c.World.MaxRetainedTicks < 0 {
		return fmt.Errorf("world: max_retained_ticks must not be negative, got %d", c.World.MaxRetainedTicks)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "warning", "error", "fatal", "none", "off":
	default:
		return fmt.Errorf("logging: unknown level %q", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "json", "console":
	default:
		return fmt.Errorf("logging: unknown format %q", c.Logging.Format)
	}
	if c.Scenario.Ticks < 0 {
		return fmt.Errorf("scenario: ticks must not be negative, got %d", c.Scenario.Ticks)
	}
	return nil
}

// WorldConfig converts the world section for world.New.
func (c Config) WorldConfig() world.Config {
	return world.Config{
		Gravity:          c.World.Gravity,
		Params:           c.World.Integration,
		MaxRetainedTicks: c.World.MaxRetainedTicks,
	}
}
