// Package scenario drives a world from Lua scripts. Scripts register bodies,
// push them around, step and rewind the simulation and inspect the result.
package scenario

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl64"
	lua "github.com/yuin/gopher-lua"

	"github.com/zeusync/physync/internal/core/observability/log"
	"github.com/zeusync/physync/internal/core/physics/dynamics"
	"github.com/zeusync/physync/internal/core/physics/geom"
	"github.com/zeusync/physync/internal/core/shapes"
	"github.com/zeusync/physync/internal/core/world"
)

// Engine wraps one Lua VM bound to a world. Single-goroutine access only,
// like the world itself.
type Engine struct {
	vm     *lua.LState
	world  *world.World
	bodies map[string]*world.RigidBody
	log    log.Log
}

func NewEngine(w *world.World, logger log.Log) *Engine {
	if logger == nil {
		logger = log.Nop()
	}
	e := &Engine{
		vm:     lua.NewState(lua.Options{SkipOpenLibs: false}),
		world:  w,
		bodies: make(map[string]*world.RigidBody),
		log:    logger,
	}
	e.vm.SetGlobal("API_VERSION", lua.LNumber(1))
	e.register()
	return e
}

func (e *Engine) Close() { e.vm.Close() }

func (e *Engine) RunFile(path string) error {
	if err := e.vm.DoFile(path); err != nil {
		return fmt.Errorf("run %s: %w", path, err)
	}
	e.log.Debug("scenario finished", log.String("file", path), log.Uint32("tick", e.world.CurrentTick()))
	return nil
}

func (e *Engine) RunString(src string) error {
	if err := e.vm.DoString(src); err != nil {
		return fmt.Errorf("run scenario: %w", err)
	}
	return nil
}

// Global returns a global of the script, mostly for inspection in tests.
func (e *Engine) Global(name string) lua.LValue { return e.vm.GetGlobal(name) }

func (e *Engine) register() {
	api := map[string]lua.LGFunction{
		"add_body":             e.addBody,
		"add_ball":             e.addBall,
		"add_cuboid":           e.addCuboid,
		"add_capsule":          e.addCapsule,
		"remove_body":          e.removeBody,
		"apply_impulse":        e.applyImpulse,
		"add_force":            e.addForce,
		"step":                 e.step,
		"load_state":           e.loadState,
		"tick":                 e.tick,
		"position":             e.position,
		"velocity":             e.velocity,
		"raycast":              e.raycast,
		"bodies_within_sphere": e.bodiesWithinSphere,
		"checksum":             e.checksum,
		"log":                  e.logMessage,
	}
	for name, fn := range api {
		e.vm.SetGlobal(name, e.vm.NewFunction(fn))
	}
}

// body resolves id to a proxy bound to the current tick, rebinding after
// rewinds.
func (e *Engine) body(id string) (*world.RigidBody, bool) {
	h, ok := e.world.BodyByID(id)
	if !ok {
		return nil, false
	}
	if p, ok := e.bodies[id]; ok && p.IsRegistered() && p.Handle() == h {
		return p, true
	}
	b, _ := e.world.Body(h)
	p := world.NewRigidBody(id, b.Kind())
	p.Register(e.world, b.Position())
	e.bodies[id] = p
	return p, true
}

func (e *Engine) mustBody(L *lua.LState, n int) *world.RigidBody {
	id := L.CheckString(n)
	p, ok := e.body(id)
	if !ok {
		L.RaiseError("unknown body %q", id)
	}
	return p
}

func checkVec3(L *lua.LState, n int) mgl64.Vec3 {
	return mgl64.Vec3{float64(L.CheckNumber(n)), float64(L.CheckNumber(n + 1)), float64(L.CheckNumber(n + 2))}
}

func optVec3(L *lua.LState, n int) mgl64.Vec3 {
	return mgl64.Vec3{float64(L.OptNumber(n, 0)), float64(L.OptNumber(n+1, 0)), float64(L.OptNumber(n+2, 0))}
}

func pushVec3(L *lua.LState, v mgl64.Vec3) int {
	L.Push(lua.LNumber(v[0]))
	L.Push(lua.LNumber(v[1]))
	L.Push(lua.LNumber(v[2]))
	return 3
}

// add_body(id, kind, x, y, z) returns the pose the body ends up with.
func (e *Engine) addBody(L *lua.LState) int {
	id := L.CheckString(1)
	kind, err := dynamics.ParseBodyKind(L.CheckString(2))
	if err != nil {
		L.ArgError(2, err.Error())
	}
	pos := optVec3(L, 3)

	p := world.NewRigidBody(id, kind)
	iso := p.Register(e.world, geom.Translation(pos[0], pos[1], pos[2]))
	e.bodies[id] = p
	return pushVec3(L, iso.Translation)
}

func (e *Engine) attach(L *lua.LState, p *world.RigidBody, src shapes.Source, offsetAt int) int {
	off := optVec3(L, offsetAt)
	if _, err := p.AddCollider(src, dynamics.DefaultMaterial(), geom.Translation(off[0], off[1], off[2])); err != nil {
		L.RaiseError("%s: %s", p.ID(), err)
	}
	L.Push(lua.LNumber(p.Mass()))
	return 1
}

// add_ball(id, radius [, ox, oy, oz]) returns the new body mass.
func (e *Engine) addBall(L *lua.LState) int {
	p := e.mustBody(L, 1)
	return e.attach(L, p, shapes.Ball{Radius: float64(L.CheckNumber(2))}, 3)
}

// add_cuboid(id, sx, sy, sz [, ox, oy, oz]) takes full edge lengths.
func (e *Engine) addCuboid(L *lua.LState) int {
	p := e.mustBody(L, 1)
	return e.attach(L, p, shapes.Cuboid{Dimensions: checkVec3(L, 2)}, 5)
}

// add_capsule(id, radius, half_height [, ox, oy, oz])
func (e *Engine) addCapsule(L *lua.LState) int {
	p := e.mustBody(L, 1)
	src := shapes.Capsule{Radius: float64(L.CheckNumber(2)), HalfHeight: float64(L.CheckNumber(3))}
	return e.attach(L, p, src, 4)
}

func (e *Engine) removeBody(L *lua.LState) int {
	id := L.CheckString(1)
	p, ok := e.body(id)
	if ok {
		p.Unregister()
		delete(e.bodies, id)
	}
	L.Push(lua.LBool(ok))
	return 1
}

func (e *Engine) applyImpulse(L *lua.LState) int {
	e.mustBody(L, 1).ApplyImpulse(checkVec3(L, 2))
	return 0
}

func (e *Engine) addForce(L *lua.LState) int {
	e.mustBody(L, 1).AddForce(checkVec3(L, 2))
	return 0
}

// step([n]) advances n ticks, one by default, and returns the current tick.
func (e *Engine) step(L *lua.LState) int {
	n := L.OptInt(1, 1)
	for i := 0; i < n; i++ {
		if _, err := e.world.Step(); err != nil {
			L.RaiseError("%s", err)
		}
	}
	L.Push(lua.LNumber(e.world.CurrentTick()))
	return 1
}

func (e *Engine) loadState(L *lua.LState) int {
	tick := L.CheckInt(1)
	ok := tick >= 0 && e.world.LoadState(uint32(tick))
	L.Push(lua.LBool(ok))
	return 1
}

func (e *Engine) tick(L *lua.LState) int {
	L.Push(lua.LNumber(e.world.CurrentTick()))
	return 1
}

// position(id) returns x, y, z or nil for unknown bodies.
func (e *Engine) position(L *lua.LState) int {
	p, ok := e.body(L.CheckString(1))
	if !ok {
		L.Push(lua.LNil)
		return 1
	}
	return pushVec3(L, p.Position().Translation)
}

func (e *Engine) velocity(L *lua.LState) int {
	p, ok := e.body(L.CheckString(1))
	if !ok {
		L.Push(lua.LNil)
		return 1
	}
	return pushVec3(L, p.LinearVelocity())
}

// raycast(id, dx, dy, dz, max) returns {body=, distance=} or nil.
func (e *Engine) raycast(L *lua.LState) int {
	p := e.mustBody(L, 1)
	hit := p.Raycast(checkVec3(L, 2), float64(L.CheckNumber(5)))
	if !hit.IsHit() {
		L.Push(lua.LNil)
		return 1
	}
	t := L.NewTable()
	for k, v := range hit.Fields() {
		switch v := v.(type) {
		case string:
			t.RawSetString(k, lua.LString(v))
		case float64:
			t.RawSetString(k, lua.LNumber(v))
		}
	}
	L.Push(t)
	return 1
}

func (e *Engine) bodiesWithinSphere(L *lua.LState) int {
	center := checkVec3(L, 1)
	t := L.NewTable()
	for _, id := range e.world.BodiesWithinSphere(center, float64(L.CheckNumber(4))) {
		t.Append(lua.LString(id))
	}
	L.Push(t)
	return 1
}

// checksum([tick]) returns the state checksum as 16 hex digits, or nil when
// the tick is not retained.
func (e *Engine) checksum(L *lua.LState) int {
	tick := L.OptInt(1, int(e.world.CurrentTick()))
	if tick < 0 {
		L.Push(lua.LNil)
		return 1
	}
	sum, ok := e.world.Checksum(uint32(tick))
	if !ok {
		L.Push(lua.LNil)
		return 1
	}
	L.Push(lua.LString(fmt.Sprintf("%016x", sum)))
	return 1
}

func (e *Engine) logMessage(L *lua.LState) int {
	e.log.Info(L.CheckString(1), log.Uint32("tick", e.world.CurrentTick()))
	return 0
}
