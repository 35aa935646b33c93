package world

import (
	"encoding/binary"
	"math"

	"github.com/benbjohnson/immutable"
	"github.com/cespare/xxhash/v2"
	"github.com/go-gl/mathgl/mgl64"

	"github.com/zeusync/physync/internal/core/physics/dynamics"
	"github.com/zeusync/physync/internal/core/physics/pipeline"
	"github.com/zeusync/physync/pkg/generic"
)

var digests = generic.NewPool(xxhash.New, func(d *xxhash.Digest) { d.Reset() })

type stringHasher struct{}

func (stringHasher) Hash(key string) uint32 { return uint32(xxhash.Sum64String(key)) }
func (stringHasher) Equal(a, b string) bool { return a == b }

type bodyHasher struct{}

func (bodyHasher) Hash(key dynamics.BodyHandle) uint32 {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], key.Pack())
	return uint32(xxhash.Sum64(buf[:]))
}

func (bodyHasher) Equal(a, b dynamics.BodyHandle) bool { return a == b }

// State is everything needed to simulate one tick. States are values:
// Clone returns a copy that shares nothing mutable with the original.
type State struct {
	Gravity mgl64.Vec3
	Params  dynamics.IntegrationParameters

	Bodies      *dynamics.BodySet
	Colliders   *dynamics.ColliderSet
	Joints      *dynamics.JointSet
	Islands     *dynamics.IslandManager
	NarrowPhase *pipeline.NarrowPhase
	Queries     *pipeline.QueryPipeline

	// handles and ids are persistent maps, so clones share them until one
	// side changes.
	handles *immutable.Map[string, dynamics.BodyHandle]
	ids     *immutable.Map[dynamics.BodyHandle, string]
}

func NewState(gravity mgl64.Vec3, params dynamics.IntegrationParameters) *State {
	return &State{
		Gravity:     gravity,
		Params:      params,
		Bodies:      dynamics.NewBodySet(),
		Colliders:   dynamics.NewColliderSet(),
		Joints:      dynamics.NewJointSet(),
		Islands:     dynamics.NewIslandManager(),
		NarrowPhase: pipeline.NewNarrowPhase(),
		Queries:     pipeline.NewQueryPipeline(),
		handles:     immutable.NewMap[string, dynamics.BodyHandle](stringHasher{}),
		ids:         immutable.NewMap[dynamics.BodyHandle, string](bodyHasher{}),
	}
}

func (s *State) Clone() *State {
	return &State{
		Gravity:     s.Gravity,
		Params:      s.Params,
		Bodies:      s.Bodies.Clone(),
		Colliders:   s.Colliders.Clone(),
		Joints:      s.Joints.Clone(),
		Islands:     s.Islands.Clone(),
		NarrowPhase: s.NarrowPhase.Clone(),
		Queries:     s.Queries.Clone(),
		handles:     s.handles,
		ids:         s.ids,
	}
}

func (s *State) stepInput() pipeline.StepInput {
	return pipeline.StepInput{
		Gravity:     s.Gravity,
		Params:      s.Params,
		Bodies:      s.Bodies,
		Colliders:   s.Colliders,
		Joints:      s.Joints,
		Islands:     s.Islands,
		NarrowPhase: s.NarrowPhase,
		Queries:     s.Queries,
	}
}

// HandleOf resolves an external id.
func (s *State) HandleOf(id string) (dynamics.BodyHandle, bool) {
	return s.handles.Get(id)
}

// IDOf resolves the external id of a body.
func (s *State) IDOf(h dynamics.BodyHandle) (string, bool) {
	return s.ids.Get(h)
}

// NumNamed is the number of bodies with an external id.
func (s *State) NumNamed() int { return s.handles.Len() }

func (s *State) bind(id string, h dynamics.BodyHandle) {
	s.handles = s.handles.Set(id, h)
	s.ids = s.ids.Set(h, id)
}

func (s *State) unbind(h dynamics.BodyHandle) {
	if id, ok := s.ids.Get(h); ok {
		s.handles = s.handles.Delete(id)
		s.ids = s.ids.Delete(h)
	}
}

// refreshQueries brings the spatial index up to date after registration
// changes.
func (s *State) refreshQueries() {
	if s.Queries.IsDirty() {
		s.Queries.Update(s.Colliders)
	}
}

// Checksum hashes every body's handle, pose and velocities in slot order.
// Equal states give equal checksums on every platform.
func (s *State) Checksum() uint64 {
	d := digests.Get()
	defer digests.Put(d)
	buf := make([]byte, 0, 8*15)
	put := func(v float64) { buf = binary.LittleEndian.AppendUint64(buf, math.Float64bits(v)) }

	for h, b := range s.Bodies.All {
		buf = buf[:0]
		buf = binary.LittleEndian.AppendUint64(buf, h.Pack())
		pos := b.Position()
		for _, v := range pos.Translation {
			put(v)
		}
		put(pos.Rotation.W)
		for _, v := range pos.Rotation.V {
			put(v)
		}
		for _, v := range b.LinearVelocity() {
			put(v)
		}
		for _, v := range b.AngularVelocity() {
			put(v)
		}
		_, _ = d.Write(buf)
	}
	return d.Sum64()
}
