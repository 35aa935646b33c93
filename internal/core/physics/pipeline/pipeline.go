package pipeline

import (
	"context"
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/zeusync/physync/internal/core/physics/dynamics"
	"github.com/zeusync/physync/internal/core/physics/geom"
)

// StepInput is the mutable state advanced by one step. Every field belongs
// to the same snapshot.
type StepInput struct {
	Gravity     mgl64.Vec3
	Params      dynamics.IntegrationParameters
	Bodies      *dynamics.BodySet
	Colliders   *dynamics.ColliderSet
	Joints      *dynamics.JointSet
	Islands     *dynamics.IslandManager
	NarrowPhase *NarrowPhase
	Queries     *QueryPipeline
}

// PhysicsPipeline holds scratch buffers reused across steps. It keeps no
// simulation state of its own, so one pipeline can advance any snapshot.
type PhysicsPipeline struct {
	broadPhase *BroadPhase
	solver     *dynamics.Solver
}

func NewPhysicsPipeline() *PhysicsPipeline {
	return &PhysicsPipeline{
		broadPhase: NewBroadPhase(),
		solver:     dynamics.NewSolver(),
	}
}

// Step advances in by in.Params.Dt and reports contact changes.
func (p *PhysicsPipeline) Step(ctx context.Context, in StepInput) (ContactEvents, error) {
	params := in.Params
	dt := params.Dt

	if in.Queries.IsDirty() {
		in.Queries.Update(in.Colliders)
	}

	for _, b := range in.Bodies.All {
		b.ComputeKinematicVelocity(dt)
		b.IntegrateForces(dt, in.Gravity)
	}

	candidates := p.broadPhase.FindPairs(in.Bodies, in.Colliders, params)
	events, err := in.NarrowPhase.Update(ctx, candidates, in.Bodies, in.Colliders, params)
	if err != nil {
		return ContactEvents{}, fmt.Errorf("narrow phase: %w", err)
	}

	contacts, owners, links := p.collectContacts(in)
	for _, j := range in.Joints.All {
		links = append(links, dynamics.Link{Body1: j.Body1, Body2: j.Body2})
	}
	in.Islands.Update(in.Bodies, links)

	p.solver.Solve(in.Bodies, contacts, in.Joints, params)
	storeImpulses(in.NarrowPhase, contacts, owners)
	in.Islands.UpdateSleep(in.Bodies, params)

	var clamped map[dynamics.BodyHandle]float64
	if params.CCDEnabled {
		clamped = p.continuousCollision(in)
	}

	for h, b := range in.Bodies.All {
		if b.IsFixed() {
			b.ResetForces()
			continue
		}
		moved := b.IsKinematic() || !b.IsSleeping()
		if toi, ok := clamped[h]; ok {
			start := b.CenterOfMass()
			b.IntegratePosition(dt)
			pos := b.Position()
			com := start.Add(b.LinearVelocity().Mul(dt * toi))
			pos.Translation = com.Sub(pos.Rotation.Rotate(b.MassProperties().LocalCoM))
			b.SetPosition(pos, false)
		} else {
			b.IntegratePosition(dt)
		}
		b.ResetForces()
		if moved {
			in.Bodies.SyncColliders(h, in.Colliders)
		}
	}

	in.Queries.Update(in.Colliders)
	return events, nil
}

// collectContacts returns the solver input of every manifold, the index of
// the pair each one came from, and the touching body links.
func (p *PhysicsPipeline) collectContacts(in StepInput) ([]dynamics.ContactInput, []int, []dynamics.Link) {
	var (
		contacts []dynamics.ContactInput
		owners   []int
		links    []dynamics.Link
	)
	for i, pair := range in.NarrowPhase.Pairs() {
		c1, c2 := in.Colliders.GetMut(pair.Collider1), in.Colliders.GetMut(pair.Collider2)
		if c1 == nil || c2 == nil {
			continue
		}
		friction, restitution := dynamics.CombineMaterials(c1.Material(), c2.Material())
		for _, m := range pair.Manifolds {
			contacts = append(contacts, dynamics.ContactInput{
				Body1:       pair.Body1,
				Body2:       pair.Body2,
				Manifold:    m,
				Friction:    friction,
				Restitution: restitution,
				Warm:        pair.Impulses,
			})
			owners = append(owners, i)
		}
		if pair.Touching(in.Params.PredictionDistance) {
			links = append(links, dynamics.Link{Body1: pair.Body1, Body2: pair.Body2})
		}
	}
	return contacts, owners, links
}

// storeImpulses keeps the solver results on their pairs. A pair the solver
// skipped entirely keeps what it had.
func storeImpulses(np *NarrowPhase, contacts []dynamics.ContactInput, owners []int) {
	for start := 0; start < len(contacts); {
		end := start + 1
		for end < len(contacts) && owners[end] == owners[start] {
			end++
		}
		var impulses []dynamics.ContactImpulse
		solved := false
		for _, c := range contacts[start:end] {
			if c.Impulses != nil {
				solved = true
				impulses = append(impulses, c.Impulses...)
			}
		}
		if solved {
			np.pairs[owners[start]].Impulses = impulses
		}
		start = end
	}
}

// continuousCollision finds fast CCD-enabled bodies whose motion over the
// step would cross another collider, and returns the fraction of the step
// each of them may travel.
func (p *PhysicsPipeline) continuousCollision(in StepInput) map[dynamics.BodyHandle]float64 {
	dt := in.Params.Dt
	var out map[dynamics.BodyHandle]float64

	for h, b := range in.Bodies.All {
		if !b.IsDynamic() || b.IsSleeping() || !b.IsCCDEnabled() {
			continue
		}
		motion := b.LinearVelocity().Mul(dt)
		if motion.Len() <= ccdThreshold(b, in.Colliders) {
			continue
		}

		earliest := 1.0
		for _, ch := range b.Colliders() {
			c := in.Colliders.GetMut(ch)
			shape, ok := c.Shape().(geom.Convex)
			if !ok {
				continue
			}
			filter := QueryFilter{}.ExcludeBody(h)
			hit, ok := in.Queries.CastShape(in.Bodies, in.Colliders, shape, c.Position(), motion, earliest, 0, filter)
			if ok && hit.Toi < earliest && hit.Toi > 0 {
				earliest = hit.Toi
			}
		}
		if earliest < 1 {
			if out == nil {
				out = make(map[dynamics.BodyHandle]float64)
			}
			out[h] = earliest
		}
	}
	return out
}

// ccdThreshold is the smallest half thickness of the body's colliders.
func ccdThreshold(b *dynamics.RigidBody, colliders *dynamics.ColliderSet) float64 {
	threshold := math.Inf(1)
	for _, ch := range b.Colliders() {
		c := colliders.GetMut(ch)
		if c == nil {
			continue
		}
		he := c.Shape().LocalAABB().HalfExtents()
		threshold = math.Min(threshold, math.Min(he[0], math.Min(he[1], he[2])))
	}
	return threshold
}
