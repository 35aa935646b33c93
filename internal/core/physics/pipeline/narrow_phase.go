package pipeline

import (
	"context"
	"sort"

	"github.com/kamstrup/intmap"

	"github.com/zeusync/physync/internal/core/physics/dynamics"
	"github.com/zeusync/physync/internal/core/physics/geom"
	"github.com/zeusync/physync/pkg/concurrent"
)

// ContactPair holds the manifolds between two colliders that are within
// prediction distance of each other. Impulses are the solver results of
// the last step, kept so the next step can start from them. Both slices
// may be shared with cloned states and are replaced, never modified.
type ContactPair struct {
	ColliderPair
	Body1     dynamics.BodyHandle
	Body2     dynamics.BodyHandle
	Manifolds []geom.Manifold
	Impulses  []dynamics.ContactImpulse
}

// Touching reports whether any manifold point is within tolerance.
func (p ContactPair) Touching(tolerance float64) bool {
	for _, m := range p.Manifolds {
		if m.Separation() <= tolerance {
			return true
		}
	}
	return false
}

// NarrowPhase owns the contact manifolds of a state and the set of touching
// pairs used to report contact start and stop.
type NarrowPhase struct {
	pairs  []ContactPair
	active *intmap.Map[uint64, ColliderPair]
}

func NewNarrowPhase() *NarrowPhase {
	return &NarrowPhase{active: intmap.New[uint64, ColliderPair](16)}
}

func (np *NarrowPhase) Clone() *NarrowPhase {
	out := &NarrowPhase{
		pairs:  append([]ContactPair(nil), np.pairs...),
		active: intmap.New[uint64, ColliderPair](np.active.Len()),
	}
	np.active.ForEach(func(k uint64, p ColliderPair) bool {
		out.active.Put(k, p)
		return true
	})
	return out
}

// Pairs returns the pairs with at least one manifold, sorted by key.
func (np *NarrowPhase) Pairs() []ContactPair {
	return np.pairs
}

func (np *NarrowPhase) IsTouching(pair ColliderPair) bool {
	p, ok := np.active.Get(pair.Key())
	return ok && p == pair
}

// ContactEvents lists the pairs that started and stopped touching during an
// update, each sorted by key.
type ContactEvents struct {
	Started []ColliderPair
	Stopped []ColliderPair
}

// Update recomputes manifolds for the candidate pairs. Pairs are processed
// in parallel but every result lands in the slot of its pair, so the output
// does not depend on scheduling.
func (np *NarrowPhase) Update(ctx context.Context, candidates []BroadPair, bodies *dynamics.BodySet, colliders *dynamics.ColliderSet, params dynamics.IntegrationParameters) (ContactEvents, error) {
	previous := intmap.New[uint64, int](len(np.pairs))
	for i, p := range np.pairs {
		previous.Put(p.Key(), i)
	}

	results := make([]ContactPair, len(candidates))
	err := concurrent.ParallelFor(ctx, len(candidates), params.NarrowPhaseWorkers, func(_ context.Context, i int) error {
		cand := candidates[i]
		if cand.Frozen {
			if j, ok := previous.Get(cand.Key()); ok && np.pairs[j].ColliderPair == cand.ColliderPair {
				results[i] = np.pairs[j]
			}
			return nil
		}
		results[i] = computePair(cand.ColliderPair, bodies, colliders, params)
		if j, ok := previous.Get(cand.Key()); ok && np.pairs[j].ColliderPair == cand.ColliderPair {
			results[i].Impulses = np.pairs[j].Impulses
		}
		return nil
	})
	if err != nil {
		return ContactEvents{}, err
	}

	pairs := make([]ContactPair, 0, len(results))
	for _, r := range results {
		if len(r.Manifolds) > 0 {
			pairs = append(pairs, r)
		}
	}

	var events ContactEvents
	touching := intmap.New[uint64, ColliderPair](len(pairs))
	for _, p := range pairs {
		if !p.Touching(params.PredictionDistance) {
			continue
		}
		touching.Put(p.Key(), p.ColliderPair)
		if old, ok := np.active.Get(p.Key()); !ok || old != p.ColliderPair {
			events.Started = append(events.Started, p.ColliderPair)
		}
	}
	np.active.ForEach(func(k uint64, old ColliderPair) bool {
		if now, ok := touching.Get(k); !ok || now != old {
			events.Stopped = append(events.Stopped, old)
		}
		return true
	})
	sortPairs(events.Stopped)

	np.pairs = pairs
	np.active = touching
	return events, nil
}

// RemoveCollider forgets every pair involving h and returns the touching
// pairs that were dropped. The bodies on the other side of those pairs are
// woken since they lost a contact.
func (np *NarrowPhase) RemoveCollider(h dynamics.ColliderHandle, bodies *dynamics.BodySet) []ColliderPair {
	kept := np.pairs[:0:0]
	for _, p := range np.pairs {
		if !p.Involves(h) {
			kept = append(kept, p)
			continue
		}
		other := p.Body1
		if p.Collider1 == h {
			other = p.Body2
		}
		if b := bodies.GetMut(other); b != nil {
			b.WakeUp()
		}
	}
	np.pairs = kept

	var dropped []ColliderPair
	np.active.ForEach(func(_ uint64, p ColliderPair) bool {
		if p.Involves(h) {
			dropped = append(dropped, p)
		}
		return true
	})
	sortPairs(dropped)
	for _, p := range dropped {
		np.active.Del(p.Key())
	}
	return dropped
}

func computePair(pair ColliderPair, bodies *dynamics.BodySet, colliders *dynamics.ColliderSet, params dynamics.IntegrationParameters) ContactPair {
	c1, c2 := colliders.GetMut(pair.Collider1), colliders.GetMut(pair.Collider2)
	if c1 == nil || c2 == nil {
		return ContactPair{ColliderPair: pair}
	}
	b1, b2 := bodies.GetMut(c1.Parent()), bodies.GetMut(c2.Parent())
	if b1 == nil || b2 == nil {
		return ContactPair{ColliderPair: pair}
	}

	// Speculative margin: anything the bodies can close within the step.
	prediction := params.PredictionDistance +
		(b1.LinearVelocity().Len()+b2.LinearVelocity().Len())*params.Dt

	return ContactPair{
		ColliderPair: pair,
		Body1:        c1.Parent(),
		Body2:        c2.Parent(),
		Manifolds:    geom.Contacts(c1.Shape(), c1.Position(), c2.Shape(), c2.Position(), prediction),
	}
}

func sortPairs(pairs []ColliderPair) {
	sort.Slice(pairs, func(i, j int) bool { return pairs[i].Key() < pairs[j].Key() })
}
