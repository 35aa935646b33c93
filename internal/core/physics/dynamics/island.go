package dynamics

import "slices"

// Link ties two bodies into the same island, either through a touching
// contact or a joint.
type Link struct {
	Body1, Body2 BodyHandle
}

// IslandManager groups dynamic bodies that interact and puts whole groups
// to sleep once every member has been at rest long enough.
type IslandManager struct {
	islands [][]BodyHandle
}

func NewIslandManager() *IslandManager {
	return &IslandManager{}
}

func (m *IslandManager) Clone() *IslandManager {
	out := &IslandManager{islands: make([][]BodyHandle, len(m.islands))}
	for i, island := range m.islands {
		out.islands[i] = append([]BodyHandle(nil), island...)
	}
	return out
}

// Islands returns the groups computed by the last Update, each sorted by
// handle slot order.
func (m *IslandManager) Islands() [][]BodyHandle {
	return m.islands
}

// Remove drops h from its island. Empty islands disappear.
func (m *IslandManager) Remove(h BodyHandle) {
	kept := m.islands[:0]
	for _, island := range m.islands {
		island = slices.DeleteFunc(island, func(o BodyHandle) bool { return o == h })
		if len(island) > 0 {
			kept = append(kept, island)
		}
	}
	m.islands = kept
}

// Update rebuilds the islands from links. An island that mixes sleeping and
// awake bodies is woken as a whole, so bodies run into a resting group get
// the group moving again.
func (m *IslandManager) Update(bodies *BodySet, links []Link) {
	index := make(map[BodyHandle]int)
	var order []BodyHandle
	for h, b := range bodies.All {
		if b.IsDynamic() {
			index[h] = len(order)
			order = append(order, h)
		}
	}

	parent := make([]int, len(order))
	for i := range parent {
		parent[i] = i
	}
	find := func(i int) int {
		for parent[i] != i {
			parent[i] = parent[parent[i]]
			i = parent[i]
		}
		return i
	}

	for _, l := range links {
		i1, ok1 := index[l.Body1]
		i2, ok2 := index[l.Body2]
		switch {
		case ok1 && ok2:
			r1, r2 := find(i1), find(i2)
			if r1 < r2 {
				parent[r2] = r1
			} else if r2 < r1 {
				parent[r1] = r2
			}
		case ok1:
			wakeIfPushed(bodies, l.Body1, l.Body2)
		case ok2:
			wakeIfPushed(bodies, l.Body2, l.Body1)
		}
	}

	groups := make(map[int]int)
	m.islands = m.islands[:0]
	for i, h := range order {
		root := find(i)
		g, ok := groups[root]
		if !ok {
			g = len(m.islands)
			groups[root] = g
			m.islands = append(m.islands, nil)
		}
		m.islands[g] = append(m.islands[g], h)
	}

	for _, island := range m.islands {
		wakeMixedIsland(bodies, island)
	}
}

// UpdateSleep runs the sleep bookkeeping on solved velocities: an island
// falls asleep once every member stayed under the thresholds for
// TimeUntilSleep.
func (m *IslandManager) UpdateSleep(bodies *BodySet, params IntegrationParameters) {
	for _, island := range m.islands {
		updateIslandSleep(bodies, island, params)
	}
}

func wakeMixedIsland(bodies *BodySet, island []BodyHandle) {
	awake, asleep := false, false
	for _, h := range island {
		if b := bodies.GetMut(h); b != nil {
			if b.sleeping {
				asleep = true
			} else {
				awake = true
			}
		}
	}
	if !awake || !asleep {
		return
	}
	for _, h := range island {
		if b := bodies.GetMut(h); b != nil && b.sleeping {
			b.WakeUp()
		}
	}
}

// wakeIfPushed wakes a dynamic body touched by a moving kinematic body.
func wakeIfPushed(bodies *BodySet, dynamic, other BodyHandle) {
	o := bodies.GetMut(other)
	if o == nil || !o.IsKinematic() || !o.IsMoving() {
		return
	}
	if b := bodies.GetMut(dynamic); b != nil {
		b.WakeUp()
	}
}

func updateIslandSleep(bodies *BodySet, island []BodyHandle, params IntegrationParameters) {
	if params.TimeUntilSleep <= 0 {
		return
	}

	allRested := true
	anyAwake := false
	for _, h := range island {
		b := bodies.GetMut(h)
		if b == nil || b.sleeping {
			continue
		}
		anyAwake = true

		if b.linvel.Len() < params.LinearSleepThreshold && b.angvel.Len() < params.AngularSleepThreshold {
			b.sleepTimer += params.Dt
		} else {
			b.sleepTimer = 0
		}
		if b.sleepTimer < params.TimeUntilSleep {
			allRested = false
		}
	}
	if !anyAwake || !allRested {
		return
	}
	for _, h := range island {
		if b := bodies.GetMut(h); b != nil {
			b.Sleep()
		}
	}
}
