package delve

import (
	"sort"

	"github.com/TheBitDrifter/mask"
)

// edgeKey identifies a memoized add/remove transition from an archetype.
type edgeKey struct {
	arch uint32
	comp ComponentID
}

// archetypeGraph owns every archetype in a world, keyed by component mask,
// plus memoized single-component transitions between neighbors. Archetypes are
// created on demand and never destroyed; edges are created on first traversal.
type archetypeGraph struct {
	registry    *componentRegistry
	nextID      uint32
	byMask      map[mask.Mask256]*Archetype
	asSlice     []*Archetype
	addEdges    map[edgeKey]*Archetype
	removeEdges map[edgeKey]*Archetype
	rowCapacity int

	// version bumps on every archetype creation so cached query resolves
	// can notice staleness lazily.
	version uint64
}

func newArchetypeGraph(registry *componentRegistry, rowCapacity int) *archetypeGraph {
	return &archetypeGraph{
		registry:    registry,
		nextID:      1,
		byMask:      make(map[mask.Mask256]*Archetype),
		addEdges:    make(map[edgeKey]*Archetype),
		removeEdges: make(map[edgeKey]*Archetype),
		rowCapacity: rowCapacity,
	}
}

// getOrCreate returns the archetype for a component set, creating it on first
// use. The input need not be sorted or deduplicated.
func (g *archetypeGraph) getOrCreate(ids []ComponentID) *Archetype {
	m := maskFrom(ids)
	if arch, ok := g.byMask[m]; ok {
		return arch
	}
	sorted := make([]ComponentID, 0, len(ids))
	seen := make(map[ComponentID]struct{}, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		sorted = append(sorted, id)
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	arch := newArchetype(g.nextID, sorted, g.registry, g.rowCapacity)
	g.nextID++
	g.byMask[m] = arch
	g.asSlice = append(g.asSlice, arch)
	g.version++
	return arch
}

// edgeAdd returns the neighbor archetype with one extra component, memoizing
// the transition.
func (g *archetypeGraph) edgeAdd(from *Archetype, id ComponentID) *Archetype {
	key := edgeKey{arch: from.id, comp: id}
	if to, ok := g.addEdges[key]; ok {
		return to
	}
	ids := make([]ComponentID, len(from.componentIDs), len(from.componentIDs)+1)
	copy(ids, from.componentIDs)
	ids = append(ids, id)
	to := g.getOrCreate(ids)
	g.addEdges[key] = to
	return to
}

// edgeRemove returns the neighbor archetype with one component removed, or nil
// when the result mask would be empty.
func (g *archetypeGraph) edgeRemove(from *Archetype, id ComponentID) *Archetype {
	if len(from.componentIDs) == 1 {
		if from.componentIDs[0] == id {
			return nil
		}
		return from
	}
	key := edgeKey{arch: from.id, comp: id}
	if to, ok := g.removeEdges[key]; ok {
		return to
	}
	ids := make([]ComponentID, 0, len(from.componentIDs)-1)
	for _, cid := range from.componentIDs {
		if cid != id {
			ids = append(ids, cid)
		}
	}
	to := g.getOrCreate(ids)
	g.removeEdges[key] = to
	return to
}

// archetypes returns every archetype in creation order.
func (g *archetypeGraph) archetypes() []*Archetype {
	return g.asSlice
}
