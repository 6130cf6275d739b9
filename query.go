package delve

import "github.com/TheBitDrifter/mask"

// Predicate tests one component's field values for a row. The buffer passed in
// is reused across rows and must not be retained.
type Predicate func(data map[string]float64) bool

type predicateFilter struct {
	comp ComponentID
	fn   Predicate
	buf  map[string]float64
}

type relationFilter struct {
	rel      RelationID
	outgoing bool
	// other is the fixed far endpoint; NullEntity matches any.
	other Entity
}

// QueryBuilder assembles a query descriptor: required components, exclusions,
// change filters, per-component change masks, data predicates, and relation
// filters. Terminal methods compile the (with, without) mask pair through the
// planner cache.
type QueryBuilder struct {
	world        *World
	with         []ComponentID
	without      []ComponentID
	change       ChangeFlag
	changedComps []ComponentID
	predicates   []predicateFilter
	relFilters   []relationFilter
}

// Without excludes archetypes containing any of the given components.
func (q *QueryBuilder) Without(ids ...ComponentID) *QueryBuilder {
	q.without = append(q.without, ids...)
	return q
}

// Changed keeps only rows whose change flag intersects the given kinds.
func (q *QueryBuilder) Changed(kinds ChangeFlag) *QueryBuilder {
	q.change = kinds
	return q
}

// ChangedIn keeps only rows where at least one of the given components has
// its per-component change bit set.
func (q *QueryBuilder) ChangedIn(ids ...ComponentID) *QueryBuilder {
	q.changedComps = append(q.changedComps, ids...)
	return q
}

// Filter adds a data predicate over one component. The predicate's buffer is
// pooled per filter and refilled for each tested row.
func (q *QueryBuilder) Filter(id ComponentID, fn Predicate) *QueryBuilder {
	q.predicates = append(q.predicates, predicateFilter{
		comp: id,
		fn:   fn,
		buf:  make(map[string]float64, 8),
	})
	return q
}

// WithOutgoing keeps entities holding an outgoing triple of the relation.
// Pass NullEntity as target for a wildcard.
func (q *QueryBuilder) WithOutgoing(rel RelationID, target Entity) *QueryBuilder {
	q.relFilters = append(q.relFilters, relationFilter{rel: rel, outgoing: true, other: target})
	return q
}

// WithIncoming keeps entities that are the target of a triple of the
// relation. Pass NullEntity as source for a wildcard.
func (q *QueryBuilder) WithIncoming(rel RelationID, source Entity) *QueryBuilder {
	q.relFilters = append(q.relFilters, relationFilter{rel: rel, outgoing: false, other: source})
	return q
}

// hasRowFilters reports whether the slow path is needed.
func (q *QueryBuilder) hasRowFilters() bool {
	return q.change != 0 || len(q.changedComps) > 0 || len(q.predicates) > 0 || len(q.relFilters) > 0
}

// resolve compiles the mask pair into the matching archetype list.
func (q *QueryBuilder) resolve() []*Archetype {
	pair := maskPair{with: maskFrom(q.with), without: maskFrom(q.without)}
	return q.world.queryCache.resolve(q.world.graph, pair)
}

// Iter acquires a pooled view iterating matching entities in archetype row
// order.
func (q *QueryBuilder) Iter() *View {
	v := q.world.views.acquire(q.world)
	v.start(q, q.resolve(), false)
	return v
}

// IterDeterministic acquires a view yielding matched entities sorted by slot
// index.
func (q *QueryBuilder) IterDeterministic() *View {
	v := q.world.views.acquire(q.world)
	v.start(q, q.resolve(), true)
	return v
}

// Count returns the number of matching entities, short-circuiting on the
// fast path.
func (q *QueryBuilder) Count() int {
	archs := q.resolve()
	if !q.hasRowFilters() {
		n := 0
		for _, a := range archs {
			n += a.Len()
		}
		return n
	}
	v := q.world.views.acquire(q.world)
	v.start(q, archs, false)
	n := 0
	for v.Next() {
		n++
	}
	v.Release()
	return n
}

// First returns the first matching entity in archetype row order.
func (q *QueryBuilder) First() (Entity, bool) {
	archs := q.resolve()
	if !q.hasRowFilters() {
		for _, a := range archs {
			if a.Len() > 0 {
				return a.EntityAt(0), true
			}
		}
		return NullEntity, false
	}
	v := q.world.views.acquire(q.world)
	defer v.Release()
	v.start(q, archs, false)
	if v.Next() {
		return v.Entity(), true
	}
	return NullEntity, false
}

// testRow runs the slow-path filters against one row.
func (q *QueryBuilder) testRow(arch *Archetype, row int) bool {
	if q.change != 0 && arch.rowFlag(row)&q.change == 0 {
		return false
	}
	if len(q.changedComps) > 0 {
		any := false
		for _, id := range q.changedComps {
			if arch.componentChanged(row, id) {
				any = true
				break
			}
		}
		if !any {
			return false
		}
	}
	for i := range q.predicates {
		p := &q.predicates[i]
		for k := range p.buf {
			delete(p.buf, k)
		}
		if !arch.componentData(row, p.comp, p.buf) {
			return false
		}
		if !p.fn(p.buf) {
			return false
		}
	}
	if len(q.relFilters) > 0 {
		e := arch.EntityAt(row)
		for _, rf := range q.relFilters {
			if rf.outgoing {
				if rf.other.IsNull() {
					if !q.world.relStore.hasAnyTarget(e, rf.rel) {
						return false
					}
				} else if !q.world.relStore.has(e, rf.rel, rf.other) {
					return false
				}
			} else {
				if rf.other.IsNull() {
					if !q.world.relStore.hasAnySource(e, rf.rel) {
						return false
					}
				} else if !q.world.relStore.has(rf.other, rf.rel, e) {
					return false
				}
			}
		}
	}
	return true
}

// queryCache memoizes (with, without) resolves. Archetype creation bumps the
// graph version; the cache evicts lazily on the next resolve after a change.
type queryCache struct {
	entries map[maskPair][]*Archetype
	version uint64
}

func newQueryCache() *queryCache {
	return &queryCache{entries: make(map[maskPair][]*Archetype)}
}

func (c *queryCache) resolve(g *archetypeGraph, pair maskPair) []*Archetype {
	if c.version != g.version {
		c.entries = make(map[maskPair][]*Archetype)
		c.version = g.version
	}
	if archs, ok := c.entries[pair]; ok {
		return archs
	}
	matched := make([]*Archetype, 0, 8)
	for _, arch := range g.archetypes() {
		if !arch.mask.ContainsAll(pair.with) {
			continue
		}
		if pair.without != (mask.Mask256{}) && !arch.mask.ContainsNone(pair.without) {
			continue
		}
		matched = append(matched, arch)
	}
	c.entries[pair] = matched
	return matched
}
