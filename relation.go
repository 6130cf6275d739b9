package delve

import (
	"sort"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/google/btree"
)

// RelationID is the dense index assigned to a relation type at registration.
type RelationID uint32

// RelationDescriptor declares a relation type. Exclusive relations hold at
// most one target per source (adds replace). Symmetric relations mirror every
// triple. CascadeDelete despawns sources when their target despawns.
// AutoCleanup drops a relation's triples when either endpoint despawns; it is
// implied by the despawn path for all relations and kept as a declared flag
// for schema introspection.
type RelationDescriptor struct {
	Name          string
	Exclusive     bool
	Symmetric     bool
	CascadeDelete bool
	AutoCleanup   bool
}

// RelationType is a registered relation.
type RelationType struct {
	id   RelationID
	desc RelationDescriptor
}

// ID returns the relation's dense index.
func (t *RelationType) ID() RelationID { return t.id }

// Name returns the relation's registration name.
func (t *RelationType) Name() string { return t.desc.Name }

// Descriptor returns the declared flags.
func (t *RelationType) Descriptor() RelationDescriptor { return t.desc }

type relationRegistry struct {
	types       []*RelationType
	nameIndices map[string]int
}

func newRelationRegistry() *relationRegistry {
	return &relationRegistry{nameIndices: make(map[string]int)}
}

func (r *relationRegistry) register(desc RelationDescriptor) (RelationID, error) {
	if _, taken := r.nameIndices[desc.Name]; taken {
		return 0, DuplicateRelationError{Name: desc.Name}
	}
	typ := &RelationType{id: RelationID(len(r.types)), desc: desc}
	r.nameIndices[desc.Name] = len(r.types)
	r.types = append(r.types, typ)
	return typ.id, nil
}

func (r *relationRegistry) byID(id RelationID) (*RelationType, bool) {
	if int(id) >= len(r.types) {
		return nil, false
	}
	return r.types[id], true
}

func (r *relationRegistry) byName(name string) (*RelationType, bool) {
	i, ok := r.nameIndices[name]
	if !ok {
		return nil, false
	}
	return r.types[i], true
}

// relPair is one directed triple's endpoints, ordered by source slot then
// target slot for deterministic iteration.
type relPair struct {
	src Entity
	dst Entity
}

func relPairLess(a, b relPair) bool {
	if a.src.Slot() != b.src.Slot() {
		return a.src.Slot() < b.src.Slot()
	}
	return a.dst.Slot() < b.dst.Slot()
}

// RelationStore maintains bidirectional indices per relation type, optional
// typed data per triple, an ordered triple index for deterministic ForEach,
// and per-entity reference counts backing the has-any-relation set.
type RelationStore struct {
	registry *relationRegistry
	outgoing []map[Entity]map[Entity]struct{}
	incoming []map[Entity]map[Entity]struct{}
	data     []map[relPair]any
	ordered  []*btree.BTreeG[relPair]
	counts   map[Entity]int
	related  mapset.Set[Entity]
}

func newRelationStore(registry *relationRegistry) *RelationStore {
	return &RelationStore{
		registry: registry,
		counts:   make(map[Entity]int),
		related:  mapset.NewThreadUnsafeSet[Entity](),
	}
}

func (s *RelationStore) ensure(id RelationID) {
	for int(id) >= len(s.outgoing) {
		s.outgoing = append(s.outgoing, make(map[Entity]map[Entity]struct{}))
		s.incoming = append(s.incoming, make(map[Entity]map[Entity]struct{}))
		s.data = append(s.data, make(map[relPair]any))
		s.ordered = append(s.ordered, btree.NewG(4, relPairLess))
	}
}

// add inserts a triple. Exclusive relations first remove any existing target;
// symmetric relations also insert the mirror triple through the private
// non-symmetric path, which guards recursion.
func (s *RelationStore) add(src Entity, id RelationID, dst Entity, data any) bool {
	typ, ok := s.registry.byID(id)
	if !ok {
		return false
	}
	s.ensure(id)
	if typ.desc.Exclusive {
		if existing, ok := s.anyTarget(src, id); ok && existing != dst {
			s.remove(src, id, existing)
		}
	}
	if !s.addOne(src, id, dst, data) {
		return false
	}
	if typ.desc.Symmetric && src != dst {
		s.addOne(dst, id, src, data)
	}
	return true
}

func (s *RelationStore) addOne(src Entity, id RelationID, dst Entity, data any) bool {
	out := s.outgoing[id]
	targets, ok := out[src]
	if !ok {
		targets = make(map[Entity]struct{})
		out[src] = targets
	}
	if _, exists := targets[dst]; exists {
		if data != nil {
			s.data[id][relPair{src, dst}] = data
		}
		return false
	}
	targets[dst] = struct{}{}

	in := s.incoming[id]
	sources, ok := in[dst]
	if !ok {
		sources = make(map[Entity]struct{})
		in[dst] = sources
	}
	sources[src] = struct{}{}

	s.ordered[id].ReplaceOrInsert(relPair{src, dst})
	if data != nil {
		s.data[id][relPair{src, dst}] = data
	}
	s.retain(src)
	s.retain(dst)
	return true
}

// remove deletes a triple, mirroring for symmetric relations.
func (s *RelationStore) remove(src Entity, id RelationID, dst Entity) bool {
	typ, ok := s.registry.byID(id)
	if !ok || int(id) >= len(s.outgoing) {
		return false
	}
	if !s.removeOne(src, id, dst) {
		return false
	}
	if typ.desc.Symmetric && src != dst {
		s.removeOne(dst, id, src)
	}
	return true
}

func (s *RelationStore) removeOne(src Entity, id RelationID, dst Entity) bool {
	targets, ok := s.outgoing[id][src]
	if !ok {
		return false
	}
	if _, exists := targets[dst]; !exists {
		return false
	}
	delete(targets, dst)
	if len(targets) == 0 {
		delete(s.outgoing[id], src)
	}
	sources := s.incoming[id][dst]
	delete(sources, src)
	if len(sources) == 0 {
		delete(s.incoming[id], dst)
	}
	s.ordered[id].Delete(relPair{src, dst})
	delete(s.data[id], relPair{src, dst})
	s.release(src)
	s.release(dst)
	return true
}

// has tests a triple.
func (s *RelationStore) has(src Entity, id RelationID, dst Entity) bool {
	if int(id) >= len(s.outgoing) {
		return false
	}
	targets, ok := s.outgoing[id][src]
	if !ok {
		return false
	}
	_, exists := targets[dst]
	return exists
}

// target returns the single target of an exclusive relation. It errors when a
// non-exclusive source holds multiple targets.
func (s *RelationStore) target(src Entity, id RelationID) (Entity, error) {
	if int(id) >= len(s.outgoing) {
		return NullEntity, nil
	}
	targets := s.outgoing[id][src]
	if len(targets) > 1 {
		typ, _ := s.registry.byID(id)
		return NullEntity, NonExclusiveRelationError{Relation: typ.Name(), Count: len(targets)}
	}
	for t := range targets {
		return t, nil
	}
	return NullEntity, nil
}

func (s *RelationStore) anyTarget(src Entity, id RelationID) (Entity, bool) {
	if int(id) >= len(s.outgoing) {
		return NullEntity, false
	}
	for t := range s.outgoing[id][src] {
		return t, true
	}
	return NullEntity, false
}

// targets returns the source's targets sorted by slot.
func (s *RelationStore) targets(src Entity, id RelationID) []Entity {
	if int(id) >= len(s.outgoing) {
		return nil
	}
	return sortedEntities(s.outgoing[id][src])
}

// sources returns the target's sources sorted by slot.
func (s *RelationStore) sources(dst Entity, id RelationID) []Entity {
	if int(id) >= len(s.incoming) {
		return nil
	}
	return sortedEntities(s.incoming[id][dst])
}

func sortedEntities(set map[Entity]struct{}) []Entity {
	out := make([]Entity, 0, len(set))
	for e := range set {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Slot() < out[j].Slot() })
	return out
}

func (s *RelationStore) hasAnyTarget(src Entity, id RelationID) bool {
	return int(id) < len(s.outgoing) && len(s.outgoing[id][src]) > 0
}

func (s *RelationStore) hasAnySource(dst Entity, id RelationID) bool {
	return int(id) < len(s.incoming) && len(s.incoming[id][dst]) > 0
}

func (s *RelationStore) countTargets(src Entity, id RelationID) int {
	if int(id) >= len(s.outgoing) {
		return 0
	}
	return len(s.outgoing[id][src])
}

func (s *RelationStore) countSources(dst Entity, id RelationID) int {
	if int(id) >= len(s.incoming) {
		return 0
	}
	return len(s.incoming[id][dst])
}

func (s *RelationStore) getData(src Entity, id RelationID, dst Entity) (any, bool) {
	if int(id) >= len(s.data) {
		return nil, false
	}
	d, ok := s.data[id][relPair{src, dst}]
	return d, ok
}

func (s *RelationStore) setData(src Entity, id RelationID, dst Entity, data any) bool {
	if !s.has(src, id, dst) {
		return false
	}
	s.data[id][relPair{src, dst}] = data
	return true
}

// forEach visits every triple of a relation ordered by source slot then target
// slot.
func (s *RelationStore) forEach(id RelationID, fn func(src, dst Entity) bool) {
	if int(id) >= len(s.ordered) {
		return
	}
	s.ordered[id].Ascend(func(p relPair) bool {
		return fn(p.src, p.dst)
	})
}

// hasAnyRelation answers in O(1) whether the entity appears in any triple.
func (s *RelationStore) hasAnyRelation(e Entity) bool {
	return s.related.Contains(e)
}

// removeEntity drops every triple involving e and returns the sources that
// were related to e through a cascade-delete relation, sorted by slot.
func (s *RelationStore) removeEntity(e Entity) []Entity {
	var cascade []Entity
	for id := range s.outgoing {
		rid := RelationID(id)
		typ, _ := s.registry.byID(rid)
		for _, dst := range s.targets(e, rid) {
			s.remove(e, rid, dst)
		}
		srcs := s.sources(e, rid)
		for _, src := range srcs {
			s.remove(src, rid, e)
		}
		if typ != nil && typ.desc.CascadeDelete {
			cascade = append(cascade, srcs...)
		}
	}
	sort.Slice(cascade, func(i, j int) bool { return cascade[i].Slot() < cascade[j].Slot() })
	return cascade
}

// clearByType drops every triple of one relation.
func (s *RelationStore) clearByType(id RelationID) {
	if int(id) >= len(s.outgoing) {
		return
	}
	s.ordered[id].Ascend(func(p relPair) bool {
		s.release(p.src)
		s.release(p.dst)
		return true
	})
	s.outgoing[id] = make(map[Entity]map[Entity]struct{})
	s.incoming[id] = make(map[Entity]map[Entity]struct{})
	s.data[id] = make(map[relPair]any)
	s.ordered[id] = btree.NewG(4, relPairLess)
}

// clear drops everything.
func (s *RelationStore) clear() {
	for id := range s.outgoing {
		s.clearByType(RelationID(id))
	}
	s.counts = make(map[Entity]int)
	s.related = mapset.NewThreadUnsafeSet[Entity]()
}

func (s *RelationStore) retain(e Entity) {
	s.counts[e]++
	if s.counts[e] == 1 {
		s.related.Add(e)
	}
}

func (s *RelationStore) release(e Entity) {
	n := s.counts[e] - 1
	if n <= 0 {
		delete(s.counts, e)
		s.related.Remove(e)
		return
	}
	s.counts[e] = n
}
