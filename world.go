package delve

import (
	"github.com/TheBitDrifter/bark"
	mapset "github.com/deckarep/golang-set/v2"
)

// World is the facade owning all ECS state: the component and relation
// registries, the string pool, the archetype graph, the entity allocator, the
// relationship and entity-reference stores, observers, the event queue, and
// the scheduler. All mutation flows through it. Operations on dead entities or
// absent components return false/none and mutate nothing.
type World struct {
	registry   *componentRegistry
	relations  *relationRegistry
	strings    *StringPool
	graph      *archetypeGraph
	alloc      *entityAllocator
	records    []entityRecord
	relStore   *RelationStore
	refStore   *entityRefStore
	observers  *ObserverManager
	events     *EventQueue
	scheduler  *Scheduler
	resources  *resourceStore
	states     map[string]float64
	queryCache *queryCache
	views      *viewPool
	despawning mapset.Set[Entity]
	tick       uint64
}

func newWorld(opts WorldOptions) *World {
	registry := newComponentRegistry()
	relations := newRelationRegistry()
	w := &World{
		registry:   registry,
		relations:  relations,
		strings:    NewStringPool(),
		graph:      newArchetypeGraph(registry, opts.InitialRowCapacity),
		alloc:      newEntityAllocator(opts.InitialEntityCapacity),
		records:    make([]entityRecord, 0, opts.InitialEntityCapacity),
		relStore:   newRelationStore(relations),
		refStore:   newEntityRefStore(),
		observers:  newObserverManager(),
		resources:  newResourceStore(),
		states:     make(map[string]float64),
		queryCache: newQueryCache(),
		views:      newViewPool(),
		despawning: mapset.NewThreadUnsafeSet[Entity](),
	}
	w.events = NewEventQueue(w.Tick)
	w.events.SetRecording(opts.RecordEvents)
	w.scheduler = NewScheduler()
	return w
}

// RegisterComponent registers a component layout. Registration order assigns
// dense indices and must complete before the world runs.
func (w *World) RegisterComponent(desc ComponentDescriptor) (ComponentID, error) {
	return w.registry.register(desc)
}

// ComponentByName resolves a registered component by its stable name.
func (w *World) ComponentByName(name string) (*ComponentType, bool) {
	return w.registry.byName(name)
}

// ComponentByID resolves a registered component by dense index.
func (w *World) ComponentByID(id ComponentID) (*ComponentType, bool) {
	return w.registry.byID(id)
}

// ComponentCount returns the number of registered components.
func (w *World) ComponentCount() int {
	return w.registry.count()
}

// RegisterRelation registers a relation type.
func (w *World) RegisterRelation(desc RelationDescriptor) (RelationID, error) {
	return w.relations.register(desc)
}

// RelationByName resolves a registered relation by name.
func (w *World) RelationByName(name string) (*RelationType, bool) {
	return w.relations.byName(name)
}

// Strings returns the world's string pool.
func (w *World) Strings() *StringPool { return w.strings }

// Events returns the world's event queue.
func (w *World) Events() *EventQueue { return w.events }

// Observers returns the world's observer manager.
func (w *World) Observers() *ObserverManager { return w.observers }

// Scheduler returns the world's system scheduler.
func (w *World) Scheduler() *Scheduler { return w.scheduler }

// Tick returns the current tick counter.
func (w *World) Tick() uint64 { return w.tick }

// Alive reports whether the identifier names a live entity.
func (w *World) Alive(e Entity) bool {
	return w.alloc.isAlive(e)
}

// EntityCount returns the number of live entities.
func (w *World) EntityCount() int {
	return w.alloc.aliveCount()
}

// ArchetypeCount returns the number of archetypes created so far.
func (w *World) ArchetypeCount() int {
	return len(w.graph.archetypes())
}

// record returns the entity record for an alive entity.
func (w *World) record(e Entity) *entityRecord {
	return &w.records[e.Slot()]
}

func (w *World) ensureRecord(slot uint32) {
	for int(slot) >= len(w.records) {
		w.records = append(w.records, entityRecord{})
	}
}

// Spawn allocates an entity, moves it into the archetype of the given types,
// initializes each component to its field defaults, and notifies
// add-observers. Fails only when the allocator is exhausted.
func (w *World) Spawn(types ...ComponentID) (Entity, error) {
	e, err := w.alloc.allocate()
	if err != nil {
		return NullEntity, err
	}
	w.ensureRecord(e.Slot())
	w.placeSpawned(e, types)
	return e, nil
}

// SpawnWithID allocates a specific identifier, used during snapshot restore.
// It fails when the slot is live.
func (w *World) SpawnWithID(e Entity, types ...ComponentID) error {
	if err := w.alloc.allocateWithID(e); err != nil {
		return err
	}
	w.ensureRecord(e.Slot())
	w.placeSpawned(e, types)
	return nil
}

func (w *World) placeSpawned(e Entity, types []ComponentID) {
	rec := w.record(e)
	if len(types) == 0 {
		*rec = entityRecord{}
		return
	}
	arch := w.graph.getOrCreate(types)
	row := arch.allocateRow(e)
	*rec = entityRecord{arch: arch, row: row}
	for _, id := range types {
		typ, ok := w.registry.byID(id)
		if !ok {
			continue
		}
		if w.observers.hasAdd(id) || len(w.observers.changeObs[id]) > 0 {
			w.observers.notifyAdd(id, e, w.componentSnapshot(arch, w.record(e).row, typ))
		}
	}
}

// Despawn destroys an entity: component teardown with remove notifications
// and string-ref release, row removal, entity-ref cleanup, relation removal
// with cascade despawn of dependent sources, and finally slot release. The
// in-progress set refuses re-entry so cyclic cascade relations cannot loop.
func (w *World) Despawn(e Entity) bool {
	if !w.alloc.isAlive(e) || w.despawning.Contains(e) {
		return false
	}
	w.despawning.Add(e)
	defer w.despawning.Remove(e)

	rec := w.record(e)
	if arch := rec.arch; arch != nil {
		row := rec.row
		arch.markRemoved(row)
		for _, id := range arch.componentIDs {
			typ, _ := w.registry.byID(id)
			if w.observers.hasRemove(id) || len(w.observers.changeObs[id]) > 0 {
				w.observers.notifyRemove(id, e, w.componentSnapshot(arch, row, typ))
			}
			w.releaseComponentRefs(arch, row, typ)
		}
		w.removeRow(arch, row)
	}
	*rec = entityRecord{}

	// Nullify fields referring to e, then drop e's own outgoing refs.
	for _, ref := range w.refStore.refsTo(e) {
		w.refStore.unregister(ref.source, ref.comp, ref.field, e)
		if srcRec := w.liveRecord(ref.source); srcRec != nil && srcRec.arch != nil {
			srcRec.arch.setField(srcRec.row, ref.comp, ref.field, float64(NullEntity))
		}
	}
	w.refStore.dropSource(e)

	cascade := w.relStore.removeEntity(e)
	for _, src := range cascade {
		w.Despawn(src)
	}

	w.alloc.free(e)
	return true
}

// liveRecord returns the record when the entity is alive, nil otherwise.
func (w *World) liveRecord(e Entity) *entityRecord {
	if !w.alloc.isAlive(e) {
		return nil
	}
	return w.record(e)
}

// removeRow frees an archetype row and patches the moved entity's record.
func (w *World) removeRow(arch *Archetype, row int) {
	moved := arch.freeRow(row)
	if !moved.IsNull() {
		w.records[moved.Slot()].row = row
	}
}

// releaseComponentRefs releases pool references held by a component's String
// fields and untracks its EntityRef fields.
func (w *World) releaseComponentRefs(arch *Archetype, row int, typ *ComponentType) {
	if typ == nil {
		return
	}
	owner := arch.EntityAt(row)
	for _, f := range typ.fields {
		switch f.Kind {
		case FieldString:
			if v, ok := arch.getField(row, typ.id, f.Name); ok && v != 0 {
				w.strings.ReleaseRef(uint32(v))
			}
		case FieldEntityRef:
			if v, ok := arch.getField(row, typ.id, f.Name); ok {
				cur := Entity(uint32(v))
				if !cur.IsNull() {
					w.refStore.unregister(owner, typ.id, f.Name, cur)
				}
			}
		}
	}
}

// Has reports whether the entity currently carries the component.
func (w *World) Has(e Entity, id ComponentID) bool {
	rec := w.liveRecord(e)
	return rec != nil && rec.arch != nil && rec.arch.Contains(id)
}

// Add attaches a component initialized to its defaults overlaid by data,
// moving the entity to the neighboring archetype. Returns false for dead
// entities or when the component is already present; a failed add mutates
// nothing.
func (w *World) Add(e Entity, id ComponentID, data map[string]float64) bool {
	typ, ok := w.registry.byID(id)
	if !ok {
		return false
	}
	rec := w.liveRecord(e)
	if rec == nil {
		return false
	}
	if rec.arch != nil && rec.arch.Contains(id) {
		return false
	}

	var dest *Archetype
	if rec.arch == nil {
		dest = w.graph.getOrCreate([]ComponentID{id})
	} else {
		dest = w.graph.edgeAdd(rec.arch, id)
	}
	dstRow := dest.allocateRow(e)
	if rec.arch != nil {
		for _, cid := range rec.arch.componentIDs {
			dest.copyComponentFrom(dstRow, rec.arch, rec.row, cid)
		}
		w.removeRow(rec.arch, rec.row)
	}
	*rec = entityRecord{arch: dest, row: dstRow}

	if len(data) > 0 {
		w.writeComponentData(e, dest, dstRow, typ, data)
	}
	if w.observers.hasAdd(id) || len(w.observers.changeObs[id]) > 0 {
		w.observers.notifyAdd(id, e, w.componentSnapshot(dest, dstRow, typ))
	}
	return true
}

// AddOrSet behaves as Set when the component is present and as Add otherwise.
func (w *World) AddOrSet(e Entity, id ComponentID, data map[string]float64) bool {
	if w.Has(e, id) {
		return w.Set(e, id, data)
	}
	return w.Add(e, id, data)
}

// Remove detaches a component: remove-observers see the current data, string
// refs are released, and the entity moves to the neighboring archetype. When
// the resulting component set is empty the row is freed and the record
// cleared.
func (w *World) Remove(e Entity, id ComponentID) bool {
	typ, ok := w.registry.byID(id)
	if !ok {
		return false
	}
	rec := w.liveRecord(e)
	if rec == nil || rec.arch == nil || !rec.arch.Contains(id) {
		return false
	}
	src := rec.arch
	row := rec.row
	src.markRemoved(row)
	if w.observers.hasRemove(id) || len(w.observers.changeObs[id]) > 0 {
		w.observers.notifyRemove(id, e, w.componentSnapshot(src, row, typ))
	}
	w.releaseComponentRefs(src, row, typ)

	dest := w.graph.edgeRemove(src, id)
	if dest == nil {
		w.removeRow(src, row)
		*rec = entityRecord{}
		return true
	}
	dstRow := dest.allocateRow(e)
	for _, cid := range dest.componentIDs {
		dest.copyComponentFrom(dstRow, src, row, cid)
	}
	w.removeRow(src, row)
	*rec = entityRecord{arch: dest, row: dstRow}
	return true
}

// Get returns a copy of the component's field values; tag components yield an
// empty map.
func (w *World) Get(e Entity, id ComponentID) (map[string]float64, bool) {
	typ, ok := w.registry.byID(id)
	if !ok {
		return nil, false
	}
	rec := w.liveRecord(e)
	if rec == nil || rec.arch == nil || !rec.arch.Contains(id) {
		return nil, false
	}
	return w.componentSnapshot(rec.arch, rec.row, typ), true
}

// GetInto writes the component's field values into the caller's buffer
// without allocating.
func (w *World) GetInto(e Entity, id ComponentID, buf map[string]float64) bool {
	rec := w.liveRecord(e)
	if rec == nil || rec.arch == nil || !rec.arch.Contains(id) {
		return false
	}
	return rec.arch.componentData(rec.row, id, buf)
}

// GetField reads a single field without an intermediate record.
func (w *World) GetField(e Entity, id ComponentID, name string) (float64, bool) {
	rec := w.liveRecord(e)
	if rec == nil || rec.arch == nil {
		return 0, false
	}
	return rec.arch.getField(rec.row, id, name)
}

// SetField writes a single field. It is the hot path and does not trigger
// set-observers; string-ref and entity-ref bookkeeping still applies.
func (w *World) SetField(e Entity, id ComponentID, name string, v float64) bool {
	typ, ok := w.registry.byID(id)
	if !ok {
		return false
	}
	rec := w.liveRecord(e)
	if rec == nil || rec.arch == nil || !rec.arch.Contains(id) {
		return false
	}
	fi, ok := typ.FieldIndex(name)
	if !ok {
		return false
	}
	w.writeTrackedField(e, rec.arch, rec.row, typ, typ.fields[fi], v)
	return true
}

// Set overlays partial field values, maintains string refs, marks change
// flags, and notifies set-observers with old and new data. Tag components
// cannot be set.
func (w *World) Set(e Entity, id ComponentID, partial map[string]float64) bool {
	typ, ok := w.registry.byID(id)
	if !ok || typ.tag {
		return false
	}
	rec := w.liveRecord(e)
	if rec == nil || rec.arch == nil || !rec.arch.Contains(id) {
		return false
	}
	notify := w.observers.hasSet(id) || len(w.observers.changeObs[id]) > 0
	var oldData map[string]float64
	if notify {
		oldData = w.componentSnapshot(rec.arch, rec.row, typ)
	}
	w.writeComponentData(e, rec.arch, rec.row, typ, partial)
	if notify {
		w.observers.notifySet(id, e, oldData, w.componentSnapshot(rec.arch, rec.row, typ))
	}
	return true
}

// writeComponentData overlays the supplied fields with ref bookkeeping and
// marks the row and component changed.
func (w *World) writeComponentData(e Entity, arch *Archetype, row int, typ *ComponentType, data map[string]float64) {
	for name, v := range data {
		fi, ok := typ.FieldIndex(name)
		if !ok {
			continue
		}
		w.writeTrackedField(e, arch, row, typ, typ.fields[fi], v)
	}
}

// writeTrackedField writes one field, adjusting pool refs for String fields
// and the reference store for EntityRef fields.
func (w *World) writeTrackedField(e Entity, arch *Archetype, row int, typ *ComponentType, f Field, v float64) {
	switch f.Kind {
	case FieldString:
		old, _ := arch.getField(row, typ.id, f.Name)
		next := uint32(v)
		if uint32(old) != next {
			w.strings.AddRef(next)
			w.strings.ReleaseRef(uint32(old))
		}
	case FieldEntityRef:
		old, _ := arch.getField(row, typ.id, f.Name)
		w.refStore.set(e, typ.id, f.Name, Entity(uint32(old)), Entity(uint32(v)))
	}
	arch.setField(row, typ.id, f.Name, v)
}

// GetString resolves a String field through the pool.
func (w *World) GetString(e Entity, id ComponentID, name string) (string, bool) {
	v, ok := w.GetField(e, id, name)
	if !ok {
		return "", false
	}
	return w.strings.Get(uint32(v))
}

// SetString interns s and stores its pool index in the field, releasing the
// previous occurrence's reference.
func (w *World) SetString(e Entity, id ComponentID, name string, s string) bool {
	typ, ok := w.registry.byID(id)
	if !ok {
		return false
	}
	fi, ok := typ.FieldIndex(name)
	if !ok || typ.fields[fi].Kind != FieldString {
		return false
	}
	rec := w.liveRecord(e)
	if rec == nil || rec.arch == nil || !rec.arch.Contains(id) {
		return false
	}
	cur, _ := rec.arch.getField(rec.row, id, name)
	idx := w.strings.Intern(s)
	w.strings.ReleaseRef(uint32(cur))
	return rec.arch.setField(rec.row, id, name, float64(idx))
}

// componentSnapshot copies a component's fields into a fresh map.
func (w *World) componentSnapshot(arch *Archetype, row int, typ *ComponentType) map[string]float64 {
	data := make(map[string]float64, len(typ.fields))
	arch.componentData(row, typ.id, data)
	return data
}

// Relate adds a relation triple between two alive entities.
func (w *World) Relate(src Entity, id RelationID, dst Entity) bool {
	if !w.alloc.isAlive(src) || !w.alloc.isAlive(dst) {
		return false
	}
	return w.relStore.add(src, id, dst, nil)
}

// RelateWithData adds a relation triple carrying typed data.
func (w *World) RelateWithData(src Entity, id RelationID, dst Entity, data any) bool {
	if !w.alloc.isAlive(src) || !w.alloc.isAlive(dst) {
		return false
	}
	return w.relStore.add(src, id, dst, data)
}

// Unrelate removes a relation triple.
func (w *World) Unrelate(src Entity, id RelationID, dst Entity) bool {
	return w.relStore.remove(src, id, dst)
}

// HasRelation tests a triple.
func (w *World) HasRelation(src Entity, id RelationID, dst Entity) bool {
	return w.relStore.has(src, id, dst)
}

// RelationTarget returns the single target of an exclusive relation.
func (w *World) RelationTarget(src Entity, id RelationID) (Entity, error) {
	return w.relStore.target(src, id)
}

// RelationTargets returns the source's targets sorted by slot.
func (w *World) RelationTargets(src Entity, id RelationID) []Entity {
	return w.relStore.targets(src, id)
}

// RelationSources returns the target's sources sorted by slot.
func (w *World) RelationSources(dst Entity, id RelationID) []Entity {
	return w.relStore.sources(dst, id)
}

// HasAnyRelation answers in O(1) whether the entity appears in any triple.
func (w *World) HasAnyRelation(e Entity) bool {
	return w.relStore.hasAnyRelation(e)
}

// Relations returns the relation store for direct queries.
func (w *World) Relations() *RelationStore {
	return w.relStore
}

// SetResource stores a named singleton resource.
func (w *World) SetResource(name string, value any) {
	w.resources.set(name, value)
}

// Resource fetches a named resource.
func (w *World) Resource(name string) (any, bool) {
	return w.resources.get(name)
}

// RemoveResource drops a named resource.
func (w *World) RemoveResource(name string) {
	w.resources.remove(name)
}

// SetState stores a named state value for run conditions.
func (w *World) SetState(name string, v float64) {
	w.states[name] = v
}

// State fetches a named state value.
func (w *World) State(name string) (float64, bool) {
	v, ok := w.states[name]
	return v, ok
}

// Batch returns a builder accumulating structural edits that commit in a
// single archetype transition.
func (w *World) Batch(e Entity) *EntityBuilder {
	return &EntityBuilder{world: w, entity: e}
}

// Query starts a query over entities carrying all the given components.
// Querying a component that was never registered is a programmer error.
func (w *World) Query(types ...ComponentID) *QueryBuilder {
	for _, id := range types {
		if _, ok := w.registry.byID(id); !ok {
			panic(bark.AddTrace(UnknownComponentError{ID: id}))
		}
	}
	return &QueryBuilder{world: w, with: types}
}

// RunTick executes the scheduler's phases in order, then flushes the event
// queue, clears change flags, releases pooled views, and advances the tick
// counter.
func (w *World) RunTick() error {
	if err := w.scheduler.run(w); err != nil {
		return err
	}
	w.endTick()
	return nil
}

// endTick performs the per-tick cleanup without running systems.
func (w *World) endTick() {
	_ = w.events.Flush()
	for _, arch := range w.graph.archetypes() {
		arch.clearChanges()
	}
	w.views.releaseAll()
	w.tick++
}

// ComponentsOf lists the component names attached to an entity in dense
// index order, for debugging output.
func (w *World) ComponentsOf(e Entity) []string {
	rec := w.liveRecord(e)
	if rec == nil || rec.arch == nil {
		return nil
	}
	names := make([]string, 0, len(rec.arch.componentIDs))
	for _, id := range rec.arch.componentIDs {
		if typ, ok := w.registry.byID(id); ok {
			names = append(names, typ.name)
		}
	}
	return names
}
