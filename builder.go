package delve

// pendingAdd is one accumulated add with optional initial data.
type pendingAdd struct {
	id   ComponentID
	data map[string]float64
}

// EntityBuilder accumulates structural edits for one entity and commits them
// in a single archetype transition, regardless of how many operations were
// recorded. Removes take precedence over adds of the same component; later
// adds override earlier adds.
type EntityBuilder struct {
	world   *World
	entity  Entity
	adds    []pendingAdd
	removes []ComponentID
}

// Add stages a component addition with default values.
func (b *EntityBuilder) Add(id ComponentID) *EntityBuilder {
	b.adds = append(b.adds, pendingAdd{id: id})
	return b
}

// AddWith stages a component addition with initial data overlaying defaults.
func (b *EntityBuilder) AddWith(id ComponentID, data map[string]float64) *EntityBuilder {
	b.adds = append(b.adds, pendingAdd{id: id, data: data})
	return b
}

// Remove stages a component removal.
func (b *EntityBuilder) Remove(id ComponentID) *EntityBuilder {
	b.removes = append(b.removes, id)
	return b
}

// Commit applies the staged edits. When the final component set is empty the
// entity is despawned; when it matches the current archetype only data
// updates apply. Otherwise the entity moves archetypes exactly once.
func (b *EntityBuilder) Commit() bool {
	w := b.world
	e := b.entity
	rec := w.liveRecord(e)
	if rec == nil {
		return false
	}

	removed := make(map[ComponentID]struct{}, len(b.removes))
	for _, id := range b.removes {
		removed[id] = struct{}{}
	}

	// Later adds override earlier ones; removes win over adds entirely.
	addData := make(map[ComponentID]map[string]float64, len(b.adds))
	addOrder := make([]ComponentID, 0, len(b.adds))
	for _, pa := range b.adds {
		if _, drop := removed[pa.id]; drop {
			continue
		}
		if _, seen := addData[pa.id]; !seen {
			addOrder = append(addOrder, pa.id)
		}
		addData[pa.id] = pa.data
	}

	current := []ComponentID(nil)
	if rec.arch != nil {
		current = rec.arch.componentIDs
	}
	final := make([]ComponentID, 0, len(current)+len(addOrder))
	for _, id := range current {
		if _, drop := removed[id]; drop {
			continue
		}
		final = append(final, id)
	}
	newlyAdded := make([]ComponentID, 0, len(addOrder))
	for _, id := range addOrder {
		if rec.arch != nil && rec.arch.Contains(id) {
			continue
		}
		final = append(final, id)
		newlyAdded = append(newlyAdded, id)
	}

	if len(final) == 0 {
		return w.Despawn(e)
	}

	// Teardown for removed components runs before the row moves, so
	// remove-observers still see the data.
	if rec.arch != nil {
		for _, id := range current {
			if _, drop := removed[id]; !drop {
				continue
			}
			typ, _ := w.registry.byID(id)
			if typ == nil {
				continue
			}
			rec.arch.markRemoved(rec.row)
			if w.observers.hasRemove(id) || len(w.observers.changeObs[id]) > 0 {
				w.observers.notifyRemove(id, e, w.componentSnapshot(rec.arch, rec.row, typ))
			}
			w.releaseComponentRefs(rec.arch, rec.row, typ)
		}
	}

	dest := w.graph.getOrCreate(final)
	if dest == rec.arch {
		for _, id := range addOrder {
			if data := addData[id]; len(data) > 0 {
				if typ, ok := w.registry.byID(id); ok {
					w.writeComponentData(e, rec.arch, rec.row, typ, data)
				}
			}
		}
		return true
	}

	dstRow := dest.allocateRow(e)
	if rec.arch != nil {
		for _, id := range current {
			if dest.Contains(id) {
				dest.copyComponentFrom(dstRow, rec.arch, rec.row, id)
			}
		}
		w.removeRow(rec.arch, rec.row)
	}
	*rec = entityRecord{arch: dest, row: dstRow}

	for _, id := range newlyAdded {
		typ, ok := w.registry.byID(id)
		if !ok {
			continue
		}
		if data := addData[id]; len(data) > 0 {
			w.writeComponentData(e, dest, dstRow, typ, data)
		}
		if w.observers.hasAdd(id) || len(w.observers.changeObs[id]) > 0 {
			w.observers.notifyAdd(id, e, w.componentSnapshot(dest, dstRow, typ))
		}
	}
	// Data updates for adds of components that were already present.
	for _, id := range addOrder {
		if rec.arch.Contains(id) && !containsID(newlyAdded, id) {
			if data := addData[id]; len(data) > 0 {
				if typ, ok := w.registry.byID(id); ok {
					w.writeComponentData(e, dest, dstRow, typ, data)
				}
			}
		}
	}
	return true
}

func containsID(ids []ComponentID, id ComponentID) bool {
	for _, c := range ids {
		if c == id {
			return true
		}
	}
	return false
}
