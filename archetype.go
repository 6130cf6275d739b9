package delve

import (
	"github.com/TheBitDrifter/bark"
	"github.com/TheBitDrifter/mask"
)

// ChangeFlag marks what happened to a row since the last end-of-tick clear.
// The values form a bitfield; Added is never downgraded to Modified within a
// tick.
type ChangeFlag uint8

const (
	FlagNone     ChangeFlag = 0
	FlagAdded    ChangeFlag = 1 << 0
	FlagModified ChangeFlag = 1 << 1
	FlagRemoved  ChangeFlag = 1 << 2
)

// changeTrackedComponents caps the per-row per-component change bitmap.
// Components at indices beyond it only aggregate into the row flag.
const changeTrackedComponents = 64

// archetypeComponent holds one component's columns within an archetype, one
// column per field in declaration order.
type archetypeComponent struct {
	typ  *ComponentType
	cols []Column
}

// Archetype is a table of entities sharing the same component mask. Columns
// are per-field primitive buffers; rows are contiguous 0..len-1 and removal
// swaps the last row into the freed slot.
type Archetype struct {
	id           uint32
	mask         mask.Mask256
	componentIDs []ComponentID
	slots        []int16
	comps        []archetypeComponent
	entities     []Entity
	rowFlags     []ChangeFlag
	rowChanged   []uint64
	rowCount     int
	capacity     int
}

// newArchetype builds the table for a sorted component index list. Types are
// resolved through the registry; every listed component gets one column per
// field.
func newArchetype(id uint32, ids []ComponentID, registry *componentRegistry, capacity int) *Archetype {
	if capacity < 1 {
		capacity = 1
	}
	a := &Archetype{
		id:           id,
		mask:         maskFrom(ids),
		componentIDs: ids,
		slots:        make([]int16, maxComponents),
		comps:        make([]archetypeComponent, len(ids)),
		entities:     make([]Entity, capacity),
		rowFlags:     make([]ChangeFlag, capacity),
		rowChanged:   make([]uint64, capacity),
		capacity:     capacity,
	}
	for i := range a.slots {
		a.slots[i] = -1
	}
	for i, cid := range ids {
		typ, ok := registry.byID(cid)
		if !ok {
			panic(bark.AddTrace(UnknownComponentError{ID: cid}))
		}
		cols := make([]Column, len(typ.fields))
		for f, field := range typ.fields {
			cols[f] = newColumn(field.Kind, capacity)
		}
		a.slots[cid] = int16(i)
		a.comps[i] = archetypeComponent{typ: typ, cols: cols}
	}
	return a
}

// ID returns the archetype's creation-order identifier.
func (a *Archetype) ID() uint32 { return a.id }

// Mask returns the archetype's component mask.
func (a *Archetype) Mask() mask.Mask256 { return a.mask }

// ComponentIDs returns the sorted component indices present in this archetype.
func (a *Archetype) ComponentIDs() []ComponentID { return a.componentIDs }

// Len returns the current row count.
func (a *Archetype) Len() int { return a.rowCount }

// EntityAt returns the entity stored at a row.
func (a *Archetype) EntityAt(row int) Entity { return a.entities[row] }

// Contains reports whether the archetype's mask covers the component.
func (a *Archetype) Contains(id ComponentID) bool {
	return int(id) < len(a.slots) && a.slots[id] >= 0
}

func (a *Archetype) slot(id ComponentID) int {
	if int(id) >= len(a.slots) {
		return -1
	}
	return int(a.slots[id])
}

// ensure grows all buffers by power-of-two reallocation to hold n rows.
func (a *Archetype) ensure(n int) {
	if n <= a.capacity {
		return
	}
	next := a.capacity
	for next < n {
		next *= 2
	}
	entities := make([]Entity, next)
	copy(entities, a.entities[:a.rowCount])
	a.entities = entities
	flags := make([]ChangeFlag, next)
	copy(flags, a.rowFlags[:a.rowCount])
	a.rowFlags = flags
	changed := make([]uint64, next)
	copy(changed, a.rowChanged[:a.rowCount])
	a.rowChanged = changed
	for i := range a.comps {
		for f := range a.comps[i].cols {
			a.comps[i].cols[f].grow(a.rowCount, next)
		}
	}
	a.capacity = next
}

// allocateRow appends a row for the entity with every field at its default,
// marked Added.
func (a *Archetype) allocateRow(e Entity) int {
	row := a.rowCount
	a.ensure(row + 1)
	a.rowCount++
	a.entities[row] = e
	a.rowFlags[row] = FlagAdded
	a.rowChanged[row] = 0
	for i := range a.comps {
		comp := &a.comps[i]
		for f := range comp.cols {
			comp.cols[f].set(row, comp.typ.fields[f].Default)
		}
		a.markComponentChanged(row, comp.typ.id)
	}
	return row
}

// freeRow removes a row by swapping the last row into its place. It returns
// the entity that moved, or NullEntity when the removed row was last.
func (a *Archetype) freeRow(row int) Entity {
	last := a.rowCount - 1
	moved := NullEntity
	if row != last {
		moved = a.entities[last]
		a.entities[row] = moved
		a.rowFlags[row] = a.rowFlags[last]
		a.rowChanged[row] = a.rowChanged[last]
		for i := range a.comps {
			for f := range a.comps[i].cols {
				a.comps[i].cols[f].moveRow(row, last)
			}
		}
	}
	a.entities[last] = NullEntity
	a.rowFlags[last] = FlagNone
	a.rowChanged[last] = 0
	a.rowCount--
	return moved
}

// getField reads a single field as a float64.
func (a *Archetype) getField(row int, id ComponentID, name string) (float64, bool) {
	s := a.slot(id)
	if s < 0 {
		return 0, false
	}
	comp := &a.comps[s]
	f, ok := comp.typ.FieldIndex(name)
	if !ok {
		return 0, false
	}
	return comp.cols[f].get(row), true
}

// setField writes a single field and marks the row changed.
func (a *Archetype) setField(row int, id ComponentID, name string, v float64) bool {
	s := a.slot(id)
	if s < 0 {
		return false
	}
	comp := &a.comps[s]
	f, ok := comp.typ.FieldIndex(name)
	if !ok {
		return false
	}
	comp.cols[f].set(row, v)
	a.markModified(row)
	a.markComponentChanged(row, id)
	return true
}

// setComponent overlays the supplied fields onto a row's component and marks
// it changed. Fields absent from data keep their current values.
func (a *Archetype) setComponent(row int, id ComponentID, data map[string]float64) bool {
	s := a.slot(id)
	if s < 0 {
		return false
	}
	comp := &a.comps[s]
	for name, v := range data {
		if f, ok := comp.typ.FieldIndex(name); ok {
			comp.cols[f].set(row, v)
		}
	}
	a.markModified(row)
	a.markComponentChanged(row, id)
	return true
}

// copyComponentFrom copies one component's fields from a row of another
// archetype. Both archetypes must contain the component.
func (a *Archetype) copyComponentFrom(dstRow int, src *Archetype, srcRow int, id ComponentID) {
	ds, ss := a.slot(id), src.slot(id)
	if ds < 0 || ss < 0 {
		return
	}
	dst := &a.comps[ds]
	from := &src.comps[ss]
	for f := range dst.cols {
		dst.cols[f].copyRow(dstRow, &from.cols[f], srcRow)
	}
}

// componentData fills buf with a component's field values at a row. Tag
// components fill nothing.
func (a *Archetype) componentData(row int, id ComponentID, buf map[string]float64) bool {
	s := a.slot(id)
	if s < 0 {
		return false
	}
	comp := &a.comps[s]
	for f := range comp.typ.fields {
		buf[comp.typ.fields[f].Name] = comp.cols[f].get(row)
	}
	return true
}

// Column exposes the primitive buffer for one field, for typed hot-path
// iteration. Nil when the component or field is absent.
func (a *Archetype) Column(id ComponentID, field string) *Column {
	s := a.slot(id)
	if s < 0 {
		return nil
	}
	comp := &a.comps[s]
	f, ok := comp.typ.FieldIndex(field)
	if !ok {
		return nil
	}
	return &comp.cols[f]
}

// markModified sets the Modified bit unless the row was created this tick, in
// which case Added persists alone.
func (a *Archetype) markModified(row int) {
	if a.rowFlags[row]&FlagAdded != 0 {
		return
	}
	a.rowFlags[row] |= FlagModified
}

func (a *Archetype) markRemoved(row int) {
	a.rowFlags[row] |= FlagRemoved
}

// markComponentChanged records a per-component change bit for indices below
// the tracking cap.
func (a *Archetype) markComponentChanged(row int, id ComponentID) {
	if id < changeTrackedComponents {
		a.rowChanged[row] |= 1 << id
	}
}

// rowFlag returns the row's aggregate change flag.
func (a *Archetype) rowFlag(row int) ChangeFlag {
	return a.rowFlags[row]
}

// componentChanged reports whether a tracked component mutated this row since
// the last clear. Untracked indices report the aggregate row state.
func (a *Archetype) componentChanged(row int, id ComponentID) bool {
	if id < changeTrackedComponents {
		return a.rowChanged[row]&(1<<id) != 0
	}
	return a.rowFlags[row] != FlagNone
}

// clearChanges resets per-row flags and per-component bitmaps.
func (a *Archetype) clearChanges() {
	for i := 0; i < a.rowCount; i++ {
		a.rowFlags[i] = FlagNone
		a.rowChanged[i] = 0
	}
}
