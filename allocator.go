package delve

import (
	"github.com/RoaringBitmap/roaring/v2"
	"github.com/sirupsen/logrus"
)

// entityAllocator hands out slots with generational identifiers. Freed slots
// go onto a LIFO free list and keep their bumped generation, so stale
// identifiers fail the liveness check. Allocation order is deterministic given
// the sequence of allocate/free calls.
type entityAllocator struct {
	nextSlot    uint32
	live        *roaring.Bitmap
	generations []uint16
	freeList    []uint32
}

func newEntityAllocator(capacity int) *entityAllocator {
	return &entityAllocator{
		live:        roaring.New(),
		generations: make([]uint16, 0, capacity),
	}
}

// allocate pops the free list, or claims the next fresh slot at generation 0.
func (al *entityAllocator) allocate() (Entity, error) {
	if n := len(al.freeList); n > 0 {
		slot := al.freeList[n-1]
		al.freeList = al.freeList[:n-1]
		al.live.Add(slot)
		return NewEntity(slot, al.generations[slot]), nil
	}
	if al.nextSlot >= MaxEntities {
		return NullEntity, SlotLimitError{}
	}
	slot := al.nextSlot
	al.nextSlot++
	al.generations = append(al.generations, 0)
	al.live.Add(slot)
	return NewEntity(slot, 0), nil
}

// allocateWithID claims a specific slot and generation, used during snapshot
// restore. The slot must not be live. The linear free-list scan is acceptable
// because restore is rare.
func (al *entityAllocator) allocateWithID(e Entity) error {
	slot := e.Slot()
	if al.live.Contains(slot) {
		return SlotOccupiedError{Entity: e}
	}
	for i, free := range al.freeList {
		if free == slot {
			al.freeList = append(al.freeList[:i], al.freeList[i+1:]...)
			break
		}
	}
	for al.nextSlot <= slot {
		al.generations = append(al.generations, 0)
		al.nextSlot++
	}
	al.generations[slot] = e.Generation()
	al.live.Add(slot)
	return nil
}

// free releases the entity's slot, bumping the generation modulo 2^12. A wrap
// back to zero is advisory only: stale identifiers may then alias a future
// occupant of the slot.
func (al *entityAllocator) free(e Entity) {
	slot := e.Slot()
	al.live.Remove(slot)
	next := (al.generations[slot] + 1) & generationMask
	if next == generationWrapped {
		logrus.WithFields(logrus.Fields{
			"slot": slot,
		}).Warn("entity generation wrapped; stale identifiers may alias a new entity")
	}
	al.generations[slot] = next
	al.freeList = append(al.freeList, slot)
}

// isAlive checks range, generation match, live bit, and the null sentinel.
func (al *entityAllocator) isAlive(e Entity) bool {
	if e.IsNull() {
		return false
	}
	slot := e.Slot()
	if slot >= al.nextSlot {
		return false
	}
	if al.generations[slot] != e.Generation() {
		return false
	}
	return al.live.Contains(slot)
}

// aliveCount returns the number of live slots.
func (al *entityAllocator) aliveCount() int {
	return int(al.live.GetCardinality())
}

// eachAlive visits live slots in ascending order.
func (al *entityAllocator) eachAlive(fn func(slot uint32)) {
	it := al.live.Iterator()
	for it.HasNext() {
		fn(it.Next())
	}
}
