package delve

import "sort"

type opKind uint8

const (
	opSpawn opKind = iota
	opDespawn
	opAdd
	opRemove
)

// bufferedOp is one deferred structural operation. The sort key is the value
// last passed to SetSortKey (zero until then); the scheduler does not set it.
// The sequence number keeps ties stable.
type bufferedOp struct {
	kind    opKind
	sortKey int
	seq     uint32
	entity  Entity
	comp    ComponentID
	listIdx int32
	dataIdx int32
}

// CommandBuffer is a deferred log of spawn, despawn, add, and remove
// operations. Flush applies them to the world in (sort key ascending,
// sequence ascending) order, which makes mutation during query iteration
// legal and deterministic. Components must be registered with the buffer
// before an add/remove referencing them is flushed.
type CommandBuffer struct {
	world      *World
	ops        []bufferedOp
	nextSeq    uint32
	sortKey    int
	types      map[ComponentID]*ComponentType
	spawnLists [][]ComponentID
	dataMaps   []map[string]float64
}

func newCommandBuffer(w *World) *CommandBuffer {
	return &CommandBuffer{
		world: w,
		types: make(map[ComponentID]*ComponentType),
	}
}

// RegisterComponent caches the component's type for flush-time validation.
func (b *CommandBuffer) RegisterComponent(id ComponentID) error {
	typ, ok := b.world.registry.byID(id)
	if !ok {
		return UnknownComponentError{ID: id}
	}
	b.types[id] = typ
	return nil
}

// SetSortKey sets the sort key stamped onto subsequently recorded operations.
func (b *CommandBuffer) SetSortKey(key int) {
	b.sortKey = key
}

// Spawn records a deferred entity creation with the given component list. The
// list is interned in an auxiliary vector until flush.
func (b *CommandBuffer) Spawn(types ...ComponentID) {
	listIdx := int32(len(b.spawnLists))
	b.spawnLists = append(b.spawnLists, types)
	b.push(bufferedOp{kind: opSpawn, listIdx: listIdx, dataIdx: -1})
}

// Despawn records a deferred entity destruction.
func (b *CommandBuffer) Despawn(e Entity) {
	b.push(bufferedOp{kind: opDespawn, entity: e, listIdx: -1, dataIdx: -1})
}

// Add records a deferred component addition with optional data.
func (b *CommandBuffer) Add(e Entity, id ComponentID, data map[string]float64) {
	dataIdx := int32(-1)
	if data != nil {
		dataIdx = int32(len(b.dataMaps))
		b.dataMaps = append(b.dataMaps, data)
	}
	b.push(bufferedOp{kind: opAdd, entity: e, comp: id, listIdx: -1, dataIdx: dataIdx})
}

// Remove records a deferred component removal.
func (b *CommandBuffer) Remove(e Entity, id ComponentID) {
	b.push(bufferedOp{kind: opRemove, entity: e, comp: id, listIdx: -1, dataIdx: -1})
}

func (b *CommandBuffer) push(op bufferedOp) {
	op.sortKey = b.sortKey
	op.seq = b.nextSeq
	b.nextSeq++
	b.ops = append(b.ops, op)
}

// Len returns the number of recorded operations.
func (b *CommandBuffer) Len() int {
	return len(b.ops)
}

// Flush sorts the log by (sort key, sequence) and applies it. An add or
// remove naming a component never registered with the buffer is an error; the
// log is cleared regardless so a failed flush is not replayed.
func (b *CommandBuffer) Flush() error {
	ops := b.ops
	b.ops = nil
	spawnLists := b.spawnLists
	b.spawnLists = nil
	dataMaps := b.dataMaps
	b.dataMaps = nil
	b.nextSeq = 0

	sort.SliceStable(ops, func(i, j int) bool {
		if ops[i].sortKey != ops[j].sortKey {
			return ops[i].sortKey < ops[j].sortKey
		}
		return ops[i].seq < ops[j].seq
	})

	for _, op := range ops {
		switch op.kind {
		case opSpawn:
			if _, err := b.world.Spawn(spawnLists[op.listIdx]...); err != nil {
				return err
			}
		case opDespawn:
			b.world.Despawn(op.entity)
		case opAdd:
			if _, ok := b.types[op.comp]; !ok {
				return UnregisteredBufferComponentError{ID: op.comp}
			}
			var data map[string]float64
			if op.dataIdx >= 0 {
				data = dataMaps[op.dataIdx]
			}
			b.world.Add(op.entity, op.comp, data)
		case opRemove:
			if _, ok := b.types[op.comp]; !ok {
				return UnregisteredBufferComponentError{ID: op.comp}
			}
			b.world.Remove(op.entity, op.comp)
		}
	}
	return nil
}
