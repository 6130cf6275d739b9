package delve

// refEntry names one EntityRef field occurrence: the source entity holding the
// field and the field's location.
type refEntry struct {
	source Entity
	comp   ComponentID
	field  string
}

// sourceRef is the outgoing side of the same tuple.
type sourceRef struct {
	comp   ComponentID
	field  string
	target Entity
}

// entityRefStore tracks (source, component, field, target) tuples in both
// directions, keyed by slot. It holds only values, never ownership: entries
// are reconciled against liveness by the despawn path. Despawning a target
// nullifies the referring fields; despawning a source drops its outgoing refs.
type entityRefStore struct {
	byTarget map[uint32][]refEntry
	bySource map[uint32][]sourceRef
}

func newEntityRefStore() *entityRefStore {
	return &entityRefStore{
		byTarget: make(map[uint32][]refEntry),
		bySource: make(map[uint32][]sourceRef),
	}
}

// set replaces one field's tracked target. Either side may be null.
func (s *entityRefStore) set(source Entity, comp ComponentID, field string, old, next Entity) {
	if old == next {
		return
	}
	if !old.IsNull() {
		s.unregister(source, comp, field, old)
	}
	if !next.IsNull() {
		s.register(source, comp, field, next)
	}
}

func (s *entityRefStore) register(source Entity, comp ComponentID, field string, target Entity) {
	tSlot := target.Slot()
	s.byTarget[tSlot] = append(s.byTarget[tSlot], refEntry{source: source, comp: comp, field: field})
	sSlot := source.Slot()
	s.bySource[sSlot] = append(s.bySource[sSlot], sourceRef{comp: comp, field: field, target: target})
}

func (s *entityRefStore) unregister(source Entity, comp ComponentID, field string, target Entity) {
	tSlot := target.Slot()
	entries := s.byTarget[tSlot]
	for i, en := range entries {
		if en.source == source && en.comp == comp && en.field == field {
			entries[i] = entries[len(entries)-1]
			entries = entries[:len(entries)-1]
			break
		}
	}
	if len(entries) == 0 {
		delete(s.byTarget, tSlot)
	} else {
		s.byTarget[tSlot] = entries
	}

	sSlot := source.Slot()
	srcs := s.bySource[sSlot]
	for i, sr := range srcs {
		if sr.comp == comp && sr.field == field && sr.target == target {
			srcs[i] = srcs[len(srcs)-1]
			srcs = srcs[:len(srcs)-1]
			break
		}
	}
	if len(srcs) == 0 {
		delete(s.bySource, sSlot)
	} else {
		s.bySource[sSlot] = srcs
	}
}

// refsTo returns the fields currently referencing the target.
func (s *entityRefStore) refsTo(target Entity) []refEntry {
	entries := s.byTarget[target.Slot()]
	out := make([]refEntry, len(entries))
	copy(out, entries)
	return out
}

// dropSource removes every tuple whose source is the given entity.
func (s *entityRefStore) dropSource(source Entity) {
	slot := source.Slot()
	for _, sr := range s.bySource[slot] {
		tSlot := sr.target.Slot()
		entries := s.byTarget[tSlot]
		for i, en := range entries {
			if en.source == source && en.comp == sr.comp && en.field == sr.field {
				entries[i] = entries[len(entries)-1]
				entries = entries[:len(entries)-1]
				break
			}
		}
		if len(entries) == 0 {
			delete(s.byTarget, tSlot)
		} else {
			s.byTarget[tSlot] = entries
		}
	}
	delete(s.bySource, slot)
}

// known reports whether the store tracks the exact tuple, used to validate the
// EntityRef field invariant.
func (s *entityRefStore) known(source Entity, comp ComponentID, field string, target Entity) bool {
	for _, en := range s.byTarget[target.Slot()] {
		if en.source == source && en.comp == comp && en.field == field {
			return true
		}
	}
	return false
}
