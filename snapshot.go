package delve

import (
	"github.com/goccy/go-json"
)

// snapshotVersion is the current document version.
const snapshotVersion = 1

// SnapshotEntity is one persisted entity: its packed identifier and component
// field values keyed by component name. String fields carry pool indices that
// resolve through the document's string table.
type SnapshotEntity struct {
	ID         uint32                        `json:"id"`
	Components map[string]map[string]float64 `json:"components"`
}

// SnapshotRelation is one persisted relation triple.
type SnapshotRelation struct {
	Relation string `json:"relation"`
	Source   uint32 `json:"source"`
	Target   uint32 `json:"target"`
}

// SnapshotDoc is the versioned snapshot document. Field values are numeric;
// strings go through the pool on load.
type SnapshotDoc struct {
	Version   int                `json:"version"`
	Tick      uint64             `json:"tick"`
	Entities  []SnapshotEntity   `json:"entities"`
	Strings   map[uint32]string  `json:"strings,omitempty"`
	Resources map[string]float64 `json:"resources,omitempty"`
	Relations []SnapshotRelation `json:"relations,omitempty"`
}

// TakeSnapshot serializes the world: every live entity in slot order with its
// component fields, the referenced string-pool entries, numeric resources,
// and every relation triple in deterministic order.
func TakeSnapshot(w *World) ([]byte, error) {
	doc := SnapshotDoc{
		Version: snapshotVersion,
		Tick:    w.tick,
		Strings: make(map[uint32]string),
	}

	w.alloc.eachAlive(func(slot uint32) {
		e := NewEntity(slot, w.alloc.generations[slot])
		entry := SnapshotEntity{
			ID:         uint32(e),
			Components: make(map[string]map[string]float64),
		}
		rec := w.record(e)
		if rec.arch != nil {
			for _, id := range rec.arch.componentIDs {
				typ, ok := w.registry.byID(id)
				if !ok {
					continue
				}
				data := w.componentSnapshot(rec.arch, rec.row, typ)
				entry.Components[typ.name] = data
				for _, f := range typ.fields {
					if f.Kind != FieldString {
						continue
					}
					if idx := uint32(data[f.Name]); idx != 0 {
						if s, ok := w.strings.Get(idx); ok {
							doc.Strings[idx] = s
						}
					}
				}
			}
		}
		doc.Entities = append(doc.Entities, entry)
	})

	for name, i := range w.resources.itemIndices {
		if v, ok := w.resources.items[i].(float64); ok {
			if doc.Resources == nil {
				doc.Resources = make(map[string]float64)
			}
			doc.Resources[name] = v
		}
	}

	for i := range w.relations.types {
		typ := w.relations.types[i]
		w.relStore.forEach(typ.id, func(src, dst Entity) bool {
			doc.Relations = append(doc.Relations, SnapshotRelation{
				Relation: typ.Name(),
				Source:   uint32(src),
				Target:   uint32(dst),
			})
			return true
		})
	}

	return json.Marshal(doc)
}

// RestoreSnapshot loads a document into a world whose component and relation
// registrations match the snapshot's schema. Entities keep their packed
// identifiers; string fields are re-interned through the world's pool.
func RestoreSnapshot(w *World, data []byte) error {
	var doc SnapshotDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return err
	}
	if doc.Version != snapshotVersion {
		return SnapshotVersionError{Version: doc.Version}
	}

	// First pass: spawn every entity with its component set so EntityRef
	// fields set in the second pass always point at live slots.
	for _, entry := range doc.Entities {
		e := Entity(entry.ID)
		types := make([]ComponentID, 0, len(entry.Components))
		for name := range entry.Components {
			typ, ok := w.registry.byName(name)
			if !ok {
				return UnknownComponentNameError{Name: name}
			}
			types = append(types, typ.id)
		}
		if err := w.SpawnWithID(e, types...); err != nil {
			return err
		}
	}

	for _, entry := range doc.Entities {
		e := Entity(entry.ID)
		for name, fields := range entry.Components {
			typ, _ := w.registry.byName(name)
			if typ == nil || typ.tag {
				continue
			}
			for fname, v := range fields {
				fi, ok := typ.FieldIndex(fname)
				if !ok {
					continue
				}
				if typ.fields[fi].Kind == FieldString {
					if idx := uint32(v); idx != 0 {
						w.SetString(e, typ.id, fname, doc.Strings[idx])
					}
					continue
				}
				w.SetField(e, typ.id, fname, v)
			}
		}
	}

	for name, v := range doc.Resources {
		w.SetResource(name, v)
	}

	for _, rel := range doc.Relations {
		typ, ok := w.relations.byName(rel.Relation)
		if !ok {
			continue
		}
		w.Relate(Entity(rel.Source), typ.id, Entity(rel.Target))
	}

	w.tick = doc.Tick
	return nil
}
