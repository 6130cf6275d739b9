package delve

// ComponentID is the dense index assigned to a component type at registration.
// Registration order determines the index, which must be stable across a run
// for serialized snapshots to keep their identity.
type ComponentID uint32

// FieldKind enumerates the primitive storage types a component field can use.
type FieldKind uint8

const (
	FieldF32 FieldKind = iota
	FieldF64
	FieldI8
	FieldI16
	FieldI32
	FieldU8
	FieldU16
	FieldU32
	// FieldBool is stored as a 0/1 byte.
	FieldBool
	// FieldEntityRef holds a packed Entity value and is tracked for
	// post-despawn nullification.
	FieldEntityRef
	// FieldString holds a 32-bit string pool index.
	FieldString
)

var fieldKindSizes = [...]uint32{
	FieldF32:       4,
	FieldF64:       8,
	FieldI8:        1,
	FieldI16:       2,
	FieldI32:       4,
	FieldU8:        1,
	FieldU16:       2,
	FieldU32:       4,
	FieldBool:      1,
	FieldEntityRef: 4,
	FieldString:    4,
}

var fieldKindNames = [...]string{
	FieldF32:       "F32",
	FieldF64:       "F64",
	FieldI8:        "I8",
	FieldI16:       "I16",
	FieldI32:       "I32",
	FieldU8:        "U8",
	FieldU16:       "U16",
	FieldU32:       "U32",
	FieldBool:      "Bool",
	FieldEntityRef: "EntityRef",
	FieldString:    "String",
}

// Size returns the field kind's byte width.
func (k FieldKind) Size() uint32 {
	return fieldKindSizes[k]
}

func (k FieldKind) String() string {
	if int(k) < len(fieldKindNames) {
		return fieldKindNames[k]
	}
	return "Unknown"
}

// FieldDescriptor declares one field of a component layout. The byte offset
// is computed during registration.
type FieldDescriptor struct {
	Name    string
	Kind    FieldKind
	Default float64
}

// ComponentDescriptor declares a component layout for registration. An empty
// field list declares a tag component.
type ComponentDescriptor struct {
	Name   string
	Fields []FieldDescriptor
}

// Field is a registered component field with its resolved byte offset.
type Field struct {
	Name    string
	Kind    FieldKind
	Offset  uint32
	Default float64
}

// ComponentType is the resolved descriptor of a registered component.
type ComponentType struct {
	id          ComponentID
	name        string
	fields      []Field
	fieldByName map[string]int
	stride      uint32
	tag         bool
}

// ID returns the component's dense index.
func (t *ComponentType) ID() ComponentID { return t.id }

// Name returns the component's stable registration name.
func (t *ComponentType) Name() string { return t.name }

// Fields returns the ordered field list.
func (t *ComponentType) Fields() []Field { return t.fields }

// Stride returns the total byte stride of one component value.
func (t *ComponentType) Stride() uint32 { return t.stride }

// IsTag reports whether the component carries no fields.
func (t *ComponentType) IsTag() bool { return t.tag }

// FieldIndex resolves a field name to its position in the field list.
func (t *ComponentType) FieldIndex(name string) (int, bool) {
	i, ok := t.fieldByName[name]
	return i, ok
}

// componentRegistry assigns dense indices and resolves types by index or name.
// Registration is not thread-safe and must complete before the world runs.
type componentRegistry struct {
	types       []*ComponentType
	nameIndices map[string]int
}

func newComponentRegistry() *componentRegistry {
	return &componentRegistry{nameIndices: make(map[string]int)}
}

// register resolves a descriptor into a ComponentType and assigns the next
// dense index. Registering a taken name fails.
func (r *componentRegistry) register(desc ComponentDescriptor) (ComponentID, error) {
	if _, taken := r.nameIndices[desc.Name]; taken {
		return 0, DuplicateComponentError{Name: desc.Name}
	}
	fields := make([]Field, len(desc.Fields))
	byName := make(map[string]int, len(desc.Fields))
	var offset uint32
	for i, fd := range desc.Fields {
		def := fd.Default
		// An unspecified EntityRef default points at no entity, not slot 0.
		if fd.Kind == FieldEntityRef && def == 0 {
			def = float64(NullEntity)
		}
		fields[i] = Field{
			Name:    fd.Name,
			Kind:    fd.Kind,
			Offset:  offset,
			Default: def,
		}
		byName[fd.Name] = i
		offset += fd.Kind.Size()
	}
	typ := &ComponentType{
		id:          ComponentID(len(r.types)),
		name:        desc.Name,
		fields:      fields,
		fieldByName: byName,
		stride:      offset,
		tag:         len(fields) == 0,
	}
	r.nameIndices[desc.Name] = len(r.types)
	r.types = append(r.types, typ)
	return typ.id, nil
}

// byID resolves a dense index to its type.
func (r *componentRegistry) byID(id ComponentID) (*ComponentType, bool) {
	if int(id) >= len(r.types) {
		return nil, false
	}
	return r.types[id], true
}

// byName resolves a registration name to its type.
func (r *componentRegistry) byName(name string) (*ComponentType, bool) {
	i, ok := r.nameIndices[name]
	if !ok {
		return nil, false
	}
	return r.types[i], true
}

// count returns the number of registered components.
func (r *componentRegistry) count() int {
	return len(r.types)
}
