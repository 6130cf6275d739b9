package delve

import (
	"fmt"
	"strings"
)

// DuplicateComponentError reports a second registration under a taken name.
type DuplicateComponentError struct {
	Name string
}

func (e DuplicateComponentError) Error() string {
	return fmt.Sprintf("component %q is already registered", e.Name)
}

// DuplicateRelationError reports a second relation registration under a taken name.
type DuplicateRelationError struct {
	Name string
}

func (e DuplicateRelationError) Error() string {
	return fmt.Sprintf("relation %q is already registered", e.Name)
}

// UnknownComponentError reports use of a component index that was never registered.
type UnknownComponentError struct {
	ID ComponentID
}

func (e UnknownComponentError) Error() string {
	return fmt.Sprintf("component %d is not registered", e.ID)
}

// UnknownComponentNameError reports a lookup of a name that was never registered.
type UnknownComponentNameError struct {
	Name string
}

func (e UnknownComponentNameError) Error() string {
	return fmt.Sprintf("component %q is not registered", e.Name)
}

// SlotLimitError reports allocator exhaustion.
type SlotLimitError struct{}

func (e SlotLimitError) Error() string {
	return fmt.Sprintf("entity slot limit (%d) exceeded", MaxEntities)
}

// SlotOccupiedError reports a SpawnWithID into a live slot.
type SlotOccupiedError struct {
	Entity Entity
}

func (e SlotOccupiedError) Error() string {
	return fmt.Sprintf("slot %d is already live", e.Entity.Slot())
}

// ReentrantFlushError reports a Flush call made from inside a flush.
type ReentrantFlushError struct{}

func (e ReentrantFlushError) Error() string {
	return "event queue flush is not reentrant"
}

// UnknownSystemsError aggregates every before/after reference that does not
// resolve to a registered system.
type UnknownSystemsError struct {
	Names []string
}

func (e UnknownSystemsError) Error() string {
	return fmt.Sprintf("scheduler references unknown systems: %s", strings.Join(e.Names, ", "))
}

// ScheduleCycleError reports an ordering cycle within one phase, naming every
// system of the phase that could not be ordered: the cycle's members and any
// system ordered after them.
type ScheduleCycleError struct {
	Phase   Phase
	Systems []string
}

func (e ScheduleCycleError) Error() string {
	return fmt.Sprintf("ordering cycle in phase %s among systems: %s", e.Phase, strings.Join(e.Systems, ", "))
}

// NonExclusiveRelationError reports Target on a relation holding multiple targets.
type NonExclusiveRelationError struct {
	Relation string
	Count    int
}

func (e NonExclusiveRelationError) Error() string {
	return fmt.Sprintf("relation %q is not exclusive: source has %d targets", e.Relation, e.Count)
}

// UnregisteredBufferComponentError reports a command buffer flush that touched
// a component never registered with the buffer.
type UnregisteredBufferComponentError struct {
	ID ComponentID
}

func (e UnregisteredBufferComponentError) Error() string {
	return fmt.Sprintf("command buffer has no registration for component %d", e.ID)
}

// SnapshotVersionError reports an unsupported snapshot document version.
type SnapshotVersionError struct {
	Version int
}

func (e SnapshotVersionError) Error() string {
	return fmt.Sprintf("unsupported snapshot version %d", e.Version)
}
