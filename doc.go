/*
Package delve provides a deterministic Entity-Component-System (ECS) runtime for
roguelike simulations.

Delve stores entities in archetypes: tables of entities that share the same
component set, laid out as structure-of-arrays columns of primitive buffers for
cache-friendly iteration. Component layouts are declared as data rather than
derived from Go types, so worlds can be snapshotted and restored with stable
identity.

Core Concepts:

  - Entity: a packed 32-bit identifier (20-bit slot, 12-bit generation).
  - Component: a registered field layout attached to entities.
  - Archetype: a table of entities sharing the same component mask.
  - Query: a cached resolve of (with, without) masks over archetypes.
  - System: a named callback scheduled into a phase with ordering and conditions.

Basic Usage:

	world := delve.Factory.NewWorld(delve.DefaultWorldOptions())

	// Declare components as field layouts
	position, _ := world.RegisterComponent(delve.ComponentDescriptor{
		Name: "Position",
		Fields: []delve.FieldDescriptor{
			{Name: "x", Kind: delve.FieldF32},
			{Name: "y", Kind: delve.FieldF32},
		},
	})

	// Create entities
	e, _ := world.Spawn(position)
	world.SetField(e, position, "x", 3)

	// Query entities and process them
	view := world.Query(position).Iter()
	for view.Next() {
		x, _ := world.GetField(view.Entity(), position, "x")
		_ = x
	}
	view.Release()

Structural changes during iteration go through a CommandBuffer, which replays
spawn/despawn/add/remove operations in a deterministic (sort key, sequence)
order. Systems run single-threaded in three fixed phases per tick; observers
fire synchronously at the mutation site, while events are queued and flushed in
alphabetical type order at tick end.
*/
package delve
