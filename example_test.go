package delve_test

import (
	"fmt"

	"github.com/hollowforge/delve"
)

// Example shows basic world usage with entity creation, queries, and a system
func Example_basic() {
	world := delve.Factory.NewWorld(delve.DefaultWorldOptions())

	// Define components as field layouts
	position, _ := world.RegisterComponent(delve.ComponentDescriptor{
		Name: "Position",
		Fields: []delve.FieldDescriptor{
			{Name: "x", Kind: delve.FieldF32},
			{Name: "y", Kind: delve.FieldF32},
		},
	})
	velocity, _ := world.RegisterComponent(delve.ComponentDescriptor{
		Name: "Velocity",
		Fields: []delve.FieldDescriptor{
			{Name: "vx", Kind: delve.FieldF32},
			{Name: "vy", Kind: delve.FieldF32},
		},
	})
	name, _ := world.RegisterComponent(delve.ComponentDescriptor{
		Name: "Name",
		Fields: []delve.FieldDescriptor{
			{Name: "value", Kind: delve.FieldString},
		},
	})

	// Create entities
	for i := 0; i < 5; i++ {
		world.Spawn(position)
	}
	for i := 0; i < 3; i++ {
		world.Spawn(position, velocity)
	}

	// Create one named entity
	player, _ := world.Spawn(position, velocity, name)
	world.SetString(player, name, "value", "Player")
	world.Set(player, position, map[string]float64{"x": 10, "y": 20})
	world.Set(player, velocity, map[string]float64{"vx": 1, "vy": 2})

	// Count entities with position and velocity
	fmt.Printf("Found %d entities with position and velocity\n",
		world.Query(position, velocity).Count())

	// A movement system scheduled into the Update phase
	world.Scheduler().AddSystem("movement", delve.Update, func(w *delve.World) {
		view := w.Query(position, velocity).Iter()
		for view.Next() {
			e := view.Entity()
			x, _ := w.GetField(e, position, "x")
			vx, _ := w.GetField(e, velocity, "vx")
			w.SetField(e, position, "x", x+vx)
		}
		view.Release()
	})
	world.RunTick()

	x, _ := world.GetField(player, position, "x")
	playerName, _ := world.GetString(player, name, "value")
	fmt.Printf("%s moved to x=%v\n", playerName, x)

	// Output:
	// Found 4 entities with position and velocity
	// Player moved to x=11
}
