// Profiling:
// go build ./profile/query
// go tool pprof -http=":8000" -nodefraction=0.001 ./query cpu.pprof

package main

import (
	"github.com/hollowforge/delve"
	"github.com/pkg/profile"
)

func main() {
	iters := 10000
	entities := 1000
	p := profile.Start(profile.CPUProfile, profile.ProfilePath("."), profile.NoShutdownHook)
	run(iters, entities)
	p.Stop()
}

func run(iters, numEntities int) {
	world := delve.Factory.NewWorld(delve.DefaultWorldOptions())
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
			{Name: "vx", Kind: delve.FieldF32, Default: 1},
			{Name: "vy", Kind: delve.FieldF32, Default: 1},
		},
	})

	for i := 0; i < numEntities; i++ {
		if _, err := world.Spawn(position, velocity); err != nil {
			panic(err)
		}
	}

	for range iters {
		view := world.Query(position, velocity).Iter()
		for view.Next() {
			arch := view.Archetype()
			row := view.Row()
			xs := arch.Column(position, "x").F32s()
			vxs := arch.Column(velocity, "vx").F32s()
			xs[row] += vxs[row]
		}
		view.Release()
		if err := world.RunTick(); err != nil {
			panic(err)
		}
	}
}
