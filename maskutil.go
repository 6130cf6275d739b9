package delve

import "github.com/TheBitDrifter/mask"

// maxComponents is the widest component index the mask type can hold.
const maxComponents = 256

// maskFrom builds a component mask from a list of component indices.
func maskFrom(ids []ComponentID) mask.Mask256 {
	var m mask.Mask256
	for _, id := range ids {
		m.Mark(uint32(id))
	}
	return m
}

// maskPair keys the query planner cache.
type maskPair struct {
	with    mask.Mask256
	without mask.Mask256
}
