package delve

import "testing"

// TestQueryFiltering tests mask-pair matching over archetypes
func TestQueryFiltering(t *testing.T) {
	type entitySetup struct {
		components []int
		count      int
	}

	tests := []struct {
		name            string
		entitySetups    []entitySetup
		with            []int
		without         []int
		expectedMatches int
	}{
		{
			name: "With matches supersets",
			entitySetups: []entitySetup{
				{[]int{0, 1}, 5},
				{[]int{0}, 10},
				{[]int{1}, 15},
			},
			with:            []int{0, 1},
			expectedMatches: 5,
		},
		{
			name: "Single component matches all carriers",
			entitySetups: []entitySetup{
				{[]int{0, 1}, 5},
				{[]int{0}, 10},
				{[]int{1}, 15},
			},
			with:            []int{0},
			expectedMatches: 15,
		},
		{
			name: "Without excludes",
			entitySetups: []entitySetup{
				{[]int{0, 1}, 5},
				{[]int{0}, 10},
				{[]int{0, 2}, 7},
			},
			with:            []int{0},
			without:         []int{1},
			expectedMatches: 17,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, pos, vel, health := testWorld(t)
			ids := []ComponentID{pos, vel, health}

			for _, setup := range tt.entitySetups {
				comps := make([]ComponentID, len(setup.components))
				for i, c := range setup.components {
					comps[i] = ids[c]
				}
				for n := 0; n < setup.count; n++ {
					if _, err := w.Spawn(comps...); err != nil {
						t.Fatalf("spawn failed: %v", err)
					}
				}
			}

			q := w.Query(toComponentIDs(ids, tt.with)...)
			if len(tt.without) > 0 {
				q = q.Without(toComponentIDs(ids, tt.without)...)
			}
			if got := q.Count(); got != tt.expectedMatches {
				t.Errorf("count = %d, want %d", got, tt.expectedMatches)
			}

			matched := 0
			view := q.Iter()
			for view.Next() {
				matched++
			}
			view.Release()
			if matched != tt.expectedMatches {
				t.Errorf("iterated = %d, want %d", matched, tt.expectedMatches)
			}
		})
	}
}

func toComponentIDs(ids []ComponentID, ix []int) []ComponentID {
	out := make([]ComponentID, len(ix))
	for i, v := range ix {
		out[i] = ids[v]
	}
	return out
}

// TestQueryCacheInvalidation tests that new archetypes join cached resolves
func TestQueryCacheInvalidation(t *testing.T) {
	w, pos, vel, _ := testWorld(t)
	w.Spawn(pos)

	if got := w.Query(pos).Count(); got != 1 {
		t.Fatalf("count = %d, want 1", got)
	}
	// A new archetype containing Position appears after the cached resolve.
	w.Spawn(pos, vel)
	if got := w.Query(pos).Count(); got != 2 {
		t.Errorf("count after new archetype = %d, want 2", got)
	}
}

// TestChangeFilterQueries tests Added/Modified filtering and the tick clear
func TestChangeFilterQueries(t *testing.T) {
	w, pos, _, _ := testWorld(t)
	a, _ := w.Spawn(pos)
	b, _ := w.Spawn(pos)

	if got := w.Query(pos).Changed(FlagAdded).Count(); got != 2 {
		t.Errorf("added this tick = %d, want 2", got)
	}

	if err := w.RunTick(); err != nil {
		t.Fatal(err)
	}

	if got := w.Query(pos).Changed(FlagAdded | FlagModified).Count(); got != 0 {
		t.Errorf("changed after clear = %d, want 0", got)
	}

	w.SetField(a, pos, "x", 1)
	if got := w.Query(pos).Changed(FlagModified).Count(); got != 1 {
		t.Errorf("modified = %d, want 1", got)
	}
	if got := w.Query(pos).Changed(FlagAdded).Count(); got != 0 {
		t.Errorf("added = %d, want 0", got)
	}
	_ = b
}

// TestPerComponentChangeMask tests ChangedIn filtering
func TestPerComponentChangeMask(t *testing.T) {
	w, pos, vel, _ := testWorld(t)
	e, _ := w.Spawn(pos, vel)
	if err := w.RunTick(); err != nil {
		t.Fatal(err)
	}

	w.SetField(e, pos, "x", 2)
	if got := w.Query(pos, vel).Changed(FlagModified).ChangedIn(pos).Count(); got != 1 {
		t.Errorf("pos-changed = %d, want 1", got)
	}
	if got := w.Query(pos, vel).Changed(FlagModified).ChangedIn(vel).Count(); got != 0 {
		t.Errorf("vel-changed = %d, want 0", got)
	}
}

// TestPredicateFilters tests data predicates with reusable buffers
func TestPredicateFilters(t *testing.T) {
	w, _, _, health := testWorld(t)
	for i := 0; i < 10; i++ {
		e, _ := w.Spawn(health)
		w.SetField(e, health, "current", float64(i*10))
	}

	got := w.Query(health).Filter(health, func(data map[string]float64) bool {
		return data["current"] < 50
	}).Count()
	if got != 5 {
		t.Errorf("filtered count = %d, want 5", got)
	}
}

// TestRelationFilterQueries tests outgoing/incoming relation filters
func TestRelationFilterQueries(t *testing.T) {
	w, pos, _, _ := testWorld(t)
	childOf, _ := w.RegisterRelation(RelationDescriptor{Name: "ChildOf"})

	parent, _ := w.Spawn(pos)
	c1, _ := w.Spawn(pos)
	c2, _ := w.Spawn(pos)
	loner, _ := w.Spawn(pos)
	w.Relate(c1, childOf, parent)
	w.Relate(c2, childOf, parent)

	if got := w.Query(pos).WithOutgoing(childOf, parent).Count(); got != 2 {
		t.Errorf("children of parent = %d, want 2", got)
	}
	if got := w.Query(pos).WithOutgoing(childOf, NullEntity).Count(); got != 2 {
		t.Errorf("any child = %d, want 2", got)
	}
	if got := w.Query(pos).WithIncoming(childOf, NullEntity).Count(); got != 1 {
		t.Errorf("any parent = %d, want 1", got)
	}
	_ = loner
}

// TestDeterministicIteration tests slot-sorted yielding
func TestDeterministicIteration(t *testing.T) {
	w, pos, vel, _ := testWorld(t)
	// Spread entities over two archetypes so raw row order differs from
	// slot order.
	e0, _ := w.Spawn(pos, vel)
	e1, _ := w.Spawn(pos)
	e2, _ := w.Spawn(pos, vel)
	e3, _ := w.Spawn(pos)

	collect := func() []Entity {
		var out []Entity
		view := w.Query(pos).IterDeterministic()
		for view.Next() {
			out = append(out, view.Entity())
		}
		view.Release()
		return out
	}
	want := []Entity{e0, e1, e2, e3}
	got := collect()
	if len(got) != len(want) {
		t.Fatalf("yielded %d entities, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("order = %v, want %v", got, want)
		}
	}
	// Two identical descriptors yield the same sequence.
	again := collect()
	for i := range got {
		if got[i] != again[i] {
			t.Fatal("deterministic iteration diverged between runs")
		}
	}
}

// TestQueryFirst tests the short-circuit path
func TestQueryFirst(t *testing.T) {
	w, pos, _, _ := testWorld(t)
	if _, ok := w.Query(pos).First(); ok {
		t.Error("first on empty world succeeded")
	}
	e, _ := w.Spawn(pos)
	got, ok := w.Query(pos).First()
	if !ok || got != e {
		t.Errorf("first = (%v, %v), want (%v, true)", got, ok, e)
	}
}

// TestViewPooling tests that released views are reused
func TestViewPooling(t *testing.T) {
	w, pos, _, _ := testWorld(t)
	w.Spawn(pos)

	v1 := w.Query(pos).Iter()
	v1.Release()
	v2 := w.Query(pos).Iter()
	if v1 != v2 {
		t.Error("released view was not reused")
	}
	// Nested queries take independent views.
	v3 := w.Query(pos).Iter()
	if v3 == v2 {
		t.Error("nested query shared a live view")
	}
	v2.Release()
	v3.Release()
}
