package delve

import "testing"

// TestBatchCommit tests the single-transition batched build
func TestBatchCommit(t *testing.T) {
	w, pos, vel, health := testWorld(t)

	var added []string
	for _, id := range []ComponentID{pos, vel, health} {
		cid := id
		w.Observers().OnAdd(cid, func(e Entity, data map[string]float64) {
			typ, _ := w.ComponentByID(cid)
			added = append(added, typ.Name())
		})
	}

	e, _ := w.Spawn()
	ok := w.Batch(e).Add(pos).Add(vel).Add(health).Commit()
	if !ok {
		t.Fatal("commit failed")
	}

	// One archetype transition: only the combined archetype was created.
	if w.ArchetypeCount() != 1 {
		t.Errorf("archetype count = %d, want 1", w.ArchetypeCount())
	}
	for _, id := range []ComponentID{pos, vel, health} {
		if !w.Has(e, id) {
			t.Errorf("component %d missing after commit", id)
		}
	}
	if v, _ := w.GetField(e, health, "current"); v != 100 {
		t.Errorf("health default = %v, want 100", v)
	}

	want := []string{"Position", "Velocity", "Health"}
	if len(added) != len(want) {
		t.Fatalf("add events = %v, want %v", added, want)
	}
	for i := range want {
		if added[i] != want[i] {
			t.Fatalf("add events = %v, want %v", added, want)
		}
	}
}

// TestBatchRemovePrecedence tests that removes win over adds
func TestBatchRemovePrecedence(t *testing.T) {
	w, pos, vel, _ := testWorld(t)
	e, _ := w.Spawn(pos)

	w.Batch(e).Add(vel).Remove(vel).Commit()
	if w.Has(e, vel) {
		t.Error("removed component present after commit")
	}
	if !w.Has(e, pos) {
		t.Error("untouched component lost")
	}
}

// TestBatchLaterAddWins tests that later adds override earlier data
func TestBatchLaterAddWins(t *testing.T) {
	w, pos, _, _ := testWorld(t)
	e, _ := w.Spawn()
	w.Batch(e).
		AddWith(pos, map[string]float64{"x": 1}).
		AddWith(pos, map[string]float64{"x": 7}).
		Commit()
	if v, _ := w.GetField(e, pos, "x"); v != 7 {
		t.Errorf("x = %v, want 7", v)
	}
}

// TestBatchEmptyResultDespawns tests that an empty final set despawns
func TestBatchEmptyResultDespawns(t *testing.T) {
	w, pos, _, _ := testWorld(t)
	e, _ := w.Spawn(pos)
	if !w.Batch(e).Remove(pos).Commit() {
		t.Fatal("commit failed")
	}
	if w.Alive(e) {
		t.Error("entity alive after empty commit")
	}
}

// TestBatchSameArchetypeDataOnly tests the data-update-only path
func TestBatchSameArchetypeDataOnly(t *testing.T) {
	w, pos, _, _ := testWorld(t)
	e, _ := w.Spawn(pos)
	before := w.ArchetypeCount()

	w.Batch(e).AddWith(pos, map[string]float64{"y": 5}).Commit()
	if w.ArchetypeCount() != before {
		t.Error("same-archetype commit created archetypes")
	}
	if v, _ := w.GetField(e, pos, "y"); v != 5 {
		t.Errorf("y = %v, want 5", v)
	}
}
