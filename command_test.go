package delve

import "testing"

// TestCommandBufferOrdering tests (sort key, sequence) flush order
func TestCommandBufferOrdering(t *testing.T) {
	w, pos, vel, _ := testWorld(t)
	buf := Factory.NewCommandBuffer(w)
	if err := buf.RegisterComponent(pos); err != nil {
		t.Fatal(err)
	}
	if err := buf.RegisterComponent(vel); err != nil {
		t.Fatal(err)
	}

	e, _ := w.Spawn()

	var order []string
	w.Observers().OnAdd(pos, func(Entity, map[string]float64) { order = append(order, "pos") })
	w.Observers().OnAdd(vel, func(Entity, map[string]float64) { order = append(order, "vel") })

	// Recorded with a higher sort key first; flush must reorder.
	buf.SetSortKey(2000)
	buf.Add(e, vel, nil)
	buf.SetSortKey(1000)
	buf.Add(e, pos, nil)

	if buf.Len() != 2 {
		t.Fatalf("len = %d, want 2", buf.Len())
	}
	if err := buf.Flush(); err != nil {
		t.Fatalf("flush failed: %v", err)
	}
	if len(order) != 2 || order[0] != "pos" || order[1] != "vel" {
		t.Errorf("apply order = %v, want [pos vel]", order)
	}
	if buf.Len() != 0 {
		t.Errorf("len after flush = %d, want 0", buf.Len())
	}
}

// TestCommandBufferSequenceTies tests stable ordering under equal sort keys
func TestCommandBufferSequenceTies(t *testing.T) {
	w, pos, _, _ := testWorld(t)
	buf := Factory.NewCommandBuffer(w)
	buf.RegisterComponent(pos)

	e, _ := w.Spawn()
	buf.Add(e, pos, map[string]float64{"x": 1})
	buf.Remove(e, pos)
	buf.Add(e, pos, map[string]float64{"x": 9})

	if err := buf.Flush(); err != nil {
		t.Fatal(err)
	}
	// Recording order wins: add, remove, add leaves the component present.
	if v, ok := w.GetField(e, pos, "x"); !ok || v != 9 {
		t.Errorf("x = (%v, %v), want (9, true)", v, ok)
	}
}

// TestCommandBufferSpawnDespawn tests deferred lifecycle operations
func TestCommandBufferSpawnDespawn(t *testing.T) {
	w, pos, _, _ := testWorld(t)
	buf := Factory.NewCommandBuffer(w)

	buf.Spawn(pos)
	buf.Spawn(pos)
	if w.EntityCount() != 0 {
		t.Fatal("spawn applied before flush")
	}
	if err := buf.Flush(); err != nil {
		t.Fatal(err)
	}
	if w.EntityCount() != 2 {
		t.Fatalf("entity count = %d, want 2", w.EntityCount())
	}

	victim, _ := w.Query(pos).First()
	buf.Despawn(victim)
	if err := buf.Flush(); err != nil {
		t.Fatal(err)
	}
	if w.Alive(victim) {
		t.Error("despawned entity alive after flush")
	}
}

// TestCommandBufferUnregistered tests the unregistered-component error
func TestCommandBufferUnregistered(t *testing.T) {
	w, pos, _, _ := testWorld(t)
	buf := Factory.NewCommandBuffer(w)

	e, _ := w.Spawn()
	buf.Add(e, pos, nil)
	if err := buf.Flush(); err == nil {
		t.Fatal("flush of unregistered component succeeded, want error")
	}
	// The log is cleared even on error.
	if buf.Len() != 0 {
		t.Errorf("len = %d after failed flush, want 0", buf.Len())
	}
	if err := buf.RegisterComponent(ComponentID(200)); err == nil {
		t.Error("registering an unknown component succeeded")
	}
}

// TestCommandBufferDuringIteration tests deferred mutation while iterating
func TestCommandBufferDuringIteration(t *testing.T) {
	w, pos, _, health := testWorld(t)
	buf := Factory.NewCommandBuffer(w)
	buf.RegisterComponent(health)

	for i := 0; i < 4; i++ {
		w.Spawn(pos)
	}

	view := w.Query(pos).Iter()
	for view.Next() {
		buf.Add(view.Entity(), health, nil)
	}
	view.Release()
	if err := buf.Flush(); err != nil {
		t.Fatal(err)
	}
	if got := w.Query(pos, health).Count(); got != 4 {
		t.Errorf("count = %d, want 4", got)
	}
}
