package delve

import (
	"fmt"
	"testing"
)

// TestEventPriorityOrdering tests per-event delivery across priorities
func TestEventPriorityOrdering(t *testing.T) {
	q := NewEventQueue(nil)

	var log []string
	q.On("combat.damage", func(evt Event) {
		log = append(log, fmt.Sprintf("0:%v", evt.Payload))
	}, 0)
	q.On("combat.damage", func(evt Event) {
		log = append(log, fmt.Sprintf("10:%v", evt.Payload))
	}, 10)

	q.Emit(Event{Type: "combat.damage", Payload: 1})
	q.Emit(Event{Type: "combat.damage", Payload: 2})
	q.Emit(Event{Type: "combat.damage", Payload: 3})

	if err := q.Flush(); err != nil {
		t.Fatalf("flush failed: %v", err)
	}

	want := []string{"0:1", "10:1", "0:2", "10:2", "0:3", "10:3"}
	if len(log) != len(want) {
		t.Fatalf("log = %v, want %v", log, want)
	}
	for i := range want {
		if log[i] != want[i] {
			t.Fatalf("log = %v, want %v", log, want)
		}
	}
}

// TestEventAlphabeticalTypes tests deterministic cross-type ordering
func TestEventAlphabeticalTypes(t *testing.T) {
	q := NewEventQueue(nil)
	var log []string
	record := func(evt Event) { log = append(log, evt.Type) }
	q.On("zeta", record, 0)
	q.On("alpha", record, 0)
	q.On("mid", record, 0)

	q.Emit(Event{Type: "zeta"})
	q.Emit(Event{Type: "alpha"})
	q.Emit(Event{Type: "mid"})
	q.Emit(Event{Type: "alpha"})

	if err := q.Flush(); err != nil {
		t.Fatal(err)
	}
	want := []string{"alpha", "alpha", "mid", "zeta"}
	for i := range want {
		if log[i] != want[i] {
			t.Fatalf("log = %v, want %v", log, want)
		}
	}
}

// TestEventEqualPriorityStable tests subscription-order ties
func TestEventEqualPriorityStable(t *testing.T) {
	q := NewEventQueue(nil)
	var log []string
	q.On("e", func(Event) { log = append(log, "first") }, 5)
	q.On("e", func(Event) { log = append(log, "second") }, 5)
	q.Emit(Event{Type: "e"})
	if err := q.Flush(); err != nil {
		t.Fatal(err)
	}
	if len(log) != 2 || log[0] != "first" || log[1] != "second" {
		t.Errorf("log = %v, want [first second]", log)
	}
}

// TestEmitDuringFlush tests deferral to the next flush
func TestEmitDuringFlush(t *testing.T) {
	q := NewEventQueue(nil)
	delivered := 0
	q.On("ping", func(Event) {
		delivered++
		if delivered == 1 {
			q.Emit(Event{Type: "ping"})
		}
	}, 0)

	q.Emit(Event{Type: "ping"})
	if err := q.Flush(); err != nil {
		t.Fatal(err)
	}
	if delivered != 1 {
		t.Fatalf("delivered = %d after first flush, want 1", delivered)
	}
	if !q.HasPending("ping") {
		t.Fatal("re-emitted event not pending")
	}
	if err := q.Flush(); err != nil {
		t.Fatal(err)
	}
	if delivered != 2 {
		t.Errorf("delivered = %d after second flush, want 2", delivered)
	}
}

// TestReentrantFlush tests the rejection contract
func TestReentrantFlush(t *testing.T) {
	q := NewEventQueue(nil)
	var reentrant error
	q.On("boom", func(Event) {
		reentrant = q.Flush()
	}, 0)
	q.Emit(Event{Type: "boom"})
	if err := q.Flush(); err != nil {
		t.Fatalf("outer flush failed: %v", err)
	}
	if reentrant == nil {
		t.Error("reentrant flush succeeded, want error")
	}
}

// TestFlushRecursive tests repeated flushing of handler-emitted events
func TestFlushRecursive(t *testing.T) {
	q := NewEventQueue(nil)
	chain := 0
	q.On("step", func(Event) {
		chain++
		if chain < 3 {
			q.Emit(Event{Type: "step"})
		}
	}, 0)
	q.Emit(Event{Type: "step"})
	if err := q.FlushRecursive(); err != nil {
		t.Fatal(err)
	}
	if chain != 3 {
		t.Errorf("chain = %d, want 3", chain)
	}
	if q.Len() != 0 {
		t.Errorf("pending = %d, want 0", q.Len())
	}
}

// TestDrainPeek tests queue introspection
func TestDrainPeek(t *testing.T) {
	q := NewEventQueue(nil)
	q.Emit(Event{Type: "a", Payload: 1})
	q.Emit(Event{Type: "a", Payload: 2})

	if got := q.Peek("a"); len(got) != 2 {
		t.Fatalf("peek = %d events, want 2", len(got))
	}
	if q.Len() != 2 {
		t.Errorf("len = %d, want 2", q.Len())
	}

	drained := q.Drain("a")
	if len(drained) != 2 || drained[0].Payload != 1 {
		t.Errorf("drain = %v", drained)
	}
	if q.Len() != 0 {
		t.Errorf("len after drain = %d, want 0", q.Len())
	}
}

// TestOnAnyHandlers tests wildcard subscription ordering
func TestOnAnyHandlers(t *testing.T) {
	q := NewEventQueue(nil)
	var log []string
	q.On("x", func(Event) { log = append(log, "typed") }, 5)
	q.OnAny(func(Event) { log = append(log, "any-early") }, 0)
	q.OnAny(func(Event) { log = append(log, "any-late") }, 10)

	q.Emit(Event{Type: "x"})
	if err := q.Flush(); err != nil {
		t.Fatal(err)
	}
	want := []string{"any-early", "typed", "any-late"}
	for i := range want {
		if log[i] != want[i] {
			t.Fatalf("log = %v, want %v", log, want)
		}
	}
}

type damageEvent struct {
	Amount int
}

// TestTypedEventChannel tests the phantom-typed API
func TestTypedEventChannel(t *testing.T) {
	q := NewEventQueue(nil)
	total := 0
	OnAs(q, func(evt damageEvent) { total += evt.Amount }, 0)

	EmitAs(q, damageEvent{Amount: 3})
	EmitAs(q, damageEvent{Amount: 4})
	if err := q.Flush(); err != nil {
		t.Fatal(err)
	}
	if total != 7 {
		t.Errorf("total = %d, want 7", total)
	}
}

// TestEventRecording tests the recording log
func TestEventRecording(t *testing.T) {
	tick := uint64(7)
	q := NewEventQueue(func() uint64 { return tick })
	q.SetRecording(true)
	q.Emit(Event{Type: "r", Payload: "data"})

	rec := q.Recorded()
	if len(rec) != 1 {
		t.Fatalf("recorded = %d entries, want 1", len(rec))
	}
	if rec[0].Tick != 7 || rec[0].Type != "r" {
		t.Errorf("recorded entry = %+v", rec[0])
	}
	q.ClearRecorded()
	if len(q.Recorded()) != 0 {
		t.Error("recorded log survived clear")
	}
}
