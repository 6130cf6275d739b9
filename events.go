package delve

import (
	"reflect"
	"sort"
	"time"

	"github.com/sirupsen/logrus"
)

// Event is a string-typed message with an arbitrary payload. The queue
// transports events by tag; type discipline over payloads is the caller's.
type Event struct {
	Type    string
	Payload any
}

// RecordedEvent is one entry of the recording log.
type RecordedEvent struct {
	Event
	Tick uint64
	Time time.Time
}

// EventHandler consumes events during a flush.
type EventHandler func(Event)

// HandlerID identifies one subscription for removal.
type HandlerID uint64

type handlerEntry struct {
	id       HandlerID
	priority int
	seq      uint64
	fn       EventHandler
}

// EventQueue is a deferred, deterministic delivery channel. Emitted events
// wait until Flush, which processes types in alphabetical order, FIFO within a
// type, handlers by priority ascending with subscription order breaking ties.
// Events emitted during a flush land in the next flush; re-entry is an error.
type EventQueue struct {
	pending     map[string][]Event
	handlers    map[string][]handlerEntry
	anyHandlers []handlerEntry
	nextID      HandlerID
	nextSeq     uint64
	flushing    bool

	recording bool
	log       []RecordedEvent
	tick      func() uint64
}

// maxRecursiveFlushDepth bounds FlushRecursive before the advisory warning.
const maxRecursiveFlushDepth = 8

// NewEventQueue creates an empty queue. tick supplies the current tick for the
// recording log; nil disables tick stamping.
func NewEventQueue(tick func() uint64) *EventQueue {
	return &EventQueue{
		pending:  make(map[string][]Event),
		handlers: make(map[string][]handlerEntry),
		tick:     tick,
	}
}

// Emit enqueues an event on its type channel. With recording enabled the
// event is also appended to the internal log with a timestamp and tick.
func (q *EventQueue) Emit(evt Event) {
	q.pending[evt.Type] = append(q.pending[evt.Type], evt)
	if q.recording {
		rec := RecordedEvent{Event: evt, Time: time.Now()}
		if q.tick != nil {
			rec.Tick = q.tick()
		}
		q.log = append(q.log, rec)
	}
}

// On subscribes a handler to one event type at the given priority. Handlers
// stay sorted by priority ascending; equal priorities run in subscription
// order.
func (q *EventQueue) On(eventType string, fn EventHandler, priority int) HandlerID {
	q.nextID++
	q.nextSeq++
	entry := handlerEntry{id: q.nextID, priority: priority, seq: q.nextSeq, fn: fn}
	q.handlers[eventType] = insertHandler(q.handlers[eventType], entry)
	return q.nextID
}

// OnAny subscribes a handler to every event type.
func (q *EventQueue) OnAny(fn EventHandler, priority int) HandlerID {
	q.nextID++
	q.nextSeq++
	entry := handlerEntry{id: q.nextID, priority: priority, seq: q.nextSeq, fn: fn}
	q.anyHandlers = insertHandler(q.anyHandlers, entry)
	return q.nextID
}

func insertHandler(list []handlerEntry, entry handlerEntry) []handlerEntry {
	i := sort.Search(len(list), func(i int) bool {
		if list[i].priority != entry.priority {
			return list[i].priority > entry.priority
		}
		return list[i].seq > entry.seq
	})
	list = append(list, handlerEntry{})
	copy(list[i+1:], list[i:])
	list[i] = entry
	return list
}

// Off removes a subscription.
func (q *EventQueue) Off(id HandlerID) {
	for t, list := range q.handlers {
		q.handlers[t] = dropHandler(list, id)
	}
	q.anyHandlers = dropHandler(q.anyHandlers, id)
}

func dropHandler(list []handlerEntry, id HandlerID) []handlerEntry {
	for i, en := range list {
		if en.id == id {
			return append(list[:i], list[i+1:]...)
		}
	}
	return list
}

// Flush delivers every pending event. Events emitted by handlers are queued
// for the next flush. A reentrant call fails.
func (q *EventQueue) Flush() error {
	if q.flushing {
		return ReentrantFlushError{}
	}
	q.flushing = true
	defer func() { q.flushing = false }()

	batch := q.pending
	q.pending = make(map[string][]Event)

	types := make([]string, 0, len(batch))
	for t := range batch {
		types = append(types, t)
	}
	sort.Strings(types)

	for _, t := range types {
		typed := q.handlers[t]
		for _, evt := range batch[t] {
			ti, ai := 0, 0
			// Merge typed and any-handlers by (priority, subscription order).
			for ti < len(typed) || ai < len(q.anyHandlers) {
				if ai >= len(q.anyHandlers) {
					typed[ti].fn(evt)
					ti++
					continue
				}
				if ti >= len(typed) {
					q.anyHandlers[ai].fn(evt)
					ai++
					continue
				}
				th, ah := typed[ti], q.anyHandlers[ai]
				if th.priority < ah.priority || (th.priority == ah.priority && th.seq < ah.seq) {
					th.fn(evt)
					ti++
				} else {
					ah.fn(evt)
					ai++
				}
			}
		}
	}
	return nil
}

// FlushRecursive flushes repeatedly while handlers keep emitting, up to a
// bounded depth. Residual events are left pending with an advisory warning.
func (q *EventQueue) FlushRecursive() error {
	for depth := 0; depth < maxRecursiveFlushDepth; depth++ {
		if len(q.pending) == 0 {
			return nil
		}
		if err := q.Flush(); err != nil {
			return err
		}
	}
	if n := q.Len(); n > 0 {
		logrus.WithFields(logrus.Fields{
			"remaining": n, "depth": maxRecursiveFlushDepth,
		}).Warn("recursive event flush hit depth limit with events remaining")
	}
	return nil
}

// typeTag derives a channel name from a Go type for the typed API.
func typeTag[T any]() string {
	return reflect.TypeFor[T]().String()
}

// EmitAs enqueues a payload on the channel named after its Go type.
func EmitAs[T any](q *EventQueue, payload T) {
	q.Emit(Event{Type: typeTag[T](), Payload: payload})
}

// OnAs subscribes a typed handler to the channel named after T. Payloads that
// are not a T are ignored.
func OnAs[T any](q *EventQueue, fn func(T), priority int) HandlerID {
	return q.On(typeTag[T](), func(evt Event) {
		if payload, ok := evt.Payload.(T); ok {
			fn(payload)
		}
	}, priority)
}

// Drain removes and returns all pending events of one type without invoking
// handlers.
func (q *EventQueue) Drain(eventType string) []Event {
	events := q.pending[eventType]
	delete(q.pending, eventType)
	return events
}

// Peek returns pending events of one type without removing them.
func (q *EventQueue) Peek(eventType string) []Event {
	return q.pending[eventType]
}

// HasPending reports whether any event of the type awaits delivery.
func (q *EventQueue) HasPending(eventType string) bool {
	return len(q.pending[eventType]) > 0
}

// Len returns the total number of pending events.
func (q *EventQueue) Len() int {
	n := 0
	for _, events := range q.pending {
		n += len(events)
	}
	return n
}

// Clear discards all pending events.
func (q *EventQueue) Clear() {
	q.pending = make(map[string][]Event)
}

// SetRecording toggles the recording log.
func (q *EventQueue) SetRecording(on bool) {
	q.recording = on
}

// Recorded returns the recording log.
func (q *EventQueue) Recorded() []RecordedEvent {
	return q.log
}

// ClearRecorded resets the recording log.
func (q *EventQueue) ClearRecorded() {
	q.log = nil
}
