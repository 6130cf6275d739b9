package delve

// ComponentObserver receives add/remove notifications with the component's
// field values at the call site.
type ComponentObserver func(e Entity, data map[string]float64)

// SetObserver receives both the previous and the new field values.
type SetObserver func(e Entity, oldData, newData map[string]float64)

// ChangeObserver receives every add, Set, and remove of a component. Value
// writes through SetField and SetString do not notify it.
type ChangeObserver func(e Entity, kind ChangeFlag)

// Subscription identifies one registered observer for later removal.
type Subscription uint64

type observerEntry[T any] struct {
	sub Subscription
	fn  T
}

// ObserverManager dispatches synchronous, inline notifications from world
// operations. Observers are not deferred: they see the world in a consistent
// state before the next structural operation.
type ObserverManager struct {
	nextSub   Subscription
	addObs    map[ComponentID][]observerEntry[ComponentObserver]
	removeObs map[ComponentID][]observerEntry[ComponentObserver]
	setObs    map[ComponentID][]observerEntry[SetObserver]
	changeObs map[ComponentID][]observerEntry[ChangeObserver]
}

func newObserverManager() *ObserverManager {
	return &ObserverManager{
		nextSub:   1,
		addObs:    make(map[ComponentID][]observerEntry[ComponentObserver]),
		removeObs: make(map[ComponentID][]observerEntry[ComponentObserver]),
		setObs:    make(map[ComponentID][]observerEntry[SetObserver]),
		changeObs: make(map[ComponentID][]observerEntry[ChangeObserver]),
	}
}

// OnAdd subscribes to component additions.
func (m *ObserverManager) OnAdd(id ComponentID, fn ComponentObserver) Subscription {
	sub := m.nextSub
	m.nextSub++
	m.addObs[id] = append(m.addObs[id], observerEntry[ComponentObserver]{sub: sub, fn: fn})
	return sub
}

// OnRemove subscribes to component removals. The callback sees the data as it
// was before removal.
func (m *ObserverManager) OnRemove(id ComponentID, fn ComponentObserver) Subscription {
	sub := m.nextSub
	m.nextSub++
	m.removeObs[id] = append(m.removeObs[id], observerEntry[ComponentObserver]{sub: sub, fn: fn})
	return sub
}

// OnSet subscribes to Set operations with old and new values.
func (m *ObserverManager) OnSet(id ComponentID, fn SetObserver) Subscription {
	sub := m.nextSub
	m.nextSub++
	m.setObs[id] = append(m.setObs[id], observerEntry[SetObserver]{sub: sub, fn: fn})
	return sub
}

// OnChange subscribes to any add, set, or remove of the component.
func (m *ObserverManager) OnChange(id ComponentID, fn ChangeObserver) Subscription {
	sub := m.nextSub
	m.nextSub++
	m.changeObs[id] = append(m.changeObs[id], observerEntry[ChangeObserver]{sub: sub, fn: fn})
	return sub
}

// Unsubscribe removes an observer by its subscription handle.
func (m *ObserverManager) Unsubscribe(sub Subscription) {
	for id, list := range m.addObs {
		m.addObs[id] = dropSub(list, sub)
	}
	for id, list := range m.removeObs {
		m.removeObs[id] = dropSub(list, sub)
	}
	for id, list := range m.setObs {
		m.setObs[id] = dropSub(list, sub)
	}
	for id, list := range m.changeObs {
		m.changeObs[id] = dropSub(list, sub)
	}
}

func dropSub[T any](list []observerEntry[T], sub Subscription) []observerEntry[T] {
	for i, en := range list {
		if en.sub == sub {
			return append(list[:i], list[i+1:]...)
		}
	}
	return list
}

func (m *ObserverManager) hasAdd(id ComponentID) bool    { return len(m.addObs[id]) > 0 }
func (m *ObserverManager) hasRemove(id ComponentID) bool { return len(m.removeObs[id]) > 0 }
func (m *ObserverManager) hasSet(id ComponentID) bool    { return len(m.setObs[id]) > 0 }

func (m *ObserverManager) notifyAdd(id ComponentID, e Entity, data map[string]float64) {
	for _, en := range m.addObs[id] {
		en.fn(e, data)
	}
	for _, en := range m.changeObs[id] {
		en.fn(e, FlagAdded)
	}
}

func (m *ObserverManager) notifyRemove(id ComponentID, e Entity, data map[string]float64) {
	for _, en := range m.removeObs[id] {
		en.fn(e, data)
	}
	for _, en := range m.changeObs[id] {
		en.fn(e, FlagRemoved)
	}
}

func (m *ObserverManager) notifySet(id ComponentID, e Entity, oldData, newData map[string]float64) {
	for _, en := range m.setObs[id] {
		en.fn(e, oldData, newData)
	}
	for _, en := range m.changeObs[id] {
		en.fn(e, FlagModified)
	}
}
