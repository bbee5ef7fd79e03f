package xevent

import "reflect"

// Listener receives events of the type it was registered for.
type Listener interface {
	HandleEvent(e Event)
}

// ListenerFunc is an Adapter that lets a plain function satisfy Listener.
// Function values are not comparable, so every registration of a ListenerFunc
// is distinct and identified only by its ListenerID.
type ListenerFunc func(e Event)

func (f ListenerFunc) HandleEvent(e Event) { f(e) }

// ListenerID is the opaque handle returned by AddListener. It is a sequence
// number scoped to one dispatcher and is never reused.
type ListenerID uint64

type listenerEntry struct {
	id       ListenerID
	typ      EventType
	listener Listener // as registered, used for duplicate detection
	call     Listener // listener wrapped by middlewares
	removed  bool
}

// listenerRegistry keeps an ordered listener list per event type.
// Lists are copy-on-write: a dispatch holds the slice it started with while
// add/remove install fresh slices, so the iteration never shifts under it.
type listenerRegistry struct {
	byType map[EventType][]*listenerEntry
	byID   map[ListenerID]*listenerEntry
	nextID ListenerID
}

func newListenerRegistry() *listenerRegistry {
	return &listenerRegistry{
		byType: make(map[EventType][]*listenerEntry),
		byID:   make(map[ListenerID]*listenerEntry),
	}
}

// add appends l to the list for t. It returns false if the same comparable
// listener value is already bound to t.
func (r *listenerRegistry) add(t EventType, l, call Listener) (ListenerID, bool) {
	cur := r.byType[t]
	for _, e := range cur {
		if sameListener(e.listener, l) {
			return 0, false
		}
	}

	r.nextID++
	entry := &listenerEntry{id: r.nextID, typ: t, listener: l, call: call}

	next := make([]*listenerEntry, len(cur), len(cur)+1)
	copy(next, cur)
	r.byType[t] = append(next, entry)
	r.byID[entry.id] = entry
	return entry.id, true
}

// remove detaches the listener with id from t. The entry is flagged so an
// in-flight dispatch holding an older snapshot skips it.
func (r *listenerRegistry) remove(t EventType, id ListenerID) bool {
	entry, ok := r.byID[id]
	if !ok || entry.typ != t {
		return false
	}
	entry.removed = true
	delete(r.byID, id)

	cur := r.byType[t]
	if len(cur) == 1 {
		delete(r.byType, t)
		return true
	}
	next := make([]*listenerEntry, 0, len(cur)-1)
	for _, e := range cur {
		if e.id != id {
			next = append(next, e)
		}
	}
	r.byType[t] = next
	return true
}

func (r *listenerRegistry) listenersFor(t EventType) []*listenerEntry {
	return r.byType[t]
}

func (r *listenerRegistry) has(t EventType) bool {
	return len(r.byType[t]) > 0
}

func sameListener(a, b Listener) bool {
	ta, tb := reflect.TypeOf(a), reflect.TypeOf(b)
	if ta != tb || ta == nil || !ta.Comparable() {
		return false
	}
	return a == b
}
