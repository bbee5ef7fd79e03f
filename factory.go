package xevent

import (
	"bytes"
	"fmt"
	"sort"
	"sync"
)

// Constructor builds a default-valued event of one kind. It takes no context;
// fields are filled in by the caller afterwards or through Deserialize.
type Constructor func() Event

// TypeRegistry maps event type ids to constructors so events can be built
// knowing only their identifier. Safe for concurrent use.
type TypeRegistry struct {
	mu    sync.RWMutex
	ctors map[EventType]Constructor
}

// NewTypeRegistry returns an empty registry.
func NewTypeRegistry() *TypeRegistry {
	return &TypeRegistry{ctors: make(map[EventType]Constructor)}
}

// Register binds t to ctor. It fails if t is already bound.
func (r *TypeRegistry) Register(t EventType, ctor Constructor) error {
	if ctor == nil {
		return ErrNilConstructor
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.ctors[t]; ok {
		return fmt.Errorf("register %s: %w", t, ErrTypeRegistered)
	}
	r.ctors[t] = ctor
	return nil
}

// MustRegister is Register for package init paths; it panics on conflict.
func (r *TypeRegistry) MustRegister(t EventType, ctor Constructor) {
	if err := r.Register(t, ctor); err != nil {
		panic(err)
	}
}

// Create constructs a new event of the kind registered under t.
func (r *TypeRegistry) Create(t EventType) (Event, error) {
	r.mu.RLock()
	ctor, ok := r.ctors[t]
	r.mu.RUnlock()
	if !ok {
		return nil, ErrUnknownType{Type: t}
	}
	return ctor(), nil
}

// Decode creates an event of kind t and restores its payload from data.
func (r *TypeRegistry) Decode(t EventType, data []byte) (Event, error) {
	e, err := r.Create(t)
	if err != nil {
		return nil, err
	}
	if err := e.Deserialize(bytes.NewReader(data)); err != nil {
		return nil, fmt.Errorf("decode %s: %w", t, err)
	}
	return e, nil
}

// Has reports whether t is registered.
func (r *TypeRegistry) Has(t EventType) bool {
	r.mu.RLock()
	_, ok := r.ctors[t]
	r.mu.RUnlock()
	return ok
}

// Types returns the registered ids in ascending order.
func (r *TypeRegistry) Types() []EventType {
	r.mu.RLock()
	out := make([]EventType, 0, len(r.ctors))
	for t := range r.ctors {
		out = append(out, t)
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
