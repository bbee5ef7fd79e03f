package xevent

import (
	"fmt"
	"io"
	"time"
)

// EventType identifies one kind of notification within a dispatcher instance.
type EventType uint64

func (t EventType) String() string { return fmt.Sprintf("0x%08x", uint64(t)) }

// Event is the record traveling the dispatcher. Once submitted it is shared,
// read-only, by every listener invoked for it during one dispatch.
type Event interface {
	// Type returns the identifier listeners are bound to.
	Type() EventType
	// Timestamp is the creation time. It never changes after construction.
	Timestamp() time.Time
	// Copy returns an independently owned event with the same type, timestamp and payload.
	Copy() Event
	// Serialize writes the payload fields (not the type or timestamp).
	Serialize(w io.Writer) error
	// Deserialize restores the payload fields written by Serialize.
	Deserialize(r io.Reader) error
	// Name is a human-readable discriminator for diagnostics.
	Name() string
}

// BaseEvent carries the timestamp and no-op payload hooks.
// Concrete kinds embed it and implement Type, Copy and Name.
type BaseEvent struct {
	at time.Time
}

// NewBaseEvent stamps a BaseEvent with the given creation time.
func NewBaseEvent(at time.Time) BaseEvent { return BaseEvent{at: at} }

func (b BaseEvent) Timestamp() time.Time { return b.at }

func (BaseEvent) Serialize(io.Writer) error   { return nil }
func (BaseEvent) Deserialize(io.Reader) error { return nil }
