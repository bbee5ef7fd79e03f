package script

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/trickstertwo/xevent"
)

var ErrInvalidJSON = errors.New("xevent/script: payload is not valid JSON")

// Event is an event kind whose payload is a JSON document. It is what Lua
// code builds and receives; Go code can produce and inspect it too.
type Event struct {
	xevent.BaseEvent
	typ  xevent.EventType
	name string
	data []byte
}

var _ xevent.Event = (*Event)(nil)

// NewEvent returns an Event of type t with no payload.
func NewEvent(t xevent.EventType, name string, at time.Time) *Event {
	return &Event{BaseEvent: xevent.NewBaseEvent(at), typ: t, name: name}
}

func (e *Event) Type() xevent.EventType { return e.typ }

func (e *Event) Name() string { return e.name }

func (e *Event) Copy() xevent.Event {
	cp := *e
	cp.data = bytes.Clone(e.data)
	return &cp
}

// Serialize writes the JSON payload as-is.
func (e *Event) Serialize(w io.Writer) error {
	if len(e.data) == 0 {
		return nil
	}
	_, err := w.Write(e.data)
	return err
}

// Deserialize replaces the payload with the JSON read from r.
func (e *Event) Deserialize(r io.Reader) error {
	b, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	return e.SetJSON(b)
}

// JSON returns a copy of the raw payload (nil when empty).
func (e *Event) JSON() []byte { return bytes.Clone(e.data) }

// SetJSON replaces the payload. An empty document clears it.
func (e *Event) SetJSON(b []byte) error {
	if len(bytes.TrimSpace(b)) == 0 {
		e.data = nil
		return nil
	}
	if !gjson.ValidBytes(b) {
		return ErrInvalidJSON
	}
	e.data = bytes.Clone(b)
	return nil
}

// Data returns the parsed payload.
func (e *Event) Data() gjson.Result { return gjson.ParseBytes(e.data) }

// Get reads a gjson path from the payload.
func (e *Event) Get(path string) gjson.Result { return gjson.GetBytes(e.data, path) }

// Set writes v at an sjson path, creating an object payload if there is none.
func (e *Event) Set(path string, v any) error {
	doc := e.data
	if len(doc) == 0 {
		doc = []byte("{}")
	}
	out, err := sjson.SetBytes(doc, path, v)
	if err != nil {
		return fmt.Errorf("set %q: %w", path, err)
	}
	e.data = out
	return nil
}
