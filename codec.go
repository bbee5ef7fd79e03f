package xevent

import (
	"bytes"
	"fmt"
)

// EncodeEvent returns the serialized payload of e. Type and timestamp are not
// part of the output; pair it with TypeRegistry.Decode to rebuild the event.
func EncodeEvent(e Event) ([]byte, error) {
	if e == nil {
		return nil, ErrNilEvent
	}
	var buf bytes.Buffer
	if err := e.Serialize(&buf); err != nil {
		return nil, fmt.Errorf("encode %s: %w", e.Name(), err)
	}
	return buf.Bytes(), nil
}
