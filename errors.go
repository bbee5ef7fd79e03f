package xevent

import (
	"errors"
	"fmt"
)

var (
	ErrNilEvent                    = errors.New("xevent: nil event")
	ErrIngestFull                  = errors.New("xevent: ingest queue is full")
	ErrTypeRegistered              = errors.New("xevent: event type already registered")
	ErrNilConstructor              = errors.New("xevent: event constructor must not be nil")
	ErrNoIngester                  = errors.New("xevent: no ingester configured")
	ErrDispatcherClosed            = errors.New("xevent: dispatcher is closed")
	ErrObserverPoolShutdownTimeout = errors.New("xevent: observer pool shutdown timeout")
)

// ErrUnknownType is returned by TypeRegistry.Create for unregistered ids.
type ErrUnknownType struct{ Type EventType }

func (e ErrUnknownType) Error() string { return fmt.Sprintf("xevent: unknown event type: %s", e.Type) }

type ErrUnknownIngester struct{ name string }

func (e ErrUnknownIngester) Error() string { return fmt.Sprintf("xevent: unknown ingester: %s", e.name) }
