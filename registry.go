package xevent

import (
	"errors"
	"sort"
	"sync"
)

// IngesterFactory constructs ingesters from a config blob.
type IngesterFactory func(cfg map[string]any) (Ingester, error)

var (
	ingesterRegistryMu sync.RWMutex
	ingesterRegistry   = map[string]IngesterFactory{
		MutexIngesterName: mutexIngesterFactory,
	}
)

// RegisterIngester registers an ingester strategy under name.
func RegisterIngester(name string, factory IngesterFactory) error {
	if name == "" {
		return errors.New("xevent: ingester name must not be empty")
	}
	if factory == nil {
		return errors.New("xevent: ingester factory must not be nil")
	}
	ingesterRegistryMu.Lock()
	ingesterRegistry[name] = factory
	ingesterRegistryMu.Unlock()
	return nil
}

// NewIngester constructs an ingester by name with config.
func NewIngester(name string, cfg map[string]any) (Ingester, error) {
	ingesterRegistryMu.RLock()
	f, ok := ingesterRegistry[name]
	ingesterRegistryMu.RUnlock()
	if !ok {
		return nil, ErrUnknownIngester{name: name}
	}
	return f(cfg)
}

// Ingesters lists the registered strategy names.
func Ingesters() []string {
	ingesterRegistryMu.RLock()
	out := make([]string, 0, len(ingesterRegistry))
	for name := range ingesterRegistry {
		out = append(out, name)
	}
	ingesterRegistryMu.RUnlock()
	sort.Strings(out)
	return out
}
