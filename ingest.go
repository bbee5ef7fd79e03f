package xevent

import (
	"sync"
)

// Ingester is the Strategy for the cross-goroutine entry point of a dispatcher.
// Push may be called from any goroutine and must never block on dispatcher
// load. Drain is called only by the owning goroutine, once per tick, and must
// return as soon as no more items are available.
type Ingester interface {
	// Push accepts e or returns ErrIngestFull when a bound is configured.
	Push(e Event) error
	// Drain hands every currently queued event to fn in submission order.
	Drain(fn func(Event)) int
	// Len reports the approximate number of queued events.
	Len() int
}

// MutexIngesterName is the default ingester strategy.
const MutexIngesterName = "mutex"

// mutexIngester is a slice guarded by a mutex. Drain swaps the slice out
// under the lock so producers are never held up by listener work.
type mutexIngester struct {
	mu    sync.Mutex
	items []Event
	spare []Event
	limit int
}

// NewMutexIngester returns the default ingester. limit <= 0 means unbounded.
func NewMutexIngester(limit int) Ingester {
	return &mutexIngester{limit: limit}
}

func (q *mutexIngester) Push(e Event) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.limit > 0 && len(q.items) >= q.limit {
		return ErrIngestFull
	}
	q.items = append(q.items, e)
	return nil
}

func (q *mutexIngester) Drain(fn func(Event)) int {
	q.mu.Lock()
	batch := q.items
	q.items = q.spare[:0]
	q.spare = nil
	q.mu.Unlock()

	for i, e := range batch {
		fn(e)
		batch[i] = nil
	}

	q.mu.Lock()
	if q.spare == nil {
		q.spare = batch[:0]
	}
	q.mu.Unlock()
	return len(batch)
}

func (q *mutexIngester) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

func mutexIngesterFactory(cfg map[string]any) (Ingester, error) {
	limit := 0
	switch v := cfg["limit"].(type) {
	case int:
		limit = v
	case int64:
		limit = int(v)
	case float64:
		limit = int(v)
	}
	return NewMutexIngester(limit), nil
}
