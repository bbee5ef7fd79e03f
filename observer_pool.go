package xevent

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/sourcegraph/conc"
	"github.com/sourcegraph/conc/panics"
)

// ObserverPool fans dispatcher activity out to observers on background
// goroutines, off the owning goroutine's tick budget. Notify never blocks:
// activity that does not fit the buffer is counted as dropped.
type ObserverPool struct {
	mu      sync.RWMutex // closed vs. send on queue
	queue   chan Activity
	closed  bool
	workers int
	wg      conc.WaitGroup

	dropped   atomic.Uint64
	processed atomic.Uint64
	panicked  atomic.Uint64
}

// NewObserverPool starts workers goroutines reading a bufferSize queue.
func NewObserverPool(workers, bufferSize int) *ObserverPool {
	if workers < 1 {
		workers = 1
	}
	if bufferSize < 1 {
		bufferSize = 1024
	}
	op := &ObserverPool{
		queue:   make(chan Activity, bufferSize),
		workers: workers,
	}
	for i := 0; i < workers; i++ {
		op.wg.Go(op.drain)
	}
	return op
}

// Notify hands a to observers asynchronously.
func (op *ObserverPool) Notify(a Activity, observers []Observer) {
	if len(observers) == 0 {
		return
	}
	a.observers = observers

	op.mu.RLock()
	defer op.mu.RUnlock()
	if op.closed {
		return
	}
	select {
	case op.queue <- a:
	default:
		op.dropped.Add(1)
	}
}

func (op *ObserverPool) drain() {
	for a := range op.queue {
		for _, obs := range a.observers {
			if obs == nil {
				continue
			}
			var pc panics.Catcher
			pc.Try(func() { obs.OnActivity(a) })
			if pc.Recovered() != nil {
				op.panicked.Add(1)
			}
		}
		op.processed.Add(1)
	}
}

// Close stops accepting activity and waits up to timeout for the workers to
// deliver what is already buffered. Idempotent.
func (op *ObserverPool) Close(timeout time.Duration) error {
	op.mu.Lock()
	if op.closed {
		op.mu.Unlock()
		return nil
	}
	op.closed = true
	close(op.queue)
	op.mu.Unlock()

	done := make(chan struct{})
	go func() {
		op.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		return ErrObserverPoolShutdownTimeout
	}
}

// Stats returns current pool counters.
func (op *ObserverPool) Stats() PoolStats {
	return PoolStats{
		Dropped:    op.dropped.Load(),
		Processed:  op.processed.Load(),
		Panicked:   op.panicked.Load(),
		Queued:     len(op.queue),
		Workers:    op.workers,
		BufferSize: cap(op.queue),
	}
}
