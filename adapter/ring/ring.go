package ring

import (
	"fmt"
	"sync/atomic"

	"github.com/trickstertwo/xevent"
)

const IngesterName = "ring"

func init() {
	if err := xevent.RegisterIngester(IngesterName, func(cfg map[string]any) (xevent.Ingester, error) {
		return NewIngester(ConfigFromMap(cfg)), nil
	}); err != nil {
		panic(fmt.Errorf("xevent/ring: failed to register ingester: %w", err))
	}
}

// Config controls the ring ingester.
type Config struct {
	// Capacity is rounded up to a power of two (default: 4096).
	Capacity int
}

// ConfigFromMap reads "capacity", falling back to "limit" as passed by the
// dispatcher's IngestLimit.
func ConfigFromMap(cfg map[string]any) Config {
	getInt := func(k string) int {
		switch v := cfg[k].(type) {
		case int:
			return v
		case int64:
			return int(v)
		case float64:
			return int(v)
		default:
			return 0
		}
	}
	c := Config{Capacity: getInt("capacity")}
	if c.Capacity <= 0 {
		c.Capacity = getInt("limit")
	}
	if c.Capacity <= 0 {
		c.Capacity = 4096
	}
	return c
}

func (c Config) toMap() map[string]any {
	return map[string]any{"capacity": c.Capacity}
}

type slot struct {
	seq atomic.Uint64
	ev  xevent.Event
}

// Ingester is a bounded lock-free multi-producer single-consumer ring.
// Each slot carries a sequence number: producers claim a slot by CAS on the
// tail and publish it by bumping the slot sequence; the consumer only reads
// slots whose sequence says they are fully written. A full ring rejects the
// push with xevent.ErrIngestFull instead of overwriting or blocking.
type Ingester struct {
	slots []slot
	mask  uint64
	_     [56]byte
	tail  atomic.Uint64
	_     [56]byte
	head  atomic.Uint64
}

var _ xevent.Ingester = (*Ingester)(nil)

// NewIngester allocates a ring of cfg.Capacity rounded up to a power of two.
func NewIngester(cfg Config) *Ingester {
	n := uint64(1)
	for n < uint64(cfg.Capacity) {
		n <<= 1
	}
	r := &Ingester{slots: make([]slot, n), mask: n - 1}
	for i := range r.slots {
		r.slots[i].seq.Store(uint64(i))
	}
	return r
}

// Push is safe for concurrent producers and never blocks.
func (r *Ingester) Push(e xevent.Event) error {
	for {
		pos := r.tail.Load()
		s := &r.slots[pos&r.mask]
		seq := s.seq.Load()
		switch dif := int64(seq) - int64(pos); {
		case dif == 0:
			if r.tail.CompareAndSwap(pos, pos+1) {
				s.ev = e
				s.seq.Store(pos + 1) // publish after write
				return nil
			}
		case dif < 0:
			return xevent.ErrIngestFull
		}
	}
}

// Drain must only be called by the owning goroutine. It takes what was
// claimed when it started and stops at the first slot that is claimed but not
// yet published; that event is picked up on the next drain.
func (r *Ingester) Drain(fn func(xevent.Event)) int {
	n := 0
	end := r.tail.Load()
	for {
		pos := r.head.Load()
		if pos >= end {
			return n
		}
		s := &r.slots[pos&r.mask]
		if s.seq.Load() != pos+1 {
			return n
		}
		e := s.ev
		s.ev = nil
		s.seq.Store(pos + r.mask + 1)
		r.head.Store(pos + 1)
		fn(e)
		n++
	}
}

// Len returns the approximate number of queued events.
func (r *Ingester) Len() int {
	tail, head := r.tail.Load(), r.head.Load()
	if tail <= head {
		return 0
	}
	return int(tail - head)
}

// Cap returns the ring capacity.
func (r *Ingester) Cap() int { return len(r.slots) }
