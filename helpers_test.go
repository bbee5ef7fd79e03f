package xevent

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/trickstertwo/xclock"
)

const (
	evtAlpha EventType = 0x1001
	evtBeta  EventType = 0x1002
	evtGamma EventType = 0x1003
)

// testEvent carries a sequence number so tests can check ordering.
type testEvent struct {
	BaseEvent
	typ EventType
	Seq int
}

func newTestEvent(t EventType, seq int) *testEvent {
	return &testEvent{BaseEvent: NewBaseEvent(time.Unix(0, 0)), typ: t, Seq: seq}
}

func (e *testEvent) Type() EventType { return e.typ }
func (e *testEvent) Name() string    { return "testEvent" }
func (e *testEvent) Copy() Event {
	cp := *e
	return &cp
}

// fakeClock only moves when told to. Timers and tickers stay real.
type fakeClock struct {
	xclock.Clock
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{
		Clock: xclock.Default(),
		now:   time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Since(t time.Time) time.Duration { return c.Now().Sub(t) }

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// recorder collects the sequence numbers of handled events.
type recorder struct {
	seqs []int
}

func (r *recorder) HandleEvent(e Event) {
	r.seqs = append(r.seqs, e.(*testEvent).Seq)
}

// newTestDispatcher builds a dispatcher with inline observers and a fake clock.
func newTestDispatcher(t *testing.T, opts ...func(b *DispatcherBuilder)) (*Dispatcher, *fakeClock) {
	t.Helper()
	clk := newFakeClock()
	d, closeFn, err := New(func(b *DispatcherBuilder) {
		b.WithClock(clk).WithObserverPool(0, 0)
		for _, o := range opts {
			o(b)
		}
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = closeFn() })
	return d, clk
}
