package xevent

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChain_SkipsNil(t *testing.T) {
	called := false
	l := Chain(ListenerFunc(func(Event) { called = true }), nil, nil)
	l.HandleEvent(newTestEvent(evtAlpha, 1))
	assert.True(t, called)
}

func TestRecoverMiddleware(t *testing.T) {
	var recovered any
	l := Chain(
		ListenerFunc(func(Event) { panic("listener fault") }),
		RecoverMiddleware(func(_ Event, r any) { recovered = r }),
	)
	require.NotPanics(t, func() { l.HandleEvent(newTestEvent(evtAlpha, 1)) })
	assert.Equal(t, "listener fault", recovered)
}

func TestRecoverMiddleware_KeepsTickGoing(t *testing.T) {
	d, _ := newTestDispatcher(t)
	faults := 0
	d.AddListener(evtAlpha, Chain(
		ListenerFunc(func(Event) { panic("boom") }),
		RecoverMiddleware(func(Event, any) { faults++ }),
	))
	r := &recorder{}
	d.AddListener(evtAlpha, r)

	d.QueueEvent(newTestEvent(evtAlpha, 1))
	d.QueueEvent(newTestEvent(evtAlpha, 2))
	assert.True(t, d.Update(Unlimited))
	assert.Equal(t, 2, faults)
	assert.Equal(t, []int{1, 2}, r.seqs)
}

func TestTimingMiddleware_Disabled(t *testing.T) {
	calls := 0
	inner := ListenerFunc(func(Event) { calls++ })
	mw := TimingMiddleware(newFakeClock(), 0, nil)
	mw(inner).HandleEvent(newTestEvent(evtAlpha, 1))
	assert.Equal(t, 1, calls)
}

func TestTimingMiddleware_SlowListenerStillRuns(t *testing.T) {
	clk := newFakeClock()
	calls := 0
	d, _ := newTestDispatcher(t, func(b *DispatcherBuilder) {
		b.WithClock(clk).WithSlowListener(time.Millisecond)
	})
	d.AddListener(evtAlpha, ListenerFunc(func(Event) {
		calls++
		clk.Advance(5 * time.Millisecond)
	}))

	assert.True(t, d.TriggerEvent(newTestEvent(evtAlpha, 1)))
	assert.Equal(t, 1, calls)
	assert.Equal(t, time.Millisecond, d.Config().SlowListener)
}
