package xevent

import (
	"context"
	"reflect"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/trickstertwo/xclock"
	"github.com/trickstertwo/xlog"
)

// Dispatcher routes events to listeners immediately (TriggerEvent), on the
// next tick (QueueEvent) or, from foreign goroutines, through the ingest
// queue (ThreadSafeQueueEvent).
//
// Everything except ThreadSafeQueueEvent, Stats, Health, Types and observer
// registration belongs to the single owning goroutine that calls Update.
type Dispatcher struct {
	cfg         Config
	clock       xclock.Clock
	logger      *xlog.Logger
	types       *TypeRegistry
	middlewares []Middleware

	// owning goroutine only
	listeners *listenerRegistry
	queues    deferredQueues
	updating  bool

	ingest Ingester

	observerPool *ObserverPool
	observersMu  sync.RWMutex
	observers    []Observer

	metrics   *dispatcherMetrics
	closed    atomic.Bool
	closeOnce sync.Once
}

// dispatcherMetrics is written by the owning goroutine and producers and
// read from anywhere through Stats.
type dispatcherMetrics struct {
	triggered      atomic.Uint64
	queued         atomic.Uint64
	ingested       atomic.Uint64
	ingestRejected atomic.Uint64
	dispatched     atomic.Uint64
	aborted        atomic.Uint64
	requeued       atomic.Uint64
	unhandled      atomic.Uint64
	ticks          atomic.Uint64
	tickNs         atomic.Int64
	pendingLen     atomic.Int64
	lastCarried    atomic.Bool
}

// Types returns the event type registry bound to this dispatcher.
func (d *Dispatcher) Types() *TypeRegistry { return d.types }

// Clock returns the configured time source.
func (d *Dispatcher) Clock() xclock.Clock { return d.clock }

// Logger returns the configured logger.
func (d *Dispatcher) Logger() *xlog.Logger { return d.logger }

// Config returns the configuration the dispatcher was built with.
func (d *Dispatcher) Config() Config { return d.cfg }

// AddListener binds l to t after the already registered listeners. It returns
// false if the same listener value is already bound to t.
func (d *Dispatcher) AddListener(t EventType, l Listener) (ListenerID, bool) {
	if l == nil {
		d.logger.Warn().Msg("xevent: attempting to register a nil listener")
		return 0, false
	}
	id, ok := d.listeners.add(t, l, Chain(l, d.middlewares...))
	if !ok {
		d.logger.With(xlog.Str("event_type", t.String())).
			Warn().Msg("xevent: attempting to double-register a listener")
	}
	return id, ok
}

// RemoveListener detaches the listener registered as id for t. It is safe to
// call from inside a listener, including the one being removed.
func (d *Dispatcher) RemoveListener(t EventType, id ListenerID) bool {
	return d.listeners.remove(t, id)
}

// HasListeners reports whether any listener is bound to t.
func (d *Dispatcher) HasListeners(t EventType) bool { return d.listeners.has(t) }

// ListenersFor returns the ids bound to t in dispatch order.
func (d *Dispatcher) ListenersFor(t EventType) []ListenerID {
	entries := d.listeners.listenersFor(t)
	ids := make([]ListenerID, len(entries))
	for i, e := range entries {
		ids[i] = e.id
	}
	return ids
}

// ListenerCount returns the number of listeners bound to t.
func (d *Dispatcher) ListenerCount(t EventType) int { return len(d.listeners.listenersFor(t)) }

// TriggerEvent calls every listener of e's type now, in registration order,
// bypassing both queues. It returns false when nobody listens.
func (d *Dispatcher) TriggerEvent(e Event) bool {
	if e == nil {
		d.logger.Error().Err(ErrNilEvent).Msg("xevent: invalid event in TriggerEvent")
		return false
	}
	entries := d.listeners.listenersFor(e.Type())
	if len(entries) == 0 {
		return false
	}
	d.metrics.triggered.Add(1)
	d.dispatch(e, entries)
	d.notify(Activity{Kind: ActivityTriggered, EventType: e.Type(), EventName: e.Name()})
	return true
}

// QueueEvent appends e to the pending sequence for the next Update. Queueing
// an event nobody listens to is reported as failure.
func (d *Dispatcher) QueueEvent(e Event) bool {
	if e == nil {
		d.logger.Error().Err(ErrNilEvent).Msg("xevent: invalid event in QueueEvent")
		return false
	}
	if !d.listeners.has(e.Type()) {
		d.metrics.unhandled.Add(1)
		d.logger.With(
			xlog.Str("event_type", e.Type().String()),
			xlog.Str("event_name", e.Name()),
		).Error().Msg("xevent: skipping event since there are no listeners registered to receive it")
		d.notify(Activity{Kind: ActivityUnhandled, EventType: e.Type(), EventName: e.Name()})
		return false
	}
	pending := d.queues.Pending()
	pending.PushBack(e)
	d.metrics.queued.Add(1)
	d.metrics.pendingLen.Store(int64(pending.Len()))
	d.notify(Activity{Kind: ActivityQueued, EventType: e.Type(), EventName: e.Name()})
	return true
}

// ThreadSafeQueueEvent hands e to the ingest queue. It may be called from any
// goroutine. Listener existence is checked when the event is merged at the
// start of the next Update, not here.
func (d *Dispatcher) ThreadSafeQueueEvent(e Event) error {
	if e == nil {
		return ErrNilEvent
	}
	if d.closed.Load() {
		return ErrDispatcherClosed
	}
	if err := d.ingest.Push(e); err != nil {
		d.metrics.ingestRejected.Add(1)
		d.notify(Activity{Kind: ActivityRejected, EventType: e.Type(), EventName: e.Name(), Err: err})
		return err
	}
	d.metrics.ingested.Add(1)
	return nil
}

// AbortEvent removes the first, or with all every, event of type t from the
// active sequence before it is dispatched. Only events already swapped in for
// the current Update are affected, so it is meant to be called by listeners.
func (d *Dispatcher) AbortEvent(t EventType, all bool) bool {
	n := d.queues.Abort(t, all)
	if n == 0 {
		return false
	}
	d.metrics.aborted.Add(uint64(n))
	d.notify(Activity{Kind: ActivityAborted, EventType: t, Count: n})
	return true
}

// Update runs one tick: it merges the ingest queue into pending, swaps the
// queues and dispatches the active sequence until it is empty or budget has
// elapsed. Leftovers go, in order, to the front of the new pending sequence.
// It returns true if the active sequence was fully drained.
//
// A budget of Unlimited (or any non-positive value) disables the time check.
// At least one event is dispatched per tick when any are active. Listener
// panics are not recovered; the leftovers are still carried over before the
// panic continues up the stack.
func (d *Dispatcher) Update(budget time.Duration) bool {
	if d.updating {
		d.logger.Warn().Msg("xevent: nested Update ignored")
		return false
	}
	d.updating = true
	defer func() { d.updating = false }()

	start := d.clock.Now()
	limited := budget > 0
	deadline := start.Add(budget)

	merged := d.ingest.Drain(func(e Event) { d.QueueEvent(e) })
	if merged > 0 {
		d.notify(Activity{Kind: ActivityIngested, Count: merged})
	}
	if merged > 0 && limited && !d.clock.Now().Before(deadline) {
		d.logger.With(xlog.Str("count", strconv.Itoa(merged))).
			Warn().Msg("xevent: a concurrent producer is flooding the dispatcher")
		d.notify(Activity{Kind: ActivityFlood, Count: merged, Duration: d.clock.Now().Sub(start)})
	}

	d.queues.Swap()
	active := d.queues.Active()
	defer d.finishTick(start)

	for active.Len() > 0 {
		e := active.PopFront()
		if d.dispatch(e, d.listeners.listenersFor(e.Type())) > 0 {
			d.metrics.dispatched.Add(1)
			d.notify(Activity{Kind: ActivityDispatched, EventType: e.Type(), EventName: e.Name()})
		} else {
			d.metrics.unhandled.Add(1)
		}
		if limited && !d.clock.Now().Before(deadline) {
			break
		}
	}
	return active.Len() == 0
}

// finishTick carries leftovers over and records tick telemetry.
func (d *Dispatcher) finishTick(start time.Time) {
	n := d.queues.CarryOver()
	d.metrics.lastCarried.Store(n > 0)
	if n > 0 {
		d.metrics.requeued.Add(uint64(n))
		d.notify(Activity{Kind: ActivityRequeued, Count: n})
	}
	d.metrics.pendingLen.Store(int64(d.queues.Pending().Len()))
	d.metrics.ticks.Add(1)

	dur := d.clock.Now().Sub(start)
	d.recordTickTime(dur.Nanoseconds())
	d.notify(Activity{Kind: ActivityTick, Duration: dur, Count: n})
}

// dispatch invokes the snapshot entries in order, skipping any removed since
// the snapshot was taken. Returns the number of listeners called.
func (d *Dispatcher) dispatch(e Event, entries []*listenerEntry) int {
	called := 0
	for _, en := range entries {
		if en.removed {
			continue
		}
		en.call.HandleEvent(e)
		called++
	}
	return called
}

// Run drives Update every interval with budget until ctx is done. The calling
// goroutine becomes the owning goroutine. A zero interval or budget falls back
// to Config; pass Unlimited to disable the budget.
func (d *Dispatcher) Run(ctx context.Context, interval, budget time.Duration) error {
	if d.closed.Load() {
		return ErrDispatcherClosed
	}
	if interval <= 0 {
		interval = d.cfg.TickInterval
	}
	if budget == 0 {
		budget = d.cfg.TickBudget
	}

	ticker := d.clock.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C():
			if d.closed.Load() {
				return ErrDispatcherClosed
			}
			d.Update(budget)
		}
	}
}

// Close stops observer delivery and refuses further cross-goroutine submissions.
// Idempotent.
func (d *Dispatcher) Close() error {
	var closeErr error
	d.closeOnce.Do(func() {
		d.closed.Store(true)
		if d.observerPool != nil {
			if err := d.observerPool.Close(5 * time.Second); err != nil {
				d.logger.Warn().Err(err).Msg("xevent: observer pool shutdown timeout")
				closeErr = err
			}
		}
	})
	return closeErr
}

// Stats returns current dispatcher counters. Safe from any goroutine.
func (d *Dispatcher) Stats() Stats {
	s := Stats{
		Triggered:      d.metrics.triggered.Load(),
		Queued:         d.metrics.queued.Load(),
		Ingested:       d.metrics.ingested.Load(),
		IngestRejected: d.metrics.ingestRejected.Load(),
		Dispatched:     d.metrics.dispatched.Load(),
		Aborted:        d.metrics.aborted.Load(),
		Requeued:       d.metrics.requeued.Load(),
		Unhandled:      d.metrics.unhandled.Load(),
		Ticks:          d.metrics.ticks.Load(),
		IngestBacklog:  d.ingest.Len(),
		PendingLen:     int(d.metrics.pendingLen.Load()),
		AvgTickMs:      float64(d.metrics.tickNs.Load()) / 1e6,
	}
	if d.observerPool != nil {
		ps := d.observerPool.Stats()
		s.ActivityDrops = ps.Dropped
		s.ObserverPanics = ps.Panicked
	}
	return s
}

// Health reports degraded while the ingest backlog is above the flood
// threshold or the last tick had to carry events over.
func (d *Dispatcher) Health() HealthStatus {
	now := d.clock.Now()
	if d.closed.Load() {
		return HealthStatus{Status: "unhealthy", Timestamp: now, Message: "dispatcher is closed"}
	}

	stats := d.Stats()
	hs := HealthStatus{Status: "healthy", Stats: stats, Timestamp: now}
	switch {
	case d.cfg.FloodWarnThreshold > 0 && stats.IngestBacklog > d.cfg.FloodWarnThreshold:
		hs.Status = "degraded"
		hs.Message = "ingest backlog above flood threshold"
	case d.metrics.lastCarried.Load():
		hs.Status = "degraded"
		hs.Message = "last tick exceeded its budget"
	}
	return hs
}

// AddObserver registers an observer (thread-safe).
func (d *Dispatcher) AddObserver(obs Observer) {
	if obs == nil {
		return
	}
	d.observersMu.Lock()
	d.observers = append(d.observers, obs)
	d.observersMu.Unlock()
}

// RemoveObserver removes a previously added observer. Observers of
// non-comparable types (such as ObserverFunc) cannot be removed.
func (d *Dispatcher) RemoveObserver(obs Observer) {
	if obs == nil {
		return
	}
	d.observersMu.Lock()
	defer d.observersMu.Unlock()

	for i, o := range d.observers {
		if sameObserver(o, obs) {
			d.observers = append(d.observers[:i:i], d.observers[i+1:]...)
			break
		}
	}
}

func (d *Dispatcher) notify(a Activity) {
	d.observersMu.RLock()
	if len(d.observers) == 0 {
		d.observersMu.RUnlock()
		return
	}
	observers := make([]Observer, len(d.observers))
	copy(observers, d.observers)
	d.observersMu.RUnlock()

	if d.observerPool != nil {
		d.observerPool.Notify(a, observers)
		return
	}
	for _, o := range observers {
		o.OnActivity(a)
	}
}

// recordTickTime keeps an exponential moving average of tick durations.
func (d *Dispatcher) recordTickTime(ns int64) {
	const alpha = 0.2
	current := d.metrics.tickNs.Load()
	if current == 0 {
		d.metrics.tickNs.Store(ns)
		return
	}
	d.metrics.tickNs.Store(int64(float64(ns)*alpha + float64(current)*(1-alpha)))
}

func sameObserver(a, b Observer) bool {
	ta, tb := reflect.TypeOf(a), reflect.TypeOf(b)
	if ta != tb || !ta.Comparable() {
		return false
	}
	return a == b
}
