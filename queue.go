package xevent

import "github.com/gammazero/deque"

// eventQueue is one side of the deferred double buffer.
type eventQueue = deque.Deque[Event]

// removeIf deletes events matching pred from q, keeping the relative order of
// the rest. When all is false only the first match goes. Returns the number removed.
func removeIf(q *eventQueue, pred func(Event) bool, all bool) int {
	removed := 0
	for i := 0; i < q.Len(); {
		if !pred(q.At(i)) {
			i++
			continue
		}
		q.Remove(i)
		removed++
		if !all {
			break
		}
	}
	return removed
}

// deferredQueues is the double buffer behind QueueEvent and Update. New
// arrivals go to pending; Update swaps so the previous pending becomes active.
type deferredQueues struct {
	queues  [2]eventQueue
	pending int
}

func (d *deferredQueues) Pending() *eventQueue { return &d.queues[d.pending] }

func (d *deferredQueues) Active() *eventQueue { return &d.queues[1-d.pending] }

// Swap turns pending into active and hands the (drained) active buffer back
// as the new pending one.
func (d *deferredQueues) Swap() {
	d.pending = 1 - d.pending
	d.Pending().Clear()
}

// Abort removes matching events from the active sequence only.
func (d *deferredQueues) Abort(t EventType, all bool) int {
	return removeIf(d.Active(), func(e Event) bool { return e.Type() == t }, all)
}

// CarryOver moves whatever is left in active to the front of pending,
// back-to-front, so the leftovers keep their order and run before newer events.
func (d *deferredQueues) CarryOver() int {
	active, pending := d.Active(), d.Pending()
	n := 0
	for active.Len() > 0 {
		pending.PushFront(active.PopBack())
		n++
	}
	return n
}
