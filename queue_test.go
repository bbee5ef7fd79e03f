package xevent

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func queueSeqs(q *eventQueue) []int {
	out := make([]int, 0, q.Len())
	for i := 0; i < q.Len(); i++ {
		out = append(out, q.At(i).(*testEvent).Seq)
	}
	return out
}

func TestRemoveIf(t *testing.T) {
	var q eventQueue
	types := []EventType{evtAlpha, evtBeta, evtAlpha, evtBeta, evtAlpha}
	for i, typ := range types {
		q.PushBack(newTestEvent(typ, i))
	}
	isBeta := func(e Event) bool { return e.Type() == evtBeta }

	assert.Equal(t, 1, removeIf(&q, isBeta, false))
	assert.Equal(t, []int{0, 2, 3, 4}, queueSeqs(&q))

	assert.Equal(t, 1, removeIf(&q, isBeta, true))
	assert.Equal(t, []int{0, 2, 4}, queueSeqs(&q))

	assert.Equal(t, 0, removeIf(&q, isBeta, true))
}

func TestRemoveIf_AdjacentMatches(t *testing.T) {
	var q eventQueue
	for i := 0; i < 6; i++ {
		q.PushBack(newTestEvent(evtAlpha, i))
	}
	assert.Equal(t, 6, removeIf(&q, func(Event) bool { return true }, true))
	assert.Equal(t, 0, q.Len())
}

func TestDeferredQueues_SwapAndCarryOver(t *testing.T) {
	var dq deferredQueues
	for i := 1; i <= 4; i++ {
		dq.Pending().PushBack(newTestEvent(evtAlpha, i))
	}

	dq.Swap()
	assert.Equal(t, 0, dq.Pending().Len())
	assert.Equal(t, 4, dq.Active().Len())

	_ = dq.Active().PopFront()
	dq.Pending().PushBack(newTestEvent(evtAlpha, 5))

	assert.Equal(t, 3, dq.CarryOver())
	assert.Equal(t, 0, dq.Active().Len())
	assert.Equal(t, []int{2, 3, 4, 5}, queueSeqs(dq.Pending()))
}

func TestDeferredQueues_AbortActiveOnly(t *testing.T) {
	var dq deferredQueues
	dq.Pending().PushBack(newTestEvent(evtBeta, 1))
	dq.Swap()
	dq.Pending().PushBack(newTestEvent(evtBeta, 2))

	assert.Equal(t, 1, dq.Abort(evtBeta, true))
	assert.Equal(t, 0, dq.Active().Len())
	assert.Equal(t, []int{2}, queueSeqs(dq.Pending()))
}
