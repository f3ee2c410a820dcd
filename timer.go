package asyncio

import (
	"container/heap"
	"time"
)

// timerEntry pairs a deadline with the handle to run when it elapses.
type timerEntry struct {
	deadline time.Time
	info     handleInfo
}

// timerHeap is a min-heap of timerEntry ordered by deadline, exercised by
// [Loop.runTimers] and [Loop.calculateTimeout]. It also tracks each entry's
// position by id, so a cancelled handle sitting anywhere in the heap — not
// just at the root — can be removed immediately instead of waiting for its
// real deadline to surface it.
type timerHeap struct {
	entries []timerEntry
	index   map[HandleID]int
}

func newTimerHeap() timerHeap {
	return timerHeap{index: make(map[HandleID]int)}
}

func (h timerHeap) Len() int           { return len(h.entries) }
func (h timerHeap) Less(i, j int) bool { return h.entries[i].deadline.Before(h.entries[j].deadline) }

func (h timerHeap) Swap(i, j int) {
	h.entries[i], h.entries[j] = h.entries[j], h.entries[i]
	h.index[h.entries[i].info.id] = i
	h.index[h.entries[j].info.id] = j
}

func (h *timerHeap) Push(x any) {
	e := x.(timerEntry)
	h.index[e.info.id] = len(h.entries)
	h.entries = append(h.entries, e)
}

func (h *timerHeap) Pop() any {
	old := h.entries
	n := len(old)
	e := old[n-1]
	h.entries = old[:n-1]
	delete(h.index, e.info.id)
	return e
}

// front returns the earliest-deadline entry. Callers must check Len first.
func (h timerHeap) front() timerEntry { return h.entries[0] }

// removeByID removes id from the heap wherever it currently sits, reporting
// whether it was found.
func (h *timerHeap) removeByID(id HandleID) bool {
	i, ok := h.index[id]
	if !ok {
		return false
	}
	heap.Remove(h, i)
	return true
}

var _ heap.Interface = (*timerHeap)(nil)
