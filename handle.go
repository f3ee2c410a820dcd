package asyncio

import "sync/atomic"

// HandleID uniquely identifies a [Runner] for the lifetime of a process. It
// is the key used by the loop's cancel set.
type HandleID uint64

var handleIDCounter atomic.Uint64

func nextHandleID() HandleID {
	return HandleID(handleIDCounter.Add(1))
}

// HandleState describes where a handle sits relative to the loop's
// scheduling structures.
type HandleState int32

const (
	// StateUnscheduled means the handle is referenced by no loop structure.
	StateUnscheduled HandleState = iota
	// StateScheduled means the handle is in the ready queue or timer heap.
	StateScheduled
	// StateSuspend means the handle is parked awaiting an I/O event or a
	// child task's completion.
	StateSuspend
)

// Runner is anything the loop can invoke from the ready queue or timer heap.
type Runner interface {
	// ID returns the handle's identity, used for cancellation.
	ID() HandleID
	// run is invoked by the loop on the loop goroutine.
	run()
}

// cancellable is implemented by handles whose parked goroutine must be woken
// (rather than simply dropped) when the loop discards a cancelled entry, so
// that goroutine can unwind instead of leaking.
type cancellable interface {
	cancelled()
}

// handleInfo is the (id, Runner) pair stored in the ready queue and timer
// heap. Carrying the id separately from the Runner lets the loop recognize a
// cancelled entry even though Go never reclaims the Runner out from under a
// live reference.
type handleInfo struct {
	id HandleID
	r  Runner
}

// baseHandle is embedded by every Runner implementation to provide identity
// and state tracking.
type baseHandle struct {
	id    HandleID
	state atomic.Int32
}

func newBaseHandle() baseHandle {
	return baseHandle{id: nextHandleID()}
}

func (h *baseHandle) ID() HandleID { return h.id }

// base lets loop internals recover the embedded baseHandle from any Runner
// without widening the Runner interface itself.
func (h *baseHandle) base() *baseHandle { return h }

func (h *baseHandle) getState() HandleState {
	return HandleState(h.state.Load())
}

func (h *baseHandle) setState(s HandleState) {
	h.state.Store(int32(s))
}

// trySetScheduled transitions any non-Scheduled state to Scheduled and
// reports whether it won the race, which is what makes CallSoon idempotent
// per-handle.
func (h *baseHandle) trySetScheduled() bool {
	for {
		cur := HandleState(h.state.Load())
		if cur == StateScheduled {
			return false
		}
		if h.state.CompareAndSwap(int32(cur), int32(StateScheduled)) {
			return true
		}
	}
}
