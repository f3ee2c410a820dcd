package asyncio

import (
	"sync/atomic"
	"time"
)

// waitForOutcome is shared between a WaitFor task and its private timeout
// handle so exactly one of {the awaited task, the timeout} is treated as the
// winner even though both can fire in the same tick.
type waitForOutcome struct {
	decided  atomic.Bool
	timedOut atomic.Bool
}

// timeoutHandle is a bare Runner, independent of any Task, that fires once
// a WaitFor deadline elapses and wakes the waiting task. Keeping it separate
// from the waited-on task's own handle means the timer's presence in the
// heap never blocks CallSoon from waking the parent the moment the child
// task actually finishes.
type timeoutHandle struct {
	baseHandle
	outcome *waitForOutcome
	parent  Runner
	loop    *Loop
}

func (h *timeoutHandle) run() {
	if h.outcome.decided.CompareAndSwap(false, true) {
		h.outcome.timedOut.Store(true)
	}
	h.loop.CallSoon(h.parent)
}

func (h *timeoutHandle) cancelled() {}

// WaitFor awaits t, failing with [ErrTimeout] if it has not completed
// within d. On timeout, or if WaitFor's own caller is cancelled first, t is
// cancelled rather than left running.
func WaitFor[R any](t *Task[R], d time.Duration) *Task[R] {
	outcome := &waitForOutcome{}
	return NewTask(func(ctx *TaskContext) (R, error) {
		var zero R
		loop := ctx.Loop()
		self := ctx.s.selfRunner()

		th := &timeoutHandle{baseHandle: newBaseHandle(), outcome: outcome, parent: self, loop: loop}
		loop.CallLater(d, th)

		if !t.setParentOnce(self) {
			loop.CancelHandle(th)
			return zero, ErrInvalidFuture
		}
		t.schedule(loop)

		for !t.Done() && !outcome.timedOut.Load() {
			if cancel := ctx.s.suspend(); cancel {
				if outcome.decided.CompareAndSwap(false, true) {
					loop.CancelHandle(th)
				}
				t.Cancel()
				return zero, ErrCancelled
			}
		}

		if t.Done() {
			if outcome.decided.CompareAndSwap(false, true) {
				loop.CancelHandle(th)
			}
			return t.prom.read()
		}

		t.Cancel()
		return zero, ErrTimeout
	})
}
