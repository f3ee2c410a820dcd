package asyncio

import "time"

// Sleep returns a task that suspends for at least d before completing.
// Awaiting it is the usual way a task yields the loop for a fixed delay;
// the underlying goroutine is parked the entire time, so d need not be
// short.
func Sleep(loop *Loop, d time.Duration) *Task[struct{}] {
	return newImmediateTask(loop, func(ctx *TaskContext) (struct{}, error) {
		if d > 0 {
			ctx.Loop().CallLater(d, ctx.s.selfRunner())
		} else {
			// Still yield to the next tick rather than settling
			// synchronously, so a zero-delay Sleep behaves like any other
			// suspension point.
			ctx.Loop().CallSoon(ctx.s.selfRunner())
		}
		if cancel := ctx.s.suspend(); cancel {
			return struct{}{}, ErrCancelled
		}
		return struct{}{}, nil
	})
}

// Sleep suspends the calling task for at least d.
func (c *TaskContext) Sleep(d time.Duration) error {
	_, err := Await(c, Sleep(c.Loop(), d))
	return err
}
