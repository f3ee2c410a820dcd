package asyncio

import "context"

// NewTaskWithContext builds a task bound to loop whose Cancel fires
// automatically when stdctx is done. The watcher goroutine that observes
// stdctx runs outside the loop's single goroutine, so it reaches the task
// only via [Loop.CallSoonThreadsafe]; calling t.Cancel directly from there
// would race with the loop. Cancel can still be called directly from task
// bodies as usual, and whichever of {context done, direct Cancel} happens
// first wins.
func NewTaskWithContext[R any](loop *Loop, stdctx context.Context, body func(*TaskContext) (R, error)) *Task[R] {
	t := NewTask(body)
	t.loop = loop
	if stdctx.Done() == nil {
		return t
	}

	go func() {
		select {
		case <-stdctx.Done():
			loop.CallSoonThreadsafe(func() { t.Cancel() })
		case <-t.ctxDone():
		}
	}()
	return t
}

// ctxDone is closed once the task settles, so the watcher goroutine started
// by NewTaskWithContext above does not outlive the task it is watching.
func (t *Task[R]) ctxDone() <-chan struct{} {
	t.mu.Lock()
	if t.doneCh == nil {
		t.doneCh = make(chan struct{})
		if t.prom.settled() {
			close(t.doneCh)
		}
	}
	ch := t.doneCh
	t.mu.Unlock()
	return ch
}
