package asyncio

import (
	"runtime"
	"sync"
	"sync/atomic"
)

// resumeSignal is sent through a suspended task's resumeCh to wake it.
// Cancel set means the task should unwind rather than continue waiting for
// whatever event it was parked on.
type resumeSignal struct {
	cancel bool
}

// suspender is implemented by *Task[R] for every R, letting [TaskContext]
// drive suspension without itself needing a type parameter — Go forbids
// generic methods, so the context holds this type-erased interface instead.
type suspender interface {
	loopOf() *Loop
	selfRunner() Runner
	suspend() bool
}

// TaskContext is handed to every task body. It is the only way a body
// reaches the owning [Loop] and the only way it suspends.
type TaskContext struct {
	s suspender
}

// Loop returns the event loop driving this task.
func (c *TaskContext) Loop() *Loop { return c.s.loopOf() }

// Task is a suspendable computation producing a value of type R. Its body
// runs on its own goroutine, parked on an unbuffered-in-spirit (capacity-1)
// channel at every suspension point so that only one goroutine in the whole
// task tree is ever doing work while the loop drives it.
type Task[R any] struct {
	baseHandle

	loop           *Loop
	body           func(*TaskContext) (R, error)
	ctx            *TaskContext
	suspendAtStart bool

	mu     sync.Mutex
	parent Runner

	prom promise[R]

	started         atomic.Bool
	finished        atomic.Bool
	cancelRequested atomic.Bool

	resumeCh chan resumeSignal
	stepDone chan struct{}
	doneCh   chan struct{}

	creationFile string
	creationLine int
}

// closeDoneCh unblocks anything parked in ctxDone. Must be called with t.mu
// held, and only once the task has actually settled.
func (t *Task[R]) closeDoneCh() {
	if t.doneCh != nil {
		select {
		case <-t.doneCh:
		default:
			close(t.doneCh)
		}
	}
}

// NewTask constructs a Task that does not start running until it is
// scheduled, either by [Await]-ing it or via [CreateScheduledTask].
func NewTask[R any](body func(*TaskContext) (R, error)) *Task[R] {
	t := &Task[R]{
		baseHandle:     newBaseHandle(),
		body:           body,
		suspendAtStart: true,
		resumeCh:       make(chan resumeSignal, 1),
		stepDone:       make(chan struct{}, 1),
	}
	t.ctx = &TaskContext{s: t}
	_, t.creationFile, t.creationLine, _ = runtime.Caller(1)
	return t
}

// newImmediateTask constructs a Task whose goroutine is launched
// synchronously and whose construction blocks until that goroutine's first
// suspension (or immediate completion). Internal combinators (Sleep and
// Gather's per-future collectors) use this so their
// side effects (registering a timer, fanning out children) are visible to
// the constructing code before it proceeds.
func newImmediateTask[R any](loop *Loop, body func(*TaskContext) (R, error)) *Task[R] {
	t := &Task[R]{
		baseHandle: newBaseHandle(),
		loop:       loop,
		body:       body,
		resumeCh:   make(chan resumeSignal, 1),
		stepDone:   make(chan struct{}, 1),
	}
	t.ctx = &TaskContext{s: t}
	t.started.Store(true)
	go t.execute()
	<-t.stepDone
	return t
}

func (t *Task[R]) loopOf() *Loop    { return t.loop }
func (t *Task[R]) selfRunner() Runner { return t }

// suspend parks the calling goroutine (the task's own) until the loop wakes
// it via run(), or until Cancel delivers a cancellation directly. It reports
// whether the wake was a cancellation.
func (t *Task[R]) suspend() bool {
	t.setState(StateSuspend)
	t.stepDone <- struct{}{}
	sig := <-t.resumeCh
	return sig.cancel
}

// execute runs the task body to completion, then settles its promise,
// records completion, and wakes whatever parent is awaiting it.
//
// wakeParent must run before the stepDone send: stepDone is what releases
// whoever is blocked in run() (the loop, or Cancel joining a cancelled
// task's unwind) to keep going, and once that happens this goroutine is no
// longer the only one touching loop state. Waking the parent first keeps
// exactly one goroutine active at a time.
func (t *Task[R]) execute() {
	defer func() {
		if r := recover(); r != nil {
			t.prom.setFailure(&PanicError{Value: r})
		}
		t.finished.Store(true)
		t.setState(StateUnscheduled)
		t.mu.Lock()
		t.closeDoneCh()
		t.mu.Unlock()
		t.wakeParent()
		t.stepDone <- struct{}{}
	}()

	v, err := t.body(t.ctx)
	if err != nil {
		t.prom.setFailure(err)
	} else {
		t.prom.setValue(v)
	}
}

// run is the Runner implementation invoked by the loop from the ready
// queue. On first invocation it launches the body's goroutine; on later
// invocations it wakes a parked suspension. Either way it blocks until the
// goroutine suspends again or finishes.
func (t *Task[R]) run() {
	if t.finished.Load() {
		return
	}
	if !t.started.Swap(true) {
		go t.execute()
	} else {
		t.resumeCh <- resumeSignal{}
	}
	<-t.stepDone
}

// cancelled is invoked by the loop, on its own goroutine, when it discards
// this task's handle from the ready queue or timer heap because Cancel
// marked it lazily (the handle sat inside an already-captured drain
// snapshot, so Cancel's own active removal could not reach it). If the task
// never started there is no goroutine to unwind; otherwise it is parked on
// resumeCh and is woken and joined exactly as run() would do.
func (t *Task[R]) cancelled() {
	if t.finished.Load() {
		return
	}
	if !t.started.Load() {
		t.finished.Store(true)
		t.setState(StateUnscheduled)
		t.mu.Lock()
		t.closeDoneCh()
		t.mu.Unlock()
		t.wakeParent()
		return
	}
	t.resumeCh <- resumeSignal{cancel: true}
	<-t.stepDone
}

// schedule enqueues the task for its first run, binding it to loop if it
// has none yet. Once a task has started, it manages its own resumption
// (timers, selector callbacks, a parent's wakeParent) and schedule is a
// no-op — CallSoon-ing an already-running task here would race with
// whatever suspension point it is actually parked on. A task that was
// cancelled before it started is never enqueued.
func (t *Task[R]) schedule(loop *Loop) {
	if t.loop == nil {
		t.loop = loop
	}
	if t.started.Load() || t.cancelRequested.Load() {
		return
	}
	t.loop.CallSoon(t)
}

// Cancel cancels the task. If it has not started, its handle is removed
// from the loop immediately (or, failing that, marked in the cancel set for
// the loop to skip when next encountered). If it is currently suspended —
// including parked on a timer registered by something like [Sleep], which
// would otherwise sit in the timer heap until its real deadline — its
// registration is discarded and its parked goroutine is woken with a
// cancellation signal and joined before Cancel returns, the same handoff
// [Loop.tick] uses to run it normally. This keeps exactly one goroutine
// active at a time: the caller of Cancel does not resume until the
// cancelled task has fully unwound (or re-suspended on something else, if
// its own body swallows the cancellation).
func (t *Task[R]) Cancel() {
	if t.cancelRequested.Swap(true) {
		return
	}
	t.prom.setFailure(ErrCancelled)

	if !t.started.Load() {
		if t.loop != nil {
			t.loop.CancelHandle(t)
		}
		return
	}
	if t.finished.Load() || t.loop == nil {
		return
	}
	t.loop.discardHandle(t.ID())
	t.resumeCh <- resumeSignal{cancel: true}
	<-t.stepDone
}

// Valid reports whether the task has not been cancelled.
func (t *Task[R]) Valid() bool { return !t.cancelRequested.Load() }

// Done reports whether the task's result is available (a value, a failure,
// or a cancellation).
func (t *Task[R]) Done() bool { return t.prom.settled() }

func (t *Task[R]) setParentOnce(p Runner) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.parent != nil {
		return false
	}
	t.parent = p
	return true
}

func (t *Task[R]) parentRunner() Runner {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.parent
}

// frame implements the framed interface used by DumpCallstack.
func (t *Task[R]) frame() (file string, line int, id HandleID) {
	return t.creationFile, t.creationLine, t.id
}

func (t *Task[R]) wakeParent() {
	t.mu.Lock()
	p := t.parent
	t.mu.Unlock()
	if p != nil && t.loop != nil {
		t.loop.CallSoon(p)
	}
}

// Await suspends the calling task until t completes, returning its result.
// It fails with [ErrInvalidFuture] if t is nil or already has a parent —
// a task may be awaited by at most one caller.
func Await[R any](ctx *TaskContext, t *Task[R]) (R, error) {
	var zero R
	if t == nil {
		return zero, ErrInvalidFuture
	}
	if !t.setParentOnce(ctx.s.selfRunner()) {
		return zero, ErrInvalidFuture
	}
	t.schedule(ctx.s.loopOf())

	if !t.prom.settled() {
		if cancel := ctx.s.suspend(); cancel {
			// The caller was cancelled while parked here, which would
			// otherwise leave t to run to completion unobserved — possibly
			// holding a timer or fd registration open indefinitely. Cascade
			// the cancellation to t, the same way a cancelled coroutine
			// cancels whatever it was suspended on.
			t.Cancel()
			return zero, ErrCancelled
		}
	}
	return t.prom.read()
}

// awaitable lets [Gather] accept Tasks of differing result types. *Task[R]
// implements it for every R since the method itself needs no extra type
// parameter — Go's "no generic methods" restriction only bites when the
// method's own signature would need one.
type awaitable interface {
	Runner
	awaitErased(ctx *TaskContext) (any, error)
	cancelAwaitable()
}

func (t *Task[R]) awaitErased(ctx *TaskContext) (any, error) {
	v, err := Await(ctx, t)
	return v, err
}

func (t *Task[R]) cancelAwaitable() { t.Cancel() }
