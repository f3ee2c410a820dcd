package asyncio

import (
	"container/heap"
	"runtime"
	"sync"
	"sync/atomic"
	"time"
)

// maxPollTimeout caps how long a single Select call may block, so a loop
// whose only remaining work is a far-future timer still wakes periodically
// rather than risking an unbounded block if a wake-up write is ever missed.
const maxPollTimeout = 10 * time.Second

var loopIDCounter atomic.Uint64

// Loop is the single-threaded cooperative scheduler: a ready queue, a timer
// min-heap, a cancel set and a selector. Exactly one goroutine — the one
// that calls [Run] — ever calls [Loop.tick]; everything else that touches
// loop state does so through that goroutine by way of a scheduled [Runner].
type Loop struct {
	id uint64

	logger Logger
	clock  func() time.Time

	ready   []handleInfo
	timers  timerHeap
	cancel  map[HandleID]struct{}
	sel     selector

	userRegistrations int

	// wakeReadFD/wakeWriteFD back CallSoonThreadsafe: a goroutine outside
	// the loop can only reach loop state by queuing a func and prodding
	// this fd, never by touching ready/timers/cancel directly.
	wakeReadFD, wakeWriteFD int
	pendingMu               sync.Mutex
	pending                 []func()

	loopGoroutine atomic.Uint64
	running       bool
}

// NewLoop constructs a Loop and initializes its selector. Callers normally
// do not need this directly — [Run] constructs one for its main task — but
// it is exposed for tests and for [Server]/[Stream] callers that need to
// register file descriptors before the main task starts.
func NewLoop(opts ...Option) (*Loop, error) {
	cfg := resolveOptions(opts)

	sel := newSelector()
	if err := sel.Init(); err != nil {
		return nil, newSystemError("selector init", err)
	}

	l := &Loop{
		id:     loopIDCounter.Add(1),
		logger: cfg.logger,
		clock:  cfg.clock,
		timers: newTimerHeap(),
		cancel: make(map[HandleID]struct{}),
		sel:    sel,
	}

	rfd, wfd, err := createWakeFd(0, EFD_NONBLOCK|EFD_CLOEXEC)
	if err != nil {
		_ = sel.Close()
		return nil, newSystemError("wake fd", err)
	}
	l.wakeReadFD, l.wakeWriteFD = rfd, wfd
	if err := sel.Register(rfd, EventRead, l.drainWake); err != nil {
		_ = closeFD(rfd)
		if wfd != rfd {
			_ = closeFD(wfd)
		}
		_ = sel.Close()
		return nil, newSystemError("wake fd register", err)
	}

	return l, nil
}

// CallSoonThreadsafe queues fn to run on the loop goroutine and wakes the
// loop if it is blocked in Select. It is the only safe way to reach into a
// running loop from outside the goroutine driving it — every other method
// on Loop and Task assumes single-threaded, cooperative access.
func (l *Loop) CallSoonThreadsafe(fn func()) {
	l.pendingMu.Lock()
	l.pending = append(l.pending, fn)
	l.pendingMu.Unlock()

	var buf [8]byte
	buf[7] = 1
	_, _ = writeFD(l.wakeWriteFD, buf[:])
}

func (l *Loop) drainWake(IOEvents) {
	var buf [64]byte
	for {
		n, err := readFD(l.wakeReadFD, buf[:])
		if n <= 0 || err != nil {
			break
		}
	}

	l.pendingMu.Lock()
	fns := l.pending
	l.pending = nil
	l.pendingMu.Unlock()

	for _, fn := range fns {
		fn()
	}
}

func (l *Loop) Now() time.Time { return l.clock() }

// CallSoon schedules h to run on a future tick's ready-queue drain. It is a
// no-op, returning false, if h is already Scheduled — a handle appears at
// most once in the ready queue at any time.
func (l *Loop) CallSoon(h Runner) bool {
	bh := handleBase(h)
	if !bh.trySetScheduled() {
		return false
	}
	l.ready = append(l.ready, handleInfo{id: h.ID(), r: h})
	return true
}

// CallLater schedules h to run once its deadline elapses.
func (l *Loop) CallLater(delay time.Duration, h Runner) {
	bh := handleBase(h)
	bh.setState(StateScheduled)
	heap.Push(&l.timers, timerEntry{deadline: l.Now().Add(delay), info: handleInfo{id: h.ID(), r: h}})
}

// CancelHandle cancels h. If h is currently sitting in the ready queue or
// timer heap it is removed immediately; otherwise its id is marked for lazy
// cancellation, skipped the next time the loop encounters it (this covers a
// handle mid-drain in an already-captured ready-queue snapshot, which active
// removal cannot reach).
func (l *Loop) CancelHandle(h Runner) {
	bh := handleBase(h)
	bh.setState(StateUnscheduled)
	id := h.ID()
	if l.discardHandle(id) {
		return
	}
	l.cancel[id] = struct{}{}
}

// discardHandle removes id from the ready queue or timer heap if present,
// reporting whether it found it there.
func (l *Loop) discardHandle(id HandleID) bool {
	if l.timers.removeByID(id) {
		return true
	}
	for i, hi := range l.ready {
		if hi.id == id {
			l.ready = append(l.ready[:i], l.ready[i+1:]...)
			return true
		}
	}
	return false
}

func (l *Loop) isCancelled(id HandleID) bool {
	_, ok := l.cancel[id]
	return ok
}

// RegisterFD, UnregisterFD and ModifyFD pass through to the loop's selector;
// [TaskContext.WaitIOEvent] and [Stream] are the normal callers. Counted
// separately from the selector's own Registered(), which also carries the
// loop's internal wake-fd registration and so is never zero.
func (l *Loop) RegisterFD(fd int, events IOEvents, cb func(IOEvents)) error {
	if err := l.sel.Register(fd, events, cb); err != nil {
		return err
	}
	l.userRegistrations++
	return nil
}

func (l *Loop) UnregisterFD(fd int) error {
	if err := l.sel.Unregister(fd); err != nil {
		return err
	}
	l.userRegistrations--
	return nil
}

func (l *Loop) ModifyFD(fd int, events IOEvents) error {
	return l.sel.Modify(fd, events)
}

// RunUntilComplete ticks the loop until the ready queue, timer heap and
// selector registrations are all empty.
func (l *Loop) RunUntilComplete() error {
	l.running = true
	l.loopGoroutine.Store(goroutineID())
	defer func() {
		l.loopGoroutine.Store(0)
		l.running = false
		_ = l.sel.Close()
		_ = closeFD(l.wakeReadFD)
		if l.wakeWriteFD != l.wakeReadFD {
			_ = closeFD(l.wakeWriteFD)
		}
	}()

	for !l.isEmpty() {
		l.tick()
	}
	return nil
}

func (l *Loop) isEmpty() bool {
	return len(l.ready) == 0 && l.timers.Len() == 0 && l.userRegistrations == 0
}

// tick runs exactly one iteration of the loop:
//  1. compute a selector timeout from the ready queue and timer heap;
//  2. poll the selector, which enqueues ready handles via CallSoon;
//  3. pop and enqueue expired timers;
//  4. drain a snapshot of the ready queue, running (or, if cancelled,
//     skipping) each handle exactly once;
//  5. discard any cancelled handle now at the front of the timer heap.
//
// Step 4's snapshot is what gives a handle enqueued mid-tick FIFO ordering
// relative to the *next* tick rather than the current one.
func (l *Loop) tick() {
	timeout := l.calculateTimeout()
	n, err := l.sel.Select(timeout)
	if err != nil {
		l.logger.Log(LogEntry{Level: LevelError, Category: "selector", LoopID: l.id, Message: "select failed", Err: err})
	}
	_ = n

	l.runTimers()

	snapshot := l.ready
	l.ready = nil
	for _, hi := range snapshot {
		if l.isCancelled(hi.id) {
			delete(l.cancel, hi.id)
			if c, ok := hi.r.(cancellable); ok {
				c.cancelled()
			}
			continue
		}
		handleBase(hi.r).setState(StateUnscheduled)
		l.safeRun(hi.r)
	}

	for l.timers.Len() > 0 && l.isCancelled(l.timers.front().info.id) {
		top := heap.Pop(&l.timers).(timerEntry)
		delete(l.cancel, top.info.id)
		if c, ok := top.info.r.(cancellable); ok {
			c.cancelled()
		}
	}
}

func (l *Loop) runTimers() {
	now := l.Now()
	for l.timers.Len() > 0 && l.timers.front().deadline.Before(now) {
		top := heap.Pop(&l.timers).(timerEntry)
		if l.isCancelled(top.info.id) {
			delete(l.cancel, top.info.id)
			if c, ok := top.info.r.(cancellable); ok {
				c.cancelled()
			}
			continue
		}
		handleBase(top.info.r).setState(StateUnscheduled)
		l.ready = append(l.ready, top.info)
	}
}

// calculateTimeout returns 0 if there is ready-queue work to drain
// immediately, otherwise the time until the next timer (rounded up to at
// least 1ms for a sub-millisecond delay so the poll doesn't busy-spin), and
// otherwise blocks up to maxPollTimeout.
func (l *Loop) calculateTimeout() time.Duration {
	if len(l.ready) > 0 {
		return 0
	}
	if l.timers.Len() == 0 {
		return maxPollTimeout
	}

	delay := l.timers.front().deadline.Sub(l.Now())
	if delay < 0 {
		return 0
	}
	if delay > 0 && delay < time.Millisecond {
		return time.Millisecond
	}
	if delay > maxPollTimeout {
		return maxPollTimeout
	}
	return delay
}

func (l *Loop) safeRun(r Runner) {
	defer func() {
		if rec := recover(); rec != nil {
			l.logger.Log(LogEntry{Level: LevelError, Category: "task", LoopID: l.id, HandleID: r.ID(), Message: "recovered panic", Err: &PanicError{Value: rec}})
		}
	}()
	r.run()
}

func (l *Loop) isLoopThread() bool {
	id := l.loopGoroutine.Load()
	return id != 0 && id == goroutineID()
}

// goroutineID parses the current goroutine's id out of runtime.Stack, the
// same trick used to detect accidental cross-goroutine loop re-entry.
func goroutineID() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	var id uint64
	for i := len("goroutine "); i < n; i++ {
		if buf[i] < '0' || buf[i] > '9' {
			break
		}
		id = id*10 + uint64(buf[i]-'0')
	}
	return id
}

// handleBase extracts the embedded *baseHandle from a Runner so loop
// internals can flip its state without widening the Runner interface.
func handleBase(r Runner) *baseHandle {
	if b, ok := r.(interface{ base() *baseHandle }); ok {
		return b.base()
	}
	panic("asyncio: Runner does not embed baseHandle")
}
