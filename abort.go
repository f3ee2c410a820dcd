//go:build linux || darwin

package asyncio

import (
	"sync"
	"time"
)

// AbortSignal communicates cancellation of an in-flight operation, in the
// style of the DOM's AbortController/AbortSignal pair. It is independent of
// [Task] cancellation: a signal can be shared across several tasks, and
// [NewTaskWithContext] and [WaitAbort] are the bridges from a signal (or a
// standard context.Context) into a task's suspension points.
type AbortSignal struct {
	mu       sync.RWMutex
	aborted  bool
	reason   any
	handlers []func(reason any)
}

func newAbortSignal() *AbortSignal {
	return &AbortSignal{}
}

// Aborted reports whether the signal has fired.
func (s *AbortSignal) Aborted() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.aborted
}

// Reason returns the abort reason, or nil if not aborted.
func (s *AbortSignal) Reason() any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.reason
}

// OnAbort registers a callback invoked when the signal aborts. If already
// aborted, it is invoked immediately with the current reason.
func (s *AbortSignal) OnAbort(handler func(reason any)) {
	if handler == nil {
		return
	}
	s.mu.Lock()
	if s.aborted {
		reason := s.reason
		s.mu.Unlock()
		handler(reason)
		return
	}
	s.handlers = append(s.handlers, handler)
	s.mu.Unlock()
}

// ThrowIfAborted returns an *AbortError if the signal has fired.
func (s *AbortSignal) ThrowIfAborted() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.aborted {
		return &AbortError{Reason: s.reason}
	}
	return nil
}

func (s *AbortSignal) abort(reason any) {
	s.mu.Lock()
	if s.aborted {
		s.mu.Unlock()
		return
	}
	s.aborted = true
	s.reason = reason
	handlers := make([]func(reason any), len(s.handlers))
	copy(handlers, s.handlers)
	s.mu.Unlock()

	for _, handler := range handlers {
		handler(reason)
	}
}

// AbortController owns a single AbortSignal and can fire it.
type AbortController struct {
	signal *AbortSignal
}

// NewAbortController constructs a controller with a fresh, unfired signal.
func NewAbortController() *AbortController {
	return &AbortController{signal: newAbortSignal()}
}

// Signal returns the controller's signal.
func (c *AbortController) Signal() *AbortSignal { return c.signal }

// Abort fires the controller's signal. A nil reason is replaced with a
// default *AbortError. Calling Abort more than once has no further effect.
func (c *AbortController) Abort(reason any) {
	if reason == nil {
		reason = &AbortError{Reason: "aborted"}
	}
	c.signal.abort(reason)
}

// AbortError is the reason attached to a signal fired without an explicit
// cause, and the type returned by [AbortSignal.ThrowIfAborted].
type AbortError struct {
	Reason any
}

func (e *AbortError) Error() string {
	switch r := e.Reason.(type) {
	case nil:
		return "asyncio: operation aborted"
	case string:
		return "asyncio: aborted: " + r
	case error:
		return "asyncio: aborted: " + r.Error()
	default:
		return "asyncio: operation aborted"
	}
}

func (e *AbortError) Is(target error) bool {
	_, ok := target.(*AbortError)
	return ok
}

func (e *AbortError) Unwrap() error {
	if err, ok := e.Reason.(error); ok {
		return err
	}
	return nil
}

// abortTimeoutHandle is the Runner registered with a loop's timer heap by
// AbortTimeout; it holds no task state of its own, only enough to fire the
// controller once.
type abortTimeoutHandle struct {
	baseHandle
	controller *AbortController
}

func (h *abortTimeoutHandle) run() {
	h.controller.Abort(&AbortError{Reason: "timeout"})
}

func (h *abortTimeoutHandle) cancelled() {}

// AbortTimeout returns a controller whose signal fires on its own once d
// elapses on loop. Aborting it manually before then cancels the pending
// timer's effect (the timer still runs, but abort is already a no-op by
// then).
func AbortTimeout(loop *Loop, d time.Duration) *AbortController {
	controller := NewAbortController()
	loop.CallLater(d, &abortTimeoutHandle{baseHandle: newBaseHandle(), controller: controller})
	return controller
}

// AbortAny returns a signal that fires as soon as any of signals does, with
// that signal's reason. A nil or empty input never fires.
func AbortAny(signals []*AbortSignal) *AbortSignal {
	composite := newAbortSignal()
	if len(signals) == 0 {
		return composite
	}

	for _, sig := range signals {
		if sig != nil && sig.Aborted() {
			composite.abort(sig.Reason())
			return composite
		}
	}

	var once sync.Once
	for _, sig := range signals {
		if sig == nil {
			continue
		}
		sig.OnAbort(func(reason any) {
			once.Do(func() { composite.abort(reason) })
		})
	}
	return composite
}

// WaitAbort suspends the calling task until signal fires, returning the
// *AbortError it carried. Like the rest of this package, it assumes signal
// is aborted from the same goroutine that drives ctx's loop; aborting from
// another goroutine races with the loop's own state.
func WaitAbort(ctx *TaskContext, signal *AbortSignal) error {
	if err := signal.ThrowIfAborted(); err != nil {
		return err
	}

	self := ctx.s.selfRunner()
	loop := ctx.Loop()
	fired := make(chan struct{}, 1)
	signal.OnAbort(func(any) {
		select {
		case fired <- struct{}{}:
			loop.CallSoon(self)
		default:
		}
	})

	for signal.ThrowIfAborted() == nil {
		if cancel := ctx.s.suspend(); cancel {
			return ErrCancelled
		}
	}
	return signal.ThrowIfAborted()
}
