package asyncio

import (
	"errors"
	"fmt"
)

// Sentinel errors returned by the runtime. All are safe to match with
// [errors.Is].
var (
	// ErrTimeout is returned by [WaitFor] when its deadline elapses before
	// the awaited task completes.
	ErrTimeout = errors.New("asyncio: operation timed out")

	// ErrInvalidFuture is returned by [Await] when the task passed to it is
	// nil or already has a parent.
	ErrInvalidFuture = errors.New("asyncio: invalid future")

	// ErrNoResult is returned when a task's result slot is read before it
	// has settled.
	ErrNoResult = errors.New("asyncio: result not available")

	// ErrCancelled is observed by a task constructed with a context.Context
	// (see [NewTaskWithContext]) once that context is done.
	ErrCancelled = errors.New("asyncio: task cancelled")

	// ErrLoopClosed names the condition of a loop that has finished
	// running. No function in this package returns it.
	ErrLoopClosed = errors.New("asyncio: loop closed")

	// ErrUnsupportedPlatform is returned by every selector operation on
	// platforms without a native readiness reactor.
	ErrUnsupportedPlatform = errors.New("asyncio: unsupported platform")

	ErrSelectorClosed     = errors.New("asyncio: selector closed")
	ErrFDOutOfRange       = errors.New("asyncio: fd out of range")
	ErrFDAlreadyRegistered = errors.New("asyncio: fd already registered")
	ErrFDNotRegistered    = errors.New("asyncio: fd not registered")
)

// SystemError wraps a syscall failure surfaced by the selector or a Stream,
// naming the operation that failed.
type SystemError struct {
	Op  string
	Err error
}

func (e *SystemError) Error() string {
	return fmt.Sprintf("asyncio: %s: %v", e.Op, e.Err)
}

func (e *SystemError) Unwrap() error {
	return e.Err
}

func newSystemError(op string, err error) error {
	if err == nil {
		return nil
	}
	return &SystemError{Op: op, Err: err}
}

// PanicError wraps a value recovered from a panicking task body. The task's
// Promise is rejected with this error rather than the panic propagating
// across the goroutine boundary.
type PanicError struct {
	Value any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("asyncio: task panicked: %v", e.Value)
}

func (e *PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}
