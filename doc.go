// Package asyncio provides a single-threaded, cooperative asynchronous task
// runtime for Go: an event loop, a Task/Promise abstraction for suspendable
// computation, timer and I/O readiness scheduling, and combinators (Sleep,
// WaitFor, Gather, ScheduledTask) for composing tasks. A nonblocking TCP
// Stream and Server are built on top of the loop's selector.
//
// # Architecture
//
// A [Loop] owns a ready queue, a timer min-heap, a cancel set and a
// platform-specific I/O selector (epoll on Linux, kqueue on Darwin). Exactly
// one goroutine drives the loop: the one that calls [Run]. Task bodies run on
// their own goroutines but are handed off to one at a time through a
// channel handshake, so only one is ever doing work while the loop is
// ticking — there is no data race between task bodies and no locking in the
// combinators.
//
// Each tick, in order:
//  1. compute a poll timeout from the ready queue and timer heap;
//  2. poll the selector, enqueuing any now-ready handle;
//  3. pop expired timers into the ready queue;
//  4. drain a snapshot of the ready queue, running each handle once;
//  5. discard any cancelled handle now at the front of the timer heap.
//
// The loop terminates once the ready queue, timer heap and selector
// registrations are all empty.
//
// # Platform support
//
// I/O readiness is implemented using platform-native, level-triggered
// mechanisms: epoll on Linux, kqueue on Darwin. Other platforms compile a
// stub selector that returns [ErrUnsupportedPlatform]; Windows/IOCP support
// is out of scope.
//
// # Cancellation
//
// Cancelling a [Task] or [ScheduledTask] removes it from the ready queue or
// timer heap immediately if it is sitting in either — a sleeping task does
// not wait out its real deadline just because it was cancelled — and falls
// back to the loop's cancel set, skipping it the next time it is
// encountered, only when it cannot be located directly (a handle already
// captured in an in-progress ready-queue snapshot). Because a suspended Go
// goroutine cannot simply be garbage collected the way an abandoned
// coroutine frame can, a cancelled task's parked goroutine is woken with a
// cancellation signal and joined before Cancel returns, the same handoff the
// loop itself uses to resume a task normally — so cancellation never leaves
// two goroutines running at once.
//
// # Usage
//
//	result, err := asyncio.Run(asyncio.NewTask(func(ctx *asyncio.TaskContext) (int, error) {
//	    a, err := asyncio.Await(ctx, asyncio.NewTask(square(ctx, 3)))
//	    if err != nil {
//	        return 0, err
//	    }
//	    b, err := asyncio.Await(ctx, asyncio.NewTask(square(ctx, 4)))
//	    if err != nil {
//	        return 0, err
//	    }
//	    return a + b, nil
//	}))
//
// # Error types
//
//   - [ErrTimeout]: returned by [WaitFor] when its deadline elapses first.
//   - [ErrInvalidFuture]: awaiting a nil or already-parented task.
//   - [ErrNoResult]: reading a Promise that has not settled.
//   - [SystemError]: wraps a syscall failure from the selector or a Stream.
//   - [ErrCancelled]: observed by a task built with a [context.Context] once
//     that context is done.
package asyncio
