//go:build linux || darwin

package asyncio

import (
	"errors"
	"testing"
	"time"
)

func TestAbortControllerFiresHandlers(t *testing.T) {
	controller := NewAbortController()
	var got any
	controller.Signal().OnAbort(func(reason any) { got = reason })

	controller.Abort("shutting down")

	if got != "shutting down" {
		t.Errorf("handler reason = %v, want %q", got, "shutting down")
	}
	if !controller.Signal().Aborted() {
		t.Error("Aborted() = false after Abort()")
	}
}

func TestAbortControllerSecondAbortIsNoOp(t *testing.T) {
	controller := NewAbortController()
	controller.Abort("first")
	controller.Abort("second")

	if controller.Signal().Reason() != "first" {
		t.Errorf("Reason() = %v, want %q", controller.Signal().Reason(), "first")
	}
}

func TestThrowIfAbortedDefaultReason(t *testing.T) {
	controller := NewAbortController()
	controller.Abort(nil)

	err := controller.Signal().ThrowIfAborted()
	var abortErr *AbortError
	if !errors.As(err, &abortErr) {
		t.Fatalf("ThrowIfAborted() = %v, want *AbortError", err)
	}
}

func TestAbortAnyFiresOnFirst(t *testing.T) {
	a := NewAbortController()
	b := NewAbortController()
	combined := AbortAny([]*AbortSignal{a.Signal(), b.Signal()})

	if combined.Aborted() {
		t.Fatal("AbortAny() result aborted before either source fired")
	}
	b.Abort("b failed")
	if !combined.Aborted() {
		t.Fatal("AbortAny() result did not fire after a source aborted")
	}
	if combined.Reason() != "b failed" {
		t.Errorf("Reason() = %v, want %q", combined.Reason(), "b failed")
	}
}

func TestWaitAbortUnblocksOnAbort(t *testing.T) {
	_, err := Run(NewTask(func(ctx *TaskContext) (struct{}, error) {
		controller := AbortTimeout(ctx.Loop(), 5*time.Millisecond)
		return struct{}{}, WaitAbort(ctx, controller.Signal())
	}))
	var abortErr *AbortError
	if !errors.As(err, &abortErr) {
		t.Fatalf("Run() error = %v, want *AbortError", err)
	}
}

func TestWaitAbortReturnsImmediatelyIfAlreadyAborted(t *testing.T) {
	_, err := Run(NewTask(func(ctx *TaskContext) (struct{}, error) {
		controller := NewAbortController()
		controller.Abort("already gone")
		return struct{}{}, WaitAbort(ctx, controller.Signal())
	}))
	var abortErr *AbortError
	if !errors.As(err, &abortErr) {
		t.Fatalf("Run() error = %v, want *AbortError", err)
	}
	if abortErr.Reason != "already gone" {
		t.Errorf("Reason = %v, want %q", abortErr.Reason, "already gone")
	}
}
