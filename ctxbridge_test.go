//go:build linux || darwin

package asyncio

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestNewTaskWithContextCancelsOnContextDone(t *testing.T) {
	loop, err := NewLoop()
	if err != nil {
		t.Fatalf("NewLoop() error = %v", err)
	}

	stdctx, cancel := context.WithCancel(context.Background())
	started := make(chan struct{})

	task := NewTaskWithContext(loop, stdctx, func(ctx *TaskContext) (int, error) {
		close(started)
		if err := ctx.Sleep(time.Hour); err != nil {
			return 0, err
		}
		return 1, nil
	})
	task.schedule(loop)

	go func() {
		<-started
		cancel()
	}()

	if err := loop.RunUntilComplete(); err != nil {
		t.Fatalf("RunUntilComplete() error = %v", err)
	}

	_, taskErr := task.prom.read()
	if !errors.Is(taskErr, ErrCancelled) {
		t.Errorf("task result error = %v, want ErrCancelled", taskErr)
	}
}

func TestNewTaskWithContextUndoneContextNeverCancels(t *testing.T) {
	got, err := Run(NewTaskWithContext(nil, context.Background(), func(ctx *TaskContext) (int, error) {
		return 5, nil
	}))
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if got != 5 {
		t.Errorf("got %d, want 5", got)
	}
}
