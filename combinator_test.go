package asyncio

import (
	"errors"
	"testing"
	"time"
)

func TestSleepCompletes(t *testing.T) {
	start := time.Now()
	_, err := Run(NewTask(func(ctx *TaskContext) (struct{}, error) {
		return struct{}{}, ctx.Sleep(10 * time.Millisecond)
	}))
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if elapsed := time.Since(start); elapsed < 10*time.Millisecond {
		t.Errorf("Sleep returned after %v, want >= 10ms", elapsed)
	}
}

func TestSleepZeroDoesNotBlock(t *testing.T) {
	_, err := Run(NewTask(func(ctx *TaskContext) (struct{}, error) {
		return struct{}{}, ctx.Sleep(0)
	}))
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
}

func TestWaitForSucceedsBeforeDeadline(t *testing.T) {
	got, err := Run(NewTask(func(ctx *TaskContext) (int, error) {
		fast := NewTask(func(ctx *TaskContext) (int, error) {
			return 9, ctx.Sleep(time.Millisecond)
		})
		return Await(ctx, WaitFor(fast, time.Second))
	}))
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if got != 9 {
		t.Errorf("WaitFor result = %d, want 9", got)
	}
}

func TestWaitForTimesOut(t *testing.T) {
	_, err := Run(NewTask(func(ctx *TaskContext) (int, error) {
		slow := NewTask(func(ctx *TaskContext) (int, error) {
			return 0, ctx.Sleep(time.Hour)
		})
		return Await(ctx, WaitFor(slow, 5*time.Millisecond))
	}))
	if !errors.Is(err, ErrTimeout) {
		t.Errorf("WaitFor() error = %v, want ErrTimeout", err)
	}
}

func TestGatherEmpty(t *testing.T) {
	_, err := Run(NewTask(func(ctx *TaskContext) (struct{}, error) {
		got, err := Gather(ctx)
		if err != nil {
			return struct{}{}, err
		}
		if got != nil {
			return struct{}{}, errors.New("Gather() with no futures should return nil")
		}
		return struct{}{}, nil
	}))
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
}

func TestGatherCollectsInOrder(t *testing.T) {
	_, err := Run(NewTask(func(ctx *TaskContext) (struct{}, error) {
		a := NewTask(func(ctx *TaskContext) (int, error) { return 1, ctx.Sleep(5 * time.Millisecond) })
		b := NewTask(func(ctx *TaskContext) (int, error) { return 2, nil })
		c := NewTask(func(ctx *TaskContext) (int, error) { return 3, ctx.Sleep(time.Millisecond) })

		results, err := Gather(ctx, a, b, c)
		if err != nil {
			return struct{}{}, err
		}
		want := []any{1, 2, 3}
		for i, w := range want {
			if results[i] != w {
				t.Errorf("results[%d] = %v, want %v", i, results[i], w)
			}
		}
		return struct{}{}, nil
	}))
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
}

func TestGatherFailFastCancelsSiblings(t *testing.T) {
	wantErr := errors.New("fast failure")
	var survivorCancelled bool

	_, err := Run(NewTask(func(ctx *TaskContext) (struct{}, error) {
		survivor := NewTask(func(ctx *TaskContext) (int, error) {
			err := ctx.Sleep(time.Hour)
			if errors.Is(err, ErrCancelled) {
				survivorCancelled = true
			}
			return 0, err
		})
		failing := NewTask(func(ctx *TaskContext) (int, error) {
			return 0, wantErr
		})

		_, err := Gather(ctx, survivor, failing)
		return struct{}{}, err
	}))
	if !errors.Is(err, wantErr) {
		t.Fatalf("Gather() error = %v, want %v", err, wantErr)
	}
	if !survivorCancelled {
		t.Errorf("sibling future was not cancelled after the first failure")
	}
}
