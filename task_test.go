package asyncio

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRunReturnsValue(t *testing.T) {
	got, err := Run(NewTask(func(ctx *TaskContext) (int, error) {
		return 42, nil
	}))
	require.NoError(t, err)
	require.Equal(t, 42, got)
}

func TestRunPropagatesBodyError(t *testing.T) {
	wantErr := errors.New("boom")
	_, err := Run(NewTask(func(ctx *TaskContext) (int, error) {
		return 0, wantErr
	}))
	require.ErrorIs(t, err, wantErr)
}

func TestAwaitNestedValue(t *testing.T) {
	got, err := Run(NewTask(func(ctx *TaskContext) (int, error) {
		inner := NewTask(func(ctx *TaskContext) (int, error) {
			return 7, nil
		})
		return Await(ctx, inner)
	}))
	require.NoError(t, err)
	require.Equal(t, 7, got)
}

func fib(ctx *TaskContext, n int) (int, error) {
	if n < 2 {
		return n, nil
	}
	a := NewTask(func(ctx *TaskContext) (int, error) { return fib(ctx, n-1) })
	b := NewTask(func(ctx *TaskContext) (int, error) { return fib(ctx, n-2) })
	av, err := Await(ctx, a)
	if err != nil {
		return 0, err
	}
	bv, err := Await(ctx, b)
	if err != nil {
		return 0, err
	}
	return av + bv, nil
}

func TestRecursiveFib(t *testing.T) {
	got, err := Run(NewTask(func(ctx *TaskContext) (int, error) {
		return fib(ctx, 10)
	}))
	require.NoError(t, err)
	require.Equal(t, 55, got)
}

func TestAwaitNilIsInvalidFuture(t *testing.T) {
	_, err := Run(NewTask(func(ctx *TaskContext) (int, error) {
		return Await[int](ctx, nil)
	}))
	require.ErrorIs(t, err, ErrInvalidFuture)
}

func TestAwaitTwiceIsInvalidFuture(t *testing.T) {
	_, err := Run(NewTask(func(ctx *TaskContext) (int, error) {
		inner := NewTask(func(ctx *TaskContext) (int, error) { return 1, nil })
		first := CreateScheduledTask(ctx, func(ctx *TaskContext) (int, error) {
			return Await(ctx, inner)
		})
		second := CreateScheduledTask(ctx, func(ctx *TaskContext) (int, error) {
			return Await(ctx, inner)
		})
		_, err1 := first.Await(ctx)
		_, err2 := second.Await(ctx)
		if err1 == nil && err2 == nil {
			return 0, errors.New("expected one of the two awaits to fail")
		}
		if err1 != nil {
			return 0, err1
		}
		return 0, err2
	}))
	require.ErrorIs(t, err, ErrInvalidFuture)
}

func TestTaskPanicBecomesPanicError(t *testing.T) {
	_, err := Run(NewTask(func(ctx *TaskContext) (int, error) {
		panic("kaboom")
	}))
	var pe *PanicError
	require.ErrorAs(t, err, &pe)
	require.Equal(t, "kaboom", pe.Value)
}

func TestScheduledTaskRunsWithoutBeingAwaited(t *testing.T) {
	_, err := Run(NewTask(func(ctx *TaskContext) (int, error) {
		ran := make(chan struct{}, 1)
		st := CreateScheduledTask(ctx, func(ctx *TaskContext) (struct{}, error) {
			ran <- struct{}{}
			return struct{}{}, nil
		})
		if err := ctx.Sleep(0); err != nil {
			return 0, err
		}
		if !st.Done() {
			if _, err := st.Await(ctx); err != nil {
				return 0, err
			}
		}
		select {
		case <-ran:
		default:
			return 0, errors.New("scheduled task never ran")
		}
		return 0, nil
	}))
	require.NoError(t, err)
}

func TestCancelBeforeStart(t *testing.T) {
	_, err := Run(NewTask(func(ctx *TaskContext) (int, error) {
		inner := NewTask(func(ctx *TaskContext) (int, error) { return 1, nil })
		inner.Cancel()
		return Await(ctx, inner)
	}))
	require.ErrorIs(t, err, ErrCancelled)
}

func TestCancelWhileSuspended(t *testing.T) {
	_, err := Run(NewTask(func(ctx *TaskContext) (int, error) {
		child := CreateScheduledTask(ctx, func(ctx *TaskContext) (int, error) {
			if err := ctx.Sleep(time.Hour); err != nil {
				return 0, err
			}
			return 1, nil
		})
		if err := ctx.Sleep(0); err != nil {
			return 0, err
		}
		child.Cancel()
		return child.Await(ctx)
	}))
	require.ErrorIs(t, err, ErrCancelled)
}
