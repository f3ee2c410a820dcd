package asyncio

// Gather runs every future concurrently and waits for all of them,
// returning their results in argument order. On the first failure it
// cancels every future that has not yet settled and returns that failure;
// results for futures that had already completed are discarded along with
// it, matching the all-or-nothing contract of a single combined result.
//
// Gather must be called from within a task body (ctx identifies the
// caller, which becomes the parent woken as each future settles).
func Gather(ctx *TaskContext, futs ...awaitable) ([]any, error) {
	n := len(futs)
	if n == 0 {
		return nil, nil
	}

	loop := ctx.Loop()
	self := ctx.s.selfRunner()

	results := make([]any, n)
	done := make([]bool, n)
	remaining := n
	var firstErr error

	for i, f := range futs {
		i, f := i, f
		newImmediateTask(loop, func(cctx *TaskContext) (struct{}, error) {
			v, err := f.awaitErased(cctx)
			results[i] = v
			done[i] = true
			remaining--
			if err != nil && firstErr == nil {
				firstErr = err
			}
			loop.CallSoon(self)
			return struct{}{}, nil
		})
	}

	for remaining > 0 && firstErr == nil {
		if cancel := ctx.s.suspend(); cancel {
			return nil, ErrCancelled
		}
	}

	if firstErr != nil {
		for i, f := range futs {
			if !done[i] {
				f.cancelAwaitable()
			}
		}
		for remaining > 0 {
			if cancel := ctx.s.suspend(); cancel {
				return nil, ErrCancelled
			}
		}
		return nil, firstErr
	}

	return results, nil
}
