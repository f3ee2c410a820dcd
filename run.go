package asyncio

// Run constructs a fresh [Loop], schedules main as its entry point, and
// drives the loop until main and everything it spawned has finished. It is
// the usual top-level entry point — callers that need to register file
// descriptors before main starts, or that need several independent loops,
// should use [NewLoop] directly instead.
func Run[R any](main *Task[R], opts ...Option) (R, error) {
	var zero R
	loop, err := NewLoop(opts...)
	if err != nil {
		return zero, err
	}
	main.schedule(loop)
	if err := loop.RunUntilComplete(); err != nil {
		return zero, err
	}
	return main.prom.read()
}
