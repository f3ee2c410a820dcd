package asyncio

// WaitIOEvent suspends the calling task until fd becomes ready for any of
// events, then returns which of them fired. The selector registration is
// always released before returning, including along the cancellation path,
// so a cancelled or errored waiter never leaks a registration.
func (c *TaskContext) WaitIOEvent(fd int, events IOEvents) (IOEvents, error) {
	loop := c.Loop()
	self := c.s.selfRunner()

	var got IOEvents
	if err := loop.RegisterFD(fd, events, func(ev IOEvents) {
		got = ev
		loop.CallSoon(self)
	}); err != nil {
		return 0, err
	}
	defer func() { _ = loop.UnregisterFD(fd) }()

	if cancel := c.s.suspend(); cancel {
		return 0, ErrCancelled
	}
	return got, nil
}
