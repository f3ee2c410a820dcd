//go:build darwin

package asyncio

import (
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sys/unix"
)

// kqueueSelector is the Darwin selector, backed by kqueue. Read and write
// readiness are tracked as separate kevent filters per fd, matching kqueue's
// own model, but reported to callers through the same [IOEvents] bitmask
// used on Linux.
type kqueueSelector struct {
	kq     int
	fds    []fdRegistration
	mu     sync.RWMutex
	count  atomic.Int64
	closed atomic.Bool
}

func newSelector() selector {
	return &kqueueSelector{}
}

func (s *kqueueSelector) Init() error {
	kq, err := unix.Kqueue()
	if err != nil {
		return err
	}
	unix.CloseOnExec(kq)
	s.kq = kq
	s.fds = make([]fdRegistration, 256)
	return nil
}

func (s *kqueueSelector) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	return unix.Close(s.kq)
}

func (s *kqueueSelector) grow(fd int) {
	if fd < len(s.fds) {
		return
	}
	next := make([]fdRegistration, fd*2+1)
	copy(next, s.fds)
	s.fds = next
}

func (s *kqueueSelector) changelist(fd int, events IOEvents, flags uint16) []unix.Kevent_t {
	var changes []unix.Kevent_t
	if events&EventRead != 0 {
		changes = append(changes, unix.Kevent_t{Ident: uint64(fd), Filter: unix.EVFILT_READ, Flags: flags})
	}
	if events&EventWrite != 0 {
		changes = append(changes, unix.Kevent_t{Ident: uint64(fd), Filter: unix.EVFILT_WRITE, Flags: flags})
	}
	return changes
}

func (s *kqueueSelector) Register(fd int, events IOEvents, cb ioCallback) error {
	if s.closed.Load() {
		return ErrSelectorClosed
	}
	if fd < 0 {
		return ErrFDOutOfRange
	}

	s.mu.Lock()
	s.grow(fd)
	if s.fds[fd].active {
		s.mu.Unlock()
		return ErrFDAlreadyRegistered
	}
	s.fds[fd] = fdRegistration{callback: cb, events: events, active: true}
	s.mu.Unlock()

	changes := s.changelist(fd, events, unix.EV_ADD)
	if _, err := unix.Kevent(s.kq, changes, nil, nil); err != nil {
		s.mu.Lock()
		s.fds[fd] = fdRegistration{}
		s.mu.Unlock()
		return err
	}
	s.count.Add(1)
	return nil
}

func (s *kqueueSelector) Modify(fd int, events IOEvents) error {
	s.mu.Lock()
	if fd < 0 || fd >= len(s.fds) || !s.fds[fd].active {
		s.mu.Unlock()
		return ErrFDNotRegistered
	}
	old := s.fds[fd].events
	s.fds[fd].events = events
	s.mu.Unlock()

	var changes []unix.Kevent_t
	changes = append(changes, s.changelist(fd, old&^events, unix.EV_DELETE)...)
	changes = append(changes, s.changelist(fd, events&^old, unix.EV_ADD)...)
	if len(changes) == 0 {
		return nil
	}
	_, err := unix.Kevent(s.kq, changes, nil, nil)
	return err
}

func (s *kqueueSelector) Unregister(fd int) error {
	s.mu.Lock()
	if fd < 0 || fd >= len(s.fds) || !s.fds[fd].active {
		s.mu.Unlock()
		return ErrFDNotRegistered
	}
	events := s.fds[fd].events
	s.fds[fd] = fdRegistration{}
	s.mu.Unlock()

	s.count.Add(-1)
	changes := s.changelist(fd, events, unix.EV_DELETE)
	if len(changes) == 0 {
		return nil
	}
	_, err := unix.Kevent(s.kq, changes, nil, nil)
	return err
}

func (s *kqueueSelector) Select(timeout time.Duration) (int, error) {
	var ts *unix.Timespec
	if timeout >= 0 {
		t := unix.NsecToTimespec(timeout.Nanoseconds())
		ts = &t
	}

	buf := make([]unix.Kevent_t, 256)
	n, err := unix.Kevent(s.kq, nil, buf, ts)
	if err != nil {
		if err == unix.EINTR {
			return 0, nil
		}
		return 0, err
	}

	for i := 0; i < n; i++ {
		fd := int(buf[i].Ident)
		s.mu.RLock()
		var reg fdRegistration
		if fd >= 0 && fd < len(s.fds) {
			reg = s.fds[fd]
		}
		s.mu.RUnlock()
		if !reg.active || reg.callback == nil {
			continue
		}

		var events IOEvents
		switch buf[i].Filter {
		case unix.EVFILT_READ:
			events = EventRead
		case unix.EVFILT_WRITE:
			events = EventWrite
		}
		if buf[i].Flags&unix.EV_EOF != 0 {
			events |= EventHangup
		}
		if buf[i].Flags&unix.EV_ERROR != 0 {
			events |= EventError
		}
		reg.callback(events)
	}
	return n, nil
}

func (s *kqueueSelector) Registered() int {
	return int(s.count.Load())
}
