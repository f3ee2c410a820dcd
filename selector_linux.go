//go:build linux

package asyncio

import (
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sys/unix"
)

// epollSelector is the Linux selector, backed by epoll. Registrations are
// kept in a dynamically growing slice indexed directly by fd, avoiding a map
// lookup on the hot dispatch path.
type epollSelector struct {
	epfd     int
	eventBuf [256]unix.EpollEvent
	fds      []fdRegistration
	mu       sync.RWMutex
	count    atomic.Int64
	closed   atomic.Bool
}

type fdRegistration struct {
	callback ioCallback
	events   IOEvents
	active   bool
}

func newSelector() selector {
	return &epollSelector{}
}

func (s *epollSelector) Init() error {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return err
	}
	s.epfd = epfd
	s.fds = make([]fdRegistration, 256)
	return nil
}

func (s *epollSelector) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	return unix.Close(s.epfd)
}

func (s *epollSelector) grow(fd int) {
	if fd < len(s.fds) {
		return
	}
	next := make([]fdRegistration, fd*2+1)
	copy(next, s.fds)
	s.fds = next
}

func (s *epollSelector) Register(fd int, events IOEvents, cb ioCallback) error {
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

	err := unix.EpollCtl(s.epfd, unix.EPOLL_CTL_ADD, fd, &unix.EpollEvent{
		Events: eventsToEpoll(events),
		Fd:     int32(fd),
	})
	if err != nil {
		s.mu.Lock()
		s.fds[fd] = fdRegistration{}
		s.mu.Unlock()
		return err
	}
	s.count.Add(1)
	return nil
}

func (s *epollSelector) Modify(fd int, events IOEvents) error {
	s.mu.Lock()
	if fd < 0 || fd >= len(s.fds) || !s.fds[fd].active {
		s.mu.Unlock()
		return ErrFDNotRegistered
	}
	s.fds[fd].events = events
	s.mu.Unlock()

	return unix.EpollCtl(s.epfd, unix.EPOLL_CTL_MOD, fd, &unix.EpollEvent{
		Events: eventsToEpoll(events),
		Fd:     int32(fd),
	})
}

func (s *epollSelector) Unregister(fd int) error {
	s.mu.Lock()
	if fd < 0 || fd >= len(s.fds) || !s.fds[fd].active {
		s.mu.Unlock()
		return ErrFDNotRegistered
	}
	s.fds[fd] = fdRegistration{}
	s.mu.Unlock()

	s.count.Add(-1)
	return unix.EpollCtl(s.epfd, unix.EPOLL_CTL_DEL, fd, nil)
}

func (s *epollSelector) Select(timeout time.Duration) (int, error) {
	ms := timeoutMillis(timeout)
	n, err := unix.EpollWait(s.epfd, s.eventBuf[:], ms)
	if err != nil {
		if err == unix.EINTR {
			return 0, nil
		}
		return 0, err
	}

	for i := 0; i < n; i++ {
		fd := int(s.eventBuf[i].Fd)
		s.mu.RLock()
		var reg fdRegistration
		if fd >= 0 && fd < len(s.fds) {
			reg = s.fds[fd]
		}
		s.mu.RUnlock()
		if reg.active && reg.callback != nil {
			reg.callback(epollToEvents(s.eventBuf[i].Events))
		}
	}
	return n, nil
}

func (s *epollSelector) Registered() int {
	return int(s.count.Load())
}

// timeoutMillis converts a poll timeout to the millisecond form EpollWait
// expects, where a negative value blocks indefinitely.
func timeoutMillis(timeout time.Duration) int {
	if timeout < 0 {
		return -1
	}
	ms := timeout.Milliseconds()
	if ms == 0 && timeout > 0 {
		return 1
	}
	if ms > int64(1<<31-1) {
		return 1<<31 - 1
	}
	return int(ms)
}

func eventsToEpoll(events IOEvents) uint32 {
	var e uint32
	if events&EventRead != 0 {
		e |= unix.EPOLLIN
	}
	if events&EventWrite != 0 {
		e |= unix.EPOLLOUT
	}
	return e
}

func epollToEvents(e uint32) IOEvents {
	var events IOEvents
	if e&unix.EPOLLIN != 0 {
		events |= EventRead
	}
	if e&unix.EPOLLOUT != 0 {
		events |= EventWrite
	}
	if e&unix.EPOLLERR != 0 {
		events |= EventError
	}
	if e&unix.EPOLLHUP != 0 {
		events |= EventHangup
	}
	return events
}
