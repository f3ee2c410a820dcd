//go:build linux || darwin

package asyncio

import (
	"net"
	"strconv"

	"golang.org/x/sys/unix"
)

const serverBacklog = 16

// Server listens for incoming TCP connections and dispatches each to a
// handler run as its own scheduled task.
type Server struct {
	fd      int
	handler func(*TaskContext, *Stream) error
	closed  bool
}

// StartServer binds and listens on addr, returning a Server ready to
// [Server.Serve]. network follows [OpenConnection]'s conventions.
func StartServer(ctx *TaskContext, handler func(*TaskContext, *Stream) error, network, addr string) (*Server, error) {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return nil, err
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return nil, err
	}

	family := unix.AF_INET
	if network == "tcp6" {
		family = unix.AF_INET6
	}
	if network != "tcp6" && host != "" {
		if ip := net.ParseIP(host); ip != nil && ip.To4() == nil {
			family = unix.AF_INET6
		}
	}

	fd, err := unix.Socket(family, unix.SOCK_STREAM, 0)
	if err != nil {
		return nil, newSystemError("socket", err)
	}
	if err := setNonblockCloexec(fd); err != nil {
		_ = closeFD(fd)
		return nil, newSystemError("socket", err)
	}
	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		_ = closeFD(fd)
		return nil, newSystemError("setsockopt", err)
	}

	var sa unix.Sockaddr
	if family == unix.AF_INET6 {
		s := &unix.SockaddrInet6{Port: port}
		if host != "" {
			if ip := net.ParseIP(host); ip != nil {
				copy(s.Addr[:], ip.To16())
			}
		}
		sa = s
	} else {
		s := &unix.SockaddrInet4{Port: port}
		if host != "" {
			if ip := net.ParseIP(host); ip != nil {
				copy(s.Addr[:], ip.To4())
			}
		}
		sa = s
	}

	if err := unix.Bind(fd, sa); err != nil {
		_ = closeFD(fd)
		return nil, newSystemError("bind", err)
	}
	if err := unix.Listen(fd, serverBacklog); err != nil {
		_ = closeFD(fd)
		return nil, newSystemError("listen", err)
	}

	return &Server{fd: fd, handler: handler}, nil
}

// Addr returns the address the server is bound to, including the actual
// port chosen by the kernel when StartServer was given port 0.
func (s *Server) Addr() (string, error) {
	sa, err := unix.Getsockname(s.fd)
	if err != nil {
		return "", newSystemError("getsockname", err)
	}
	switch a := sa.(type) {
	case *unix.SockaddrInet4:
		return net.JoinHostPort(net.IP(a.Addr[:]).String(), strconv.Itoa(a.Port)), nil
	case *unix.SockaddrInet6:
		return net.JoinHostPort(net.IP(a.Addr[:]).String(), strconv.Itoa(a.Port)), nil
	default:
		return "", newSystemError("getsockname", ErrUnsupportedPlatform)
	}
}

// Close stops accepting new connections. Safe to call more than once.
func (s *Server) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	return closeFD(s.fd)
}

// Serve accepts connections until ctx's task is cancelled or accept fails
// unrecoverably, spawning s.handler as a scheduled task per connection.
func (s *Server) Serve(ctx *TaskContext) error {
	defer s.Close()

	var connected []*ScheduledTask[struct{}]
	for {
		if _, err := ctx.WaitIOEvent(s.fd, EventRead); err != nil {
			return err
		}

		fd, _, err := unix.Accept(s.fd)
		if err != nil {
			if err == unix.EAGAIN || err == unix.ECONNABORTED {
				continue
			}
			return newSystemError("accept", err)
		}
		if err := setNonblockCloexec(fd); err != nil {
			_ = closeFD(fd)
			continue
		}

		stream := newStream(fd)
		handler := s.handler
		connected = append(connected, CreateScheduledTask(ctx, func(cctx *TaskContext) (struct{}, error) {
			defer stream.Close()
			return struct{}{}, handler(cctx, stream)
		}))

		if len(connected) >= 100 {
			connected = reapDone(connected)
		}
	}
}

func reapDone(tasks []*ScheduledTask[struct{}]) []*ScheduledTask[struct{}] {
	live := tasks[:0]
	for _, t := range tasks {
		if !t.Done() {
			live = append(live, t)
		}
	}
	return live
}
