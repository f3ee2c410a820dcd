//go:build linux || darwin

package asyncio

import (
	"net"
	"strconv"

	"golang.org/x/sys/unix"
)

// OpenConnection resolves addr on the given network ("tcp", "tcp4", "tcp6")
// and returns a connected, non-blocking [Stream]. Every resolved address is
// tried in order; the first to connect wins.
func OpenConnection(ctx *TaskContext, network, addr string) (*Stream, error) {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return nil, err
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return nil, err
	}

	ips, err := net.LookupIP(host)
	if err != nil {
		return nil, err
	}

	var lastErr error
	for _, ip := range ips {
		if !addrFamilyAllowed(network, ip) {
			continue
		}
		fd, sa, err := dialSocket(ip, port)
		if err != nil {
			lastErr = err
			continue
		}
		if err := connectNonblocking(ctx, fd, sa); err != nil {
			_ = closeFD(fd)
			lastErr = err
			continue
		}
		return newStream(fd), nil
	}

	if lastErr == nil {
		lastErr = &SystemError{Op: "connect", Err: unix.EADDRNOTAVAIL}
	}
	return nil, lastErr
}

func addrFamilyAllowed(network string, ip net.IP) bool {
	switch network {
	case "tcp4":
		return ip.To4() != nil
	case "tcp6":
		return ip.To4() == nil
	default:
		return true
	}
}

func dialSocket(ip net.IP, port int) (int, unix.Sockaddr, error) {
	if v4 := ip.To4(); v4 != nil {
		fd, err := unix.Socket(unix.AF_INET, unix.SOCK_STREAM, 0)
		if err != nil {
			return -1, nil, newSystemError("socket", err)
		}
		if err := setNonblockCloexec(fd); err != nil {
			_ = closeFD(fd)
			return -1, nil, newSystemError("socket", err)
		}
		sa := &unix.SockaddrInet4{Port: port}
		copy(sa.Addr[:], v4)
		return fd, sa, nil
	}

	fd, err := unix.Socket(unix.AF_INET6, unix.SOCK_STREAM, 0)
	if err != nil {
		return -1, nil, newSystemError("socket", err)
	}
	if err := setNonblockCloexec(fd); err != nil {
		_ = closeFD(fd)
		return -1, nil, newSystemError("socket", err)
	}
	sa := &unix.SockaddrInet6{Port: port}
	copy(sa.Addr[:], ip.To16())
	return fd, sa, nil
}

// connectNonblocking issues a non-blocking connect(2), awaits writability,
// then checks SO_ERROR the way the loop-based original does — a socket that
// becomes writable is not necessarily connected.
func connectNonblocking(ctx *TaskContext, fd int, sa unix.Sockaddr) error {
	err := unix.Connect(fd, sa)
	if err == nil {
		return nil
	}
	if err != unix.EINPROGRESS {
		return newSystemError("connect", err)
	}

	if _, err := ctx.WaitIOEvent(fd, EventWrite); err != nil {
		return err
	}

	errno, err := unix.GetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_ERROR)
	if err != nil {
		return newSystemError("getsockopt", err)
	}
	if errno != 0 {
		return &SystemError{Op: "connect", Err: unix.Errno(errno)}
	}
	return nil
}
