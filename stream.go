//go:build linux || darwin

package asyncio

import (
	"golang.org/x/sys/unix"
)

const streamChunkSize = 4096

// Stream wraps a non-blocking socket file descriptor registered with a
// loop's selector. It owns fd and closes it exactly once.
type Stream struct {
	fd     int
	closed bool
}

func newStream(fd int) *Stream { return &Stream{fd: fd} }

// Fd returns the underlying file descriptor. Callers must not close it
// directly; use Close.
func (s *Stream) Fd() int { return s.fd }

// Close releases the socket. Safe to call more than once.
func (s *Stream) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	return closeFD(s.fd)
}

// Read awaits readability and issues a single read(2) into buf, returning
// the number of bytes obtained. A return of (0, nil) means EOF.
func (s *Stream) Read(ctx *TaskContext, buf []byte) (int, error) {
	if _, err := ctx.WaitIOEvent(s.fd, EventRead); err != nil {
		return 0, err
	}
	n, err := readFD(s.fd, buf)
	if err != nil {
		return 0, newSystemError("read", err)
	}
	return n, nil
}

// ReadAll reads until EOF, returning every byte obtained.
func (s *Stream) ReadAll(ctx *TaskContext) ([]byte, error) {
	var out []byte
	chunk := make([]byte, streamChunkSize)
	for {
		n, err := s.Read(ctx, chunk)
		if err != nil {
			return nil, err
		}
		if n == 0 {
			return out, nil
		}
		out = append(out, chunk[:n]...)
	}
}

// Write sends every byte of buf, awaiting writability and issuing partial
// write(2)s as needed.
func (s *Stream) Write(ctx *TaskContext, buf []byte) error {
	written := 0
	for written < len(buf) {
		if _, err := ctx.WaitIOEvent(s.fd, EventWrite); err != nil {
			return err
		}
		n, err := writeFD(s.fd, buf[written:])
		if err != nil {
			return newSystemError("write", err)
		}
		written += n
	}
	return nil
}

func setNonblockCloexec(fd int) error {
	if err := unix.SetNonblock(fd, true); err != nil {
		return err
	}
	unix.CloseOnExec(fd)
	return nil
}
