//go:build linux || darwin

package asyncio

import (
	"errors"
	"testing"
	"time"
)

func echoHandler(ctx *TaskContext, stream *Stream) error {
	buf := make([]byte, 4096)
	for {
		n, err := stream.Read(ctx, buf)
		if err != nil {
			return err
		}
		if n == 0 {
			return nil
		}
		if err := stream.Write(ctx, buf[:n]); err != nil {
			return err
		}
	}
}

func TestStreamServerEchoRoundTrip(t *testing.T) {
	_, err := Run(NewTask(func(ctx *TaskContext) (struct{}, error) {
		srv, err := StartServer(ctx, echoHandler, "tcp", "127.0.0.1:0")
		if err != nil {
			return struct{}{}, err
		}
		addr, err := srv.Addr()
		if err != nil {
			return struct{}{}, err
		}

		serverTask := CreateScheduledTask(ctx, func(cctx *TaskContext) (struct{}, error) {
			err := srv.Serve(cctx)
			if errors.Is(err, ErrCancelled) {
				return struct{}{}, nil
			}
			return struct{}{}, err
		})

		conn, err := OpenConnection(ctx, "tcp", addr)
		if err != nil {
			serverTask.Cancel()
			return struct{}{}, err
		}

		msg := []byte("ping-pong")
		if err := conn.Write(ctx, msg); err != nil {
			return struct{}{}, err
		}

		got := make([]byte, len(msg))
		for read := 0; read < len(got); {
			n, err := conn.Read(ctx, got[read:])
			if err != nil {
				return struct{}{}, err
			}
			if n == 0 {
				return struct{}{}, errors.New("connection closed before echo completed")
			}
			read += n
		}
		if string(got) != string(msg) {
			t.Errorf("echoed %q, want %q", got, msg)
		}
		if err := conn.Close(); err != nil {
			return struct{}{}, err
		}

		if err := ctx.Sleep(20 * time.Millisecond); err != nil {
			return struct{}{}, err
		}
		serverTask.Cancel()
		return struct{}{}, nil
	}))
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
}

func TestOpenConnectionRefused(t *testing.T) {
	_, err := Run(NewTask(func(ctx *TaskContext) (struct{}, error) {
		srv, err := StartServer(ctx, echoHandler, "tcp", "127.0.0.1:0")
		if err != nil {
			return struct{}{}, err
		}
		addr, err := srv.Addr()
		if err != nil {
			return struct{}{}, err
		}
		if err := srv.Close(); err != nil {
			return struct{}{}, err
		}

		_, connErr := OpenConnection(ctx, "tcp", addr)
		if connErr == nil {
			t.Error("OpenConnection to a closed listener succeeded, want an error")
		}
		return struct{}{}, nil
	}))
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
}
