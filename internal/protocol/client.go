package protocol

import (
	"context"
	"fmt"
	"io"
	"net"
	"time"
)

// DefaultDialTimeout bounds connecting to the socket when ctx has no deadline
const DefaultDialTimeout = 2 * time.Second

// Send delivers one command line to the daemon at socketPath and reads its response.
// The write side is closed after sending so the daemon sees end of input.
func Send(ctx context.Context, socketPath, line string) (Response, error) {
	dialer := net.Dialer{Timeout: DefaultDialTimeout}
	conn, err := dialer.DialContext(ctx, "unix", socketPath)
	if err != nil {
		return Response{}, fmt.Errorf("connect to %s: %w", socketPath, err)
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		if err := conn.SetDeadline(deadline); err != nil {
			return Response{}, fmt.Errorf("set deadline: %w", err)
		}
	}

	if _, err := io.WriteString(conn, line); err != nil {
		return Response{}, fmt.Errorf("write command: %w", err)
	}

	if uc, ok := conn.(*net.UnixConn); ok {
		if err := uc.CloseWrite(); err != nil {
			return Response{}, fmt.Errorf("close write: %w", err)
		}
	}

	resp, err := ReadResponse(conn)
	if err != nil {
		return Response{}, err
	}
	return resp, nil
}
