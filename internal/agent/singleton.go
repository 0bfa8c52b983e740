// Package agent implements the long-lived daemon: a socket singleton that
// serializes ShowMenu requests into a foreground loop which owns the
// Session, spawns the menu child process, and applies the effects
// (clipboard, sync, lock, logout) it requests back.
package agent

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"

	"github.com/rofi-bw/rofi-bw-go/internal/ipc"
)

// TryForward connects to an already-running agent at socketPath and
// forwards req, returning its Response. A connection failure (socket
// absent, or refused) means no agent is running; the caller should become
// the daemon itself.
func TryForward(socketPath string, req ipc.Request) (ipc.Response, error) {
	conn, err := net.Dial("unix", socketPath)
	if err != nil {
		return ipc.Response{}, err
	}
	defer conn.Close()

	bw := newBufWriter(conn)
	if err := ipc.WriteRequest(bw, req); err != nil {
		return ipc.Response{}, fmt.Errorf("send request: %w", err)
	}

	resp, err := ipc.ReadResponse(conn)
	if err != nil {
		return ipc.Response{}, fmt.Errorf("read response: %w", err)
	}
	return resp, nil
}

// Listen binds socketPath, removing a stale socket file first (a prior
// crash can leave one behind; a live listener would have refused the bind
// had another agent actually been holding it — TryForward is always tried
// first by the caller).
func Listen(socketPath string) (net.Listener, error) {
	if err := os.Remove(socketPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("remove stale socket: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(socketPath), 0o700); err != nil {
		return nil, fmt.Errorf("create runtime directory: %w", err)
	}
	l, err := net.Listen("unix", socketPath)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", socketPath, err)
	}
	return l, nil
}

// Serve runs the accept loop on the calling goroutine (callers run it via
// `go a.Serve(...)`): each connection yields exactly one Request, answered
// Ok or Busy depending on dispatch.
func (a *Agent) Serve(ctx context.Context, l net.Listener) {
	for {
		conn, err := l.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return
			default:
				log.Warn("accept failed", "err", err)
				continue
			}
		}
		go a.handleConn(conn)
	}
}

func (a *Agent) handleConn(conn net.Conn) {
	defer conn.Close()

	req, err := ipc.ReadRequest(conn)
	if err != nil {
		log.Warn("malformed request", "err", err)
		return
	}

	resp := a.dispatch(req)

	if err := ipc.WriteResponse(conn, resp); err != nil {
		log.Warn("failed to write response", "err", err)
	}
}
