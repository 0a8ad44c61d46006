package term

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"github.com/coder/websocket"
	"github.com/creack/pty"
)

const (
	// DefaultCols and DefaultRows match the browser terminal's initial
	// viewport. Geometry only changes through explicit resize frames.
	DefaultCols = 80
	DefaultRows = 20

	ptyReadBufSize = 32 * 1024
	wsWriteTimeout = 5 * time.Second
)

// Geometry is a terminal's fixed size at session start.
type Geometry struct {
	Cols uint16
	Rows uint16
}

func (g Geometry) orDefault() Geometry {
	if g.Cols == 0 {
		g.Cols = DefaultCols
	}
	if g.Rows == 0 {
		g.Rows = DefaultRows
	}
	return g
}

// RunLocal runs the user's shell on a PTY in the project root and bridges it
// to the client socket until either side goes away. Blocks for the session
// lifetime.
func (m *Manager) RunLocal(ctx context.Context, conn *websocket.Conn, root string, geo Geometry, log *slog.Logger) error {
	id, ctx, done := m.register(ctx, ModeLocal)
	defer done()
	log = log.With("component", "term", "session", id, "mode", ModeLocal)

	shell := os.Getenv("SHELL")
	if shell == "" {
		shell = "/bin/bash"
	}
	geo = geo.orDefault()

	cmd := exec.Command(shell)
	cmd.Dir = root
	cmd.Env = append(os.Environ(), "TERM=xterm-256color")

	ptmx, err := pty.StartWithSize(cmd, &pty.Winsize{Cols: geo.Cols, Rows: geo.Rows})
	if err != nil {
		return err
	}
	log.Info("shell started", "shell", shell, "pid", cmd.Process.Pid, "cols", geo.Cols, "rows", geo.Rows)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var closeOnce sync.Once
	closeSession := func(status websocket.StatusCode, reason string) {
		closeOnce.Do(func() {
			cancel()
			conn.Close(status, reason)
			ptmx.Close()
			// the shell may ignore the PTY hangup; make it explicit
			cmd.Process.Signal(syscall.SIGHUP)
		})
	}
	defer func() {
		closeSession(websocket.StatusNormalClosure, "session closed")
		cmd.Wait()
		log.Info("shell reaped")
	}()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer closeSession(websocket.StatusNormalClosure, "shell exited")

		buf := make([]byte, ptyReadBufSize)
		for {
			n, err := ptmx.Read(buf)
			if n > 0 {
				writeCtx, cancelWrite := context.WithTimeout(ctx, wsWriteTimeout)
				werr := conn.Write(writeCtx, websocket.MessageBinary, buf[:n])
				cancelWrite()
				if werr != nil {
					return
				}
			}
			if err != nil {
				if !errors.Is(err, io.EOF) && ctx.Err() == nil {
					log.Debug("pty read ended", "error", err)
				}
				return
			}
		}
	}()

	// client -> pty
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			closeSession(websocket.StatusNormalClosure, "client disconnected")
			break
		}

		if frame, ok := parseControl(data); ok {
			switch frame.Type {
			case controlResize:
				if err := pty.Setsize(ptmx, &pty.Winsize{Cols: frame.Cols, Rows: frame.Rows}); err != nil {
					log.Warn("resize failed", "error", err)
				}
			case controlPing:
				writeCtx, cancelWrite := context.WithTimeout(ctx, wsWriteTimeout)
				conn.Write(writeCtx, websocket.MessageText, marshalControl(&controlFrame{Type: controlPong}))
				cancelWrite()
			}
			continue
		}

		if _, err := ptmx.Write(data); err != nil {
			closeSession(websocket.StatusNormalClosure, "shell exited")
			break
		}
	}

	wg.Wait()
	return nil
}
