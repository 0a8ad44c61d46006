package term

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/coder/websocket"
)

const (
	remoteKeepaliveEvery = 27 * time.Second
	remoteIdleTimeout    = 90 * time.Second
)

// RunRemote bridges the client socket to the sandbox shell at terminalURL.
// Bytes pass through untouched except for the control-frame protocol: client
// resize/ping frames are forwarded, remote pong frames are swallowed, and a
// keepalive goroutine pings the remote so intermediary proxies keep the
// tunnel open. Blocks for the session lifetime.
func (m *Manager) RunRemote(ctx context.Context, client *websocket.Conn, terminalURL string, log *slog.Logger) error {
	id, ctx, done := m.register(ctx, ModeRemote)
	defer done()
	log = log.With("component", "term", "session", id, "mode", ModeRemote)

	dialCtx, cancelDial := context.WithTimeout(ctx, 15*time.Second)
	remote, _, err := websocket.Dial(dialCtx, terminalURL, nil)
	cancelDial()
	if err != nil {
		return fmt.Errorf("dial sandbox terminal: %w", err)
	}
	log.Info("sandbox terminal connected", "url", terminalURL)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var closeOnce sync.Once
	closeSession := func(reason string) {
		closeOnce.Do(func() {
			cancel()
			client.Close(websocket.StatusNormalClosure, reason)
			remote.Close(websocket.StatusNormalClosure, reason)
			log.Info("session closed", "reason", reason)
		})
	}
	defer closeSession("session closed")

	var wg sync.WaitGroup

	// remote -> client, filtering the pongs our keepalive provokes
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer closeSession("connection to sandbox lost")

		for {
			typ, data, err := readIdle(ctx, remote)
			if err != nil {
				return
			}
			if frame, ok := parseControl(data); ok && frame.Type == controlPong {
				continue
			}
			writeCtx, cancelWrite := context.WithTimeout(ctx, wsWriteTimeout)
			werr := client.Write(writeCtx, typ, data)
			cancelWrite()
			if werr != nil {
				return
			}
		}
	}()

	// keepalive so the forwarded-port proxy never reaps the idle tunnel
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(remoteKeepaliveEvery)
		defer ticker.Stop()

		ping := marshalControl(&controlFrame{Type: controlPing})
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				writeCtx, cancelWrite := context.WithTimeout(ctx, wsWriteTimeout)
				err := remote.Write(writeCtx, websocket.MessageText, ping)
				cancelWrite()
				if err != nil {
					closeSession("connection to sandbox lost")
					return
				}
			}
		}
	}()

	// client -> remote: everything forwarded, control frames included
	for {
		typ, data, err := readIdle(ctx, client)
		if err != nil {
			closeSession("client disconnected")
			break
		}
		writeCtx, cancelWrite := context.WithTimeout(ctx, wsWriteTimeout)
		werr := remote.Write(writeCtx, typ, data)
		cancelWrite()
		if werr != nil {
			closeSession("connection to sandbox lost")
			break
		}
	}

	wg.Wait()
	return nil
}

// readIdle reads one frame, giving up after the idle timeout. Any inbound
// frame resets the clock.
func readIdle(ctx context.Context, conn *websocket.Conn) (websocket.MessageType, []byte, error) {
	readCtx, cancel := context.WithTimeout(ctx, remoteIdleTimeout)
	defer cancel()
	return conn.Read(readCtx)
}
