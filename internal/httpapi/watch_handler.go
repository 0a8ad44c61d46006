package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/gin-gonic/gin"
	"github.com/vibefoundry/vibefoundry-sandbox/internal/codec"
	"github.com/vibefoundry/vibefoundry-sandbox/internal/events"
	"github.com/vibefoundry/vibefoundry-sandbox/internal/project"
)

const (
	watchKeepaliveEvery = 30 * time.Second
	watchWriteTimeout   = 5 * time.Second
)

// WatchHandler pushes filesystem events to the browser, over WS when the
// client can hold a socket and via the polling endpoint when it cannot.
type WatchHandler struct {
	projects *project.Manager
	bus      *events.Bus
	log      *slog.Logger
}

func NewWatchHandler(projects *project.Manager, bus *events.Bus, log *slog.Logger) *WatchHandler {
	return &WatchHandler{projects: projects, bus: bus, log: log.With("component", "watch")}
}

// Check is the poll fallback: diff since the previous call, bucketed. Input
// and output changes also refresh the metadata summaries.
func (h *WatchHandler) Check(c *gin.Context) {
	proj, ok := requireProject(c, h.projects)
	if !ok {
		return
	}

	res := proj.Checker.Check()
	if len(res.InputChanges) > 0 || len(res.OutputChanges) > 0 {
		proj.Metadata.Kick()
	}
	c.PureJSON(http.StatusOK, res)
}

type watchFrame struct {
	Type   string `json:"type"`
	Path   string `json:"path,omitempty"`
	Action string `json:"action,omitempty"`
	Detail string `json:"detail,omitempty"`
}

// Socket upgrades to WS and forwards bus events as JSON frames. A quiet
// 30 s triggers a keepalive frame; a literal "ping" text frame is answered
// with "pong".
func (h *WatchHandler) Socket(c *gin.Context) {
	conn, err := websocket.Accept(c.Writer, c.Request, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		h.log.Warn("watch socket accept failed", "error", err)
		return
	}

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()
	defer conn.Close(websocket.StatusNormalClosure, "watch closed")

	ch, unsub := h.bus.Subscribe()
	defer unsub()

	// reader: only pings are expected, anything else is ignored
	go func() {
		defer cancel()
		for {
			typ, data, err := conn.Read(ctx)
			if err != nil {
				return
			}
			if typ == websocket.MessageText && string(data) == "ping" {
				writeCtx, cancelWrite := context.WithTimeout(ctx, watchWriteTimeout)
				conn.Write(writeCtx, websocket.MessageText, []byte("pong"))
				cancelWrite()
			}
		}
	}()

	keepalive := time.NewTicker(watchKeepaliveEvery)
	defer keepalive.Stop()

	for {
		var frame watchFrame
		select {
		case <-ctx.Done():
			return
		case ev, open := <-ch:
			if !open {
				return
			}
			frame = watchFrame{
				Type:   string(ev.Type),
				Path:   ev.Path,
				Action: ev.Action,
				Detail: ev.Detail,
			}
			keepalive.Reset(watchKeepaliveEvery)
		case <-keepalive.C:
			frame = watchFrame{Type: "keepalive"}
		}

		raw, err := codec.JSONMarshal(frame)
		if err != nil {
			continue
		}
		writeCtx, cancelWrite := context.WithTimeout(ctx, watchWriteTimeout)
		err = conn.Write(writeCtx, websocket.MessageText, raw)
		cancelWrite()
		if err != nil {
			return
		}
	}
}
