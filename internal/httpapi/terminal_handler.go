package httpapi

import (
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/coder/websocket"
	"github.com/gin-gonic/gin"
	"github.com/vibefoundry/vibefoundry-sandbox/internal/project"
	"github.com/vibefoundry/vibefoundry-sandbox/internal/term"
)

var errRemoteURLRequired = errors.New("remote mode requires a url query parameter")

// TerminalHandler manages terminal sessions and the terminal WS endpoint.
type TerminalHandler struct {
	projects *project.Manager
	terms    *term.Manager
	log      *slog.Logger
}

func NewTerminalHandler(projects *project.Manager, terms *term.Manager, log *slog.Logger) *TerminalHandler {
	return &TerminalHandler{projects: projects, terms: terms, log: log}
}

func (h *TerminalHandler) List(c *gin.Context) {
	c.PureJSON(http.StatusOK, gin.H{"sessions": h.terms.List()})
}

type closeTerminalRequest struct {
	ID string `json:"id" binding:"required"`
}

func (h *TerminalHandler) Close(c *gin.Context) {
	var req closeTerminalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortStatus(c, http.StatusBadRequest, err)
		return
	}
	if err := h.terms.Close(req.ID); err != nil {
		abortStatus(c, http.StatusNotFound, err)
		return
	}
	c.PureJSON(http.StatusOK, gin.H{"ok": true})
}

// Socket upgrades and runs one terminal session for the connection's
// lifetime. mode=local shells into the project root; mode=remote proxies the
// sandbox terminal at url.
func (h *TerminalHandler) Socket(c *gin.Context) {
	mode := c.DefaultQuery("mode", string(term.ModeLocal))

	var remoteURL string
	if mode == string(term.ModeRemote) {
		raw := c.Query("url")
		if raw == "" {
			abortStatus(c, http.StatusBadRequest, errRemoteURLRequired)
			return
		}
		parsed, err := url.Parse(raw)
		if err != nil || parsed.Host == "" {
			abortStatus(c, http.StatusBadRequest, errors.New("invalid sandbox url"))
			return
		}
		remoteURL = terminalURLFor(parsed)
	}

	conn, err := websocket.Accept(c.Writer, c.Request, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		h.log.Warn("terminal socket accept failed", "error", err)
		return
	}

	switch mode {
	case string(term.ModeRemote):
		err = h.terms.RunRemote(c.Request.Context(), conn, remoteURL, h.log)
	default:
		root := ""
		if proj := h.projects.Current(); proj != nil {
			root = proj.WS.Root
		}
		if root == "" {
			root, _ = os.UserHomeDir()
		}
		geo := term.Geometry{Cols: queryUint16(c, "cols"), Rows: queryUint16(c, "rows")}
		err = h.terms.RunLocal(c.Request.Context(), conn, root, geo, h.log)
	}
	if err != nil {
		h.log.Warn("terminal session ended with error", "mode", mode, "error", err)
		conn.Close(websocket.StatusInternalError, "terminal unavailable")
	}
}

// terminalURLFor turns a sandbox origin into its terminal WS URL, accepting
// either an http(s) origin or an already-ws(s) URL.
func terminalURLFor(u *url.URL) string {
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	case "http":
		u.Scheme = "ws"
	}
	if !strings.HasSuffix(u.Path, "/terminal") {
		u.Path = strings.TrimRight(u.Path, "/") + "/terminal"
	}
	return u.String()
}

func queryUint16(c *gin.Context, key string) uint16 {
	v, err := strconv.ParseUint(c.Query(key), 10, 16)
	if err != nil {
		return 0
	}
	return uint16(v)
}
