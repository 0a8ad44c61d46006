package httpapi

import (
	"encoding/base64"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/gin-gonic/gin"
	"github.com/vibefoundry/vibefoundry-sandbox/internal/events"
	"github.com/vibefoundry/vibefoundry-sandbox/internal/policy"
	"github.com/vibefoundry/vibefoundry-sandbox/internal/preview"
	"github.com/vibefoundry/vibefoundry-sandbox/internal/project"
	"github.com/vibefoundry/vibefoundry-sandbox/internal/tree"
	"github.com/vibefoundry/vibefoundry-sandbox/internal/utils"
	"github.com/vibefoundry/vibefoundry-sandbox/internal/workspace"
)

// binary formats the IDE renders from base64 rather than as text
var binaryExts = map[string]bool{
	".png": true, ".jpg": true, ".jpeg": true, ".gif": true, ".bmp": true,
	".ico": true, ".webp": true, ".pdf": true, ".zip": true, ".tar": true, ".gz": true,
}

// FilesHandler serves the project tree and file read/write/delete.
type FilesHandler struct {
	projects *project.Manager
	prev     *preview.Previewer
	bus      *events.Bus
}

func NewFilesHandler(projects *project.Manager, prev *preview.Previewer, bus *events.Bus) *FilesHandler {
	return &FilesHandler{projects: projects, prev: prev, bus: bus}
}

// Tree scans the project. Files the safety policy forbids inside app/ are
// deleted during the scan and announced on the watch socket.
func (h *FilesHandler) Tree(c *gin.Context) {
	proj, ok := requireProject(c, h.projects)
	if !ok {
		return
	}

	snap, err := tree.Scan(c.Request.Context(), proj.WS.Root)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	for _, removed := range snap.Removed {
		h.bus.Publish(events.Event{
			Type:   events.DataChange,
			Path:   removed,
			Action: events.ActionDeletedForSafety,
		})
	}

	c.PureJSON(http.StatusOK, gin.H{"tree": snap.Tree})
}

func (h *FilesHandler) Read(c *gin.Context) {
	proj, ok := requireProject(c, h.projects)
	if !ok {
		return
	}

	rel := c.Query("path")
	if rel == "" {
		abortStatus(c, http.StatusBadRequest, errMissingPath)
		return
	}

	abs, err := proj.WS.AbsPath(rel)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	info, err := os.Stat(abs)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if info.IsDir() {
		abortStatus(c, http.StatusBadRequest, errNotAFile)
		return
	}

	filename := filepath.Base(abs)
	ext := strings.ToLower(filepath.Ext(abs))

	switch {
	case preview.TabularExts(abs):
		h.readDataframe(c, abs, filename)
	case binaryExts[ext]:
		h.readBase64(c, abs, filename)
	default:
		raw, err := os.ReadFile(abs)
		if err != nil {
			AbortWithError(c, err)
			return
		}
		if !utf8.Valid(raw) {
			c.PureJSON(http.StatusOK, gin.H{
				"content":  base64.StdEncoding.EncodeToString(raw),
				"encoding": "base64",
				"filename": filename,
			})
			return
		}
		c.PureJSON(http.StatusOK, gin.H{
			"content":  string(raw),
			"encoding": "utf-8",
			"filename": filename,
		})
	}
}

func (h *FilesHandler) readDataframe(c *gin.Context, abs, filename string) {
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "0"))

	frame, page, err := h.prev.Rows(abs, offset, limit)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.PureJSON(http.StatusOK, gin.H{
		"type":       "dataframe",
		"columns":    frame.Columns,
		"columnInfo": frame.ColumnInfo,
		"data":       page,
		"totalRows":  frame.TotalRows(),
		"offset":     offset,
		"limit":      limit,
		"filename":   filename,
	})
}

func (h *FilesHandler) readBase64(c *gin.Context, abs, filename string) {
	raw, err := os.ReadFile(abs)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.PureJSON(http.StatusOK, gin.H{
		"content":  base64.StdEncoding.EncodeToString(raw),
		"encoding": "base64",
		"filename": filename,
	})
}

type writeFileRequest struct {
	Path    string `json:"path" binding:"required"`
	Content string `json:"content"`
}

// Write stores text content, refusing paths the app-folder policy forbids.
func (h *FilesHandler) Write(c *gin.Context) {
	proj, ok := requireProject(c, h.projects)
	if !ok {
		return
	}

	var req writeFileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortStatus(c, http.StatusBadRequest, err)
		return
	}

	rel := filepath.ToSlash(filepath.Clean(req.Path))
	underApp := rel == workspace.AppDirName || strings.HasPrefix(rel, workspace.AppDirName+"/")
	if underApp && policy.ForbiddenInApp(rel, int64(len(req.Content))) {
		abortStatus(c, http.StatusForbidden, errPolicyForbids)
		return
	}

	abs, err := proj.WS.AbsPath(rel)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if err := utils.EnsureParent(abs); err != nil {
		AbortWithError(c, err)
		return
	}
	if err := os.WriteFile(abs, []byte(req.Content), 0o644); err != nil {
		AbortWithError(c, err)
		return
	}
	c.PureJSON(http.StatusOK, gin.H{"ok": true})
}

type deleteFileRequest struct {
	Path        string `json:"path" binding:"required"`
	IsDirectory bool   `json:"isDirectory"`
}

func (h *FilesHandler) Delete(c *gin.Context) {
	proj, ok := requireProject(c, h.projects)
	if !ok {
		return
	}

	var req deleteFileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortStatus(c, http.StatusBadRequest, err)
		return
	}

	abs, err := proj.WS.AbsPath(req.Path)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if abs == proj.WS.Root {
		abortStatus(c, http.StatusForbidden, errPolicyForbids)
		return
	}
	if _, err := os.Stat(abs); err != nil {
		AbortWithError(c, err)
		return
	}

	if req.IsDirectory {
		err = os.RemoveAll(abs)
	} else {
		err = os.Remove(abs)
	}
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.PureJSON(http.StatusOK, gin.H{"ok": true})
}
