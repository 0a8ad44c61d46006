package httpapi

import (
	"errors"
	"net/http"
	"os"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/vibefoundry/vibefoundry-sandbox/internal/preview"
	"github.com/vibefoundry/vibefoundry-sandbox/internal/project"
)

// MetadataHandler regenerates summaries and serves the dataframe endpoints.
type MetadataHandler struct {
	projects *project.Manager
	prev     *preview.Previewer
}

func NewMetadataHandler(projects *project.Manager, prev *preview.Previewer) *MetadataHandler {
	return &MetadataHandler{projects: projects, prev: prev}
}

func (h *MetadataHandler) Generate(c *gin.Context) {
	proj, ok := requireProject(c, h.projects)
	if !ok {
		return
	}

	if _, _, err := proj.Metadata.Generate(); err != nil {
		AbortWithError(c, err)
		return
	}
	c.PureJSON(http.StatusOK, gin.H{"ok": true})
}

func (h *MetadataHandler) resolveFile(c *gin.Context, proj *project.Project, rel string) (string, bool) {
	if rel == "" {
		abortStatus(c, http.StatusBadRequest, errMissingPath)
		return "", false
	}
	abs, err := proj.WS.AbsPath(rel)
	if err != nil {
		AbortWithError(c, err)
		return "", false
	}
	return abs, true
}

func (h *MetadataHandler) Rows(c *gin.Context) {
	proj, ok := requireProject(c, h.projects)
	if !ok {
		return
	}

	abs, ok := h.resolveFile(c, proj, c.Query("filePath"))
	if !ok {
		return
	}

	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))

	frame, page, err := h.prev.Rows(abs, offset, limit)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.PureJSON(http.StatusOK, gin.H{
		"data":      page,
		"totalRows": frame.TotalRows(),
		"offset":    offset,
		"limit":     limit,
	})
}

type queryRequest struct {
	FilePath string           `json:"filePath" binding:"required"`
	Filters  []preview.Filter `json:"filters"`
	Sort     *preview.Sort    `json:"sort"`
}

func (h *MetadataHandler) Query(c *gin.Context) {
	proj, ok := requireProject(c, h.projects)
	if !ok {
		return
	}

	var req queryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortStatus(c, http.StatusBadRequest, err)
		return
	}

	abs, ok := h.resolveFile(c, proj, req.FilePath)
	if !ok {
		return
	}

	_, rows, err := h.prev.Query(abs, req.Filters, req.Sort)
	if err != nil {
		// bad column/op names are client mistakes, not server faults
		if errors.Is(err, os.ErrNotExist) {
			AbortWithError(c, err)
		} else {
			abortStatus(c, http.StatusBadRequest, err)
		}
		return
	}
	c.PureJSON(http.StatusOK, gin.H{
		"data":      rows,
		"totalRows": len(rows),
	})
}
