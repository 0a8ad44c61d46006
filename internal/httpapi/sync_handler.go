package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/vibefoundry/vibefoundry-sandbox/internal/project"
	"github.com/vibefoundry/vibefoundry-sandbox/internal/syncer"
)

// SyncHandler bridges the browser's sync buttons to the per-project syncer.
// The browser passes the sandbox origin and its last-known vector on each
// call, so a restarted daemon stays incremental.
type SyncHandler struct {
	projects *project.Manager
}

func NewSyncHandler(projects *project.Manager) *SyncHandler {
	return &SyncHandler{projects: projects}
}

type syncRequest struct {
	CodespaceURL string           `json:"codespace_url" binding:"required"`
	LastSync     map[string]int64 `json:"last_sync"`
}

func (h *SyncHandler) syncer(c *gin.Context) (*project.Project, *syncer.Syncer, bool) {
	proj, ok := requireProject(c, h.projects)
	if !ok {
		return nil, nil, false
	}

	var req syncRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortStatus(c, http.StatusBadRequest, err)
		return nil, nil, false
	}

	s, err := proj.SyncerFor(req.CodespaceURL)
	if err != nil {
		abortStatus(c, http.StatusBadRequest, err)
		return nil, nil, false
	}
	s.AdoptVector(req.LastSync)
	return proj, s, true
}

func (h *SyncHandler) Pull(c *gin.Context) {
	proj, s, ok := h.syncer(c)
	if !ok {
		return
	}

	res, err := s.Pull(proj.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.PureJSON(http.StatusOK, gin.H{
		"synced_files": res.SyncedPaths,
		"last_sync":    res.Vector,
	})
}

func (h *SyncHandler) Push(c *gin.Context) {
	proj, s, ok := h.syncer(c)
	if !ok {
		return
	}

	res, err := s.Push(proj.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.PureJSON(http.StatusOK, gin.H{"pushed_files": res.PushedPaths})
}

func (h *SyncHandler) Metadata(c *gin.Context) {
	proj, s, ok := h.syncer(c)
	if !ok {
		return
	}

	res, err := s.PushMetadata(proj.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.PureJSON(http.StatusOK, gin.H{"success": true, "synced": res.Synced})
}

func (h *SyncHandler) Full(c *gin.Context) {
	proj, s, ok := h.syncer(c)
	if !ok {
		return
	}

	res, err := s.FullSync(proj.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.PureJSON(http.StatusOK, gin.H{
		"scripts_sync": gin.H{
			"synced_files": res.Scripts.SyncedPaths,
			"last_sync":    res.Scripts.Vector,
		},
		"metadata_sync": res.MetadataSynced,
	})
}
