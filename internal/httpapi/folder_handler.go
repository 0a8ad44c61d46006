package httpapi

import (
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/vibefoundry/vibefoundry-sandbox/internal/project"
)

// FolderHandler covers project selection and the folder-picker endpoints.
// Picker paths are absolute; everything else in the API is project-relative.
type FolderHandler struct {
	projects *project.Manager
}

func NewFolderHandler(projects *project.Manager) *FolderHandler {
	return &FolderHandler{projects: projects}
}

type healthResponse struct {
	Status        string  `json:"status"`
	ProjectFolder *string `json:"project_folder"`
}

func (h *FolderHandler) Health(c *gin.Context) {
	res := healthResponse{Status: "ok"}
	if proj := h.projects.Current(); proj != nil {
		res.ProjectFolder = &proj.WS.Root
	}
	c.PureJSON(http.StatusOK, res)
}

type selectRequest struct {
	Path string `json:"path" binding:"required"`
}

type folderInfoResponse struct {
	Name string `json:"name"`
	Path string `json:"path"`
}

func (h *FolderHandler) Select(c *gin.Context) {
	var req selectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortStatus(c, http.StatusBadRequest, err)
		return
	}

	proj, err := h.projects.Select(c.Request.Context(), req.Path)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.PureJSON(http.StatusOK, folderInfoResponse{Name: proj.WS.Name, Path: proj.WS.Root})
}

func (h *FolderHandler) Info(c *gin.Context) {
	proj := h.projects.Current()
	if proj == nil {
		c.PureJSON(http.StatusOK, gin.H{"path": nil})
		return
	}
	c.PureJSON(http.StatusOK, folderInfoResponse{Name: proj.WS.Name, Path: proj.WS.Root})
}

func (h *FolderHandler) Home(c *gin.Context) {
	home, err := os.UserHomeDir()
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.PureJSON(http.StatusOK, gin.H{"path": home})
}

type folderEntry struct {
	Name string `json:"name"`
	Path string `json:"path"`
}

type listFoldersResponse struct {
	Current string        `json:"current"`
	Parent  *string       `json:"parent,omitempty"`
	Folders []folderEntry `json:"folders"`
}

// List enumerates subdirectories of an absolute path for the folder picker.
func (h *FolderHandler) List(c *gin.Context) {
	path := c.Query("path")
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			AbortWithError(c, err)
			return
		}
		path = home
	}

	path = filepath.Clean(path)
	entries, err := os.ReadDir(path)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	res := listFoldersResponse{Current: path, Folders: []folderEntry{}}
	if parent := filepath.Dir(path); parent != path {
		res.Parent = &parent
	}

	for _, entry := range entries {
		if !entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		res.Folders = append(res.Folders, folderEntry{
			Name: entry.Name(),
			Path: filepath.Join(path, entry.Name()),
		})
	}
	sort.Slice(res.Folders, func(i, j int) bool {
		return strings.ToLower(res.Folders[i].Name) < strings.ToLower(res.Folders[j].Name)
	})

	c.PureJSON(http.StatusOK, res)
}
