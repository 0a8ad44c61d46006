package httpapi

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/vibefoundry/vibefoundry-sandbox/internal/project"
	"github.com/vibefoundry/vibefoundry-sandbox/internal/scripts"
)

// ScriptsHandler lists and runs the project's Python scripts.
type ScriptsHandler struct {
	projects *project.Manager
}

func NewScriptsHandler(projects *project.Manager) *ScriptsHandler {
	return &ScriptsHandler{projects: projects}
}

type scriptEntry struct {
	Path         string `json:"path"`
	RelativePath string `json:"relative_path"`
}

func (h *ScriptsHandler) List(c *gin.Context) {
	proj, ok := requireProject(c, h.projects)
	if !ok {
		return
	}

	found, err := scripts.Discover(proj.WS)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	entries := make([]scriptEntry, 0, len(found))
	for _, s := range found {
		entries = append(entries, scriptEntry{Path: s.AbsPath, RelativePath: s.RelPath})
	}
	c.PureJSON(http.StatusOK, gin.H{"scripts": entries})
}

type runScriptsRequest struct {
	Scripts []string `json:"scripts" binding:"required,min=1"`
}

// ScriptRunRecord is one script's verdict. Failures live in the record, not
// the HTTP status.
type ScriptRunRecord struct {
	Script        string  `json:"script"`
	Status        string  `json:"status"`
	Success       bool    `json:"success"`
	TimedOut      bool    `json:"timed_out"`
	ExitCode      int     `json:"exit_code"`
	Stdout        string  `json:"stdout"`
	Stderr        string  `json:"stderr"`
	MissingModule string  `json:"missing_module,omitempty"`
	StartedAt     string  `json:"started_at"`
	DurationSecs  float64 `json:"duration_seconds"`
}

// Run queues the requested scripts and waits for their results in request
// order. Duplicate paths collapse into a single run, both within one request
// and against scripts another request already queued.
func (h *ScriptsHandler) Run(c *gin.Context) {
	proj, ok := requireProject(c, h.projects)
	if !ok {
		return
	}

	var req runScriptsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortStatus(c, http.StatusBadRequest, err)
		return
	}

	type pending struct {
		rel string
		ch  <-chan *scripts.Result
	}
	var queued []pending
	seen := make(map[string]bool, len(req.Scripts))

	for _, rel := range req.Scripts {
		if seen[rel] {
			continue
		}
		seen[rel] = true

		abs, err := proj.WS.AbsPath(rel)
		if err != nil {
			AbortWithError(c, err)
			return
		}
		script := &scripts.Script{Name: rel, RelPath: rel, AbsPath: abs}

		ch, err := proj.Runner.Submit(script)
		if errors.Is(err, scripts.ErrAlreadyQueued) {
			// another request holds the queued run; skip, don't run it twice
			continue
		}
		if err != nil {
			AbortWithError(c, err)
			return
		}
		queued = append(queued, pending{rel: rel, ch: ch})
	}

	records := make([]ScriptRunRecord, 0, len(queued))
	for _, p := range queued {
		select {
		case res, open := <-p.ch:
			if !open {
				abortStatus(c, http.StatusInternalServerError, scripts.ErrRunnerClosed)
				return
			}
			records = append(records, toRecord(res))
		case <-c.Request.Context().Done():
			abortStatus(c, http.StatusInternalServerError, c.Request.Context().Err())
			return
		}
	}

	c.PureJSON(http.StatusOK, gin.H{"results": records})
}

func toRecord(res *scripts.Result) ScriptRunRecord {
	return ScriptRunRecord{
		Script:        res.Script,
		Status:        string(res.Status),
		Success:       res.Status == scripts.StatusOK,
		TimedOut:      res.Status == scripts.StatusTimedOut,
		ExitCode:      res.ExitCode,
		Stdout:        res.Stdout,
		Stderr:        res.Stderr,
		MissingModule: res.MissingModule,
		StartedAt:     res.StartedAt.Format(time.RFC3339),
		DurationSecs:  res.Duration.Round(time.Millisecond).Seconds(),
	}
}

type pipInstallRequest struct {
	Package string `json:"package" binding:"required"`
}

func (h *ScriptsHandler) PipInstall(c *gin.Context) {
	proj, ok := requireProject(c, h.projects)
	if !ok {
		return
	}

	var req pipInstallRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortStatus(c, http.StatusBadRequest, err)
		return
	}

	res, err := proj.Runner.Install(c.Request.Context(), req.Package)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.PureJSON(http.StatusOK, res)
}
