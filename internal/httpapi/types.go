// Package httpapi is the daemon's local HTTP and WebSocket surface consumed
// by the browser IDE.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/vibefoundry/vibefoundry-sandbox/internal/preview"
	"github.com/vibefoundry/vibefoundry-sandbox/internal/project"
	"github.com/vibefoundry/vibefoundry-sandbox/internal/sandbox"
	"github.com/vibefoundry/vibefoundry-sandbox/internal/scripts"
	"github.com/vibefoundry/vibefoundry-sandbox/internal/syncer"
	"github.com/vibefoundry/vibefoundry-sandbox/internal/utils"
	"github.com/vibefoundry/vibefoundry-sandbox/internal/workspace"
)

// ErrorResponse is the single error envelope every endpoint speaks.
type ErrorResponse struct {
	Detail string `json:"detail"`
}

var (
	errNoProject     = errors.New("no project folder selected")
	errMissingPath   = errors.New("path query parameter is required")
	errNotAFile      = errors.New("path is not a file")
	errPolicyForbids = errors.New("file type not allowed here")
)

// AbortWithError maps domain errors onto HTTP statuses and emits the
// envelope.
func AbortWithError(c *gin.Context, err error) {
	c.Abort()
	c.Error(err)
	c.PureJSON(statusFor(err), ErrorResponse{Detail: err.Error()})
}

func abortStatus(c *gin.Context, status int, err error) {
	c.Abort()
	c.Error(err)
	c.PureJSON(status, ErrorResponse{Detail: err.Error()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, errNoProject),
		errors.Is(err, project.ErrNotDirectory),
		errors.Is(err, preview.ErrUnsupported),
		errors.Is(err, scripts.ErrBadPackageName):
		return http.StatusBadRequest

	case errors.Is(err, utils.ErrPathEscapesRoot),
		errors.Is(err, sandbox.ErrForbiddenPath):
		return http.StatusForbidden

	case errors.Is(err, os.ErrNotExist):
		return http.StatusNotFound

	case errors.Is(err, workspace.ErrLocked),
		errors.Is(err, syncer.ErrSyncInFlight):
		return http.StatusConflict

	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}

	var remoteErr *sandbox.Error
	if errors.As(err, &remoteErr) {
		switch remoteErr.Kind {
		case sandbox.KindNotFound:
			return http.StatusNotFound
		case sandbox.KindUnauthorized:
			return http.StatusUnauthorized
		case sandbox.KindConflict:
			return http.StatusConflict
		default:
			return http.StatusBadGateway
		}
	}

	return http.StatusInternalServerError
}

// requireProject fetches the active project or aborts with 400.
func requireProject(c *gin.Context, projects *project.Manager) (*project.Project, bool) {
	proj := projects.Current()
	if proj == nil {
		AbortWithError(c, errNoProject)
		return nil, false
	}
	return proj, true
}
