package httpapi

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/imroc/req/v3"
)

const githubBaseURL = "https://github.com"

// GitHubHandler proxies the OAuth device flow so the browser IDE never talks
// to github.com directly (its pages are served from localhost and the
// device-flow endpoints have no CORS).
type GitHubHandler struct {
	http *req.Client
}

func NewGitHubHandler() *GitHubHandler {
	return &GitHubHandler{
		http: req.C().
			SetBaseURL(githubBaseURL).
			SetTimeout(15 * time.Second).
			SetCommonHeader("Accept", "application/json"),
	}
}

type deviceCodeRequest struct {
	ClientID string `json:"client_id" binding:"required"`
	Scope    string `json:"scope"`
}

func (h *GitHubHandler) DeviceCode(c *gin.Context) {
	var body deviceCodeRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		abortStatus(c, http.StatusBadRequest, err)
		return
	}

	h.passthrough(c, "/login/device/code", map[string]string{
		"client_id": body.ClientID,
		"scope":     body.Scope,
	})
}

type tokenRequest struct {
	ClientID   string `json:"client_id" binding:"required"`
	DeviceCode string `json:"device_code" binding:"required"`
	GrantType  string `json:"grant_type" binding:"required"`
}

func (h *GitHubHandler) Token(c *gin.Context) {
	var body tokenRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		abortStatus(c, http.StatusBadRequest, err)
		return
	}

	h.passthrough(c, "/login/oauth/access_token", map[string]string{
		"client_id":   body.ClientID,
		"device_code": body.DeviceCode,
		"grant_type":  body.GrantType,
	})
}

// passthrough forwards the call and mirrors the upstream body and status
// verbatim; the browser's flow logic depends on GitHub's own error shapes.
func (h *GitHubHandler) passthrough(c *gin.Context, path string, form map[string]string) {
	res, err := h.http.R().
		SetContext(c.Request.Context()).
		SetFormData(form).
		Post(path)
	if err != nil {
		abortStatus(c, http.StatusBadGateway, fmt.Errorf("github unreachable: %w", err))
		return
	}

	c.Data(res.StatusCode, "application/json", res.Bytes())
}
