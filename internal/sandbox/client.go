// Package sandbox is the typed client for the remote development sandbox's
// REST surface. All calls carry deadlines; transport failures retry with
// jittered backoff, every other failure surfaces immediately as a typed
// *Error.
package sandbox

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"runtime"
	"strings"
	"time"

	"github.com/imroc/req/v3"
	"github.com/vibefoundry/vibefoundry-sandbox/internal/codec"
	"github.com/vibefoundry/vibefoundry-sandbox/internal/policy"
	"github.com/vibefoundry/vibefoundry-sandbox/internal/version"
)

const (
	dialTimeout   = 5 * time.Second
	dataTimeout   = 30 * time.Second
	healthTimeout = 5 * time.Second

	retryCount      = 3
	retryBackoffMin = 200 * time.Millisecond
	retryBackoffMax = 1 * time.Second
)

var userAgent = fmt.Sprintf("VibeFoundry/%s (%s; %s)", version.Version, runtime.GOOS, runtime.GOARCH)

// Client talks to one sandbox instance.
type Client struct {
	http    *req.Client
	baseURL string
}

// NewClient builds a client for the sandbox at baseURL (the forwarded-port
// HTTPS origin, e.g. https://xyz-8787.app.github.dev).
func NewClient(baseURL string) (*Client, error) {
	baseURL = strings.TrimRight(baseURL, "/")
	u, err := url.Parse(baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid sandbox url %q", baseURL)
	}

	dialer := &net.Dialer{Timeout: dialTimeout}
	httpClient := req.C().
		SetBaseURL(baseURL).
		SetTimeout(dataTimeout).
		SetUserAgent(userAgent).
		SetDial(dialer.DialContext).
		SetCommonRetryCount(retryCount).
		SetCommonRetryBackoffInterval(retryBackoffMin, retryBackoffMax).
		SetCommonRetryCondition(func(resp *req.Response, err error) bool {
			// only transport failures are transient
			return err != nil
		}).
		SetJsonMarshal(codec.JSONMarshal).
		SetJsonUnmarshal(codec.JSONUnmarshal)

	return &Client{
		http:    httpClient,
		baseURL: baseURL,
	}, nil
}

// BaseURL returns the normalized sandbox origin.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// TerminalURL returns the WebSocket URL of the sandbox shell.
func (c *Client) TerminalURL() string {
	u, _ := url.Parse(c.baseURL)
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	case "http":
		u.Scheme = "ws"
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/terminal"
	return u.String()
}

// Health probes GET /health with a short deadline.
func (c *Client) Health(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, healthTimeout)
	defer cancel()

	var out healthResponse
	res, err := c.http.R().
		SetContext(ctx).
		SetSuccessResult(&out).
		Get("/health")
	if err := wrapError(res, err, "health"); err != nil {
		return err
	}
	if out.Status != "ok" {
		return &Error{Kind: KindRemoteError, StatusCode: res.StatusCode, Detail: "health: unexpected status " + out.Status}
	}
	return nil
}

// ListFiles fetches the sandbox's full workspace tree.
func (c *Client) ListFiles(ctx context.Context) (*Node, error) {
	var out treeResponse
	res, err := c.http.R().
		SetContext(ctx).
		SetSuccessResult(&out).
		Get("/files")
	if err := wrapError(res, err, "list files"); err != nil {
		return nil, err
	}
	return out.Tree, nil
}

// ListScripts fetches the scripts listing with remote modtimes.
func (c *Client) ListScripts(ctx context.Context) ([]*ScriptInfo, error) {
	var out scriptsResponse
	res, err := c.http.R().
		SetContext(ctx).
		SetSuccessResult(&out).
		Get("/scripts")
	if err := wrapError(res, err, "list scripts"); err != nil {
		return nil, err
	}
	return out.Scripts, nil
}

// GetScript fetches one file from the sandbox scripts folder.
func (c *Client) GetScript(ctx context.Context, path string) (*RemoteFile, error) {
	var out RemoteFile
	res, err := c.http.R().
		SetContext(ctx).
		SetSuccessResult(&out).
		Get("/scripts/" + encodePath(path))
	if err := wrapError(res, err, "get script "+path); err != nil {
		return nil, err
	}
	return &out, nil
}

// PutScript uploads content into the sandbox scripts folder. Paths the sync
// policy forbids are rejected before any network I/O.
func (c *Client) PutScript(ctx context.Context, path string, content string) error {
	if policy.ForbiddenForSync(path) {
		return fmt.Errorf("%w: %s", ErrForbiddenPath, path)
	}

	res, err := c.http.R().
		SetContext(ctx).
		SetBody(&putScriptRequest{Content: content}).
		Post("/scripts/" + encodePath(path))
	return wrapError(res, err, "put script "+path)
}

// GetFile fetches any file from the sandbox workspace.
func (c *Client) GetFile(ctx context.Context, path string) (*RemoteFile, error) {
	var out RemoteFile
	res, err := c.http.R().
		SetContext(ctx).
		SetSuccessResult(&out).
		Get("/files/" + encodePath(path))
	if err := wrapError(res, err, "get file "+path); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetMetadata fetches the current remote summaries.
func (c *Client) GetMetadata(ctx context.Context) (*Metadata, error) {
	var out Metadata
	res, err := c.http.R().
		SetContext(ctx).
		SetSuccessResult(&out).
		Get("/metadata")
	if err := wrapError(res, err, "get metadata"); err != nil {
		return nil, err
	}
	return &out, nil
}

// PutMetadata uploads both summaries in one call.
func (c *Client) PutMetadata(ctx context.Context, input, output string) error {
	res, err := c.http.R().
		SetContext(ctx).
		SetBody(&Metadata{InputMetadata: input, OutputMetadata: output}).
		Post("/metadata")
	return wrapError(res, err, "put metadata")
}

// encodePath escapes each segment while preserving separators.
func encodePath(path string) string {
	segs := strings.Split(strings.Trim(path, "/"), "/")
	for i, s := range segs {
		segs[i] = url.PathEscape(s)
	}
	return strings.Join(segs, "/")
}
