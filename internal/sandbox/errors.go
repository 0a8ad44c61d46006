package sandbox

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/imroc/req/v3"
)

// ErrForbiddenPath is returned client-side before any network I/O when a
// push targets a path the sync policy forbids.
var ErrForbiddenPath = errors.New("sandbox: path forbidden for sync")

// ErrorKind is the finite classification of remote failures.
type ErrorKind string

const (
	KindUnreachable  ErrorKind = "unreachable"
	KindUnauthorized ErrorKind = "unauthorized"
	KindNotFound     ErrorKind = "not_found"
	KindConflict     ErrorKind = "conflict"
	KindRemoteError  ErrorKind = "remote_error"
)

// Error wraps any remote-call failure with its kind and, when a response was
// received, the HTTP status.
type Error struct {
	Kind       ErrorKind
	StatusCode int
	Detail     string
	cause      error
}

func (e *Error) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("sandbox %s (%d): %s", e.Kind, e.StatusCode, e.Detail)
	}
	return fmt.Sprintf("sandbox %s: %s", e.Kind, e.Detail)
}

// Unwrap exposes the transport error so callers can distinguish timeouts
// from other unreachable states with errors.Is.
func (e *Error) Unwrap() error {
	return e.cause
}

// KindOf extracts the error kind; non-sandbox errors report as unreachable.
func KindOf(err error) ErrorKind {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	return KindUnreachable
}

// wrapError maps a req response/error pair to a typed *Error, or nil on
// success.
func wrapError(resp *req.Response, requestErr error, operation string) error {
	if requestErr != nil {
		return &Error{
			Kind:   KindUnreachable,
			Detail: fmt.Sprintf("%s: %v", operation, requestErr),
			cause:  requestErr,
		}
	}
	if resp == nil || resp.Response == nil {
		return &Error{Kind: KindUnreachable, Detail: operation}
	}
	if !resp.IsErrorState() {
		return nil
	}

	kind := KindRemoteError
	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		kind = KindUnauthorized
	case http.StatusNotFound:
		kind = KindNotFound
	case http.StatusConflict:
		kind = KindConflict
	}

	return &Error{
		Kind:       kind,
		StatusCode: resp.StatusCode,
		Detail:     fmt.Sprintf("%s: %s", operation, resp.String()),
	}
}
