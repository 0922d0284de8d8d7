package kaleido

import (
	"errors"
	"fmt"
)

// ErrInvalidContentType is returned by GetFile when the response declares a
// content type outside the download allow-list.
var ErrInvalidContentType = errors.New("response does not contain valid file data")

// HTTPStatusError reports a response with status >= 400. The transport layer
// never retries; callers decide what, if anything, to do with the failure.
type HTTPStatusError struct {
	Method     string
	Path       string
	StatusCode int
	Body       string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("%s %s received statusCode=%d, body=%s", e.Method, e.Path, e.StatusCode, e.Body)
}
