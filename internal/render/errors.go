package render

import (
	"errors"
	"fmt"
)

// Fetch failure classes. Both are recoverable: the caller keeps showing its
// last good image.
var (
	// ErrTransport indicates the request never produced a response.
	ErrTransport = errors.New("render: transport failure")

	// ErrStatus indicates the service answered with a non-success status.
	ErrStatus = errors.New("render: non-success response")

	// ErrContent indicates a success status whose body is not an image.
	ErrContent = errors.New("render: response is not an image")
)

// FetchError wraps a failure with request context.
type FetchError struct {
	Model      string
	URL        string
	StatusCode int
	Wrapped    error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: %d: %v", e.Model, e.StatusCode, e.Wrapped)
	}
	return fmt.Sprintf("fetch %s: %v", e.Model, e.Wrapped)
}

func (e *FetchError) Unwrap() error {
	return e.Wrapped
}
